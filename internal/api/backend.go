// ABOUTME: Backend interface shared by the coordinator client and the local store.
// ABOUTME: Defines the sentinel errors every backend maps its failures onto.

package api

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrUnauthorized = errors.New("session expired")
)

// APIError is a non-2xx response from the coordinator. Message is shown to users verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Backend is the data surface the console pages work against.
type Backend interface {
	ListStreams(ctx context.Context) ([]Stream, error)
	GetStream(ctx context.Context, id int64) (*Stream, error)
	CreateStream(ctx context.Context, req StreamRequest) (*Stream, error)
	UpdateStream(ctx context.Context, id int64, req StreamRequest) (*Stream, error)
	DeleteStream(ctx context.Context, id int64) error
	ValidateStream(ctx context.Context, req StreamRequest) (*ValidateResult, error)
	TryStream(ctx context.Context, req TryRequest) (*TryResult, error)
	StreamEvents(ctx context.Context, id int64, q EventQuery) (*EventPage, error)

	ListResources(ctx context.Context, kind Kind) ([]Resource, error)
	GetResource(ctx context.Context, kind Kind, id int64) (*Resource, error)
	CreateResource(ctx context.Context, kind Kind, req ResourceRequest) (*Resource, error)
	UpdateResource(ctx context.Context, kind Kind, id int64, req ResourceRequest) (*Resource, error)
	DeleteResource(ctx context.Context, kind Kind, id int64) error

	ListSecrets(ctx context.Context) ([]Secret, error)
	CreateSecret(ctx context.Context, req SecretRequest) error
	DeleteSecret(ctx context.Context, key string) error

	ListFiles(ctx context.Context) ([]File, error)
	GetFile(ctx context.Context, id int64) (*File, error)
	CreateFile(ctx context.Context, req FileRequest) (*File, error)
	UpdateFile(ctx context.Context, id int64, req FileRequest) (*File, error)
	DeleteFile(ctx context.Context, id int64) error

	ListWorkers(ctx context.Context) ([]Worker, error)
}

// UpdateStreamStatus changes only a stream's status by reading it and writing it back.
func UpdateStreamStatus(ctx context.Context, b Backend, id int64, status string) (*Stream, error) {
	s, err := b.GetStream(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load stream %d: %w", id, err)
	}
	req := s.Request()
	req.Status = status
	return b.UpdateStream(ctx, id, req)
}
