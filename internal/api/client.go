// ABOUTME: HTTP client for the coordinator REST API under /api/v0.
// ABOUTME: Forwards the caller's bearer token and unwraps the {"data": ...} envelope.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2389/airtruct-console/internal/auth"
	"github.com/2389/airtruct-console/internal/metrics"
)

// Client talks to a coordinator. Failed calls are never retried.
type Client struct {
	base    string
	http    *http.Client
	metrics *metrics.Collector
}

// NewClient creates a client for the coordinator at baseURL (without the /api/v0 suffix).
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Collector) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:    strings.TrimRight(baseURL, "/") + "/api/v0",
		http:    httpClient,
		metrics: m,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// send performs one request and returns the body of a 2xx response.
// op labels the call in metrics.
func (c *Client) send(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", op, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := auth.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(op, 0, time.Since(start))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstream(op, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, raw)
	}
	return raw, nil
}

// do is send plus unwrapping of the data envelope into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	raw, err := c.send(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", op, err)
	}
	return nil
}

func statusError(status int, raw []byte) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Message = strings.TrimSpace(string(raw))
	}
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}

	apiErr := &APIError{Status: status, Message: msg}
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrConflict, apiErr)
	}
	log.Printf("coordinator returned %d: %s", status, msg)
	return apiErr
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

// Streams

func (c *Client) ListStreams(ctx context.Context) ([]Stream, error) {
	var out []Stream
	err := c.do(ctx, "list_streams", http.MethodGet, "/streams?status=all", nil, &out)
	return out, err
}

func (c *Client) GetStream(ctx context.Context, id int64) (*Stream, error) {
	var out Stream
	if err := c.do(ctx, "get_stream", http.MethodGet, idPath("/streams", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateStream(ctx context.Context, req StreamRequest) (*Stream, error) {
	var out Stream
	if err := c.do(ctx, "create_stream", http.MethodPost, "/streams", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStream(ctx context.Context, id int64, req StreamRequest) (*Stream, error) {
	var out Stream
	if err := c.do(ctx, "update_stream", http.MethodPut, idPath("/streams", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStream(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_stream", http.MethodDelete, idPath("/streams", id), nil, nil)
}

// ValidateStream and TryStream answer with bare JSON rather than the data envelope.
func (c *Client) ValidateStream(ctx context.Context, req StreamRequest) (*ValidateResult, error) {
	var out ValidateResult
	if err := c.bare(ctx, "validate_stream", "/streams/validate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TryStream(ctx context.Context, req TryRequest) (*TryResult, error) {
	var out TryResult
	if err := c.bare(ctx, "try_stream", "/streams/try", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) bare(ctx context.Context, op, path string, body, out any) error {
	raw, err := c.send(ctx, op, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// StreamEvents is the one endpoint that returns total next to data, so it skips the envelope.
func (c *Client) StreamEvents(ctx context.Context, id int64, q EventQuery) (*EventPage, error) {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if !q.Start.IsZero() {
		v.Set("start_time", q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("end_time", q.End.UTC().Format(time.RFC3339))
	}
	path := idPath("/streams", id) + "/events"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}

	raw, err := c.send(ctx, "stream_events", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var page EventPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode stream_events response: %w", err)
	}
	return &page, nil
}

// Resources

func resourcePath(kind Kind) string {
	return "/" + string(kind)
}

func (c *Client) ListResources(ctx context.Context, kind Kind) ([]Resource, error) {
	var out []Resource
	err := c.do(ctx, "list_"+string(kind), http.MethodGet, resourcePath(kind), nil, &out)
	return out, err
}

func (c *Client) GetResource(ctx context.Context, kind Kind, id int64) (*Resource, error) {
	var out Resource
	if err := c.do(ctx, "get_"+string(kind), http.MethodGet, idPath(resourcePath(kind), id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateResource(ctx context.Context, kind Kind, req ResourceRequest) (*Resource, error) {
	var out Resource
	if err := c.do(ctx, "create_"+string(kind), http.MethodPost, resourcePath(kind), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateResource(ctx context.Context, kind Kind, id int64, req ResourceRequest) (*Resource, error) {
	var out Resource
	if err := c.do(ctx, "update_"+string(kind), http.MethodPut, idPath(resourcePath(kind), id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteResource(ctx context.Context, kind Kind, id int64) error {
	return c.do(ctx, "delete_"+string(kind), http.MethodDelete, idPath(resourcePath(kind), id), nil, nil)
}

// Secrets

func (c *Client) ListSecrets(ctx context.Context) ([]Secret, error) {
	var out []Secret
	err := c.do(ctx, "list_secrets", http.MethodGet, "/secrets", nil, &out)
	return out, err
}

func (c *Client) CreateSecret(ctx context.Context, req SecretRequest) error {
	return c.do(ctx, "create_secret", http.MethodPost, "/secrets", req, nil)
}

func (c *Client) DeleteSecret(ctx context.Context, key string) error {
	return c.do(ctx, "delete_secret", http.MethodDelete, "/secrets/"+url.PathEscape(key), nil, nil)
}

// Files

type fileUpdate struct {
	ID int64 `json:"id"`
	FileRequest
}

func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	var out []File
	err := c.do(ctx, "list_files", http.MethodGet, "/files", nil, &out)
	return out, err
}

func (c *Client) GetFile(ctx context.Context, id int64) (*File, error) {
	var out File
	if err := c.do(ctx, "get_file", http.MethodGet, idPath("/files", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateFile(ctx context.Context, req FileRequest) (*File, error) {
	var out File
	if err := c.do(ctx, "create_file", http.MethodPost, "/files", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateFile(ctx context.Context, id int64, req FileRequest) (*File, error) {
	var out File
	if err := c.do(ctx, "update_file", http.MethodPut, idPath("/files", id), fileUpdate{ID: id, FileRequest: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_file", http.MethodDelete, idPath("/files", id), nil, nil)
}

// Workers

func (c *Client) ListWorkers(ctx context.Context) ([]Worker, error) {
	var out []Worker
	err := c.do(ctx, "list_workers", http.MethodGet, "/workers/all", nil, &out)
	return out, err
}

var _ Backend = (*Client)(nil)
