// ABOUTME: Records exchanged with the coordinator REST API.
// ABOUTME: JSON names follow the coordinator's wire format, including its camelCase event fields.

package api

import (
	"time"

	"github.com/2389/airtruct-console/internal/schema"
)

// Processor is one processor node of a stream.
type Processor struct {
	Label     string `json:"label"`
	Component string `json:"component"`
	Config    string `json:"config"`
}

// Stream is a saved pipeline definition.
type Stream struct {
	ID              int64       `json:"id"`
	ParentID        int64       `json:"parent_id,omitempty"`
	Name            string      `json:"name"`
	Status          string      `json:"status"`
	InputLabel      string      `json:"input_label"`
	InputComponent  string      `json:"input_component"`
	InputConfig     string      `json:"input_config"`
	OutputLabel     string      `json:"output_label"`
	OutputComponent string      `json:"output_component"`
	OutputConfig    string      `json:"output_config"`
	BufferID        *int64      `json:"buffer_id,omitempty"`
	Processors      []Processor `json:"processors"`
	IsHTTPServer    bool        `json:"is_http_server"`
	CreatedAt       time.Time   `json:"created_at"`
}

// StreamRequest is the body of stream create, update, validate, and try calls.
type StreamRequest struct {
	Name            string      `json:"name"`
	Status          string      `json:"status"`
	InputLabel      string      `json:"input_label"`
	InputComponent  string      `json:"input_component"`
	InputConfig     string      `json:"input_config"`
	OutputLabel     string      `json:"output_label"`
	OutputComponent string      `json:"output_component"`
	OutputConfig    string      `json:"output_config"`
	BufferID        *int64      `json:"buffer_id,omitempty"`
	Processors      []Processor `json:"processors"`
}

// Request converts a saved stream back into an update body.
func (s Stream) Request() StreamRequest {
	procs := make([]Processor, len(s.Processors))
	copy(procs, s.Processors)
	return StreamRequest{
		Name:            s.Name,
		Status:          s.Status,
		InputLabel:      s.InputLabel,
		InputComponent:  s.InputComponent,
		InputConfig:     s.InputConfig,
		OutputLabel:     s.OutputLabel,
		OutputComponent: s.OutputComponent,
		OutputConfig:    s.OutputConfig,
		BufferID:        s.BufferID,
		Processors:      procs,
	}
}

// Stream statuses offered by the console.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Statuses lists the selectable stream statuses.
var Statuses = []string{StatusActive, StatusPaused, StatusCompleted}

// Kind names a resource collection that shares the label/component/config shape.
type Kind string

const (
	KindBuffers          Kind = "buffers"
	KindCaches           Kind = "caches"
	KindRateLimits       Kind = "rate-limits"
	KindComponentConfigs Kind = "component-configs"
)

// Kinds lists every resource kind.
var Kinds = []Kind{KindBuffers, KindCaches, KindRateLimits, KindComponentConfigs}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Section returns the catalog section a kind's components come from.
// Component configs carry their own section per record.
func (k Kind) Section() schema.Section {
	switch k {
	case KindBuffers:
		return schema.SectionBuffer
	case KindCaches:
		return schema.SectionCache
	case KindRateLimits:
		return schema.SectionRateLimit
	}
	return ""
}

// Title is the display name of a kind.
func (k Kind) Title() string {
	switch k {
	case KindBuffers:
		return "Buffers"
	case KindCaches:
		return "Caches"
	case KindRateLimits:
		return "Rate Limits"
	case KindComponentConfigs:
		return "Component Configs"
	}
	return string(k)
}

// Resource is a buffer, cache, rate limit, or reusable component config.
type Resource struct {
	ID        int64          `json:"id"`
	ParentID  int64          `json:"parent_id,omitempty"`
	Label     string         `json:"label"`
	Section   schema.Section `json:"section,omitempty"`
	Component string         `json:"component"`
	Config    string         `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
}

// ResourceRequest is the body of resource create and update calls.
type ResourceRequest struct {
	Label     string         `json:"label"`
	Section   schema.Section `json:"section,omitempty"`
	Component string         `json:"component"`
	Config    string         `json:"config"`
}

// Secret is a stored secret; values are write-only.
type Secret struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

type SecretRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// File is a stored file. Content travels base64-encoded.
type File struct {
	ID        int64      `json:"id"`
	ParentID  int64      `json:"parent_id,omitempty"`
	Key       string     `json:"key"`
	Content   []byte     `json:"content,omitempty"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type FileRequest struct {
	Key     string `json:"key"`
	Content []byte `json:"content"`
}

// Worker is a coordinator worker node.
type Worker struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Address       string     `json:"address"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	ActiveStreams int        `json:"active_streams"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// StreamEvent is one traced message event of a running stream.
type StreamEvent struct {
	ID             int64          `json:"id"`
	WorkerStreamID int64          `json:"workerStreamId"`
	FlowID         string         `json:"flowId"`
	Section        string         `json:"section"`
	ComponentLabel string         `json:"componentLabel"`
	Type           string         `json:"type"`
	Content        string         `json:"content"`
	Meta           map[string]any `json:"meta"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// EventQuery pages through stream events within a time window.
type EventQuery struct {
	Limit  int
	Offset int
	Start  time.Time
	End    time.Time
}

// EventPage is one page of events with the total match count.
type EventPage struct {
	Data  []StreamEvent `json:"data"`
	Total int           `json:"total"`
}

// ValidateResult is the coordinator's verdict on a stream definition.
type ValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// TryMessage is one sample message for a dry run.
type TryMessage struct {
	Content string `json:"content"`
}

// TryRequest runs sample messages through processors without saving anything.
type TryRequest struct {
	Processors []Processor  `json:"processors"`
	Messages   []TryMessage `json:"messages"`
}

// TryOutput is one message produced by a dry run.
type TryOutput struct {
	Content string `json:"content"`
}

type TryResult struct {
	Outputs []TryOutput `json:"outputs"`
	Error   string      `json:"error,omitempty"`
}
