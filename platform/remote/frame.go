// Package remote implements the Cascade Relay Protocol (CRP) — a
// frame-based protocol that bridges the chain engines to a remote
// executor service over WebSocket. The bridge submits link attempts
// and receives outcome and completion-hook events back.
package remote

import (
	"encoding/json"
	"time"

	"github.com/xraph/cascade"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the CRP message envelope. Every message exchanged over
// the protocol is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation for request frames (e.g., "link.submit").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries auth credentials (typically only on the auth frame).
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Event names the event category for event frames.
	Event string `json:"event,omitempty" msgpack:"event,omitempty"`

	// Data carries the method- or event-specific payload as JSON.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in a response or error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

// ── Well-known methods ──────────────────────────────

const (
	MethodAuth   = "auth"
	MethodSubmit = "link.submit"
	MethodCancel = "link.cancel"
)

// ── Well-known events ───────────────────────────────

const (
	// EventOutcome reports the terminal outcome of a submitted attempt.
	EventOutcome = "link.outcome"

	// EventHook reports that the executor's completion hook fired.
	EventHook = "link.hook"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest   = 400
	ErrCodeUnauthorized = 401
	ErrCodeNotFound     = 404
	ErrCodeBusy         = 429
	ErrCodeInternal     = 500
)

// ── Request/Response payloads ───────────────────────

// AuthRequest is sent by the bridge to authenticate.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default) or "msgpack"
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// SubmitRequest asks the executor to run one link attempt.
type SubmitRequest struct {
	Kind      string         `json:"kind"`
	Job       string         `json:"job"`
	ChainID   string         `json:"chain_id"`
	Params    cascade.Params `json:"params,omitempty"`
	BatchSize int            `json:"batch_size,omitempty"`
	Attempt   int            `json:"attempt"`
	Hops      int            `json:"hops"`
	Timeout   time.Duration  `json:"timeout,omitempty"`
}

// SubmitResponse confirms the executor accepted the attempt.
type SubmitResponse struct {
	TrackingID string `json:"tracking_id"`
	State      string `json:"state"`
}

// CancelRequest asks the executor to stop a running attempt.
type CancelRequest struct {
	TrackingID string `json:"tracking_id"`
}

// OutcomeEvent is the payload of outcome and hook event frames.
type OutcomeEvent struct {
	TrackingID string `json:"tracking_id"`
	Kind       string `json:"kind"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	Processed  int    `json:"processed,omitempty"`
	Failed     int    `json:"failed,omitempty"`
}

// NewRequestFrame creates a new request frame.
func NewRequestFrame(id, method string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        id,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEventFrame creates an event frame.
func NewEventFrame(event string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameEvent,
		Event:     event,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GenerateFrameID returns a new unique frame ID.
// Uses a simple timestamp approach for performance.
func GenerateFrameID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}
