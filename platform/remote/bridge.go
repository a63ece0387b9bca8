package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/platform"
)

// Bridge submits link attempts to a remote executor over CRP and routes
// the executor's outcome and completion-hook events back to the engines.
//
// A Bridge is constructed unconnected; Start dials the executor,
// authenticates, and begins reading frames. If the connection drops the
// bridge reconnects with exponential backoff (when enabled); attempts
// submitted while disconnected are rejected so the scheduler re-drives
// them later.
type Bridge struct {
	url    string
	token  string
	format string
	logger *slog.Logger

	// Reconnection.
	reconnect  bool
	maxRetries int
	baseDelay  time.Duration

	// Connection state.
	conn      net.Conn
	codec     Codec
	mu        sync.Mutex
	closed    atomic.Bool
	connected atomic.Bool
	sessionID string

	// Request-response correlation.
	pending sync.Map // frameID → chan *Frame

	// Outcome routing.
	notifiersMu sync.RWMutex
	notifiers   map[cascade.Kind]platform.Notifier
}

var _ platform.Platform = (*Bridge)(nil)

// NewBridge creates a bridge for the given executor URL. The bridge does
// not connect until Start is called.
func NewBridge(url string, opts ...Option) *Bridge {
	b := &Bridge{
		url:        url,
		format:     CodecNameJSON,
		logger:     slog.Default(),
		maxRetries: 5,
		baseDelay:  time.Second,
		codec:      &JSONCodec{},
		notifiers:  make(map[cascade.Kind]platform.Notifier),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start dials the executor, authenticates, and starts the read loop.
func (b *Bridge) Start(ctx context.Context) error {
	if b.connected.Load() {
		return nil
	}
	b.closed.Store(false)

	if err := b.connect(ctx); err != nil {
		return fmt.Errorf("remote: start: %w", err)
	}

	go b.readLoop()
	return nil
}

// Stop closes the connection. Pending requests fail with their context's
// error; the executor keeps running attempts it already accepted.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.closed.Swap(true) {
		return nil // already stopped
	}
	b.connected.Store(false)

	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Bind registers the notifier that receives outcome and hook events for
// attempts of the given kind.
func (b *Bridge) Bind(kind cascade.Kind, n platform.Notifier) {
	b.notifiersMu.Lock()
	defer b.notifiersMu.Unlock()
	b.notifiers[kind] = n
}

// Submit sends one link attempt to the executor and returns the tracking
// ID it assigned. A busy executor or a disconnected bridge rejects the
// submission; callers defer and re-drive through the schedule store.
func (b *Bridge) Submit(ctx context.Context, att *cascade.Attempt) (id.TrackingID, error) {
	if !b.connected.Load() {
		return id.TrackingID{}, fmt.Errorf("remote: submit: not connected: %w", cascade.ErrSubmissionRejected)
	}

	req := SubmitRequest{
		Kind:      att.Kind.String(),
		Job:       att.Job,
		ChainID:   att.ChainID.String(),
		Params:    att.Params,
		BatchSize: att.BatchSize,
		Attempt:   att.Number,
		Hops:      att.Hops,
		Timeout:   att.Timeout,
	}
	resp, err := b.request(ctx, MethodSubmit, req)
	if err != nil {
		return id.TrackingID{}, fmt.Errorf("remote: submit %s/%s: %w", att.Kind, att.Job, err)
	}

	var sr SubmitResponse
	if err := json.Unmarshal(resp.Data, &sr); err != nil {
		return id.TrackingID{}, fmt.Errorf("remote: submit %s/%s: decode response: %w", att.Kind, att.Job, err)
	}
	tid, err := id.ParseTrackingID(sr.TrackingID)
	if err != nil {
		return id.TrackingID{}, fmt.Errorf("remote: submit %s/%s: bad tracking id %q: %w", att.Kind, att.Job, sr.TrackingID, err)
	}
	return tid, nil
}

// Cancel asks the executor to stop a running attempt. Best effort: the
// executor may have already finished it.
func (b *Bridge) Cancel(ctx context.Context, tid id.TrackingID) error {
	if !b.connected.Load() {
		return fmt.Errorf("remote: cancel: not connected")
	}
	_, err := b.request(ctx, MethodCancel, CancelRequest{TrackingID: tid.String()})
	if err != nil {
		return fmt.Errorf("remote: cancel %s: %w", tid, err)
	}
	return nil
}

// SessionID returns the session ID assigned by the executor.
func (b *Bridge) SessionID() string { return b.sessionID }

// connect establishes the WebSocket connection and sends the auth frame.
// It reads the auth response directly since the readLoop hasn't started
// yet. The auth exchange is always JSON text; the negotiated codec takes
// over afterwards.
func (b *Bridge) connect(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, b.url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	authFrame := &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameRequest,
		Method:    MethodAuth,
		Token:     b.token,
		Timestamp: time.Now().UTC(),
	}
	authData, marshalErr := json.Marshal(AuthRequest{
		Token:  b.token,
		Format: b.format,
	})
	if marshalErr != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal auth request: %w", marshalErr)
	}
	authFrame.Data = authData

	raw, marshalErr := json.Marshal(authFrame)
	if marshalErr != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal auth frame: %w", marshalErr)
	}
	if writeErr := wsutil.WriteClientText(conn, raw); writeErr != nil {
		_ = conn.Close()
		return fmt.Errorf("write auth frame: %w", writeErr)
	}

	type readResult struct {
		resp *Frame
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, readErr := wsutil.ReadServerText(conn)
		if readErr != nil {
			resultCh <- readResult{err: fmt.Errorf("read auth response: %w", readErr)}
			return
		}
		var frame Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil {
			resultCh <- readResult{err: fmt.Errorf("unmarshal auth response: %w", unmarshalErr)}
			return
		}
		resultCh <- readResult{resp: &frame}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			_ = conn.Close()
			return result.err
		}
		resp := result.resp
		if resp.Type == FrameErr {
			_ = conn.Close()
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return fmt.Errorf("auth failed: %s", msg)
		}
		var authResp AuthResponse
		if len(resp.Data) > 0 {
			if unmarshalErr := json.Unmarshal(resp.Data, &authResp); unmarshalErr != nil {
				b.logger.Warn("failed to unmarshal auth response", slog.String("error", unmarshalErr.Error()))
			}
		}
		b.mu.Lock()
		b.conn = conn
		b.codec = GetCodec(authResp.Format)
		b.sessionID = authResp.SessionID
		b.mu.Unlock()
		b.connected.Store(true)
		b.logger.Info("executor bridge connected",
			slog.String("session_id", b.sessionID),
			slog.String("format", b.codec.Name()),
		)
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-time.After(10 * time.Second):
		_ = conn.Close()
		return fmt.Errorf("auth timeout")
	}
}

// readLoop reads frames from the WebSocket and dispatches them.
func (b *Bridge) readLoop() {
	for {
		if b.closed.Load() {
			return
		}

		frame, err := b.readFrame()
		if err != nil {
			if b.closed.Load() {
				return
			}
			b.connected.Store(false)
			b.logger.Warn("executor bridge read error", slog.String("error", err.Error()))
			if b.reconnect {
				b.tryReconnect()
			}
			return
		}
		if frame == nil {
			continue
		}

		// Route the frame.
		switch frame.Type {
		case FrameResponse, FrameErr:
			// Correlate with pending request.
			if val, ok := b.pending.Load(frame.CorrelID); ok {
				ch := val.(chan *Frame) //nolint:errcheck // pending map always stores chan *Frame
				select {
				case ch <- frame:
				default:
				}
			}
		case FrameEvent:
			b.dispatchEvent(frame)
		case FramePing:
			pong := &Frame{ID: GenerateFrameID(), Type: FramePong, CorrelID: frame.ID, Timestamp: time.Now().UTC()}
			if writeErr := b.writeFrame(pong); writeErr != nil {
				b.logger.Warn("executor bridge pong failed", slog.String("error", writeErr.Error()))
			}
		case FramePong:
			// Ignore pong frames.
		}
	}
}

// dispatchEvent decodes an outcome or hook event and hands it to the
// notifier bound for the attempt's kind. Notifications are idempotent on
// the engine side, so redelivery after a reconnect is harmless.
func (b *Bridge) dispatchEvent(frame *Frame) {
	var evt OutcomeEvent
	if err := json.Unmarshal(frame.Data, &evt); err != nil {
		b.logger.Warn("executor bridge: invalid event payload",
			slog.String("event", frame.Event),
			slog.String("error", err.Error()),
		)
		return
	}

	kind, err := cascade.ParseKind(evt.Kind)
	if err != nil {
		b.logger.Warn("executor bridge: event for unknown kind",
			slog.String("kind", evt.Kind),
			slog.String("tracking_id", evt.TrackingID),
		)
		return
	}
	tid, err := id.ParseTrackingID(evt.TrackingID)
	if err != nil {
		b.logger.Warn("executor bridge: event with bad tracking id",
			slog.String("tracking_id", evt.TrackingID),
			slog.String("error", err.Error()),
		)
		return
	}

	b.notifiersMu.RLock()
	n := b.notifiers[kind]
	b.notifiersMu.RUnlock()
	if n == nil {
		b.logger.Warn("executor bridge: no notifier bound",
			slog.String("kind", kind.String()),
			slog.String("tracking_id", tid.String()),
		)
		return
	}

	out := cascade.Outcome{
		Kind:      cascade.OutcomeKind(evt.Outcome),
		Error:     evt.Error,
		Processed: evt.Processed,
		Failed:    evt.Failed,
	}

	ctx := context.Background()
	switch frame.Event {
	case EventOutcome:
		n.OnOutcome(ctx, tid, out)
	case EventHook:
		n.OnHook(ctx, tid, out)
	default:
		b.logger.Warn("executor bridge: unknown event", slog.String("event", frame.Event))
	}
}

// tryReconnect attempts to reconnect with exponential backoff.
func (b *Bridge) tryReconnect() {
	delay := b.baseDelay
	for i := range b.maxRetries {
		b.logger.Info("executor bridge reconnecting",
			slog.Int("attempt", i+1),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)

		if err := b.connect(context.Background()); err != nil {
			b.logger.Warn("executor bridge reconnect failed", slog.String("error", err.Error()))
			delay = min(delay*2, 30*time.Second)
			continue
		}

		b.logger.Info("executor bridge reconnected")
		go b.readLoop()
		return
	}
	b.logger.Error("executor bridge: max reconnection attempts reached")
}

// request sends a request frame and waits for the correlated response.
func (b *Bridge) request(ctx context.Context, method string, data any) (*Frame, error) {
	frame := &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameRequest,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request data: %w", err)
		}
		frame.Data = raw
	}

	respCh := make(chan *Frame, 1)
	b.pending.Store(frame.ID, respCh)
	defer b.pending.Delete(frame.ID)

	if err := b.writeFrame(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Type == FrameErr {
			code := 0
			msg := "unknown error"
			if resp.Error != nil {
				code = resp.Error.Code
				msg = resp.Error.Message
			}
			if code == ErrCodeBusy {
				return nil, fmt.Errorf("executor busy: %s: %w", msg, cascade.ErrSubmissionRejected)
			}
			return nil, fmt.Errorf("executor error %d: %s", code, msg)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readFrame reads and decodes one frame using the negotiated codec.
func (b *Bridge) readFrame() (*Frame, error) {
	b.mu.Lock()
	conn, codec := b.conn, b.codec
	b.mu.Unlock()

	var data []byte
	var err error
	if codec.Binary() {
		data, err = wsutil.ReadServerBinary(conn)
	} else {
		data, err = wsutil.ReadServerText(conn)
	}
	if err != nil {
		return nil, err
	}

	frame, decErr := codec.Decode(data)
	if decErr != nil {
		b.logger.Warn("executor bridge: invalid frame", slog.String("error", decErr.Error()))
		return nil, nil
	}
	return frame, nil
}

// writeFrame encodes and sends a frame using the negotiated codec.
func (b *Bridge) writeFrame(frame *Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return fmt.Errorf("remote: not connected")
	}
	data, err := b.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if b.codec.Binary() {
		return wsutil.WriteClientBinary(b.conn, data)
	}
	return wsutil.WriteClientText(b.conn, data)
}
