// Package executor implements the worker side of the Cascade Relay
// Protocol. An Executor accepts bridge connections over WebSocket, runs
// registered handlers for submitted link attempts, and reports outcomes
// back as events.
//
// Mount it on any HTTP server:
//
//	ex := executor.New(logger, executor.WithToken("secret"))
//	ex.Register(cascade.KindBatch, "send-invoices", sendInvoices)
//	http.ListenAndServe(":9090", ex.Handler())
//
// The serving engine connects through platform/remote.NewBridge pointed
// at the mounted path.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/middleware"
	"github.com/xraph/cascade/platform"
	"github.com/xraph/cascade/platform/remote"
)

// Executor runs link attempts on behalf of remote Cascade engines.
type Executor struct {
	token       string
	concurrency int
	userMw      []middleware.Middleware
	mw          middleware.Middleware
	logger      *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[string]platform.Handler

	// sem bounds concurrently running attempts across all connections.
	sem chan struct{}

	activeMu sync.Mutex
	active   map[string]context.CancelFunc
}

// New creates an executor. Handlers are registered with Register; the
// WebSocket endpoint comes from Handler.
func New(logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		concurrency: 10,
		logger:      logger,
		handlers:    make(map[string]platform.Handler),
		active:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sem = make(chan struct{}, e.concurrency)

	// Recover and timeout always run; user middleware nests inside.
	stack := append([]middleware.Middleware{
		middleware.Recover(logger),
		middleware.Timeout(logger),
	}, e.userMw...)
	e.mw = middleware.Chain(stack...)
	return e
}

func handlerKey(kind cascade.Kind, job string) string {
	return fmt.Sprintf("%s:%s", kind, job)
}

// Register installs the handler for a kind+job pair. Registering the
// same pair twice replaces the previous handler.
func (e *Executor) Register(kind cascade.Kind, job string, h platform.Handler) {
	e.handlersMu.Lock()
	e.handlers[handlerKey(kind, job)] = h
	e.handlersMu.Unlock()
}

// Handlers returns all registered kind:job keys.
func (e *Executor) Handlers() []string {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	keys := make([]string, 0, len(e.handlers))
	for k := range e.handlers {
		keys = append(keys, k)
	}
	return keys
}

// Active returns the number of attempts currently executing.
func (e *Executor) Active() int { return len(e.sem) }

// Handler returns the WebSocket endpoint accepting bridge connections.
func (e *Executor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			e.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		go e.serveConn(conn)
	})
}

// session is one authenticated bridge connection. Writes from response
// and event paths interleave, so they serialize on mu.
type session struct {
	conn  net.Conn
	codec remote.Codec
	id    string
	mu    sync.Mutex
}

func (s *session) write(frame *remote.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if s.codec.Binary() {
		return wsutil.WriteServerBinary(s.conn, data)
	}
	return wsutil.WriteServerText(s.conn, data)
}

// serveConn authenticates one connection and processes its frames until
// it closes.
func (e *Executor) serveConn(conn net.Conn) {
	defer conn.Close()

	sess, err := e.handshake(conn)
	if err != nil {
		e.logger.Warn("bridge handshake failed", slog.String("error", err.Error()))
		return
	}
	e.logger.Info("bridge connected",
		slog.String("session_id", sess.id),
		slog.String("codec", sess.codec.Name()),
	)
	defer e.logger.Info("bridge disconnected", slog.String("session_id", sess.id))

	for {
		frame, err := e.readFrame(sess)
		if err != nil {
			return
		}
		if frame == nil {
			continue
		}

		switch frame.Type {
		case remote.FramePing:
			pong := &remote.Frame{
				ID:        remote.GenerateFrameID(),
				Type:      remote.FramePong,
				CorrelID:  frame.ID,
				Timestamp: time.Now().UTC(),
			}
			if err := sess.write(pong); err != nil {
				return
			}
		case remote.FrameRequest:
			e.handleRequest(sess, frame)
		case remote.FramePong:
			// Ignore pong frames.
		}
	}
}

// handshake performs the auth exchange. The first frame must be an auth
// request, always as JSON text; the negotiated codec takes over after
// the response.
func (e *Executor) handshake(conn net.Conn) (*session, error) {
	data, err := wsutil.ReadClientText(conn)
	if err != nil {
		return nil, fmt.Errorf("read auth frame: %w", err)
	}
	var authFrame remote.Frame
	if err := json.Unmarshal(data, &authFrame); err != nil {
		writeJSONText(conn, remote.NewErrorFrame("", remote.ErrCodeBadRequest, "invalid auth frame"))
		return nil, fmt.Errorf("unmarshal auth frame: %w", err)
	}
	if authFrame.Method != remote.MethodAuth {
		writeJSONText(conn, remote.NewErrorFrame(authFrame.ID, remote.ErrCodeBadRequest, "first frame must be auth"))
		return nil, fmt.Errorf("expected auth frame, got %q", authFrame.Method)
	}

	var authReq remote.AuthRequest
	if len(authFrame.Data) > 0 {
		if err := json.Unmarshal(authFrame.Data, &authReq); err != nil {
			writeJSONText(conn, remote.NewErrorFrame(authFrame.ID, remote.ErrCodeBadRequest, "invalid auth data"))
			return nil, fmt.Errorf("unmarshal auth request: %w", err)
		}
	}
	token := authReq.Token
	if token == "" {
		token = authFrame.Token
	}
	if e.token != "" && token != e.token {
		writeJSONText(conn, remote.NewErrorFrame(authFrame.ID, remote.ErrCodeUnauthorized, "authentication failed"))
		return nil, fmt.Errorf("bad token")
	}

	sess := &session{
		conn:  conn,
		codec: remote.GetCodec(authReq.Format),
		id:    "sess-" + remote.GenerateFrameID(),
	}

	resp, err := remote.NewResponseFrame(authFrame.ID, remote.AuthResponse{
		Format:    sess.codec.Name(),
		SessionID: sess.id,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal auth response: %w", err)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal auth response: %w", err)
	}
	if err := wsutil.WriteServerText(conn, raw); err != nil {
		return nil, fmt.Errorf("write auth response: %w", err)
	}
	return sess, nil
}

// writeJSONText sends a frame as JSON text, for pre-negotiation errors.
func writeJSONText(conn net.Conn, frame *remote.Frame) {
	if raw, err := json.Marshal(frame); err == nil {
		_ = wsutil.WriteServerText(conn, raw)
	}
}

// readFrame reads and decodes one frame using the session codec. A nil
// frame with nil error means a malformed frame was skipped.
func (e *Executor) readFrame(sess *session) (*remote.Frame, error) {
	var data []byte
	var err error
	if sess.codec.Binary() {
		data, err = wsutil.ReadClientBinary(sess.conn)
	} else {
		data, err = wsutil.ReadClientText(sess.conn)
	}
	if err != nil {
		return nil, err
	}

	frame, decErr := sess.codec.Decode(data)
	if decErr != nil {
		e.logger.Warn("invalid frame",
			slog.String("session_id", sess.id),
			slog.String("error", decErr.Error()),
		)
		errFrame := remote.NewErrorFrame("", remote.ErrCodeBadRequest, "invalid frame: "+decErr.Error())
		if writeErr := sess.write(errFrame); writeErr != nil {
			return nil, writeErr
		}
		return nil, nil
	}
	return frame, nil
}

func (e *Executor) handleRequest(sess *session, frame *remote.Frame) {
	switch frame.Method {
	case remote.MethodSubmit:
		e.handleSubmit(sess, frame)
	case remote.MethodCancel:
		e.handleCancel(sess, frame)
	default:
		e.writeError(sess, frame.ID, remote.ErrCodeNotFound, "unknown method "+frame.Method)
	}
}

// handleSubmit accepts one attempt, replies with its tracking ID, and
// runs it asynchronously. At capacity it refuses with a busy error so
// the engine re-drives the start through its schedule store.
func (e *Executor) handleSubmit(sess *session, frame *remote.Frame) {
	var req remote.SubmitRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		e.writeError(sess, frame.ID, remote.ErrCodeBadRequest, "invalid submit payload")
		return
	}
	att, err := attemptFrom(&req)
	if err != nil {
		e.writeError(sess, frame.ID, remote.ErrCodeBadRequest, err.Error())
		return
	}

	e.handlersMu.RLock()
	handler, ok := e.handlers[handlerKey(att.Kind, att.Job)]
	e.handlersMu.RUnlock()
	if !ok {
		e.writeError(sess, frame.ID, remote.ErrCodeNotFound,
			fmt.Sprintf("no handler for %s:%s", att.Kind, att.Job))
		return
	}

	select {
	case e.sem <- struct{}{}:
	default:
		e.writeError(sess, frame.ID, remote.ErrCodeBusy, "executor at capacity")
		return
	}

	att.TrackingID = id.NewTrackingID()
	att.SubmittedAt = time.Now().UTC()

	resp, err := remote.NewResponseFrame(frame.ID, remote.SubmitResponse{
		TrackingID: att.TrackingID.String(),
		State:      "accepted",
	})
	if err != nil {
		<-e.sem
		e.logger.Error("marshal submit response", slog.String("error", err.Error()))
		return
	}
	if err := sess.write(resp); err != nil {
		<-e.sem
		return
	}

	e.logger.Info("attempt accepted",
		slog.String("session_id", sess.id),
		slog.String("job", att.Job),
		slog.String("tracking_id", att.TrackingID.String()),
		slog.Int("attempt", att.Number),
	)
	go e.run(sess, att, handler)
}

func (e *Executor) handleCancel(sess *session, frame *remote.Frame) {
	var req remote.CancelRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		e.writeError(sess, frame.ID, remote.ErrCodeBadRequest, "invalid cancel payload")
		return
	}

	e.activeMu.Lock()
	cancel, running := e.active[req.TrackingID]
	e.activeMu.Unlock()
	if running {
		cancel()
	}

	resp, err := remote.NewResponseFrame(frame.ID, map[string]bool{"cancelled": running})
	if err != nil {
		return
	}
	_ = sess.write(resp)
}

// run executes one attempt through middleware and the handler, then
// reports the outcome on the session it arrived on.
func (e *Executor) run(sess *session, att *cascade.Attempt, handler platform.Handler) {
	defer func() { <-e.sem }()

	ctx, cancel := context.WithCancel(cascade.WithAttempt(context.Background(), att))
	tid := att.TrackingID.String()
	e.activeMu.Lock()
	e.active[tid] = cancel
	e.activeMu.Unlock()
	defer func() {
		e.activeMu.Lock()
		delete(e.active, tid)
		e.activeMu.Unlock()
		cancel()
	}()

	inv := &platform.Invocation{Attempt: att}
	terminal := func(ctx context.Context) error {
		return handler(ctx, inv)
	}
	err := e.mw(ctx, att, terminal)
	out := cascade.OutcomeOf(err)
	out.Processed = inv.Processed
	out.Failed = inv.Failed

	e.report(sess, att, out)
}

// report sends the outcome event, plus the completion hook event for
// queueable attempts. A dropped connection loses the events; the engine
// redelivers the start through its schedule when it reconnects.
func (e *Executor) report(sess *session, att *cascade.Attempt, out cascade.Outcome) {
	evt := remote.OutcomeEvent{
		TrackingID: att.TrackingID.String(),
		Kind:       att.Kind.String(),
		Outcome:    string(out.Kind),
		Error:      out.Error,
		Processed:  out.Processed,
		Failed:     out.Failed,
	}

	frame, err := remote.NewEventFrame(remote.EventOutcome, evt)
	if err != nil {
		e.logger.Error("marshal outcome event", slog.String("error", err.Error()))
		return
	}
	if err := sess.write(frame); err != nil {
		e.logger.Warn("outcome not delivered, bridge gone",
			slog.String("tracking_id", evt.TrackingID),
			slog.String("error", err.Error()),
		)
		return
	}

	if att.Kind == cascade.KindQueueable {
		hook, err := remote.NewEventFrame(remote.EventHook, evt)
		if err != nil {
			return
		}
		if err := sess.write(hook); err != nil {
			e.logger.Warn("hook not delivered, bridge gone",
				slog.String("tracking_id", evt.TrackingID),
			)
		}
	}
}

func (e *Executor) writeError(sess *session, correlID string, code int, msg string) {
	if err := sess.write(remote.NewErrorFrame(correlID, code, msg)); err != nil {
		e.logger.Warn("error frame not delivered", slog.String("error", err.Error()))
	}
}

// attemptFrom rebuilds the attempt a submit request describes.
func attemptFrom(req *remote.SubmitRequest) (*cascade.Attempt, error) {
	kind, err := cascade.ParseKind(req.Kind)
	if err != nil {
		return nil, fmt.Errorf("bad kind %q", req.Kind)
	}
	chainID, err := id.ParseChainID(req.ChainID)
	if err != nil {
		return nil, fmt.Errorf("bad chain id %q", req.ChainID)
	}
	return &cascade.Attempt{
		ChainID:   chainID,
		Kind:      kind,
		Job:       req.Job,
		Params:    req.Params,
		BatchSize: req.BatchSize,
		Number:    req.Attempt,
		Hops:      req.Hops,
		Timeout:   req.Timeout,
	}, nil
}
