package remote

import (
	"log/slog"
	"time"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithToken sets the auth token sent during the handshake.
func WithToken(token string) Option {
	return func(b *Bridge) { b.token = token }
}

// WithFormat requests a wire format ("json" or "msgpack"). The executor
// confirms the format in its auth response; the bridge follows whatever
// the executor settles on.
func WithFormat(format string) Option {
	return func(b *Bridge) { b.format = format }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithReconnect enables automatic reconnection with exponential backoff.
func WithReconnect(maxRetries int, baseDelay time.Duration) Option {
	return func(b *Bridge) {
		b.reconnect = true
		if maxRetries > 0 {
			b.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			b.baseDelay = baseDelay
		}
	}
}
