package executor

import "github.com/xraph/cascade/middleware"

// Option configures an Executor.
type Option func(*Executor)

// WithToken requires connecting bridges to present the given token
// during the auth exchange. An empty token accepts any connection.
func WithToken(token string) Option {
	return func(e *Executor) {
		e.token = token
	}
}

// WithConcurrency bounds how many attempts run at once across all
// connections. Submits beyond the bound are refused as busy. Default 10.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithMiddleware appends middleware to the execution chain, inside the
// built-in recover and timeout stages.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) {
		e.userMw = append(e.userMw, mws...)
	}
}
