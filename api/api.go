// Package api exposes the Cascade management surface over HTTP: link
// config CRUD, chain starts, dead letter inspection and replay, pending
// activations, triggers, runtime stats, and a live event stream.
//
// Routes live under /v1 and speak JSON. The event stream at /v1/events
// is server-sent events fed by the stream broker.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/cascade/engine"
)

// API wires the HTTP handlers around an Engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// New creates an API from a cascade Engine.
func New(eng *engine.Engine) *API {
	return &API{eng: eng, logger: eng.Conductor().Logger()}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(a.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", a.health)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Route("/links", a.registerLinkRoutes)
		v1.Route("/chains", a.registerChainRoutes)
		v1.Route("/deadletters", a.registerDeadLetterRoutes)
		v1.Route("/schedules", a.registerScheduleRoutes)
		v1.Route("/triggers", a.registerTriggerRoutes)
		v1.Get("/stats", a.stats)
		v1.Get("/events", a.streamEvents)
	})

	return r
}

// health reports liveness and whether the store answers a ping.
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	type healthResponse struct {
		Status string `json:"status"`
		Store  string `json:"store"`
	}
	resp := healthResponse{Status: "ok", Store: "ok"}
	code := http.StatusOK
	if err := a.eng.Conductor().Store().Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, resp)
}

// requestLogger logs one line per request through the engine's logger.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
