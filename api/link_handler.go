package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

func (a *API) registerLinkRoutes(r chi.Router) {
	r.Get("/", a.listLinks)
	r.Put("/", a.putLink)
	r.Get("/{kind}/{job}", a.getLink)
	r.Delete("/{kind}/{job}", a.deleteLink)
}

// listLinks returns link configs filtered by kind and active flag.
func (a *API) listLinks(w http.ResponseWriter, r *http.Request) {
	opts := chain.ListOpts{ActiveOnly: r.URL.Query().Get("active") == "true"}
	opts.Limit, opts.Offset = queryLimitOffset(r)

	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := cascade.ParseKind(k)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		opts.Kind = kind
	}

	links, err := a.eng.Links().ListLinks(r.Context(), opts)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, links)
}

// putLink validates and upserts a link config, then invalidates the
// resolver cache so running engines observe the change.
func (a *API) putLink(w http.ResponseWriter, r *http.Request) {
	var cfg chain.LinkConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if cfg.CreatedAt.IsZero() {
		cfg.Entity = cascade.NewEntity()
	} else {
		cfg.Touch()
	}

	if err := a.eng.Links().PutLink(r.Context(), &cfg); err != nil {
		respondDomainError(w, err)
		return
	}
	a.eng.Resolver().Invalidate(cfg.Kind, cfg.Job)
	respondJSON(w, http.StatusOK, &cfg)
}

func (a *API) getLink(w http.ResponseWriter, r *http.Request) {
	kind, job, ok := linkKeyParams(w, r)
	if !ok {
		return
	}
	cfg, err := a.eng.Links().GetLink(r.Context(), kind, job)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (a *API) deleteLink(w http.ResponseWriter, r *http.Request) {
	kind, job, ok := linkKeyParams(w, r)
	if !ok {
		return
	}
	if err := a.eng.Links().DeleteLink(r.Context(), kind, job); err != nil {
		respondDomainError(w, err)
		return
	}
	a.eng.Resolver().Invalidate(kind, job)
	w.WriteHeader(http.StatusNoContent)
}

// linkKeyParams extracts and validates the {kind}/{job} route pair,
// writing the error response itself when validation fails.
func linkKeyParams(w http.ResponseWriter, r *http.Request) (cascade.Kind, string, bool) {
	kind, err := cascade.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondDomainError(w, err)
		return "", "", false
	}
	job := chi.URLParam(r, "job")
	if job == "" {
		respondError(w, http.StatusBadRequest, "empty job identifier")
		return "", "", false
	}
	return kind, job, true
}
