package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
)

func (a *API) registerDeadLetterRoutes(r chi.Router) {
	r.Get("/", a.listDeadLetters)
	r.Get("/count", a.countDeadLetters)
	r.Post("/purge", a.purgeDeadLetters)
	r.Get("/{entryID}", a.getDeadLetter)
	r.Post("/{entryID}/replay", a.replayDeadLetter)
}

// listDeadLetters returns entries newest-abort-first.
func (a *API) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	opts := deadletter.ListOpts{}
	opts.Limit, opts.Offset = queryLimitOffset(r)

	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := cascade.ParseKind(k)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		opts.Kind = kind
	}

	entries, err := a.eng.DeadLetters().Store().ListDeadLetters(r.Context(), opts)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *API) countDeadLetters(w http.ResponseWriter, r *http.Request) {
	n, err := a.eng.DeadLetters().Store().CountDeadLetters(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (a *API) getDeadLetter(w http.ResponseWriter, r *http.Request) {
	entryID, ok := deadLetterIDParam(w, r)
	if !ok {
		return
	}
	entry, err := a.eng.DeadLetters().Store().GetDeadLetter(r.Context(), entryID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// replayDeadLetter starts a fresh chain from the entry's job and
// parameters and marks the entry replayed.
func (a *API) replayDeadLetter(w http.ResponseWriter, r *http.Request) {
	entryID, ok := deadLetterIDParam(w, r)
	if !ok {
		return
	}
	chainID, err := a.eng.DeadLetters().Replay(r.Context(), entryID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"chain_id": chainID.String()})
}

// purgeRequest bounds a purge: entries aborted longer ago than OlderThan
// are removed.
type purgeRequest struct {
	OlderThan string `json:"older_than"`
}

func (a *API) purgeDeadLetters(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	age, err := time.ParseDuration(req.OlderThan)
	if err != nil || age < 0 {
		respondError(w, http.StatusBadRequest, "older_than must be a non-negative duration")
		return
	}

	purged, err := a.eng.DeadLetters().Store().PurgeDeadLetters(r.Context(), time.Now().UTC().Add(-age))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}

func deadLetterIDParam(w http.ResponseWriter, r *http.Request) (id.DeadLetterID, bool) {
	entryID, err := id.ParseDeadLetterID(chi.URLParam(r, "entryID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid dead letter id: "+err.Error())
		return id.DeadLetterID{}, false
	}
	return entryID, true
}
