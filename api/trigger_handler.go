package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/trigger"
)

func (a *API) registerTriggerRoutes(r chi.Router) {
	r.Get("/", a.listTriggers)
	r.Post("/", a.registerTrigger)
	r.Get("/{triggerID}", a.getTrigger)
	r.Patch("/{triggerID}", a.patchTrigger)
	r.Delete("/{triggerID}", a.deleteTrigger)
}

func (a *API) listTriggers(w http.ResponseWriter, r *http.Request) {
	entries, err := a.eng.Triggers().Store().ListTriggers(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// registerTrigger validates and persists a new trigger. Shape problems
// are rejected here so they render as bad requests rather than server
// errors.
func (a *API) registerTrigger(w http.ResponseWriter, r *http.Request) {
	var entry trigger.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if entry.Name == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}
	if entry.Job == "" {
		respondError(w, http.StatusBadRequest, "job required")
		return
	}
	if !entry.Kind.Valid() {
		respondError(w, http.StatusBadRequest, "kind must be batch or queueable")
		return
	}
	if _, err := trigger.ParseSchedule(entry.Schedule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid schedule: "+err.Error())
		return
	}

	if err := a.eng.RegisterTrigger(r.Context(), &entry); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, &entry)
}

func (a *API) getTrigger(w http.ResponseWriter, r *http.Request) {
	tid, ok := triggerIDParam(w, r)
	if !ok {
		return
	}
	entry, err := a.eng.Triggers().Store().GetTrigger(r.Context(), tid)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// patchTriggerRequest flips the enabled flag. Re-enabling recomputes the
// next run from now.
type patchTriggerRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) patchTrigger(w http.ResponseWriter, r *http.Request) {
	tid, ok := triggerIDParam(w, r)
	if !ok {
		return
	}
	var req patchTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := a.eng.Triggers().SetEnabled(r.Context(), tid, req.Enabled); err != nil {
		respondDomainError(w, err)
		return
	}
	entry, err := a.eng.Triggers().Store().GetTrigger(r.Context(), tid)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (a *API) deleteTrigger(w http.ResponseWriter, r *http.Request) {
	tid, ok := triggerIDParam(w, r)
	if !ok {
		return
	}
	if err := a.eng.Triggers().Store().DeleteTrigger(r.Context(), tid); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func triggerIDParam(w http.ResponseWriter, r *http.Request) (id.TriggerID, bool) {
	tid, err := id.ParseTriggerID(chi.URLParam(r, "triggerID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trigger id: "+err.Error())
		return id.TriggerID{}, false
	}
	return tid, true
}
