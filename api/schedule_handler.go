package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/cascade/id"
)

func (a *API) registerScheduleRoutes(r chi.Router) {
	r.Get("/", a.listSchedules)
	r.Get("/{scheduleID}", a.getSchedule)
	r.Delete("/{scheduleID}", a.deleteSchedule)
}

// listSchedules returns every pending activation: delayed handoffs,
// retry backoffs, and deferred starts waiting to fire.
func (a *API) listSchedules(w http.ResponseWriter, r *http.Request) {
	acts, err := a.eng.Scheduler().Store().ListActivations(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acts)
}

func (a *API) getSchedule(w http.ResponseWriter, r *http.Request) {
	sid, ok := scheduleIDParam(w, r)
	if !ok {
		return
	}
	act, err := a.eng.Scheduler().Store().GetActivation(r.Context(), sid)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, act)
}

// deleteSchedule cancels a pending activation. The chain it belonged to
// simply never resumes.
func (a *API) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	sid, ok := scheduleIDParam(w, r)
	if !ok {
		return
	}
	if err := a.eng.Scheduler().Store().DeleteActivation(r.Context(), sid); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func scheduleIDParam(w http.ResponseWriter, r *http.Request) (id.ScheduleID, bool) {
	sid, err := id.ParseScheduleID(chi.URLParam(r, "scheduleID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid schedule id: "+err.Error())
		return id.ScheduleID{}, false
	}
	return sid, true
}
