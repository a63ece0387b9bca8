package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/cascade"
)

func (a *API) registerChainRoutes(r chi.Router) {
	r.Post("/{kind}/{job}/start", a.startChain)
}

// startChainRequest is the optional JSON body for a chain start.
type startChainRequest struct {
	Params cascade.Params `json:"params,omitempty"`
}

// startChain launches a new chain at the named job. The body may carry
// initial parameters; an empty body starts with none.
func (a *API) startChain(w http.ResponseWriter, r *http.Request) {
	kind, job, ok := linkKeyParams(w, r)
	if !ok {
		return
	}

	var req startChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	att, err := a.eng.StartChain(r.Context(), kind, job, req.Params)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, att)
}

// statsResponse is the runtime counters snapshot.
type statsResponse struct {
	BatchInFlight     int      `json:"batch_in_flight"`
	QueueableInFlight int      `json:"queueable_in_flight"`
	BatchChainables   []string `json:"batch_chainables"`
	QueueChainables   []string `json:"queueable_chainables"`
	Broker            any      `json:"broker"`
}

// stats reports in-flight counts, registered chainables, and broker
// throughput.
func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, statsResponse{
		BatchInFlight:     a.eng.Batch().InFlight(),
		QueueableInFlight: a.eng.Queueable().InFlight(),
		BatchChainables:   a.eng.Batch().Chainables(),
		QueueChainables:   a.eng.Queueable().Chainables(),
		Broker:            a.eng.Broker().Stats(),
	})
}
