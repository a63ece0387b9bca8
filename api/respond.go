package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/xraph/cascade"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, errorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to marshal response"}`)) //nolint:errcheck // best-effort error body
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body) //nolint:errcheck // client gone mid-write is not actionable
}

// httpStatus maps cascade domain errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, cascade.ErrConfigNotFound),
		errors.Is(err, cascade.ErrScheduleNotFound),
		errors.Is(err, cascade.ErrDeadLetterNotFound),
		errors.Is(err, cascade.ErrTriggerNotFound):
		return http.StatusNotFound
	case errors.Is(err, cascade.ErrDuplicateTrigger),
		errors.Is(err, cascade.ErrDuplicateChainable),
		errors.Is(err, cascade.ErrConfigInactive):
		return http.StatusConflict
	case errors.Is(err, cascade.ErrInvalidKind):
		return http.StatusBadRequest
	case errors.Is(err, cascade.ErrNoHandler):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cascade.ErrSubmissionRejected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError renders err with its mapped status.
func respondDomainError(w http.ResponseWriter, err error) {
	respondError(w, httpStatus(err), err.Error())
}

// queryInt parses an integer query parameter, returning def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// queryLimitOffset reads the standard paging parameters. Limit is capped
// at 500 and defaults to 100; zero disables offset.
func queryLimitOffset(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", 100)
	if limit > 500 {
		limit = 500
	}
	offset = queryInt(r, "offset", 0)
	return limit, offset
}
