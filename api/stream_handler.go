package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/cascade/stream"
)

// heartbeatInterval keeps idle event streams from being reaped by
// intermediaries.
const heartbeatInterval = 15 * time.Second

// streamEvents serves lifecycle events as server-sent events. The topics
// query parameter selects broker topics (comma-separated); the default
// is the firehose. Slow consumers drop events rather than stalling the
// engines, so the stream is an observation surface, not a ledger.
func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	topics := []string{stream.TopicFirehose}
	if raw := r.URL.Query().Get("topics"); raw != "" {
		topics = topics[:0]
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if err := stream.ValidateTopic(t); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			topics = append(topics, t)
		}
	}

	subID := "sse-" + chimw.GetReqID(r.Context())
	if subID == "sse-" {
		subID = "sse-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	sub := a.eng.Broker().Subscribe(subID, topics...)
	defer a.eng.Broker().RemoveSubscriber(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.C():
			if !open {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
