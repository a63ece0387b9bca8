package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/xraph/cascade/stream"
)

// Watch subscribes to the server's lifecycle event stream and returns a
// channel of decoded events. The channel closes when ctx ends or the
// server drops the stream. Slow consumers drop events rather than stall
// the reader.
//
// Topics follow the stream package convention:
//   - "chain:<chainID>" — events for one chain instance
//   - "kind:<kind>"     — events for one engine kind
//   - "chains"          — chain lifecycle events
//   - "triggers"        — trigger fires
//   - "firehose"        — everything
//
// No topics means the firehose.
func (c *Client) Watch(ctx context.Context, topics ...string) (<-chan *stream.Event, error) {
	path := "/v1/events"
	if len(topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The configured client may carry a per-call timeout, which would
	// sever a long-lived stream; share its transport but not its deadline.
	streamc := &http.Client{Transport: c.httpc.Transport}
	resp, err := streamc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.apiError(resp)
	}

	ch := make(chan *stream.Event, 64)
	go c.readEvents(ctx, resp.Body, ch)
	return ch, nil
}

// readEvents parses the SSE body into events until the stream ends.
func (c *Client) readEvents(ctx context.Context, body io.ReadCloser, ch chan<- *stream.Event) {
	defer close(ch)

	// Closing the body is what unblocks the scanner when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 16*1024), 1024*1024)

	var data []byte
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			var evt stream.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				c.logger.Warn("cascade/client: bad stream event", slog.String("error", err.Error()))
			} else {
				select {
				case ch <- &evt:
				default:
					// Drop if the consumer is slow.
				}
			}
			data = nil
		case strings.HasPrefix(line, "data: "):
			data = append(data, line[len("data: "):]...)
		default:
			// Event-name and heartbeat lines; the payload embeds the type.
		}
	}
}
