// Package stream implements the Stream Transport: an SSE writer over
// net/http that frames Event Projector envelopes, detects client
// disconnects, and emits idle-threshold heartbeats. Built directly on
// net/http's Flusher rather than a library, the same way the teacher's HTTP
// surface hand-rolls its own SSE framing so it never loses access to
// http.Flusher.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/medassist-ai/core/events"
)

// HeartbeatInterval is how long the writer waits without a real event
// before sending an SSE comment to keep intermediaries from closing the
// connection.
const HeartbeatInterval = 15 * time.Second

// WriteTimeout bounds how long a single Flush is allowed to block before
// the writer treats the client as unresponsive and aborts the run.
const WriteTimeout = 5 * time.Second

// Writer frames events onto an http.ResponseWriter as
// "event: <type>\ndata: <json>\n\n" and keeps the connection alive with
// periodic comment heartbeats between events.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	cancel  context.CancelFunc

	heartbeat *time.Timer
	stopHB    chan struct{}
}

// ErrUnsupportedResponseWriter is returned by New when w does not implement
// http.Flusher, which every net/http server response writer does in
// practice but a test double might not.
var ErrUnsupportedResponseWriter = fmt.Errorf("stream: response writer does not support flushing")

// New prepares w for SSE: sets the framing headers and wires disconnect
// detection through cancel so the caller's engine run is cancelled the
// moment the client goes away. The heartbeat ticker runs inside Run.
func New(ctx context.Context, w http.ResponseWriter, cancel context.CancelFunc) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrUnsupportedResponseWriter
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sw := &Writer{w: w, flusher: flusher, cancel: cancel, stopHB: make(chan struct{})}
	go sw.watchDisconnect(ctx)
	return sw, nil
}

// watchDisconnect cancels the run as soon as either the request context is
// done (client closed the connection, the net/http server noticed) or the
// caller cancels first.
func (sw *Writer) watchDisconnect(ctx context.Context) {
	<-ctx.Done()
	sw.cancel()
}

// Send frames one event onto the wire. Run resets the heartbeat clock after
// every successful send so heartbeats only fire during genuine idle gaps.
func (sw *Writer) Send(envelope events.Envelope) error {
	data, err := json.Marshal(envelope.Data)
	if err != nil {
		return fmt.Errorf("stream: marshaling %s event: %w", envelope.Type, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", envelope.Type, data)
		if err == nil {
			sw.flusher.Flush()
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(WriteTimeout):
		sw.cancel()
		return fmt.Errorf("stream: write to client exceeded %s, aborting run", WriteTimeout)
	}
}

// Heartbeat emits an SSE comment line. Comments are ignored by EventSource
// clients but reset any idle proxy timeout sitting between the server and
// the browser.
func (sw *Writer) Heartbeat() error {
	if _, err := fmt.Fprint(sw.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Run drains envelopes from ch onto the wire until ch closes or ctx is
// cancelled, sending a heartbeat whenever HeartbeatInterval elapses without
// a real event.
func (sw *Writer) Run(ctx context.Context, ch <-chan events.Envelope) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-ch:
			if !ok {
				return
			}
			if err := sw.Send(envelope); err != nil {
				slog.Warn("stream: send failed, aborting", "error", err)
				return
			}
			ticker.Reset(HeartbeatInterval)
		case <-ticker.C:
			if err := sw.Heartbeat(); err != nil {
				slog.Warn("stream: heartbeat failed, aborting", "error", err)
				return
			}
		}
	}
}
