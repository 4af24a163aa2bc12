package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/zero-day-ai/conductor/internal/engine"
)

// CallbackReporter pushes status events to a caller-provided URL. Events
// are delivered best effort in order through a single worker; a slow or
// dead callback endpoint never blocks the engine.
type CallbackReporter struct {
	url    string
	client *http.Client
	logger *slog.Logger
	queue  chan engine.StatusReport
	done   chan struct{}
}

// NewCallbackReporter creates a reporter posting to url and starts its
// delivery worker. Close releases the worker.
func NewCallbackReporter(url string, logger *slog.Logger) *CallbackReporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &CallbackReporter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		queue:  make(chan engine.StatusReport, 64),
		done:   make(chan struct{}),
	}
	go r.deliver()
	return r
}

var _ engine.Reporter = (*CallbackReporter)(nil)

// ReportProgress enqueues a node-transition event.
func (r *CallbackReporter) ReportProgress(_ context.Context, report engine.StatusReport) {
	r.enqueue(report)
}

// ReportTerminal enqueues a terminal or interrupt event.
func (r *CallbackReporter) ReportTerminal(_ context.Context, report engine.StatusReport) {
	r.enqueue(report)
}

// enqueue drops the event when the queue is full; the caller reconciles
// through the status endpoint.
func (r *CallbackReporter) enqueue(report engine.StatusReport) {
	select {
	case r.queue <- report:
	default:
		r.logger.Warn("callback queue full, dropping event",
			"thread_id", report.ThreadID, "status", report.Status)
	}
}

func (r *CallbackReporter) deliver() {
	for {
		select {
		case report := <-r.queue:
			r.post(report)
		case <-r.done:
			return
		}
	}
}

func (r *CallbackReporter) post(report engine.StatusReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		r.logger.Error("failed to serialize callback event", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		r.logger.Error("failed to build callback request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("callback delivery failed",
			"thread_id", report.ThreadID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Warn("callback endpoint rejected event",
			"thread_id", report.ThreadID, "status_code", resp.StatusCode)
	}
}

// Close stops the delivery worker. Queued events are discarded.
func (r *CallbackReporter) Close() {
	close(r.done)
}
