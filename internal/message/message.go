// internal/message/message.go
//
// Signup – outbound webhook queue.
//
// Context
//   The form controller hands each validated registration to the webhook
//   and moves on without waiting for the remote side.  This package is the
//   seam that makes that possible: EnqueueWebhook drops a prepared
//   *http.Request into a bounded channel and returns immediately, while a
//   small pool of workers performs the actual HTTP round trips.
//
//   Delivery is at most once.  A worker sends each request one time, drains
//   and discards the response body, and records the outcome in logs and
//   metrics.  Nothing is retried, and no outcome flows back to the caller.
//
// Workflow
//   •  NewQueue builds the queue; Start launches the workers.
//   •  EnqueueWebhook never blocks.  A full buffer yields ErrQueueFull, a
//      closed queue yields ErrQueueClosed.  Both count as local failures
//      for the caller.
//   •  Close stops intake, lets workers drain what is buffered, and waits.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/signup/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("message: webhook queue full")
	ErrQueueClosed = errors.New("message: webhook queue closed")
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Queue delivers webhook requests in the background.
type Queue struct {
	client  Doer
	log     *zap.SugaredLogger
	workers int

	mu     sync.RWMutex // guards closed and the send side of jobs
	closed bool
	jobs   chan *http.Request

	group errgroup.Group
}

// NewQueue returns a queue buffering up to size requests, delivered by the
// given number of workers through client.
func NewQueue(client Doer, size, workers int, log *zap.SugaredLogger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.S()
	}
	return &Queue{
		client:  client,
		log:     log,
		workers: workers,
		jobs:    make(chan *http.Request, size),
	}
}

// Start launches the workers.  Call once.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.group.Go(func() error {
			for req := range q.jobs {
				metrics.WebhookQueueDepth.Dec()
				q.deliver(req)
			}
			return nil
		})
	}
	q.log.Infow("webhook queue started", "workers", q.workers, "buffer", cap(q.jobs))
}

// EnqueueWebhook schedules req for delivery without blocking.  The caller
// must build req with a context that outlives the current HTTP request.
func (q *Queue) EnqueueWebhook(_ context.Context, req *http.Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- req:
		metrics.WebhookQueueDepth.Inc()
		return nil
	default:
		metrics.WebhookDispatchTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return ErrQueueFull
	}
}

// Close stops intake and waits until buffered requests have been sent or
// ctx expires.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Infow("webhook queue drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver performs one round trip.  Errors are logged and counted only.
func (q *Queue) deliver(req *http.Request) {
	start := time.Now()
	resp, err := q.client.Do(req)
	metrics.WebhookDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.WebhookDispatchTotal.WithLabelValues(metrics.ResultFailed).Inc()
		q.log.Warnw("webhook delivery failed", "url", req.URL.Redacted(), "err", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.WebhookDispatchTotal.WithLabelValues(metrics.ResultRejected).Inc()
		q.log.Warnw("webhook rejected", "url", req.URL.Redacted(), "status", resp.StatusCode)
		return
	}
	metrics.WebhookDispatchTotal.WithLabelValues(metrics.ResultSent).Inc()
	q.log.Infow("webhook delivered", "status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds())
}
