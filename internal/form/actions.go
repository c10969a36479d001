// internal/form/actions.go
//
// Signup – Forms subsystem: post-submit actions.
//
// Context
//   A FormDef declares what happens to a validated submission.  The only
//   action today is “webhook”: the payload is posted as JSON to a fixed
//   endpoint.  WebhookDispatcher implements the controller's Dispatcher by
//   building the request here and queueing it on the messaging subsystem,
//   so the controller returns without waiting on the network.
//
//   Action params (inline in YAML):
//
//      url        – endpoint; falls back to webhook.url from config.
//      method     – defaults to POST.
//      header.X   – extra request header X.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yanizio/signup/internal/logger"
	"github.com/yanizio/signup/internal/metrics"
	"github.com/yanizio/signup/internal/registration"
)

// Enqueuer accepts prepared webhook requests.  *message.Queue satisfies it.
type Enqueuer interface {
	EnqueueWebhook(ctx context.Context, req *http.Request) error
}

// WebhookDispatcher posts payloads through an Enqueuer.
type WebhookDispatcher struct {
	URL    string
	Method string
	Header http.Header
	Queue  Enqueuer
}

// NewWebhookDispatcher reads the webhook action of fd.  fallbackURL is used
// when the action declares no url.
func NewWebhookDispatcher(fd *FormDef, fallbackURL string, q Enqueuer) (*WebhookDispatcher, error) {
	if q == nil {
		return nil, errors.New("webhook dispatcher requires a queue")
	}

	d := &WebhookDispatcher{
		URL:    fallbackURL,
		Method: http.MethodPost,
		Header: make(http.Header),
		Queue:  q,
	}

	if ac, ok := fd.Action("webhook"); ok {
		if u, _ := ac.Params["url"].(string); u != "" {
			d.URL = u
		}
		if m, _ := ac.Params["method"].(string); m != "" {
			d.Method = strings.ToUpper(m)
		}
		for k, v := range ac.Params {
			if strings.HasPrefix(k, "header.") {
				d.Header.Set(strings.TrimPrefix(k, "header."), fmt.Sprint(v))
			}
		}
	}

	if d.URL == "" {
		return nil, fmt.Errorf("form %s: webhook action requires 'url'", fd.ID)
	}
	return d, nil
}

// Dispatch marshals p, builds the request, and queues it.  The request is
// detached from ctx cancellation so it survives the HTTP handler returning.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, p registration.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		metrics.WebhookDispatchTotal.WithLabelValues(metrics.ResultMalformed).Inc()
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), d.Method, d.URL, bytes.NewReader(body))
	if err != nil {
		metrics.WebhookDispatchTotal.WithLabelValues(metrics.ResultMalformed).Inc()
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if err := d.Queue.EnqueueWebhook(ctx, req); err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}

	logger.FromContext(ctx).Debugw("webhook queued",
		"email", p.Email, "celular", redactPhone(p.Celular))
	return nil
}

// redactPhone keeps the last four digits.
func redactPhone(phone string) string {
	if len(phone) > 4 {
		return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
	}
	return "****"
}
