// internal/form/controller.go
//
// Signup – Forms subsystem: form controller.
//
// Context
//   One Controller backs one visitor's form.  It owns the field values, the
//   inline field errors, and the submission status, and it changes them only
//   through four operations:
//
//      Edit    – store a value, masked if the field has a mask.
//      EditSeq – Edit that drops values older than the last one applied.
//      Blur    – validate one field and show or clear its message.
//      Submit  – validate everything, then idle → loading → success | error.
//      Snapshot – read-only copy for rendering.
//
//   Submission is fire-and-forget.  Once every rule passes the controller
//   builds a registration.Submission, hands its payload to the Dispatcher,
//   and reports success as soon as the hand-off returns.  The Dispatcher
//   only fails for local reasons (payload or request construction, a full
//   queue); network outcomes never come back here.
//
//   While the status is loading, Submit is refused with ErrSubmitInProgress
//   and CanSubmit is false, so the page renders the button disabled.  That
//   is the only guard against double submission.
//
// Notes
//   •  Controller is safe for concurrent use.  The lock is released during
//      the dispatch hand-off so concurrent callers observe loading.
//   •  Observers run with the lock held and must not call back into the
//      controller.
//   •  The page script numbers its edits.  Requests may arrive out of order,
//      so EditSeq keeps the highest number applied per field and ignores
//      anything at or below it.  Snapshot.Seq is the highest number seen,
//      and a reloaded page continues counting from it.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/signup/internal/logger"
	"github.com/yanizio/signup/internal/mask"
	"github.com/yanizio/signup/internal/metrics"
	"github.com/yanizio/signup/internal/registration"
)

// Status is the submission lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// terminal reports whether s is shown until the next edit or submit.
func (s Status) terminal() bool { return s == StatusSuccess || s == StatusError }

const (
	DefaultSuccessMessage = "Cadastro realizado com sucesso!"
	SubmitErrorMessage    = "Não foi possível enviar seu cadastro. Tente novamente."
)

var (
	ErrSubmitInProgress = errors.New("form: submit already in progress")
	ErrUnknownField     = errors.New("form: unknown field")
)

// Dispatcher sends a validated payload without waiting for delivery.  An
// error means the payload never left the process.
type Dispatcher interface {
	Dispatch(ctx context.Context, p registration.Payload) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, p registration.Payload) error

func (f DispatcherFunc) Dispatch(ctx context.Context, p registration.Payload) error { return f(ctx, p) }

// Observer is told about every status change.
type Observer func(from, to Status)

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Values    map[string]string `json:"values"`
	Errors    map[string]string `json:"errors"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	CanSubmit bool              `json:"can_submit"`
	Seq       uint64            `json:"seq,omitempty"`
}

// Controller drives one form instance.
type Controller struct {
	def      *FormDef
	dispatch Dispatcher
	observe  Observer
	log      *zap.SugaredLogger

	mu      sync.Mutex
	values  map[string]string
	errors  map[string]string
	seqs    map[string]uint64 // last applied edit number per field
	maxSeq  uint64
	status  Status
	message string
}

// Option customises a Controller.
type Option func(*Controller)

// WithObserver registers o for status changes.
func WithObserver(o Observer) Option { return func(c *Controller) { c.observe = o } }

// WithLogger sets the logger used when no request logger is in context.
func WithLogger(l *zap.SugaredLogger) Option { return func(c *Controller) { c.log = l } }

// NewController returns an idle controller with every field empty.
func NewController(def *FormDef, d Dispatcher, opts ...Option) *Controller {
	c := &Controller{
		def:      def,
		dispatch: d,
		log:      zap.S(),
		values:   make(map[string]string, len(def.Fields)),
		errors:   make(map[string]string),
		seqs:     make(map[string]uint64),
		status:   StatusIdle,
	}
	for _, f := range def.Fields {
		c.values[f.Name] = ""
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Edit stores raw for field and returns the stored value.  Masked fields are
// capped at mask.MaxInput characters and formatted first.  Editing while a
// terminal status is showing returns the form to idle.
func (c *Controller) Edit(field, raw string) (string, error) {
	val, _, err := c.EditSeq(field, raw, 0)
	return val, err
}

// EditSeq is Edit for numbered edits.  An edit whose seq is not above the
// last one applied to field is dropped: applied is false and the value
// already stored is returned.  A zero seq is always applied.
func (c *Controller) EditSeq(field, raw string, seq uint64) (val string, applied bool, err error) {
	f, ok := c.def.Field(field)
	if !ok {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	val = raw
	if f.Mask != "" {
		if m, ok := mask.Lookup(f.Mask); ok {
			val = m(mask.Cap(raw))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != 0 {
		if seq <= c.seqs[f.Name] {
			c.log.Debugw("stale edit dropped", "form", c.def.ID, "field", f.Name,
				"seq", seq, "last", c.seqs[f.Name])
			return c.values[f.Name], false, nil
		}
		c.seqs[f.Name] = seq
		if seq > c.maxSeq {
			c.maxSeq = seq
		}
	}

	c.values[f.Name] = val
	if c.status.terminal() {
		c.transition(StatusIdle)
		c.message = ""
	}
	return val, true, nil
}

// Blur validates field and records or clears its message.  It returns the
// message, empty when the field passes.
func (c *Controller) Blur(field string) (string, error) {
	f, ok := c.def.Field(field)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := checkField(f, c.values[f.Name])
	if msg == "" {
		delete(c.errors, f.Name)
	} else {
		c.errors[f.Name] = msg
	}
	return msg, nil
}

// Submit validates every field and, when all pass, dispatches the payload.
//
// Returned errors:
//   - ErrSubmitInProgress when a previous submit is still loading.
//   - a validation error (IsValidationError) when any field fails; the status
//     is left as it was.
//   - a wrapped local failure when the payload could not be handed off; the
//     status is error and the values are kept for a retry.
func (c *Controller) Submit(ctx context.Context) error {
	log := logger.FromContext(ctx)

	c.mu.Lock()
	if c.status == StatusLoading {
		c.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeBusy).Inc()
		return ErrSubmitInProgress
	}

	errs := ValidateForm(c.def, c.values)
	c.errors = make(map[string]string, len(errs))
	for _, e := range errs {
		c.errors[e.Name] = e.Message
	}
	if len(errs) > 0 {
		c.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		log.Debugw("submit rejected by validation", "form", c.def.ID, "fields", len(errs))
		return validationError{Fields: errs}
	}

	c.transition(StatusLoading)
	c.message = ""
	values := make(map[string]string, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	c.mu.Unlock()

	err := c.handOff(ctx, values)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.transition(StatusError)
		c.message = SubmitErrorMessage
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		log.Errorw("submit failed before dispatch", "form", c.def.ID, "err", err)
		return fmt.Errorf("form: submit %s: %w", c.def.ID, err)
	}

	c.transition(StatusSuccess)
	c.message = c.successMessage()
	for k := range c.values {
		c.values[k] = ""
	}
	c.errors = make(map[string]string)
	metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Infow("registration submitted", "form", c.def.ID)
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Values:    make(map[string]string, len(c.values)),
		Errors:    make(map[string]string, len(c.errors)),
		Status:    c.status,
		Message:   c.message,
		CanSubmit: c.status != StatusLoading,
		Seq:       c.maxSeq,
	}
	for k, v := range c.values {
		s.Values[k] = v
	}
	for k, v := range c.errors {
		s.Errors[k] = v
	}
	return s
}

// Def returns the form definition backing c.
func (c *Controller) Def() *FormDef { return c.def }

// handOff builds the submission and passes its payload to the dispatcher.
// A panic inside the dispatcher is reported as an error.
func (c *Controller) handOff(ctx context.Context, values map[string]string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	sub, err := registration.FromValues(values)
	if err != nil {
		return fmt.Errorf("build submission: %w", err)
	}
	return c.dispatch.Dispatch(ctx, sub.Payload())
}

// transition must be called with c.mu held.
func (c *Controller) transition(to Status) {
	from := c.status
	if from == to {
		return
	}
	c.status = to
	c.log.Debugw("form status", "form", c.def.ID, "from", from, "to", to)
	if c.observe != nil {
		c.observe(from, to)
	}
}

func (c *Controller) successMessage() string {
	if c.def.Success != "" {
		return c.def.Success
	}
	return DefaultSuccessMessage
}
