// internal/form/controller_test.go
//
// Unit-tests for the form controller state machine.
//
// Context
// -------
// These tests drive the registration form through the same operations the
// HTTP layer uses (Edit, Blur, Submit) and verify:
//
//   • a valid submit goes idle → loading → success and dispatches once,
//   • an invalid submit never reaches loading,
//   • a second submit while loading is refused, and
//   • local hand-off failures land in the error status.

package form

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yanizio/signup/internal/registration"
)

func registrationDef(t *testing.T) *FormDef {
	t.Helper()
	require.NoError(t, RegisterDefaults())
	fd, ok := GetFormDef("registration")
	require.True(t, ok)
	return fd
}

// recorder is a Dispatcher that keeps every payload.
type recorder struct {
	mu       sync.Mutex
	payloads []registration.Payload
	err      error
}

func (r *recorder) Dispatch(_ context.Context, p registration.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

func fill(t *testing.T, c *Controller, values map[string]string) {
	t.Helper()
	for k, v := range values {
		_, err := c.Edit(k, v)
		require.NoError(t, err)
	}
}

func validValues() map[string]string {
	return map[string]string{
		"nome":      "Arthur",
		"sobrenome": "Takeat",
		"email":     "arthur.takeat@gmail.com",
		"celular":   "(11) 98765-4321",
	}
}

func TestSubmit_Success(t *testing.T) {
	fd := registrationDef(t)
	rec := &recorder{}

	var transitions [][2]Status
	c := NewController(fd, rec,
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithObserver(func(from, to Status) { transitions = append(transitions, [2]Status{from, to}) }),
	)
	fill(t, c, validValues())

	require.NoError(t, c.Submit(context.Background()))

	assert.Equal(t, [][2]Status{
		{StatusIdle, StatusLoading},
		{StatusLoading, StatusSuccess},
	}, transitions)

	require.Len(t, rec.payloads, 1)
	assert.Equal(t, registration.Payload{
		Nome:      "Arthur",
		Sobrenome: "Takeat",
		Email:     "arthur.takeat@gmail.com",
		Celular:   "11987654321",
	}, rec.payloads[0])

	want := Snapshot{
		Values:    map[string]string{"nome": "", "sobrenome": "", "email": "", "celular": ""},
		Errors:    map[string]string{},
		Status:    StatusSuccess,
		Message:   "Cadastro realizado com sucesso!",
		CanSubmit: true,
	}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_InvalidEmailNeverLoads(t *testing.T) {
	fd := registrationDef(t)
	rec := &recorder{}

	var transitions int
	c := NewController(fd, rec, WithObserver(func(_, _ Status) { transitions++ }))

	vals := validValues()
	vals["email"] = "arthur@gmail.com"
	fill(t, c, vals)

	err := c.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, []ErrorField{{Name: "email", Message: "O email deve conter .takeat@"}}, FieldErrors(err))

	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, map[string]string{"email": "O email deve conter .takeat@"}, snap.Errors)
	assert.Equal(t, "arthur@gmail.com", snap.Values["email"], "values survive a failed submit")
	assert.Zero(t, transitions)
	assert.Empty(t, rec.payloads)
}

func TestSubmit_RefusedWhileLoading(t *testing.T) {
	fd := registrationDef(t)

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	d := DispatcherFunc(func(context.Context, registration.Payload) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	})

	c := NewController(fd, d)
	fill(t, c, validValues())

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-entered

	snap := c.Snapshot()
	assert.Equal(t, StatusLoading, snap.Status)
	assert.False(t, snap.CanSubmit)

	assert.ErrorIs(t, c.Submit(context.Background()), ErrSubmitInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StatusSuccess, c.Snapshot().Status)
}

func TestSubmit_LocalFailureIsError(t *testing.T) {
	fd := registrationDef(t)
	rec := &recorder{err: errors.New("queue full")}
	c := NewController(fd, rec)
	fill(t, c, validValues())

	err := c.Submit(context.Background())
	require.Error(t, err)
	assert.False(t, IsValidationError(err))

	snap := c.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, SubmitErrorMessage, snap.Message)
	assert.Equal(t, "Arthur", snap.Values["nome"], "values kept for retry")

	// Retrying after the cause is gone succeeds.
	rec.err = nil
	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, StatusSuccess, c.Snapshot().Status)
}

func TestSubmit_DispatcherPanicIsError(t *testing.T) {
	fd := registrationDef(t)
	c := NewController(fd, DispatcherFunc(func(context.Context, registration.Payload) error {
		panic("boom")
	}))
	fill(t, c, validValues())

	require.Error(t, c.Submit(context.Background()))
	assert.Equal(t, StatusError, c.Snapshot().Status)
}

func TestEdit_MasksPhoneAndResetsTerminalStatus(t *testing.T) {
	fd := registrationDef(t)
	c := NewController(fd, &recorder{})

	got, err := c.Edit("celular", "11987654321999")
	require.NoError(t, err)
	assert.Equal(t, "(11) 98765-4321", got)

	got, _ = c.Edit("celular", "(11) 98765-43219")
	assert.Equal(t, "(11) 98765-4321", got)

	// Plain fields are stored verbatim.
	got, _ = c.Edit("nome", " Arthur ")
	assert.Equal(t, " Arthur ", got)

	fill(t, c, validValues())
	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, StatusSuccess, c.Snapshot().Status)

	_, _ = c.Edit("nome", "A")
	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Message)
}

func TestEditSeq_OlderEditArrivingLateIsDropped(t *testing.T) {
	fd := registrationDef(t)
	rec := &recorder{}
	c := NewController(fd, rec)
	fill(t, c, validValues())

	// The page typed "Arthu" (3) then "Arthur" (4); 4 reached the server first.
	val, applied, err := c.EditSeq("nome", "Arthur", 4)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "Arthur", val)

	val, applied, err = c.EditSeq("nome", "Arthu", 3)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "Arthur", val, "the stored value is returned")

	// A replayed number is stale too.
	_, applied, _ = c.EditSeq("nome", "Art", 4)
	assert.False(t, applied)

	// Numbers are tracked per field: an older edit of another field still lands.
	val, applied, _ = c.EditSeq("celular", "11912345678", 2)
	assert.True(t, applied)
	assert.Equal(t, "(11) 91234-5678", val)

	snap := c.Snapshot()
	assert.Equal(t, "Arthur", snap.Values["nome"])
	assert.Equal(t, uint64(4), snap.Seq)

	require.NoError(t, c.Submit(context.Background()))
	require.Len(t, rec.payloads, 1)
	assert.Equal(t, "Arthur", rec.payloads[0].Nome)
	assert.Equal(t, "11912345678", rec.payloads[0].Celular)

	// Numbering survives the reset, so a late edit cannot refill the form.
	_, applied, _ = c.EditSeq("nome", "Arthu", 3)
	assert.False(t, applied)
	assert.Empty(t, c.Snapshot().Values["nome"])
}

func TestEditSeq_ZeroAlwaysApplies(t *testing.T) {
	c := NewController(registrationDef(t), &recorder{})
	_, applied, _ := c.EditSeq("nome", "Bia", 9)
	require.True(t, applied)

	_, applied, _ = c.EditSeq("nome", "Ana", 0)
	assert.True(t, applied)
	assert.Equal(t, "Ana", c.Snapshot().Values["nome"])
	assert.Equal(t, uint64(9), c.Snapshot().Seq)
}

func TestEdit_UnknownField(t *testing.T) {
	c := NewController(registrationDef(t), &recorder{})
	_, err := c.Edit("cpf", "123")
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = c.Blur("cpf")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestBlur_SetsAndClearsMessage(t *testing.T) {
	c := NewController(registrationDef(t), &recorder{})

	_, _ = c.Edit("nome", "A")
	msg, err := c.Blur("nome")
	require.NoError(t, err)
	assert.Equal(t, "Nome deve ter pelo menos 2 caracteres", msg)
	assert.Equal(t, msg, c.Snapshot().Errors["nome"])

	// Editing alone does not clear the message; blur does.
	_, _ = c.Edit("nome", "Ana")
	assert.NotEmpty(t, c.Snapshot().Errors["nome"])

	msg, _ = c.Blur("nome")
	assert.Empty(t, msg)
	assert.NotContains(t, c.Snapshot().Errors, "nome")

	// Blurring one field leaves the others alone.
	_, _ = c.Blur("email")
	snap := c.Snapshot()
	assert.Contains(t, snap.Errors, "email")
	assert.NotContains(t, snap.Errors, "celular")
}

func TestSubmit_MissingPayloadFieldIsLocalError(t *testing.T) {
	fd := &FormDef{
		ID:     "partial",
		Fields: []FieldDef{{Name: "nome", Label: "Nome", Type: "text", Rule: "name"}},
	}
	rec := &recorder{}
	c := NewController(fd, rec)
	_, _ = c.Edit("nome", "Arthur")

	err := c.Submit(context.Background())
	require.Error(t, err)

	var rerr *registration.Error
	assert.True(t, errors.As(err, &rerr))
	assert.Equal(t, StatusError, c.Snapshot().Status)
	assert.Empty(t, rec.payloads)
}
