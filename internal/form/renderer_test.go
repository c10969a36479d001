package form

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/signup/internal/registration"
)

func TestRenderForm_Idle(t *testing.T) {
	fd := registrationDef(t)
	c := NewController(fd, &recorder{})
	_, _ = c.Edit("nome", `<b>Ana</b>`)
	_, _ = c.Blur("email")

	out, err := RenderForm(fd, c.Snapshot(), "tok123", "/")
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `<form class="signup-form" id="form-registration" method="post" action="/" data-seq="0" novalidate>`)
	assert.Contains(t, s, `<h2>Cadastro</h2>`)
	assert.Contains(t, s, `value="&lt;b&gt;Ana&lt;/b&gt;"`)
	assert.Contains(t, s, `data-mask="br_mobile" inputmode="numeric"`)
	assert.Contains(t, s, `maxlength="15"`)
	assert.Contains(t, s, `<input type="hidden" name="csrf_token" value="tok123">`)
	assert.Contains(t, s, `class="form-status status-idle"`)
	assert.Contains(t, s, `<button type="submit">Enviar</button>`)

	// Only the blurred email carries an error.
	assert.Contains(t, s, `<div class="form-field has-error">`+"\n"+`<label for="fld-email">`)
	assert.Equal(t, 1, strings.Count(s, `aria-invalid="true"`))
}

func TestRenderForm_LoadingDisablesButton(t *testing.T) {
	fd := registrationDef(t)

	var page string
	var c *Controller
	c = NewController(fd, DispatcherFunc(func(context.Context, registration.Payload) error {
		out, err := RenderForm(fd, c.Snapshot(), "t", "/")
		require.NoError(t, err)
		page = string(out)
		return nil
	}))
	fill(t, c, validValues())
	require.NoError(t, c.Submit(context.Background()))

	assert.Contains(t, page, `<button type="submit" disabled>Enviando…</button>`)
	assert.Contains(t, page, `status-loading`)

	out, err := RenderForm(fd, c.Snapshot(), "t", "/")
	require.NoError(t, err)
	assert.Contains(t, string(out), `Cadastro realizado com sucesso!`)
	assert.Contains(t, string(out), `<button type="submit">Enviar</button>`)
}

func TestRenderForm_UnsupportedType(t *testing.T) {
	fd := &FormDef{ID: "x", Fields: []FieldDef{{Name: "a", Label: "A", Type: "checkbox"}}}
	_, err := RenderForm(fd, Snapshot{}, "", "/")
	assert.Error(t, err)
}
