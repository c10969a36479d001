// internal/form/renderer.go
//
// Signup – Forms subsystem: HTML renderer.
//
// Context
//   Given a FormDef and a controller Snapshot this file writes the form
//   markup: one labelled input per field with its current value and inline
//   error, a status banner, the CSRF token, and the submit button.  The
//   button is rendered disabled while the snapshot is loading.
//
//   Each input carries data attributes (data-field, data-mask) so the page
//   script can call the edit and blur endpoints without knowing the schema.
//   The form's data-seq is where the script resumes numbering its edits.
//
// Style
//   Output HTML is deliberately plain, no framework classes, so the host
//   page styles it via element selectors or class hooks.  Each input gets
//   id="fld-{name}" and is wrapped in <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
)

// RenderForm returns the HTML markup for fd in the state captured by snap.
// action is the URL the classic HTML post goes to.
func RenderForm(fd *FormDef, snap Snapshot, csrfToken, action string) (template.HTML, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, `<form class="signup-form" id="form-%s" method="post" action="%s" data-seq="%d" novalidate>`+"\n",
		html.EscapeString(fd.ID), html.EscapeString(action), snap.Seq)

	if fd.Title != "" {
		buf.WriteString(`<h2>` + html.EscapeString(fd.Title) + `</h2>` + "\n")
	}

	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := writeField(&buf, f, snap.Values[f.Name], snap.Errors[f.Name]); err != nil {
			return "", err
		}
	}

	// Status banner, empty while idle.
	fmt.Fprintf(&buf, `<div class="form-status status-%s" role="status" aria-live="polite">%s</div>`+"\n",
		html.EscapeString(string(snap.Status)), html.EscapeString(snap.Message))

	fmt.Fprintf(&buf, `<input type="hidden" name="csrf_token" value="%s">`+"\n", html.EscapeString(csrfToken))

	buf.WriteString(`<button type="submit"`)
	if !snap.CanSubmit {
		buf.WriteString(` disabled`)
	}
	buf.WriteString(`>`)
	if snap.Status == StatusLoading {
		buf.WriteString(`Enviando…`)
	} else {
		buf.WriteString(`Enviar`)
	}
	buf.WriteString(`</button>` + "\n")

	buf.WriteString(`</form>`)
	return template.HTML(buf.String()), nil
}

// writeField emits one field wrapped in <div class="form-field">.
func writeField(buf *bytes.Buffer, f *FieldDef, val, errMsg string) error {
	switch f.Type {
	case "text", "email", "tel":
	default:
		return fmt.Errorf("writeField: unsupported field type %q in form field %s", f.Type, f.Name)
	}

	name := html.EscapeString(f.Name)

	buf.WriteString(`<div class="form-field`)
	if errMsg != "" {
		buf.WriteString(` has-error`)
	}
	buf.WriteString(`">` + "\n")

	buf.WriteString(`<label for="fld-` + name + `">` + html.EscapeString(f.Label) + `</label>` + "\n")

	buf.WriteString(`<input id="fld-` + name + `" name="` + name + `" type="` + f.Type + `" data-field="` + name + `"`)
	if f.Mask != "" {
		buf.WriteString(` data-mask="` + html.EscapeString(f.Mask) + `" inputmode="numeric"`)
	}
	if f.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
	}
	if f.MaxLength > 0 {
		buf.WriteString(` maxlength="` + strconv.Itoa(f.MaxLength) + `"`)
	}
	if val != "" {
		buf.WriteString(` value="` + html.EscapeString(val) + `"`)
	}
	if errMsg != "" {
		buf.WriteString(` aria-invalid="true"`)
	}
	buf.WriteString(`>` + "\n")

	buf.WriteString(`<span class="error" aria-live="polite">` + html.EscapeString(errMsg) + `</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
	return nil
}
