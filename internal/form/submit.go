// internal/form/submit.go
//
// Signup – Forms subsystem: consolidated Submit helper.
//
// Context
//   Browsers without script post the whole form at once.  HandleSubmit
//   turns that post into the same controller operations the script-driven
//   page performs one at a time: verify the CSRF token, Edit every field
//   present in the body, then Submit.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"net/http"
)

// ErrBadToken is returned when the posted CSRF token fails verification.
var ErrBadToken = errors.New("form: invalid CSRF token")

// HandleSubmit parses r, applies every posted field to c, and submits.  The
// posted token must have been issued for binding, the visitor's session id.
// It returns the errors of Controller.Submit, ErrBadToken, or a parse error.
func HandleSubmit(c *Controller, csrf *CSRF, binding string, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	if !csrf.Verify(r.PostForm.Get("csrf_token"), binding) {
		return ErrBadToken
	}

	for _, f := range c.Def().Fields {
		if vals, ok := r.PostForm[f.Name]; ok && len(vals) > 0 {
			if _, err := c.Edit(f.Name, vals[0]); err != nil {
				return err
			}
		}
	}
	return c.Submit(r.Context())
}
