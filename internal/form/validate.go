// internal/form/validate.go
//
// Signup – Forms subsystem: field validation.
//
// Context
//   Each FieldDef names a rule from internal/rules.  This file runs those
//   rules against field values and collects the failures as []ErrorField so
//   the controller and the renderer can show a message next to each field.
//   Validation never mutates values; masks are applied at edit time.
//
// Workflow
//   •  checkField runs one field's rule and returns its message, if any.
//   •  ValidateForm runs every field in definition order.
//   •  Callers wrap a non-empty []ErrorField in validationError and treat it
//      as a user error, not a system failure.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"

	"github.com/yanizio/signup/internal/metrics"
	"github.com/yanizio/signup/internal/rules"
)

// -----------------------------------------------------------------------------
// Error types
// -----------------------------------------------------------------------------

// ErrorField describes a single validation failure so the template can render
// a field-level message.
type ErrorField struct {
	Name    string `json:"name"`    // field name
	Message string `json:"message"` // user-facing message
}

// validationError wraps []ErrorField and satisfies the error interface.
type validationError struct{ Fields []ErrorField }

func (ve validationError) Error() string { return "form validation failed" }

// IsValidationError reports whether err came from failed validation.
func IsValidationError(err error) bool {
	var ve validationError
	return errors.As(err, &ve)
}

// FieldErrors returns the field failures carried by err, or nil.
func FieldErrors(err error) []ErrorField {
	var ve validationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// -----------------------------------------------------------------------------
// Public API
// -----------------------------------------------------------------------------

// ValidateForm checks values against every field of fd.  A missing value is
// validated as the empty string.
func ValidateForm(fd *FormDef, values map[string]string) []ErrorField {
	var errs []ErrorField
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if msg := checkField(f, values[f.Name]); msg != "" {
			errs = append(errs, ErrorField{Name: f.Name, Message: msg})
		}
	}
	return errs
}

// checkField returns the rule's failure message for raw, or "" on success.
func checkField(f *FieldDef, raw string) string {
	if f.Rule == "" {
		return ""
	}
	rule, ok := rules.Lookup(f.Rule) // pre-validated at load
	if !ok {
		return ""
	}
	res := rule(f.Label, raw)
	if res.OK {
		return ""
	}
	metrics.FieldErrorsTotal.WithLabelValues(f.Name).Inc()
	return res.Message
}
