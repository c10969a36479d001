package registration

import "fmt"

type ErrorReason string

const (
	REASON_INVALID_FIELD ErrorReason = "INVALID_FIELD"
	REASON_MISSING_FIELD ErrorReason = "MISSING_FIELD"
)

type Error struct {
	Reason  ErrorReason
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Reason, e.Field, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewInvalidFieldError(field, message string) *Error {
	return &Error{Reason: REASON_INVALID_FIELD, Field: field, Message: message}
}

func NewMissingFieldError(field string) *Error {
	return &Error{Reason: REASON_MISSING_FIELD, Field: field, Message: "field not present in form"}
}
