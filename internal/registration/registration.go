// Package registration holds the validated registration value and its wire
// payload.
//
// A Submission can only be obtained through New or FromValues, both of which
// run every field rule first.  It is created fresh for each submit attempt,
// turned into a Payload, and dropped.  Nothing here is ever persisted.
package registration

import (
	"strings"

	"github.com/yanizio/signup/internal/mask"
	"github.com/yanizio/signup/internal/rules"
)

// Field names shared by the form definition and the webhook payload.
const (
	FieldFirstName = "nome"
	FieldLastName  = "sobrenome"
	FieldEmail     = "email"
	FieldPhone     = "celular"
)

// Submission is an immutable, fully validated registration.
type Submission struct {
	firstName string
	lastName  string
	email     string
	phone     string // 11 digits
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Nome      string `json:"nome"`
	Sobrenome string `json:"sobrenome"`
	Email     string `json:"email"`
	Celular   string `json:"celular"`
}

// New validates the four fields and returns a Submission.  phone is the
// masked text as shown in the form.  Names and email are trimmed.
func New(firstName, lastName, email, phone string) (Submission, error) {
	checks := []struct {
		field string
		res   rules.Result
	}{
		{FieldFirstName, rules.FirstName(firstName)},
		{FieldLastName, rules.LastName(lastName)},
		{FieldEmail, rules.Email(email)},
		{FieldPhone, rules.Phone(phone)},
	}
	for _, c := range checks {
		if !c.res.OK {
			return Submission{}, NewInvalidFieldError(c.field, c.res.Message)
		}
	}

	return Submission{
		firstName: trim(firstName),
		lastName:  trim(lastName),
		email:     trim(email),
		phone:     mask.Digits(phone),
	}, nil
}

// FromValues builds a Submission from form values keyed by field name.
func FromValues(values map[string]string) (Submission, error) {
	for _, f := range []string{FieldFirstName, FieldLastName, FieldEmail, FieldPhone} {
		if _, ok := values[f]; !ok {
			return Submission{}, NewMissingFieldError(f)
		}
	}
	return New(values[FieldFirstName], values[FieldLastName], values[FieldEmail], values[FieldPhone])
}

// Payload returns the wire representation.
func (s Submission) Payload() Payload {
	return Payload{
		Nome:      s.firstName,
		Sobrenome: s.lastName,
		Email:     s.email,
		Celular:   s.phone,
	}
}

func (s Submission) FirstName() string { return s.firstName }
func (s Submission) LastName() string  { return s.lastName }
func (s Submission) Email() string     { return s.email }
func (s Submission) Phone() string     { return s.phone }

func trim(s string) string { return strings.TrimSpace(s) }
