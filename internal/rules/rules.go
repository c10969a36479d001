// internal/rules/rules.go
//
// Field validation rules for the registration form.
//
// Context
// -------
// Each rule is a pure predicate over one field's raw text.  It answers
// pass or fail and, on failure, the message shown next to the field.  The
// form controller runs a rule when its field loses focus and runs every
// rule again on submit.  The registration package runs them a third time
// before it builds a Submission, so an invalid value can never reach the
// webhook.
//
// Rules are registered by name so YAML form definitions can refer to them:
//
//	name          → Name (label-aware, 2–50 Latin letters and spaces)
//	takeat_email  → Email (syntactically valid and containing “.takeat@”)
//	br_mobile     → Phone (masked “(DD) DDDDD-DDDD”)
//
// Notes
// -----
// • Messages are user-facing and written in Portuguese.
// • Oxford commas, two spaces after periods.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	NameMin = 2
	NameMax = 50

	// EmailToken must appear in every accepted address.
	EmailToken = ".takeat@"
)

// Result is the outcome of one rule.  Message is empty when OK is true.
type Result struct {
	OK      bool
	Message string
}

func pass() Result { return Result{OK: true} }

func fail(msg string) Result { return Result{Message: msg} }

// Rule validates value.  label is the field's display name, used by rules
// whose message names the field.
type Rule func(label, value string) Result

var registry = map[string]Rule{
	"name":         Name,
	"takeat_email": func(_, v string) Result { return Email(v) },
	"br_mobile":    func(_, v string) Result { return Phone(v) },
}

// Lookup returns the rule registered under name.
func Lookup(name string) (Rule, bool) {
	r, ok := registry[name]
	return r, ok
}

// -----------------------------------------------------------------------------
// Names
// -----------------------------------------------------------------------------

// Name accepts 2–50 characters, after trimming, made only of Latin letters
// (accented ones included) and spaces.
func Name(label, value string) Result {
	v := strings.TrimSpace(value)
	n := utf8.RuneCountInString(v)

	switch {
	case n < NameMin:
		return fail(fmt.Sprintf("%s deve ter pelo menos %d caracteres", label, NameMin))
	case n > NameMax:
		return fail(fmt.Sprintf("%s deve ter no máximo %d caracteres", label, NameMax))
	}

	for _, r := range v {
		if r == ' ' {
			continue
		}
		if !unicode.IsLetter(r) || !unicode.Is(unicode.Latin, r) {
			return fail(fmt.Sprintf("%s deve conter apenas letras", label))
		}
	}
	return pass()
}

// FirstName validates the “nome” field.
func FirstName(value string) Result { return Name("Nome", value) }

// LastName validates the “sobrenome” field.
func LastName(value string) Result { return Name("Sobrenome", value) }

// -----------------------------------------------------------------------------
// Email
// -----------------------------------------------------------------------------

var v = validator.New()

// Email accepts a syntactically valid address that contains EmailToken.
func Email(value string) Result {
	e := strings.TrimSpace(value)
	if err := v.Var(e, "required,email"); err != nil {
		return fail("Email inválido")
	}
	if !strings.Contains(e, EmailToken) {
		return fail("O email deve conter " + EmailToken)
	}
	return pass()
}

// -----------------------------------------------------------------------------
// Phone
// -----------------------------------------------------------------------------

var phonePattern = regexp.MustCompile(`^\(\d{2}\) \d{5}-\d{4}$`)

// Phone accepts only the fully masked form “(DD) DDDDD-DDDD”.
func Phone(value string) Result {
	if !phonePattern.MatchString(value) {
		return fail("Celular deve estar no formato (00) 00000-0000")
	}
	return pass()
}
