// internal/mask/mask.go
//
// Input masks applied while the user types.
//
// Context
// -------
// A mask turns whatever the browser sends for a field into the canonical
// display form.  The form controller calls the mask on every edit, so a
// mask must be pure and idempotent: feeding its own output back in yields
// the same string.
//
// Only one mask exists today, the Brazilian mobile number
// “(DD) DDDDD-DDDD”.  Form definitions reference it by name.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package mask

import "strings"

// MaxInput is the longest raw input, in characters, a caller should pass to
// a mask.  It matches the length of a fully masked mobile number.
const MaxInput = 15

// Func formats raw input into its masked representation.
type Func func(raw string) string

var masks = map[string]Func{
	"br_mobile": Phone,
}

// Lookup returns the mask registered under name.
func Lookup(name string) (Func, bool) {
	f, ok := masks[name]
	return f, ok
}

// Phone formats raw keystrokes as a Brazilian mobile number.
//
//	0 digits     → ""
//	1–2 digits   → "(DD"
//	3–7 digits   → "(DD) DDDDD"
//	8–11 digits  → "(DD) DDDDD-DDDD"
//
// Every non-digit is discarded and digits past the eleventh are dropped.
func Phone(raw string) string {
	d := Digits(raw)
	if len(d) > 11 {
		d = d[:11]
	}

	switch n := len(d); {
	case n == 0:
		return ""
	case n <= 2:
		return "(" + d
	case n <= 7:
		return "(" + d[:2] + ") " + d[2:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
}

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Cap truncates s to at most MaxInput characters (runes).
func Cap(s string) string {
	r := []rune(s)
	if len(r) <= MaxInput {
		return s
	}
	return string(r[:MaxInput])
}
