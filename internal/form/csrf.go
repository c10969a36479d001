// internal/form/csrf.go
//
// Signup – Forms subsystem: stateless CSRF token utilities.
//
// Context
//   The page embeds a `csrf_token` generated at render time, and every
//   mutating request (field edits, blur, submit) must echo it back in the
//   form body or the X-CSRF-Token header.  Tokens are stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(secret, nonce+unixMicro+binding) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – issue time, 8 bytes, big-endian.
//   •  binding – the visitor's session id; signed but not carried.
//   •  HMAC – keyed with form.csrf_key from config.
//
//   Verification checks the signature against the caller's binding and that
//   the token is younger than MaxAge, so a token only works with the session
//   cookie it was issued to.  No server-side storage is needed, so several
//   instances behind a load balancer accept each other's tokens when they
//   share the key.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"go.uber.org/zap"
)

const (
	tokenBytes = 16 + 8 + sha256.Size // nonce + ts + sig

	// MaxAge bounds how long a rendered page may be used.
	MaxAge = 2 * time.Hour
)

// CSRF issues and verifies tokens with one secret.
type CSRF struct {
	secret []byte
	now    func() time.Time
}

// NewCSRF decodes key (base64url, at least 32 bytes).  An empty or unusable
// key yields a random secret that does not survive restarts.
func NewCSRF(key string) *CSRF {
	c := &CSRF{now: time.Now}
	if key != "" {
		if b, err := base64.RawURLEncoding.DecodeString(key); err == nil && len(b) >= 32 {
			c.secret = b
			return c
		}
	}
	c.secret = make([]byte, 32)
	_, _ = rand.Read(c.secret)
	zap.S().Warnw("form.csrf_key not set or too short, using an ephemeral key")
	return c
}

// Generate creates a new token bound to binding.  Call once per page render.
func (c *CSRF) Generate(binding string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(c.now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, c.sign(nonce, ts, binding)...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify reports whether tok was issued for binding and is not expired.
func (c *CSRF) Verify(tok, binding string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}

	nonce := raw[:16]
	tsBytes := raw[16:24]
	sig := raw[24:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	now := c.now()
	if now.Sub(issued) > MaxAge || issued.Sub(now) > time.Minute {
		// Expired, or issued in the future beyond clock skew.
		return false
	}

	return hmac.Equal(sig, c.sign(nonce, tsBytes, binding))
}

func (c *CSRF) sign(nonce, ts []byte, binding string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(nonce)
	mac.Write(ts)
	mac.Write([]byte(binding))
	return mac.Sum(nil)
}
