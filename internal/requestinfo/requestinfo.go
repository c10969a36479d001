//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight types and helpers that collect per-request metadata
//  (client IP, user-agent fingerprint, optional country, and timestamp).
//  These structs are inert, so they are safe to log or JSON-encode.
//
//  The form handlers attach this to the “registration submitted” log line
//  and the rate limiter keys on ClientIP.
//
//  Dependencies
//  • internal/ua                        (UA parsing via uasurfer)
//  • github.com/oschwald/geoip2-golang  (optional MaxMind lookup)
//

package requestinfo

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/yanizio/signup/internal/ua"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// RequestInfo is stored in the request context by Enrich.
type RequestInfo struct {
	IP          net.IP
	UA          ua.Info
	CountryISO  string // empty without a geo database
	PrimaryLang string // first tag from Accept-Language ("pt-br", "en", ...)
	Timestamp   time.Time
}

// LogFields returns key/value pairs for a sugared logger.
func (ri *RequestInfo) LogFields() []any {
	if ri == nil {
		return nil
	}
	return []any{
		"ip", ri.IP.String(),
		"device", ri.UA.Device,
		"bot", ri.UA.IsBot,
		"country", ri.CountryISO,
	}
}

//
//  -----------------------------
//  Package-level state
//  -----------------------------
//

// geoReader is a MaxMind handle.  It is safe for concurrent reads, which is
// all we ever perform.
var geoReader atomic.Pointer[geoip2.Reader]

// InitGeo opens the GeoLite2 Country or City database.  Without it lookups
// return no country.
func InitGeo(dbPath string) error {
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return fmt.Errorf("requestinfo: open GeoLite2 DB %s: %w", dbPath, err)
	}
	if old := geoReader.Swap(r); old != nil {
		_ = old.Close()
	}
	return nil
}

// CloseGeo releases the database opened by InitGeo.
func CloseGeo() {
	if r := geoReader.Swap(nil); r != nil {
		_ = r.Close()
	}
}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by Enrich.
// It returns nil if the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// WithInfo returns a copy of ctx carrying ri.
func WithInfo(ctx context.Context, ri *RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, ri)
}

//
//  -----------------------------
//  Internal helpers
//  -----------------------------
//

// primaryLang extracts the first language subtag before any ";q=" rule.
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	parts := strings.Split(al, ",")
	tag := strings.TrimSpace(parts[0])
	if i := strings.Index(tag, ";"); i != -1 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// lookupCountry returns the ISO code for ip, or "".
func lookupCountry(ip net.IP) string {
	r := geoReader.Load()
	if r == nil || ip == nil {
		return ""
	}
	rec, err := r.Country(ip)
	if err != nil {
		return ""
	}
	return rec.Country.IsoCode
}
