// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
This handler sits right after chi's RequestID.  For every request it:

  1. Extracts the left-most client IP from X-Forwarded-For or X-Real-IP,
     falling back to `r.RemoteAddr`.
  2. Parses the User-Agent header and Accept-Language list.
  3. Performs a GeoLite2 country lookup when a database is loaded.
  4. Stores a `*RequestInfo` in the request context, and a request-scoped
     logger carrying the request id and IP, so handlers and the form
     controller log with the same fields.

Notes
-----
  • The forwarded headers ClientIP reads are client-controlled, so its
    answer only feeds logs and the geo lookup.  Anything that must not be
    spoofed, such as the rate limiter key, uses PeerIP.
  • All look-ups are read-only, so the middleware is safe under heavy
    concurrency.
*/
package requestinfo

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/signup/internal/logger"
	"github.com/yanizio/signup/internal/ua"
)

/*──────────────────────────── middleware ───────────────────────────────────*/

// Enrich wraps an http.Handler, attaches *RequestInfo, and forwards.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		info := &RequestInfo{
			IP:          ip,
			UA:          ua.Parse(r.UserAgent()),
			CountryISO:  lookupCountry(ip),
			PrimaryLang: primaryLang(r.Header.Get("Accept-Language")),
			Timestamp:   time.Now().UTC(),
		}

		log := zap.S().With("req_id", middleware.GetReqID(r.Context()), "ip", ip.String())
		log.Debugw("request info",
			"country", info.CountryISO,
			"browser", info.UA.Browser,
			"device", info.UA.Device,
			"bot", info.UA.IsBot,
			"path", r.URL.Path,
		)

		ctx := WithInfo(r.Context(), info)
		ctx = logger.WithContext(ctx, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

/*──────────────────────────── client IP helper ─────────────────────────────*/

// ClientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").  The result is
// informational.
func ClientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return nil
}

// PeerIP returns the address of the connection's peer.  With trustProxy it
// returns the right-most X-Forwarded-For hop instead, the one the nearest
// proxy appended; entries left of it are whatever the client sent.
func PeerIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if hdrs := r.Header.Values("X-Forwarded-For"); len(hdrs) > 0 {
			hops := strings.Split(hdrs[len(hdrs)-1], ",")
			if ip := net.ParseIP(strings.TrimSpace(hops[len(hops)-1])); ip != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(r.RemoteAddr)
}
