// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadTimeout        – abort slow-loris bodies (default 10 s)
//   • ReadHeaderTimeout  – abort slow-loris headers (5 s)
//   • WriteTimeout       – cap total response time (default 15 s)
//   • IdleTimeout        – close keep-alives on idle clients (default 60 s)
//
// The first, third, and fourth come from config (http.*_timeout) so
// operators can tune them without a rebuild.
//

package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Timeouts configures a server.  Zero fields take the defaults above.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// New constructs an *http.Server for handler.  Server errors go to the
// global zap logger.
func New(addr string, handler http.Handler, t Timeouts) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       orDefault(t.Read, 10*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      orDefault(t.Write, 15*time.Second),
		IdleTimeout:       orDefault(t.Idle, 60*time.Second),
		ErrorLog:          zap.NewStdLog(zap.L()),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
