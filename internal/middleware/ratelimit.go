// internal/middleware/ratelimit.go
//
// Per-client token-bucket limiter for mutating routes.
//
// Each client IP gets its own rate.Limiter.  The IP is the connection's
// peer, or the hop the nearest proxy appended to X-Forwarded-For when
// trustProxy is set; never the client-supplied left-most entry.  Limiters live in a bounded LRU
// so a flood of distinct addresses cannot grow memory without limit; an
// evicted client simply starts over with a full bucket.  Over-limit
// requests get 429 with a Retry-After hint and a JSON body of the same
// {"error": "..."} shape the API uses, so the page script can parse every
// answer it gets.

package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	"github.com/yanizio/signup/internal/cache"
	"github.com/yanizio/signup/internal/logger"
	"github.com/yanizio/signup/internal/requestinfo"
)

// maxVisitors bounds the number of tracked clients.
const maxVisitors = 10000

// LimitedMessage is the error text of a 429 answer.
const LimitedMessage = "Muitas tentativas. Aguarde um instante e tente novamente."

// RateLimiter hands out one limiter per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors *cache.LRU[string, *rate.Limiter]
	r        rate.Limit
	burst    int
	trust    bool
}

// NewRateLimiter allows perSecond requests per client with the given burst.
// Set trustProxy only when a proxy in front appends to X-Forwarded-For.
func NewRateLimiter(perSecond float64, burst int, trustProxy bool) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: cache.New[string, *rate.Limiter](maxVisitors),
		r:        rate.Limit(perSecond),
		burst:    burst,
		trust:    trustProxy,
	}
}

// limiter returns the limiter for key, creating it on first sight.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.visitors.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.visitors.Add(key, l)
	return l
}

// Allow reports whether the client identified by key may proceed now.
func (rl *RateLimiter) Allow(key string) bool { return rl.limiter(key).Allow() }

// Limit wraps next so each client IP is held to the configured rate.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	retry := "1"
	if rl.r > 0 {
		retry = strconv.Itoa(int(math.Ceil(1 / float64(rl.r))))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestinfo.PeerIP(r, rl.trust).String()
		if !rl.Allow(key) {
			logger.FromContext(r.Context()).Warnw("rate limit exceeded", "path", r.URL.Path)
			w.Header().Set("Retry-After", retry)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": LimitedMessage})
			return
		}
		next.ServeHTTP(w, r)
	})
}
