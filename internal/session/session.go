// internal/session/session.go
//
// Signup – per-visitor form sessions.
//
// Context
//   Every visitor gets one form controller that lives between requests, so
//   values typed through the edit endpoints are still there when the visitor
//   submits.  The controller is found through a cookie named “signup_form”
//   that carries a random UUID.  Nothing sensitive is stored client side.
//
//   Store[T] keeps at most N entries in an LRU.  When capacity is reached
//   the least recently used visitor loses their in-progress form, which is
//   acceptable for a signup page.  Eviction updates the active-forms gauge.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/signup/internal/cache"
	"github.com/yanizio/signup/internal/metrics"
)

// CookieName is the cookie that carries the session id.
const CookieName = "signup_form"

const cookieTTL = 24 * time.Hour

// Store maps session ids to values of type T, creating them on first use.
// Store is safe for concurrent use.
type Store[T any] struct {
	mu      sync.Mutex
	lru     *cache.LRU[string, T]
	newFunc func() T
}

// NewStore returns a Store holding at most capacity entries.  newFunc builds
// the value for an unseen id.
func NewStore[T any](capacity int, newFunc func() T) *Store[T] {
	s := &Store[T]{
		lru:     cache.New[string, T](capacity),
		newFunc: newFunc,
	}
	s.lru.OnEvict = func(string, T) { metrics.ActiveForms.Dec() }
	return s
}

// Get returns the value for id, creating it when absent.
func (s *Store[T]) Get(id string) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.lru.Get(id); ok {
		return v
	}
	v := s.newFunc()
	metrics.ActiveForms.Inc()
	s.lru.Add(id, v) // may evict
	return v
}

// Delete drops id from the store.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lru.Remove(id) {
		metrics.ActiveForms.Dec()
	}
}

// Len reports the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Lookup returns the session id carried by r without issuing one.
func Lookup(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// ID returns the session id carried by r.  When the cookie is missing or not
// a UUID a new id is issued and written to w.
func ID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := Lookup(r); ok {
		return id
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil, // only send over HTTPS
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(cookieTTL),
	})
	return id
}
