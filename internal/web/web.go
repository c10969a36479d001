// internal/web/web.go
//
// Signup – HTTP surface.
//
// Context
//   Server wires the registration form to chi routes.  Each visitor owns one
//   form.Controller, found through the session cookie, and every route is a
//   thin adapter over a controller operation:
//
//      GET  /                               page shell with the rendered form
//      POST /                               classic HTML submit, re-renders
//      GET  /api/form                       snapshot JSON
//      PUT  /api/form/fields/{field}        edit  → snapshot
//      POST /api/form/fields/{field}/blur   blur  → snapshot
//      POST /api/form/submit                submit → snapshot
//      GET  /healthz, /metrics, /assets/*
//
//   Mutating routes require the CSRF token, sent as X-CSRF-Token or as the
//   csrf_token form field.  Tokens are bound to the session cookie, so one
//   visitor's token is useless with another's cookie.  Submit routes are rate limited per client IP;
//   edits are not, since the page sends one per keystroke.
//
//------------------------------------------------------------------------------

package web

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/signup/internal/form"
	"github.com/yanizio/signup/internal/middleware"
	"github.com/yanizio/signup/internal/requestinfo"
	"github.com/yanizio/signup/internal/session"
)

//go:embed assets
var assets embed.FS

// Options carries the http.* config the router needs.
type Options struct {
	AllowedOrigins []string
	ForceHTTPS     bool
	RateLimit      float64 // submits per second per IP, 0 disables
	RateBurst      int
	TrustProxy     bool // a proxy in front appends to X-Forwarded-For
	MaxSessions    int
}

// Server serves one form definition.
type Server struct {
	def      *form.FormDef
	csrf     *form.CSRF
	sessions *session.Store[*form.Controller]
	opts     Options
}

// New returns a Server whose controllers hand submissions to d.  ctrlOpts
// are applied to every controller created for a visitor.
func New(def *form.FormDef, d form.Dispatcher, csrf *form.CSRF, opts Options, ctrlOpts ...form.Option) (*Server, error) {
	if def == nil || d == nil || csrf == nil {
		return nil, errors.New("web: form definition, dispatcher, and csrf are required")
	}
	if opts.MaxSessions < 1 {
		opts.MaxSessions = 10000
	}

	s := &Server{def: def, csrf: csrf, opts: opts}
	s.sessions = session.NewStore(opts.MaxSessions, func() *form.Controller {
		return form.NewController(def, d, ctrlOpts...)
	})
	return s, nil
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(requestinfo.Enrich)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ForceHTTPS(s.opts.ForceHTTPS))
	r.Use(middleware.Security)
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"X-CSRF-Token"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	limit := func(h http.Handler) http.Handler { return h }
	if s.opts.RateLimit > 0 {
		limit = middleware.NewRateLimiter(s.opts.RateLimit, s.opts.RateBurst, s.opts.TrustProxy).Limit
	}

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	static, _ := fs.Sub(assets, "assets")
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(static))))

	r.Get("/", s.page)
	r.With(limit).Post("/", s.postPage)

	r.Route("/api/form", func(r chi.Router) {
		r.Get("/", s.getForm)
		r.Group(func(r chi.Router) {
			r.Use(s.requireCSRF)
			r.Put("/fields/{field}", s.editField)
			r.Post("/fields/{field}/blur", s.blurField)
			r.With(limit).Post("/submit", s.submit)
		})
	})

	return r
}

// visit returns the visitor's session id and controller, issuing a session
// cookie on first contact.
func (s *Server) visit(w http.ResponseWriter, r *http.Request) (string, *form.Controller) {
	id := session.ID(w, r)
	return id, s.sessions.Get(id)
}

// controller is visit for handlers that do not need the id.
func (s *Server) controller(w http.ResponseWriter, r *http.Request) *form.Controller {
	_, c := s.visit(w, r)
	return c
}

// requireCSRF rejects requests without a token issued to their session.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := r.Header.Get("X-CSRF-Token")
		if tok == "" {
			tok = r.FormValue("csrf_token")
		}
		id, ok := session.Lookup(r)
		if !ok || !s.csrf.Verify(tok, id) {
			respondError(w, http.StatusForbidden, "token CSRF inválido ou expirado")
			return
		}
		next.ServeHTTP(w, r)
	})
}
