// internal/web/page.go
//
// The page shell.  Without script the form posts to “/” and the whole page
// is rendered again from the controller snapshot.  With script,
// assets/form.js drives the JSON API and redraws fields in place.

package web

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/yanizio/signup/internal/form"
	"github.com/yanizio/signup/internal/logger"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="csrf-token" content="{{.Token}}">
<title>{{.Title}}</title>
<link rel="stylesheet" href="/assets/form.css">
</head>
<body>
<main>
{{.Form}}
</main>
<script src="/assets/form.js" defer></script>
</body>
</html>
`))

type pageData struct {
	Title string
	Token string
	Form  template.HTML
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	id, c := s.visit(w, r)
	s.render(w, r, id, c, http.StatusOK)
}

// postPage handles the no-script submit and answers with the re-rendered
// page, using the same status codes as the JSON API.
func (s *Server) postPage(w http.ResponseWriter, r *http.Request) {
	id, c := s.visit(w, r)
	err := form.HandleSubmit(c, s.csrf, id, r)
	if errors.Is(err, form.ErrBadToken) {
		http.Error(w, "token CSRF inválido ou expirado", http.StatusForbidden)
		return
	}
	logSubmit(r, err)
	s.render(w, r, id, c, submitStatus(err))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, id string, c *form.Controller, status int) {
	log := logger.FromContext(r.Context())

	tok, err := s.csrf.Generate(id)
	if err != nil {
		log.Errorw("csrf generate failed", "err", err)
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}

	markup, err := form.RenderForm(s.def, c.Snapshot(), tok, "/")
	if err != nil {
		log.Errorw("render form failed", "form", s.def.ID, "err", err)
		http.Error(w, "erro interno", http.StatusInternalServerError)
		return
	}

	title := s.def.Title
	if title == "" {
		title = s.def.ID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, pageData{Title: title, Token: tok, Form: markup}); err != nil {
		log.Warnw("page write failed", "err", err)
	}
}
