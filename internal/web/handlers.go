// internal/web/handlers.go
//
// Route handlers.  Every API response body is the controller snapshot so
// the page script can redraw from one shape.

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/signup/internal/form"
	"github.com/yanizio/signup/internal/logger"
	"github.com/yanizio/signup/internal/requestinfo"
)

// maxEditBody bounds PUT bodies; the longest field is 50 characters.
const maxEditBody = 4 << 10

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getForm returns the snapshot and a fresh CSRF token in X-CSRF-Token.
func (s *Server) getForm(w http.ResponseWriter, r *http.Request) {
	id, c := s.visit(w, r)
	tok, err := s.csrf.Generate(id)
	if err != nil {
		logger.FromContext(r.Context()).Errorw("csrf generate failed", "err", err)
		respondError(w, http.StatusInternalServerError, "erro interno")
		return
	}
	w.Header().Set("X-CSRF-Token", tok)
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// editRequest is one keystroke's worth of field value.  Seq numbers the
// page's edits; zero means unordered.
type editRequest struct {
	Value string `json:"value"`
	Seq   uint64 `json:"seq"`
}

func (s *Server) editField(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEditBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "corpo inválido")
		return
	}

	c := s.controller(w, r)
	if _, _, err := c.EditSeq(chi.URLParam(r, "field"), req.Value, req.Seq); err != nil {
		s.fieldError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) blurField(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if _, err := c.Blur(chi.URLParam(r, "field")); err != nil {
		s.fieldError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) fieldError(w http.ResponseWriter, err error) {
	if errors.Is(err, form.ErrUnknownField) {
		respondError(w, http.StatusNotFound, "campo desconhecido")
		return
	}
	respondError(w, http.StatusInternalServerError, "erro interno")
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	err := c.Submit(r.Context())
	logSubmit(r, err)
	respondJSON(w, submitStatus(err), c.Snapshot())
}

// submitStatus maps Controller.Submit errors to HTTP codes.
func submitStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case form.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, form.ErrSubmitInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// logSubmit records the outcome with the visitor's request info.
func logSubmit(r *http.Request, err error) {
	log := logger.FromContext(r.Context()).With(requestinfo.FromContext(r.Context()).LogFields()...)
	switch {
	case err == nil:
		log.Infow("submit accepted")
	case form.IsValidationError(err):
		log.Debugw("submit invalid", "fields", len(form.FieldErrors(err)))
	case errors.Is(err, form.ErrSubmitInProgress):
		log.Infow("submit refused, already loading")
	default:
		log.Warnw("submit failed", "err", err)
	}
}
