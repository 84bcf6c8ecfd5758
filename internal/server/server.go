// Package server exposes the lead review page and its JSON API.
package server

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nin-ia/leadcard/internal/model"
	"github.com/nin-ia/leadcard/internal/store"
)

//go:embed templates/leads.html.tmpl
var templateFS embed.FS

var leadsTmpl = template.Must(template.ParseFS(templateFS, "templates/leads.html.tmpl"))

// Server serves the review endpoints over a Store.
type Server struct {
	store store.Store
}

func New(st store.Store) *Server {
	return &Server{store: st}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/leads", s.handleLeadsPage)
	r.Route("/api/leads", func(r chi.Router) {
		r.Get("/", s.handleListLeads)
		r.Post("/seed", s.handleSeed)
		r.Post("/reset", s.handleReset)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.listLeads(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list leads", err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleLeadsPage(w http.ResponseWriter, r *http.Request) {
	leads, err := s.listLeads(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list leads", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := leadsTmpl.Execute(w, struct{ Leads []model.Lead }{leads}); err != nil {
		zap.L().Error("render leads page", zap.Error(err))
	}
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.SeedDummyLead(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "seed lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ResetLeads(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reset leads", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) listLeads(r *http.Request) ([]model.Lead, error) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	return s.store.ListLeads(r.Context(), limit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, action string, err error) {
	zap.L().Error(action, zap.Error(err))
	writeJSON(w, status, map[string]string{"error": action + " failed"})
}
