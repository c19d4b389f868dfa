// Package api exposes the chat and admin endpoints over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaenox/rex/internal/auth"
	"github.com/xaenox/rex/internal/chat"
	"github.com/xaenox/rex/internal/conversation"
	"github.com/xaenox/rex/internal/guidelines"
	"github.com/xaenox/rex/internal/metrics"
	"github.com/xaenox/rex/internal/storage"
	"go.uber.org/zap"
)

// SessionCookie carries the admin token for browser clients.
const SessionCookie = "rex_session"

type Deps struct {
	Chat          *chat.Service
	Guidelines    *guidelines.Adapter
	Conversations *conversation.Adapter
	Reflections   storage.ReflectionStore
	Auth          *auth.Authenticator
	Gatherer      prometheus.Gatherer
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	SecureCookie  bool
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	router *mux.Router
}

func NewServer(deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		deps:   deps,
		logger: deps.Logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.observe)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/admin-login", s.handleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	// Published reflections are public and must be matched before the
	// protected subrouter.
	r.HandleFunc("/api/reflections/public", s.handlePublicReflections).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireToken)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPost)

	api.HandleFunc("/reflections", s.handleListReflections).Methods(http.MethodGet)
	api.HandleFunc("/reflections", s.handleCreateReflection).Methods(http.MethodPost)
	api.HandleFunc("/reflections", s.handleUpdateReflection).Methods(http.MethodPut)
	api.HandleFunc("/reflections", s.handleDeleteReflection).Methods(http.MethodDelete)

	api.HandleFunc("/guidelines", s.handleGetGuidelines).Methods(http.MethodGet)
	api.HandleFunc("/guidelines", s.handleUpdateGuidelines).Methods(http.MethodPost)

	api.HandleFunc("/custom-guidelines", s.handleListCustom).Methods(http.MethodGet)
	api.HandleFunc("/custom-guidelines", s.handleCreateCustom).Methods(http.MethodPost)
	api.HandleFunc("/custom-guidelines", s.handleUpdateCustom).Methods(http.MethodPut)
	api.HandleFunc("/custom-guidelines", s.handleDeleteCustom).Methods(http.MethodDelete)

	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversation/{id:[0-9]+}", s.handleConversationMessages).Methods(http.MethodGet)
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, ok bool) {
	s.writeJSON(w, http.StatusOK, successResponse{Success: ok})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, successResponse{Success: false, Message: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.deps.Guidelines.Snapshot(r.Context(), false).Degraded {
		status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status, "service": "rex"})
}
