package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/xaenox/rex/internal/chat"
	"github.com/xaenox/rex/internal/generation"
	"github.com/xaenox/rex/internal/models"
	"github.com/xaenox/rex/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, messageResponse{Message: generation.ApologyInvalidInput})
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Chat.Handle(r.Context(), req))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, loginResponse{Message: "Invalid request body"})
		return
	}

	token, expiresAt, err := s.deps.Auth.Login(req.Email, req.Password)
	if err != nil {
		s.logger.Warn("Admin login failed", zap.Error(err))
		s.writeJSON(w, http.StatusOK, loginResponse{Message: "Invalid credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.deps.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("Admin logged in")
	s.writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFrom(r); token != "" {
		if err := s.deps.Auth.Revoke(r.Context(), token); err != nil {
			s.logger.Error("Failed to revoke token", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	s.writeSuccess(w, true)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Guidelines.Settings(r.Context(), true))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		s.writeBadRequest(w, "Invalid request body")
		return
	}
	s.writeSuccess(w, s.deps.Guidelines.WriteSettings(r.Context(), values))
}

func (s *Server) handleGetGuidelines(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Guidelines.ReadTyped(r.Context(), true))
}

func (s *Server) handleUpdateGuidelines(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		s.writeBadRequest(w, "Invalid request body")
		return
	}
	s.writeSuccess(w, s.deps.Guidelines.WriteMany(r.Context(), values))
}

type customGuidelineRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (s *Server) handleListCustom(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Guidelines.ListCustom(r.Context()))
}

func (s *Server) handleCreateCustom(w http.ResponseWriter, r *http.Request) {
	var req customGuidelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "Invalid request body")
		return
	}
	s.writeSuccess(w, s.deps.Guidelines.CreateCustom(r.Context(), req.Key, req.Value, req.Description))
}

func (s *Server) handleUpdateCustom(w http.ResponseWriter, r *http.Request) {
	var req customGuidelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "Invalid request body")
		return
	}
	s.writeSuccess(w, s.deps.Guidelines.UpdateCustom(r.Context(), req.Key, req.Value, req.Description))
}

func (s *Server) handleDeleteCustom(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeBadRequest(w, "Missing key")
		return
	}
	s.writeSuccess(w, s.deps.Guidelines.DeleteCustom(r.Context(), key))
}

func (s *Server) listReflections(w http.ResponseWriter, r *http.Request, filter storage.ReflectionFilter) {
	if t := r.URL.Query().Get("type"); t != "" {
		filter.Type = models.ReflectionType(t)
		if !filter.Type.Valid() {
			s.writeBadRequest(w, "Unknown reflection type")
			return
		}
	}

	reflections, err := s.deps.Reflections.ListReflections(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list reflections", zap.Error(err))
		s.deps.Metrics.RecordStorageError("list_reflections")
		reflections = nil
	}
	if reflections == nil {
		reflections = []*models.Reflection{}
	}
	s.writeJSON(w, http.StatusOK, reflections)
}

func (s *Server) handleListReflections(w http.ResponseWriter, r *http.Request) {
	s.listReflections(w, r, storage.ReflectionFilter{})
}

func (s *Server) handlePublicReflections(w http.ResponseWriter, r *http.Request) {
	s.listReflections(w, r, storage.ReflectionFilter{PublishedOnly: true})
}

type reflectionResponse struct {
	Success    bool               `json:"success"`
	Reflection *models.Reflection `json:"reflection,omitempty"`
}

func (s *Server) handleCreateReflection(w http.ResponseWriter, r *http.Request) {
	var reflection models.Reflection
	if err := json.NewDecoder(r.Body).Decode(&reflection); err != nil {
		s.writeBadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(reflection.Content) == "" {
		s.writeBadRequest(w, "Content is required")
		return
	}
	if reflection.Type == "" {
		reflection.Type = models.MicroblogReflection
	}
	if !reflection.Type.Valid() {
		s.writeBadRequest(w, "Unknown reflection type")
		return
	}

	if err := s.deps.Reflections.CreateReflection(r.Context(), &reflection); err != nil {
		s.logger.Error("Failed to create reflection", zap.Error(err))
		s.deps.Metrics.RecordStorageError("create_reflection")
		s.writeSuccess(w, false)
		return
	}
	s.writeJSON(w, http.StatusOK, reflectionResponse{Success: true, Reflection: &reflection})
}

func (s *Server) handleUpdateReflection(w http.ResponseWriter, r *http.Request) {
	var patch models.ReflectionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeBadRequest(w, "Invalid request body")
		return
	}
	if patch.ID == 0 {
		s.writeBadRequest(w, "Missing id")
		return
	}
	if patch.Type != nil && !patch.Type.Valid() {
		s.writeBadRequest(w, "Unknown reflection type")
		return
	}

	if err := s.deps.Reflections.UpdateReflection(r.Context(), &patch); err != nil {
		s.reflectionWriteFailed(w, "update_reflection", patch.ID, err)
		return
	}
	s.writeSuccess(w, true)
}

func (s *Server) handleDeleteReflection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.writeBadRequest(w, "Invalid id")
		return
	}

	if err := s.deps.Reflections.DeleteReflection(r.Context(), id); err != nil {
		s.reflectionWriteFailed(w, "delete_reflection", id, err)
		return
	}
	s.writeSuccess(w, true)
}

func (s *Server) reflectionWriteFailed(w http.ResponseWriter, op string, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, successResponse{Success: false, Message: "Reflection not found"})
		return
	}
	s.logger.Error("Failed to write reflection",
		zap.Error(err),
		zap.String("operation", op),
		zap.Int64("reflection_id", id))
	s.deps.Metrics.RecordStorageError(op)
	s.writeSuccess(w, false)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Conversations.AllConversations(r.Context()))
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeBadRequest(w, "Invalid conversation id")
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Conversations.MessagesOf(r.Context(), id))
}
