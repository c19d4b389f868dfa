package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// observe logs and counts every request under its route template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		duration := time.Since(start)
		s.deps.Metrics.RecordHTTPRequest(route, r.Method, rec.status, duration)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration))
	})
}

// tokenFrom reads a bearer token, falling back to the session cookie.
func tokenFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return strings.TrimSpace(header)
		}
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFrom(r)
		if token == "" {
			s.writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Token is missing!"})
			return
		}

		if _, err := s.deps.Auth.Verify(r.Context(), token); err != nil {
			s.logger.Debug("Rejected token", zap.Error(err))
			s.writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Token is invalid!"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
