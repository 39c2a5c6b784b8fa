// Package api exposes the assistant over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fapassist/internal/domain"
	"fapassist/internal/logging"
	"fapassist/internal/service"
)

// Error messages returned to clients.
const (
	msgMethodNotAllowed = "Méthode non autorisée"
	msgMissingKey       = "MISTRAL_API_KEY manquante"
	msgInvalidQuestion  = "Question invalide"
	msgInternal         = "Erreur interne"
	msgNotFound         = "Ressource introuvable"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

// Assistant is the service behind the API.
type Assistant interface {
	domain.Assistant
	HasLLM() bool
}

// Server routes HTTP requests to the assistant.
type Server struct {
	router    chi.Router
	assistant Assistant
}

// NewServer builds the router.
func NewServer(assistant Assistant) *Server {
	s := &Server{router: chi.NewRouter(), assistant: assistant}
	s.routes()
	logging.Logger().Info("api: server ready")
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := logging.Logger()
	s.router.Use(requestID)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("api: request", "method", r.Method, "path", r.URL.Path,
				"dur", time.Since(start), "request_id", RequestID(r.Context()))
		})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, msgMethodNotAllowed, errors.New(r.Method+" "+r.URL.Path))
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, msgNotFound, errors.New(r.URL.Path))
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Post("/api/chat", s.handleChat)
}

type chatRequest struct {
	Question   any `json:"question"`
	Historique any `json:"historique"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.assistant.HasLLM() {
		writeError(w, r, http.StatusInternalServerError, msgMissingKey, service.ErrNoLLM)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidQuestion, err)
		return
	}
	question, ok := req.Question.(string)
	if !ok || strings.TrimSpace(question) == "" {
		writeError(w, r, http.StatusBadRequest, msgInvalidQuestion, service.ErrInvalidQuestion)
		return
	}
	history, _ := req.Historique.(string)

	reply, err := s.assistant.Reply(r.Context(), question, history)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, reply)
	case errors.Is(err, service.ErrInvalidQuestion):
		writeError(w, r, http.StatusBadRequest, msgInvalidQuestion, err)
	case errors.Is(err, service.ErrNoLLM):
		writeError(w, r, http.StatusInternalServerError, msgMissingKey, err)
	default:
		writeError(w, r, http.StatusInternalServerError, msgInternal, err)
	}
}

type requestIDKey struct{}

// RequestID returns the identifier assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID reuses an incoming X-Request-ID or generates one, and echoes it
// in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	logger := logging.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", "status", status, "error", err, "request_id", RequestID(r.Context()))
	} else {
		logger.Warn("api: request failed", "status", status, "error", err, "request_id", RequestID(r.Context()))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
