package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/raisecoach/internal/auth"
	"github.com/MikeSquared-Agency/raisecoach/internal/chat"
	"github.com/MikeSquared-Agency/raisecoach/internal/coaching"
	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
	cors "github.com/MikeSquared-Agency/raisecoach/internal/middleware"
	"github.com/MikeSquared-Agency/raisecoach/internal/negotiation"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
	"github.com/MikeSquared-Agency/raisecoach/internal/realtime"
	"github.com/MikeSquared-Agency/raisecoach/internal/store"
)

const maxBodyBytes = 1 << 20

// Pinger is satisfied by store.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Chat         *chat.Orchestrator
	Grader       *grading.Grader
	Negotiations *negotiation.Service
	Realtime     *realtime.Minter
	Verifier     *auth.Verifier
	Store        Pinger
	CORSOrigins  []string
	Logger       *slog.Logger
}

type Server struct {
	router *chi.Mux
	deps   Deps
	logger *slog.Logger
	http   *http.Server
}

func NewServer(port int, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	verifier := deps.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier("", "")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.CORS(deps.CORSOrigins))

	s := &Server{
		router: router,
		deps:   deps,
		logger: logger,
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/personas", s.listPersonas)
		r.Post("/negotiation-chat", s.negotiationChat)
		r.Post("/grade-conversation", s.gradeConversation)
		r.Post("/realtime-session", s.realtimeSession)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))
			r.Post("/conversations", s.startConversation)
			r.Get("/conversations", s.listConversations)
			r.Get("/conversations/{id}", s.getConversation)
			r.Post("/conversations/{id}/messages", s.postMessage)
			r.Post("/conversations/{id}/complete", s.completeConversation)
			r.Get("/credits", s.getCredits)
			r.Post("/credits/purchase", s.purchaseCredits)
		})
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	storeStatus := "unconfigured"
	if s.deps.Store != nil {
		storeStatus = "ok"
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.logger.Warn("store ping failed", "error", err)
			storeStatus = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "raisecoach",
		"status":  "ok",
		"store":   storeStatus,
	})
}

var (
	errBadRequest    = errors.New("bad request")
	errNotConfigured = errors.New("service not configured")
)

// statusFor maps domain errors onto HTTP statuses and client-facing messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, gateway.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again in a moment."
	case errors.Is(err, gateway.ErrQuotaExhausted):
		return http.StatusPaymentRequired, "AI credits depleted. Please add credits to continue."
	case errors.Is(err, store.ErrNoCredits):
		return http.StatusPaymentRequired, "No negotiation credits remaining. Purchase more to continue."
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Conversation not found"
	case errors.Is(err, store.ErrAlreadyCompleted):
		return http.StatusConflict, "Conversation already completed"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "User not authenticated"
	case errors.Is(err, persona.ErrUnknownPersona),
		errors.Is(err, negotiation.ErrInvalidInput),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, tip *coaching.Tip) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	body := map[string]any{"error": msg}
	if tip != nil {
		body["coachingTip"] = tip
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}
