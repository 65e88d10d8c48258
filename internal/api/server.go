package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Gurkunwar/standupbot/internal/api/dtos"
	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StandupRunner is the part of the standup service the HTTP surface drives.
type StandupRunner interface {
	Trigger(ctx context.Context, standupID uint) (string, error)
	Close(ctx context.Context, standupID uint) error
	Status(runID string) (standup.Status, bool)
	Abort(runID string) error
}

type Server struct {
	Standups StandupRunner
	Secret   []byte
	Logger   *slog.Logger
}

func NewServer(standups StandupRunner, secret []byte, logger *slog.Logger) *Server {
	return &Server{Standups: standups, Secret: secret, Logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(s.Secret))
		r.Post("/standups/{id}/runs", s.handleTrigger)
		r.Post("/standups/{id}/close", s.handleClose)
		r.Get("/runs/{runID}", s.handleRunStatus)
		r.Post("/runs/{runID}/abort", s.handleAbort)
	})

	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("api server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dtos.ErrorResponse{Error: dtos.APIError{Code: code, Message: message}})
}
