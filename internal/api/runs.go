package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gurkunwar/standupbot/internal/api/dtos"
	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/Gurkunwar/standupbot/internal/services"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	standupID, ok := standupIDParam(w, r)
	if !ok {
		return
	}

	runID, err := s.Standups.Trigger(r.Context(), standupID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.Logger.Info("standup triggered over api", "standup_id", standupID, "run_id", runID,
		"user_id", r.Context().Value(UserIDKey))
	// Trigger returns once every member has been prompted, so the run exists.
	w.Header().Set("Location", "/api/runs/"+runID)
	respondJSON(w, http.StatusCreated, dtos.TriggerResponse{RunID: runID})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	standupID, ok := standupIDParam(w, r)
	if !ok {
		return
	}

	if err := s.Standups.Close(r.Context(), standupID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	status, ok := s.Standups.Status(runID)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown run "+runID)
		return
	}
	respondJSON(w, http.StatusOK, dtos.NewRunStatusDTO(status))
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.Standups.Abort(runID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.Logger.Warn("standup run aborted over api", "run_id", runID, "user_id", r.Context().Value(UserIDKey))
	w.WriteHeader(http.StatusNoContent)
}

func standupIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid standup id")
		return 0, false
	}
	return uint(id), true
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrStandupNotFound), errors.Is(err, standup.ErrUnknownRun):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrRunActive), errors.Is(err, services.ErrAlreadyRan):
		respondError(w, http.StatusConflict, "RUN_EXISTS", err.Error())
	case errors.Is(err, services.ErrNoActiveRun):
		respondError(w, http.StatusConflict, "NO_ACTIVE_RUN", err.Error())
	case errors.Is(err, standup.ErrInvalidDefinition):
		respondError(w, http.StatusUnprocessableEntity, "INVALID_STANDUP", err.Error())
	default:
		s.Logger.ErrorContext(r.Context(), "http server error", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unknown error")
	}
}
