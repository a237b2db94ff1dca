package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rafid/habit-tracker/internal/apperror"
	"github.com/rafid/habit-tracker/internal/auth"
	"github.com/rafid/habit-tracker/internal/model"
	"github.com/rafid/habit-tracker/internal/service"
)

// ActivityHandler receives daily editing counters from the extension.
type ActivityHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewActivityHandler(authSvc *service.AuthService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{authSvc: authSvc, logger: logger}
}

// activityRequest is the body of POST /api/activity.
type activityRequest struct {
	Day   string              `json:"day"` // YYYY-MM-DD
	Delta model.DailyActivity `json:"delta"`
}

// HandleRecord accumulates one report into the authenticated user's track.
//
// HTTP: POST /api/activity
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *ActivityHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	if err := h.authSvc.RecordActivity(r.Context(), userID, req.Day, req.Delta); err != nil {
		h.logger.Error("recording activity failed",
			slog.String("userID", userID),
			slog.String("day", req.Day),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
