// internal/app/features/missions/join.go
package missions

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nestforge/missionhub/internal/app/engine"
	"github.com/nestforge/missionhub/internal/app/system/apiutil"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// joinRequest is the JSON body for POST /api/missions/{templateID}/join.
type joinRequest struct {
	AutoJoin  bool     `json:"auto_join"`
	Level     int      `json:"level"`
	Interests []string `json:"interests"`
}

// HandleJoin places the calling user into a group for the mission, or
// queues them for batch matching.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	templateID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "templateID"))
	if err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid mission id")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	outcome, err := h.Engine.RequestJoin(ctx, templateID, userID,
		engine.JoinProfile{Level: req.Level, Interests: req.Interests}, req.AutoJoin)
	if err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}

	h.Log.Info("join request handled",
		zap.String("template_id", templateID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.String("outcome", outcome.Outcome))
	apiutil.JSON(w, http.StatusOK, outcome)
}

// HandleCancelJoin withdraws the calling user's pending join request.
func (h *Handler) HandleCancelJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	templateID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "templateID"))
	if err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid mission id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Engine.CancelPendingJoin(ctx, templateID, userID); err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}
	apiutil.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
