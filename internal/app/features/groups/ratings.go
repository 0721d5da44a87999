// internal/app/features/groups/ratings.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nestforge/missionhub/internal/app/system/apiutil"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ratingRequest is the JSON body for POST /api/groups/{id}/ratings.
type ratingRequest struct {
	UserID string `json:"user_id"` // rated member
	Value  int    `json:"value"`   // 1-5
}

// HandleRating records a peer or leader rating, per the mission's
// contribution-tracking mode, and refreshes the standings.
func (h *Handler) HandleRating(w http.ResponseWriter, r *http.Request) {
	raterID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	targetID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid target user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Engine.SubmitRating(ctx, id, raterID, targetID, req.Value); err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}
	apiutil.JSON(w, http.StatusOK, map[string]string{"status": "rated"})
}
