// internal/app/features/groups/progress.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nestforge/missionhub/internal/app/system/apiutil"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// progressRequest is the JSON body for POST /api/groups/{id}/progress.
type progressRequest struct {
	Scope       string  `json:"scope"` // "group" | "member"
	ObjectiveID string  `json:"objective_id"`
	Progress    float64 `json:"progress"`
	Note        string  `json:"note,omitempty"`
}

// HandleProgress applies a progress update to a group or member
// objective on behalf of the calling member.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ObjectiveID == "" {
		apiutil.Error(w, http.StatusBadRequest, "objective_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Engine.ApplyProgress(ctx, id, req.Scope, req.ObjectiveID, req.Progress, userID, req.Note)
	if err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}

	if res.GroupCompleted {
		h.Log.Info("progress update completed the mission",
			zap.String("group_id", id.Hex()),
			zap.String("user_id", userID.Hex()))
	}
	apiutil.JSON(w, http.StatusOK, res)
}
