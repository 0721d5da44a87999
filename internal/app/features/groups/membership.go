// internal/app/features/groups/membership.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nestforge/missionhub/internal/app/system/apiutil"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleActivate fires the forming -> active transition by leader action.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.leaderAction(w, r, h.Engine.ActivateGroup)
}

// HandlePause suspends an active group.
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.leaderAction(w, r, h.Engine.PauseGroup)
}

// HandleResume returns a paused group to active.
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.leaderAction(w, r, h.Engine.ResumeGroup)
}

// HandleAdvanceStage completes the current stage and starts the next.
func (h *Handler) HandleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	h.leaderAction(w, r, h.Engine.AdvanceStage)
}

func (h *Handler) leaderAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, groupID, userID primitive.ObjectID) error) {
	userID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := fn(ctx, id, userID); err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}
	apiutil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// leaveRequest is the JSON body for POST /api/groups/{id}/leave.
type leaveRequest struct {
	Reason string `json:"reason,omitempty"`
}

// HandleLeave removes the calling member from the group.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	userID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	var req leaveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // reason is optional
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Engine.LeaveGroup(ctx, id, userID, req.Reason); err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}
	apiutil.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// kickRequest is the JSON body for POST /api/groups/{id}/kick.
type kickRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

// HandleKick removes a member by leader action.
func (h *Handler) HandleKick(w http.ResponseWriter, r *http.Request) {
	leaderID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	var req kickRequest
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

	if err := h.Engine.KickMember(ctx, id, leaderID, targetID, req.Reason); err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}
	apiutil.JSON(w, http.StatusOK, map[string]string{"status": "kicked"})
}
