// internal/app/features/groups/social.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nestforge/missionhub/internal/app/system/apiutil"
	"github.com/nestforge/missionhub/internal/app/system/limits"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
)

// chatRequest is the JSON body for POST /api/groups/{id}/chat.
type chatRequest struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
}

// HandleChat appends a chat message to the group log. The message is
// sanitized and stored; delivery is an external concern.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		apiutil.Error(w, http.StatusBadRequest, "message content is required")
		return
	}
	if len(req.Content) > limits.MaxChatContent {
		apiutil.Error(w, http.StatusBadRequest, "message content is too long")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msg, err := h.Engine.PostChat(ctx, id, userID, req.Content, req.Attachments)
	if err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}
	apiutil.JSON(w, http.StatusCreated, msg)
}

// voteRequest is the JSON body for POST /api/groups/{id}/votes.
type voteRequest struct {
	Topic  string `json:"topic"`
	Choice string `json:"choice"`
}

// HandleVote records the calling member's vote on a topic.
func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Topic == "" || req.Choice == "" {
		apiutil.Error(w, http.StatusBadRequest, "topic and choice are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Engine.CastVote(ctx, id, userID, req.Topic, req.Choice); err != nil {
		apiutil.EngineError(w, err, h.Log)
		return
	}
	apiutil.JSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}
