// internal/app/features/groups/routes.go
package groups

import (
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// READ
	r.Get("/{id}", h.ServeGroup)
	r.Get("/{id}/standings", h.ServeStandings)

	// LIFECYCLE
	r.Post("/{id}/activate", h.HandleActivate)
	r.Post("/{id}/pause", h.HandlePause)
	r.Post("/{id}/resume", h.HandleResume)
	r.Post("/{id}/advance-stage", h.HandleAdvanceStage)

	// MEMBERSHIP
	r.Post("/{id}/leave", h.HandleLeave)
	r.Post("/{id}/kick", h.HandleKick)

	// PROGRESS & SCORING
	r.Post("/{id}/progress", h.HandleProgress)
	r.Post("/{id}/ratings", h.HandleRating)

	// CHAT & VOTES
	r.Post("/{id}/chat", h.HandleChat)
	r.Post("/{id}/votes", h.HandleVote)

	return r
}
