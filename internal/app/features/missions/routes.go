// internal/app/features/missions/routes.go
package missions

import (
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/{templateID}/join", h.HandleJoin)
	r.Delete("/{templateID}/join", h.HandleCancelJoin)

	return r
}
