// internal/app/features/missions/handler.go
package missions

import (
	"github.com/nestforge/missionhub/internal/app/engine"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the missions feature:
// join requests and pending-join cancellation against mission templates.
type Handler struct {
	Engine *engine.Service
	Log    *zap.Logger
}

func NewHandler(svc *engine.Service, logger *zap.Logger) *Handler {
	return &Handler{Engine: svc, Log: logger}
}
