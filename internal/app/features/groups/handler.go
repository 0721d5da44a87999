// internal/app/features/groups/handler.go
package groups

import (
	"github.com/nestforge/missionhub/internal/app/engine"
	groupstore "github.com/nestforge/missionhub/internal/app/store/groups"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
// Mutating endpoints go through the engine so aggregate invariants
// hold; read endpoints go straight to the store.
type Handler struct {
	Engine *engine.Service
	Groups *groupstore.Store
	Log    *zap.Logger
}

func NewHandler(svc *engine.Service, groups *groupstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Engine: svc, Groups: groups, Log: logger}
}
