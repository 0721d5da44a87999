// internal/app/features/groups/view.go
package groups

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/nestforge/missionhub/internal/app/system/apiutil"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// groupID parses the {id} URL parameter.
func groupID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apiutil.Error(w, http.StatusBadRequest, "invalid group id")
		return primitive.NilObjectID, false
	}
	return id, true
}

// ServeGroup handles GET /api/groups/{id}.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Groups.GetByID(ctx, id)
	if err != nil {
		apiutil.Error(w, http.StatusNotFound, "group not found")
		return
	}
	apiutil.JSON(w, http.StatusOK, g)
}

// standingRow is one member's contribution standing.
type standingRow struct {
	UserID     string  `json:"user_id"`
	Status     string  `json:"status"`
	FinalScore float64 `json:"final_score"`
	Rank       int     `json:"rank"`
	Percentile int     `json:"percentile"`
}

// ServeStandings handles GET /api/groups/{id}/standings: the members
// ordered by contribution rank.
func (h *Handler) ServeStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Groups.GetByID(ctx, id)
	if err != nil {
		apiutil.Error(w, http.StatusNotFound, "group not found")
		return
	}

	rows := make([]standingRow, 0, len(g.Members))
	for _, m := range g.ParticipatingMembers() {
		rows = append(rows, standingRow{
			UserID:     m.UserID.Hex(),
			Status:     m.Status,
			FinalScore: m.Contribution.FinalScore,
			Rank:       m.Contribution.Rank,
			Percentile: m.Contribution.Percentile,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })

	h.Log.Debug("served standings",
		zap.String("group_id", id.Hex()),
		zap.Int("members", len(rows)))
	apiutil.JSON(w, http.StatusOK, map[string]any{
		"group_id":  id.Hex(),
		"standings": rows,
	})
}
