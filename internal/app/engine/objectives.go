// internal/app/engine/objectives.go
package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Progress scopes.
const (
	ScopeGroup  = "group"
	ScopeMember = "member"
)

// ProgressResult reports what a progress update changed.
type ProgressResult struct {
	Delta                float64 `json:"delta"`
	Progress             float64 `json:"progress"`
	ObjectiveCompleted   bool    `json:"objective_completed"`
	CompletionPercentage float64 `json:"completion_percentage"`
	GroupCompleted       bool    `json:"group_completed"`
}

// ApplyProgress sets an objective's progress to newValue, clamped to
// [0, target]. The computed delta is appended to the objective's
// history; a zero delta is a no-op. Completion is latched: once an
// objective reaches its target it stays completed. After every change
// the group's completion percentage is recomputed from current state,
// and reaching 100% fires the completed transition and settlement.
//
// Member scope targets the acting user's own objective, credits an
// activity-log entry for the contribution scorer, and marks the member
// completed once all of their own objectives are done.
func (s *Service) ApplyProgress(ctx context.Context, groupID primitive.ObjectID, scope, objectiveID string, newValue float64, actingUserID primitive.ObjectID, note string) (ProgressResult, error) {
	var res ProgressResult
	g, err := s.mutateGroup(ctx, groupID, func(g *models.Group, t *models.MissionTemplate) error {
		if g.Status.Current != models.GroupActive {
			return ErrGroupNotActive
		}
		actor := g.Member(actingUserID)
		if actor == nil || !actor.Participating() {
			return ErrNotMember
		}

		var obj *models.Objective
		switch scope {
		case ScopeGroup:
			obj = g.GroupObjective(objectiveID)
		case ScopeMember:
			obj = actor.Objective(objectiveID)
		default:
			return fmt.Errorf("invalid progress scope %q", scope)
		}
		if obj == nil {
			return ErrObjectiveNotFound
		}

		now := s.now()
		clamped := math.Max(0, math.Min(newValue, obj.Target))
		delta := clamped - obj.Progress
		if delta == 0 {
			res = ProgressResult{
				Progress:             obj.Progress,
				ObjectiveCompleted:   obj.Completed,
				CompletionPercentage: g.Status.CompletionPercentage,
			}
			return errSkipSave
		}
		if delta < 0 && note == "" {
			// Progress never regresses silently: corrections carry a note.
			return fmt.Errorf("progress corrections require a note")
		}

		obj.Progress = clamped
		obj.History = append(obj.History, models.ProgressDelta{
			Timestamp:     now,
			Delta:         delta,
			TotalProgress: clamped,
			ActingUserID:  actingUserID,
			Note:          note,
		})
		if scope == ScopeGroup {
			obj.ProgressPercentage = obj.Ratio() * 100
		}

		completedNow := false
		if !obj.Completed && obj.Progress >= obj.Target {
			obj.Completed = true
			obj.CompletedAt = &now
			completedNow = true
		}

		if scope == ScopeMember {
			actor.ActivityLog = append(actor.ActivityLog, models.ActivityEntry{
				Type:          "objective_progress",
				ActivityScore: math.Max(delta, 1),
				Timestamp:     now,
				Note:          note,
			})
			if !actor.Completed && allObjectivesDone(actor.Objectives) {
				actor.Completed = true
				actor.CompletedAt = &now
				actor.Status = models.MemberCompleted
			}
			// Derived standings refresh; never gates the update itself.
			recomputeScores(g, t)
		}

		pct := completionPercentage(g, t)
		g.Status.CompletionPercentage = pct

		groupDone := false
		if pct >= 100 && g.Status.Current == models.GroupActive {
			completeGroup(g, t, now)
			groupDone = true
		}

		res = ProgressResult{
			Delta:                delta,
			Progress:             obj.Progress,
			ObjectiveCompleted:   completedNow || obj.Completed,
			CompletionPercentage: pct,
			GroupCompleted:       groupDone,
		}
		return nil
	})
	if err != nil {
		return ProgressResult{}, err
	}

	if res.GroupCompleted {
		s.log.Info("group completed mission",
			zap.String("group_id", g.ID.Hex()),
			zap.Bool("early", g.Status.CompletedEarly),
			zap.Int("days_early", g.Status.DaysCompletedEarly))
		s.notify(ctx, models.Notification{
			Type:    models.NotifyGroupCompleted,
			Title:   "Mission complete",
			Content: fmt.Sprintf("Group %q completed its mission objectives.", g.Name),
			GroupID: g.ID,
		})
		if err := s.Settle(ctx, g.ID); err != nil {
			// Settlement retries through the outbox sweep; the progress
			// update itself has landed.
			s.log.Error("settlement after completion failed",
				zap.String("group_id", g.ID.Hex()),
				zap.Error(err))
		}
	}
	return res, nil
}

// allObjectivesDone reports whether every required objective in the
// slice is complete. Optional objectives never hold completion back.
func allObjectivesDone(objectives []models.Objective) bool {
	for i := range objectives {
		if objectives[i].Optional {
			continue
		}
		if !objectives[i].Completed {
			return false
		}
	}
	return true
}

// completionPercentage recomputes the group's aggregate completion from
// current objective state, per the template's criterion. The pool is
// every required objective: the group's plus each participating
// member's.
//
//   - all: the average of each objective's min(progress/target, 1).
//   - percentage: completed count over ceil(total * threshold / 100),
//     capped at 1. Partial objective progress deliberately earns no
//     credit under this criterion; only fully completed objectives
//     count.
func completionPercentage(g *models.Group, t *models.MissionTemplate) float64 {
	objectives := requiredObjectives(g)
	if len(objectives) == 0 {
		return 0
	}

	switch t.CompletionCriteria {
	case models.CriteriaPercentage:
		threshold := t.CompletionPercentage
		if threshold <= 0 {
			threshold = 100
		}
		required := int(math.Ceil(float64(len(objectives)) * float64(threshold) / 100))
		if required < 1 {
			required = 1
		}
		done := 0
		for _, o := range objectives {
			if o.Completed {
				done++
			}
		}
		return math.Min(float64(done)/float64(required), 1) * 100
	default: // all
		total := 0.0
		for _, o := range objectives {
			total += o.Ratio()
		}
		return total / float64(len(objectives)) * 100
	}
}

// requiredObjectives gathers the group's non-optional objectives plus
// those of every participating member.
func requiredObjectives(g *models.Group) []*models.Objective {
	var out []*models.Objective
	for i := range g.GroupObjectives {
		if !g.GroupObjectives[i].Optional {
			out = append(out, &g.GroupObjectives[i])
		}
	}
	for _, m := range g.ParticipatingMembers() {
		for i := range m.Objectives {
			if !m.Objectives[i].Optional {
				out = append(out, &m.Objectives[i])
			}
		}
	}
	return out
}
