// internal/app/engine/lifecycle.go
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ActivateGroup fires the forming -> active transition for an operator
// or leader action. The same transition runs automatically when the
// batch-matching sweep flushes a mission.
func (s *Service) ActivateGroup(ctx context.Context, groupID, actingUserID primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return ErrGroupNotFound
	}
	if g.LeaderID != actingUserID {
		return ErrNotLeader
	}
	return s.activate(ctx, groupID)
}

func (s *Service) activate(ctx context.Context, groupID primitive.ObjectID) error {
	g, err := s.mutateGroup(ctx, groupID, func(g *models.Group, t *models.MissionTemplate) error {
		if g.Status.Current == models.GroupActive {
			return errSkipSave // already activated, e.g. by a concurrent sweep
		}
		if g.Status.Current != models.GroupForming {
			return ErrGroupNotForming
		}
		if g.CountedMembers() < t.GroupSize.Min {
			return ErrBelowMinimumMembers
		}

		now := s.now()
		g.Status.Current = models.GroupActive
		g.Status.StartedAt = &now
		for i := range g.Members {
			switch g.Members[i].Status {
			case models.MemberPending, models.MemberInvited:
				g.Members[i].Status = models.MemberActive
			}
		}
		if len(g.StageProgress) > 0 && g.StageProgress[0].Status == models.StageNotStarted {
			g.StageProgress[0].Status = models.StageInProgress
			g.StageProgress[0].StartedAt = &now
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("group activated",
		zap.String("group_id", groupID.Hex()),
		zap.Int("members", g.CountedMembers()))
	s.notify(ctx, models.Notification{
		Type:    models.NotifyGroupActivated,
		Title:   "Group is active",
		Content: fmt.Sprintf("Group %q has enough members and the mission has begun.", g.Name),
		GroupID: g.ID,
	})
	return nil
}

// PauseGroup suspends an active group; only the leader may pause.
func (s *Service) PauseGroup(ctx context.Context, groupID, actingUserID primitive.ObjectID) error {
	_, err := s.mutateGroup(ctx, groupID, func(g *models.Group, _ *models.MissionTemplate) error {
		if g.LeaderID != actingUserID {
			return ErrNotLeader
		}
		if g.Status.Current != models.GroupActive {
			return ErrGroupNotActive
		}
		g.Status.Current = models.GroupPaused
		return nil
	})
	return err
}

// ResumeGroup returns a paused group to active; only the leader may resume.
func (s *Service) ResumeGroup(ctx context.Context, groupID, actingUserID primitive.ObjectID) error {
	_, err := s.mutateGroup(ctx, groupID, func(g *models.Group, _ *models.MissionTemplate) error {
		if g.LeaderID != actingUserID {
			return ErrNotLeader
		}
		if g.Status.Current != models.GroupPaused {
			return fmt.Errorf("%w: group is %s, not paused", ErrGroupNotActive, g.Status.Current)
		}
		g.Status.Current = models.GroupActive
		return nil
	})
	return err
}

// LeaveGroup removes the calling member. Leaving is always available
// and never blocked by concurrent recomputation; if the leaver led the
// group, leadership passes to the earliest-joined remaining active
// member, and a group left with no active members disbands.
func (s *Service) LeaveGroup(ctx context.Context, groupID, userID primitive.ObjectID, reason string) error {
	return s.removeMember(ctx, groupID, userID, models.MemberLeft, reason)
}

// KickMember removes a member by leader action.
func (s *Service) KickMember(ctx context.Context, groupID, leaderID, targetID primitive.ObjectID, reason string) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return ErrGroupNotFound
	}
	if g.LeaderID != leaderID {
		return ErrNotLeader
	}
	if leaderID == targetID {
		return ErrTargetNotFound // leaders step down by leaving, not self-kicking
	}
	return s.removeMember(ctx, groupID, targetID, models.MemberKicked, reason)
}

func (s *Service) removeMember(ctx context.Context, groupID, userID primitive.ObjectID, newStatus, reason string) error {
	var disbanded bool
	var changedLeader bool
	g, err := s.mutateGroup(ctx, groupID, func(g *models.Group, t *models.MissionTemplate) error {
		if g.Terminal() {
			return ErrGroupTerminal
		}
		m := g.Member(userID)
		if m == nil || !m.Counted() {
			return ErrTargetNotFound
		}

		now := s.now()
		m.Status = newStatus
		m.LeftAt = &now
		m.LeftWhy = reason

		disbanded, changedLeader = false, false
		if g.LeaderID == userID {
			why := "leader left the group"
			if newStatus == models.MemberKicked {
				why = "leader removed"
			}
			disbanded = succeedLeader(g, why, now)
			changedLeader = !disbanded
		}

		// Contribution standings change with membership.
		recomputeScores(g, t)
		return nil
	})
	if err != nil {
		return err
	}

	if changedLeader {
		s.notify(ctx, models.Notification{
			Type:    models.NotifyLeaderChanged,
			Title:   "New group leader",
			Content: fmt.Sprintf("Leadership of group %q was reassigned.", g.Name),
			UserID:  &g.LeaderID,
			GroupID: g.ID,
		})
	}
	if disbanded {
		s.log.Info("group disbanded", zap.String("group_id", g.ID.Hex()))
		s.notify(ctx, models.Notification{
			Type:    models.NotifyGroupDisbanded,
			Title:   "Group disbanded",
			Content: fmt.Sprintf("Group %q has no remaining active members and was disbanded.", g.Name),
			GroupID: g.ID,
		})
	}
	return nil
}

// succeedLeader reassigns leadership to the earliest-joined remaining
// active member and logs the succession. When no active member remains
// the group becomes a disbanded tombstone; the return value reports
// that case.
func succeedLeader(g *models.Group, reason string, now time.Time) bool {
	var heir *models.GroupMember
	for _, m := range g.ActiveMembers() {
		if heir == nil || m.JoinedAt.Before(heir.JoinedAt) {
			heir = m
		}
	}

	if heir == nil {
		g.Status.Current = models.GroupDisbanded
		g.LeaderHistory = append(g.LeaderHistory, models.LeaderChange{
			UserID:     g.LeaderID,
			AssignedAt: now,
			Reason:     "disbanded: " + reason,
		})
		return true
	}

	g.LeaderID = heir.UserID
	g.LeaderHistory = append(g.LeaderHistory, models.LeaderChange{
		UserID:     heir.UserID,
		AssignedAt: now,
		Reason:     reason,
	})
	return false
}

// AdvanceStage completes the current in-progress stage and starts the
// next one; leader only. Stages that require the previous stage cannot
// start before it completes, which holds structurally because stages
// advance strictly in order.
func (s *Service) AdvanceStage(ctx context.Context, groupID, actingUserID primitive.ObjectID) error {
	_, err := s.mutateGroup(ctx, groupID, func(g *models.Group, t *models.MissionTemplate) error {
		if g.LeaderID != actingUserID {
			return ErrNotLeader
		}
		if g.Status.Current != models.GroupActive {
			return ErrGroupNotActive
		}
		if len(g.StageProgress) == 0 {
			return ErrNoStages
		}

		now := s.now()
		for i := range g.StageProgress {
			if g.StageProgress[i].Status != models.StageInProgress {
				continue
			}
			g.StageProgress[i].Status = models.StageCompleted
			g.StageProgress[i].CompletedAt = &now
			if i+1 < len(g.StageProgress) {
				g.StageProgress[i+1].Status = models.StageInProgress
				g.StageProgress[i+1].StartedAt = &now
			}
			return nil
		}
		return fmt.Errorf("%w: no stage in progress", ErrNoStages)
	})
	return err
}

// completeGroup performs the single active -> completed transition. The
// caller has already verified the completion criterion.
func completeGroup(g *models.Group, t *models.MissionTemplate, now time.Time) {
	g.Status.Current = models.GroupCompleted
	g.Status.CompletedAt = &now

	if now.Before(t.EndDate) {
		g.Status.CompletedEarly = true
		g.Status.DaysCompletedEarly = int(math.Ceil(t.EndDate.Sub(now).Hours() / 24))
	}

	for i := range g.StageProgress {
		if g.StageProgress[i].Status == models.StageInProgress {
			g.StageProgress[i].Status = models.StageCompleted
			g.StageProgress[i].CompletedAt = &now
		}
	}
}

// CheckDeadlines fails every active or paused group whose mission end
// date has passed without the completion criterion being met. Driven by
// the periodic sweep; idempotent.
func (s *Service) CheckDeadlines(ctx context.Context, now time.Time) (int, error) {
	failed := 0
	for _, status := range []string{models.GroupActive, models.GroupPaused} {
		groups, err := s.groups.FindByStatus(ctx, status)
		if err != nil {
			return failed, err
		}
		for i := range groups {
			id := groups[i].ID
			g, err := s.mutateGroup(ctx, id, func(g *models.Group, t *models.MissionTemplate) error {
				if g.Terminal() || now.Before(t.EndDate) {
					return errSkipSave
				}
				g.Status.Current = models.GroupFailed
				return nil
			})
			if err != nil {
				s.log.Error("deadline check failed for group",
					zap.String("group_id", id.Hex()),
					zap.Error(err))
				continue
			}
			if g.Status.Current == models.GroupFailed {
				failed++
				s.notify(ctx, models.Notification{
					Type:    models.NotifyGroupFailed,
					Title:   "Mission failed",
					Content: fmt.Sprintf("Group %q did not complete its objectives before the deadline.", g.Name),
					GroupID: g.ID,
				})
			}
		}
	}
	return failed, nil
}
