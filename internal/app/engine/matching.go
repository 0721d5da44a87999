// internal/app/engine/matching.go
package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// pickCandidate selects the forming group a joining user should land
// in, or nil when none qualifies.
//
// Scoring rules, applied over groups with spare capacity:
//   - byInterest: average overlapping-interest count between the user
//     and each active member; the highest average wins, but only if the
//     score is positive.
//   - byLevel: 10 - min(|avg group level - user level|, 10); a group is
//     accepted only when its score exceeds 5.
//   - When no enabled criterion accepts a group, fall back to the group
//     with the most counted members, i.e. the one closest to reaching
//     viable size.
func pickCandidate(groups []models.Group, t *models.MissionTemplate, profile JoinProfile) *models.Group {
	var open []*models.Group
	for i := range groups {
		g := &groups[i]
		if g.Status.Current == models.GroupForming && g.CountedMembers() < t.GroupSize.Max {
			open = append(open, g)
		}
	}
	if len(open) == 0 {
		return nil
	}

	if t.Matching.ByInterest {
		if g := bestByInterest(open, profile); g != nil {
			return g
		}
	}
	if t.Matching.ByLevel {
		if g := bestByLevel(open, profile); g != nil {
			return g
		}
	}

	// Fastest to minimum viable size.
	best := open[0]
	for _, g := range open[1:] {
		if g.CountedMembers() > best.CountedMembers() {
			best = g
		}
	}
	return best
}

func bestByInterest(open []*models.Group, profile JoinProfile) *models.Group {
	var best *models.Group
	bestScore := 0.0
	for _, g := range open {
		active := g.ActiveMembers()
		if len(active) == 0 {
			continue
		}
		total := 0.0
		for _, m := range active {
			total += float64(overlapCount(profile.Interests, m.Interests))
		}
		score := total / float64(len(active))
		if score > bestScore {
			bestScore = score
			best = g
		}
	}
	return best
}

func bestByLevel(open []*models.Group, profile JoinProfile) *models.Group {
	var best *models.Group
	bestScore := 5.0 // acceptance threshold: score must exceed 5
	for _, g := range open {
		active := g.ActiveMembers()
		if len(active) == 0 {
			continue
		}
		sum := 0.0
		for _, m := range active {
			sum += float64(m.Level)
		}
		avg := sum / float64(len(active))
		score := 10 - math.Min(math.Abs(avg-float64(profile.Level)), 10)
		if score > bestScore {
			bestScore = score
			best = g
		}
	}
	return best
}

func overlapCount(a, b []string) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				n++
				break
			}
		}
	}
	return n
}

// RunBatchMatching flushes the pending pools of every auto-match
// mission whose formation deadline has passed: each queued user is
// placed with the same scoring rules used by immediate joins, groups
// that reached minimum size are activated, and the mission advances to
// in_progress. Idempotent: missions with nothing pending are no-ops,
// and a user resolved by a concurrent cancel is skipped.
func (s *Service) RunBatchMatching(ctx context.Context, now time.Time) (int, error) {
	due, err := s.templates.FindDueForMatching(ctx, now)
	if err != nil {
		return 0, err
	}

	matched := 0
	for i := range due {
		n, err := s.flushMission(ctx, &due[i])
		matched += n
		if err != nil {
			// Keep sweeping the remaining missions; this one retries
			// on the next tick.
			s.log.Error("batch matching failed for mission",
				zap.String("template_id", due[i].ID.Hex()),
				zap.Error(err))
			continue
		}
		if err := s.templates.MarkInProgress(ctx, due[i].ID); err != nil {
			s.log.Error("failed to advance mission status",
				zap.String("template_id", due[i].ID.Hex()),
				zap.Error(err))
		}
	}
	return matched, nil
}

func (s *Service) flushMission(ctx context.Context, t *models.MissionTemplate) (int, error) {
	pending, err := s.pending.FindOpenByTemplate(ctx, t.ID)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, p := range pending {
		profile := JoinProfile{Level: p.Level, Interests: p.Interests}

		outcome, err := s.matchIntoExisting(ctx, t, p.UserID, profile)
		if errors.Is(err, errNoCandidate) {
			outcome, err = s.selfForm(ctx, t, p.UserID, profile)
		}
		if err != nil {
			s.log.Warn("could not place pending user",
				zap.String("template_id", t.ID.Hex()),
				zap.String("user_id", p.UserID.Hex()),
				zap.Error(err))
			continue
		}

		// Resolve the queue entry; if the user cancelled mid-sweep the
		// resolve loses and we roll the placement back.
		if err := s.pending.Resolve(ctx, t.ID, p.UserID, models.PendingMatched); err != nil {
			s.rollbackPlacement(ctx, outcome, p.UserID)
			continue
		}
		matched++
	}

	// Activate every forming group that reached minimum viable size.
	formed, err := s.groups.FindForming(ctx, t.ID)
	if err != nil {
		return matched, err
	}
	for i := range formed {
		if formed[i].CountedMembers() < t.GroupSize.Min {
			continue
		}
		if err := s.activate(ctx, formed[i].ID); err != nil {
			s.log.Error("failed to activate group after batch matching",
				zap.String("group_id", formed[i].ID.Hex()),
				zap.Error(err))
		}
	}
	return matched, nil
}

// rollbackPlacement removes a user that was placed during the sweep
// after their pending entry turned out to be cancelled.
func (s *Service) rollbackPlacement(ctx context.Context, outcome JoinOutcome, userID primitive.ObjectID) {
	if outcome.GroupID == nil {
		return
	}
	_, err := s.mutateGroup(ctx, *outcome.GroupID, func(g *models.Group, _ *models.MissionTemplate) error {
		m := g.Member(userID)
		if m == nil || !m.Counted() {
			return errSkipSave
		}
		now := s.now()
		m.Status = models.MemberLeft
		m.LeftAt = &now
		m.LeftWhy = "join cancelled during batch matching"
		if g.LeaderID == userID {
			succeedLeader(g, "founder cancelled join", now)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrGroupNotFound) {
		s.log.Error("failed to roll back cancelled placement",
			zap.String("user_id", userID.Hex()),
			zap.Error(err))
	}
}
