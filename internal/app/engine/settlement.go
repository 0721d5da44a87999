// internal/app/engine/settlement.go
package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Settle computes and records the reward events for a completed group.
// It runs once per group: a group whose rewards are already paid is
// skipped, and the outbox's unique event ids make a crashed retry safe
// to re-run without double payment.
//
// Events are inserted into the outbox before reward_paid is set, so the
// flag is never true without the reward records existing. The dispatch
// job then delivers them to the external reward/mint sink at least
// once; this component never touches blockchain code.
func (s *Service) Settle(ctx context.Context, groupID primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return ErrGroupNotFound
	}
	if g.Status.Current != models.GroupCompleted {
		return fmt.Errorf("cannot settle group in state %q", g.Status.Current)
	}
	if g.Rewards.RewardPaid {
		s.log.Debug("settlement skipped, already paid",
			zap.String("group_id", groupID.Hex()))
		return nil
	}

	t, err := s.templates.GetByID(ctx, g.TemplateID)
	if err != nil {
		return ErrTemplateNotFound
	}

	events := computeSettlement(&g, &t)
	if err := s.rewards.InsertBatch(ctx, events); err != nil {
		return fmt.Errorf("write reward events: %w", err)
	}

	_, err = s.mutateGroup(ctx, groupID, func(g *models.Group, _ *models.MissionTemplate) error {
		if g.Rewards.RewardPaid {
			return errSkipSave
		}
		now := s.now()
		g.Rewards.RewardPaid = true
		g.Rewards.PaidAt = &now
		for _, ev := range events {
			g.Rewards.EventIDs = append(g.Rewards.EventIDs, ev.EventID)
		}
		for _, m := range g.ParticipatingMembers() {
			m.RewardSettled = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("group settled",
		zap.String("group_id", groupID.Hex()),
		zap.Int("reward_events", len(events)))
	s.notify(ctx, models.Notification{
		Type:    models.NotifyRewardDue,
		Title:   "Rewards on the way",
		Content: fmt.Sprintf("Rewards for group %q have been queued for payout.", g.Name),
		GroupID: g.ID,
	})
	return nil
}

// settlementNamespace scopes the deterministic reward event ids.
var settlementNamespace = uuid.MustParse("8f4e5d2a-6c1b-4f3e-9a7d-2b8c0e5f1a94")

// rewardEventID derives a stable UUID for one (group, member, reason)
// reward so that two settlement attempts produce the same event id and
// the outbox's unique index drops the duplicate.
func rewardEventID(groupID primitive.ObjectID, memberID *primitive.ObjectID, reason string) string {
	name := groupID.Hex() + "/" + reason
	if memberID != nil {
		name = groupID.Hex() + "/" + memberID.Hex() + "/" + reason
	}
	return uuid.NewSHA1(settlementNamespace, []byte(name)).String()
}

// computeSettlement derives the full reward-event batch for a completed
// group: per-member base rewards plus the group pool split by the
// template's distribution method, then the additive bonuses.
func computeSettlement(g *models.Group, t *models.MissionTemplate) []models.RewardEvent {
	members := g.ParticipatingMembers()
	if len(members) == 0 {
		return nil
	}

	shares := poolShares(members, t.Rewards.Distribution)

	var events []models.RewardEvent
	for i, m := range members {
		id := m.UserID
		ev := models.RewardEvent{
			EventID:     rewardEventID(g.ID, &id, models.RewardBase),
			GroupID:     g.ID,
			MemberID:    &id,
			XP:          t.Rewards.MemberXP + int64(math.Round(float64(t.Rewards.GroupXP)*shares[i])),
			TokenAmount: t.Rewards.MemberTokens + int64(math.Round(float64(t.Rewards.GroupTokens)*shares[i])),
			Reason:      models.RewardBase,
		}
		if t.Rewards.NFTEnabled {
			ev.NFTRequested = true
			ev.NFTRarity = t.Rewards.NFTRarity
		}
		events = append(events, ev)
	}

	bonuses := t.Rewards.Bonuses
	if bonuses.FullCompletion != nil && fullyComplete(g) {
		for _, m := range members {
			id := m.UserID
			events = append(events, models.RewardEvent{
				EventID:     rewardEventID(g.ID, &id, models.RewardFullCompletion),
				GroupID:     g.ID,
				MemberID:    &id,
				XP:          bonuses.FullCompletion.XP,
				TokenAmount: bonuses.FullCompletion.TokenAmount,
				Reason:      models.RewardFullCompletion,
			})
		}
	}
	if bonuses.EarlyCompletion != nil && g.Status.CompletedEarly {
		for _, m := range members {
			id := m.UserID
			events = append(events, models.RewardEvent{
				EventID:     rewardEventID(g.ID, &id, models.RewardEarly),
				GroupID:     g.ID,
				MemberID:    &id,
				XP:          bonuses.EarlyCompletion.XP,
				TokenAmount: bonuses.EarlyCompletion.TokenAmount,
				Reason:      models.RewardEarly,
			})
		}
	}
	if tc := bonuses.TopContributor; tc != nil && tc.TopPercent > 0 {
		for _, m := range members {
			if m.Contribution.Percentile <= 100-tc.TopPercent {
				continue
			}
			id := m.UserID
			events = append(events, models.RewardEvent{
				EventID:     rewardEventID(g.ID, &id, models.RewardTopContributor),
				GroupID:     g.ID,
				MemberID:    &id,
				XP:          tc.XP,
				TokenAmount: tc.TokenAmount,
				Reason:      models.RewardTopContributor,
			})
		}
	}
	return events
}

// poolShares returns each member's fraction of the group reward pool.
// equal splits evenly; contribution_based splits proportionally to
// final scores, falling back to an even split when every score is zero.
func poolShares(members []*models.GroupMember, distribution string) []float64 {
	shares := make([]float64, len(members))

	if distribution == models.DistributionContribution {
		total := 0.0
		for _, m := range members {
			total += m.Contribution.FinalScore
		}
		if total > 0 {
			for i, m := range members {
				shares[i] = m.Contribution.FinalScore / total
			}
			return shares
		}
	}

	for i := range shares {
		shares[i] = 1 / float64(len(members))
	}
	return shares
}

// fullyComplete reports whether every required objective, group-level
// and per member, is complete.
func fullyComplete(g *models.Group) bool {
	if !allObjectivesDone(g.GroupObjectives) {
		return false
	}
	for _, m := range g.ParticipatingMembers() {
		if !allObjectivesDone(m.Objectives) {
			return false
		}
	}
	return true
}

// DispatchRewards pushes undelivered outbox events to the configured
// sink. At-least-once: an event is marked dispatched only after the
// sink accepted it, and a sink failure just bumps the attempt counter
// for the next sweep.
func (s *Service) DispatchRewards(ctx context.Context, batchSize int64) (int, error) {
	events, err := s.rewards.FindUndispatched(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range events {
		if err := s.sink.Emit(ctx, ev); err != nil {
			if rerr := s.rewards.RecordAttempt(ctx, ev.EventID); rerr != nil {
				s.log.Error("failed to record dispatch attempt",
					zap.String("event_id", ev.EventID), zap.Error(rerr))
			}
			continue
		}
		if err := s.rewards.MarkDispatched(ctx, ev.EventID); err != nil {
			// The sink saw the event; the consumer dedupes on event_id
			// when the next sweep re-emits it.
			s.log.Error("failed to mark reward event dispatched",
				zap.String("event_id", ev.EventID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
