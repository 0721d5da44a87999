// internal/app/engine/scoring.go
package engine

import (
	"context"
	"math"
	"sort"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// scoreStrategy computes each member's final contribution score on a
// 0-100 scale. The strategy is selected once per recompute from the
// template's contribution-tracking mode.
type scoreStrategy interface {
	apply(members []*models.GroupMember)
}

func strategyFor(t *models.MissionTemplate) scoreStrategy {
	switch t.ContributionTracking {
	case models.TrackingActivity:
		return activityScoring{}
	case models.TrackingPeerRating:
		return peerScoring{}
	case models.TrackingLeaderRating:
		return leaderScoring{}
	default:
		return equalScoring{}
	}
}

// equalScoring gives every member the same full score.
type equalScoring struct{}

func (equalScoring) apply(members []*models.GroupMember) {
	for _, m := range members {
		m.Contribution.FinalScore = 100
	}
}

// activityScoring sums activity-log scores and normalizes so the top
// scorer lands on 100. A group with no recorded activity at all scores
// everyone 100 rather than dividing by zero.
type activityScoring struct{}

func (activityScoring) apply(members []*models.GroupMember) {
	max := 0.0
	for _, m := range members {
		total := 0.0
		for _, e := range m.ActivityLog {
			total += e.ActivityScore
		}
		m.Contribution.AutoScore = total
		if total > max {
			max = total
		}
	}
	if max == 0 {
		for _, m := range members {
			m.Contribution.FinalScore = 100
		}
		return
	}
	for _, m := range members {
		m.Contribution.FinalScore = m.Contribution.AutoScore / max * 100
	}
}

// peerScoring averages received 1-5 peer ratings onto a 0-100 scale;
// a member with no ratings scores 0.
type peerScoring struct{}

func (peerScoring) apply(members []*models.GroupMember) {
	for _, m := range members {
		m.Contribution.PeerScore = ratingAverage(m.Contribution.PeerRatings)
		m.Contribution.FinalScore = m.Contribution.PeerScore
	}
}

// leaderScoring works like peerScoring over leader ratings.
type leaderScoring struct{}

func (leaderScoring) apply(members []*models.GroupMember) {
	for _, m := range members {
		m.Contribution.LeaderScore = ratingAverage(m.Contribution.LeaderRatings)
		m.Contribution.FinalScore = m.Contribution.LeaderScore
	}
}

func ratingAverage(ratings []models.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Value
	}
	return float64(sum) / float64(len(ratings)) / 5 * 100
}

// recomputeScores refreshes every participating member's contribution
// score, rank, and percentile. It is a pure derived-state refresh: it
// runs after activity or rating changes and never gates the update that
// triggered it.
func recomputeScores(g *models.Group, t *models.MissionTemplate) {
	members := g.ParticipatingMembers()
	if len(members) == 0 {
		return
	}

	strategyFor(t).apply(members)

	ranked := make([]*models.GroupMember, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Contribution.FinalScore != ranked[j].Contribution.FinalScore {
			return ranked[i].Contribution.FinalScore > ranked[j].Contribution.FinalScore
		}
		return ranked[i].JoinedAt.Before(ranked[j].JoinedAt)
	})

	n := len(ranked)
	for i, m := range ranked {
		m.Contribution.Rank = i + 1
		m.Contribution.Percentile = int(math.Round(float64(n-i) / float64(n) * 100))
	}
}

// SubmitRating records a 1-5 rating. Under peer_rating any member rates
// any other member; under leader_rating only the leader rates. A rater
// re-rating the same target replaces their earlier rating. The
// contribution standings refresh as a follow-up.
func (s *Service) SubmitRating(ctx context.Context, groupID, raterID, targetID primitive.ObjectID, value int) error {
	if value < 1 || value > 5 {
		return ErrInvalidRating
	}
	_, err := s.mutateGroup(ctx, groupID, func(g *models.Group, t *models.MissionTemplate) error {
		if g.Terminal() {
			return ErrGroupTerminal
		}
		if raterID == targetID {
			return ErrSelfRating
		}
		target := g.Member(targetID)
		if target == nil || !target.Participating() {
			return ErrTargetNotFound
		}

		rating := models.Rating{RaterID: raterID, Value: value, RatedAt: s.now()}
		switch t.ContributionTracking {
		case models.TrackingPeerRating:
			rater := g.Member(raterID)
			if rater == nil || !rater.Participating() {
				return ErrNotMember
			}
			target.Contribution.PeerRatings = upsertRating(target.Contribution.PeerRatings, rating)
		case models.TrackingLeaderRating:
			if g.LeaderID != raterID {
				return ErrNotLeader
			}
			target.Contribution.LeaderRatings = upsertRating(target.Contribution.LeaderRatings, rating)
		default:
			return ErrRatingMode
		}

		recomputeScores(g, t)
		return nil
	})
	return err
}

func upsertRating(ratings []models.Rating, r models.Rating) []models.Rating {
	for i := range ratings {
		if ratings[i].RaterID == r.RaterID {
			ratings[i] = r
			return ratings
		}
	}
	return append(ratings, r)
}
