package engine

import (
	"testing"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func contributionGroup(n int) models.Group {
	g := models.Group{ID: primitive.NewObjectID(), Status: models.GroupStatus{Current: models.GroupActive}}
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		g.Members = append(g.Members, models.GroupMember{
			UserID:   primitive.NewObjectID(),
			Status:   models.MemberActive,
			JoinedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return g
}

func TestRecomputeScores_Equal(t *testing.T) {
	g := contributionGroup(3)
	tpl := models.MissionTemplate{ContributionTracking: models.TrackingEqual}

	recomputeScores(&g, &tpl)

	for i := range g.Members {
		if got := g.Members[i].Contribution.FinalScore; got != 100 {
			t.Errorf("member %d: want score 100, got %v", i, got)
		}
	}
	// Equal scores break ties by join order.
	if g.Members[0].Contribution.Rank != 1 || g.Members[2].Contribution.Rank != 3 {
		t.Errorf("tie-break by join order failed: ranks %d, %d, %d",
			g.Members[0].Contribution.Rank,
			g.Members[1].Contribution.Rank,
			g.Members[2].Contribution.Rank)
	}
}

func TestRecomputeScores_ActivityNormalizesToTop(t *testing.T) {
	g := contributionGroup(3)
	g.Members[0].ActivityLog = []models.ActivityEntry{{ActivityScore: 10}, {ActivityScore: 10}}
	g.Members[1].ActivityLog = []models.ActivityEntry{{ActivityScore: 10}}
	tpl := models.MissionTemplate{ContributionTracking: models.TrackingActivity}

	recomputeScores(&g, &tpl)

	if got := g.Members[0].Contribution.FinalScore; got != 100 {
		t.Errorf("top scorer: want 100, got %v", got)
	}
	if got := g.Members[1].Contribution.FinalScore; got != 50 {
		t.Errorf("half scorer: want 50, got %v", got)
	}
	if got := g.Members[2].Contribution.FinalScore; got != 0 {
		t.Errorf("idle member: want 0, got %v", got)
	}
	if g.Members[0].Contribution.Rank != 1 || g.Members[2].Contribution.Rank != 3 {
		t.Error("ranks should follow activity scores")
	}
}

func TestRecomputeScores_ActivityAllZero(t *testing.T) {
	g := contributionGroup(2)
	tpl := models.MissionTemplate{ContributionTracking: models.TrackingActivity}

	recomputeScores(&g, &tpl)

	for i := range g.Members {
		if got := g.Members[i].Contribution.FinalScore; got != 100 {
			t.Errorf("member %d: want 100 when nobody has activity, got %v", i, got)
		}
	}
}

func TestRecomputeScores_PeerRatings(t *testing.T) {
	g := contributionGroup(2)
	rater := primitive.NewObjectID()
	g.Members[0].Contribution.PeerRatings = []models.Rating{
		{RaterID: rater, Value: 5},
		{RaterID: primitive.NewObjectID(), Value: 3},
	}
	tpl := models.MissionTemplate{ContributionTracking: models.TrackingPeerRating}

	recomputeScores(&g, &tpl)

	// (5+3)/2 = 4 of 5 -> 80
	if got := g.Members[0].Contribution.FinalScore; got != 80 {
		t.Errorf("rated member: want 80, got %v", got)
	}
	if got := g.Members[1].Contribution.FinalScore; got != 0 {
		t.Errorf("unrated member: want 0, got %v", got)
	}
}

func TestRecomputeScores_Percentiles(t *testing.T) {
	g := contributionGroup(4)
	for i := range g.Members {
		g.Members[i].ActivityLog = []models.ActivityEntry{{ActivityScore: float64(40 - 10*i)}}
	}
	tpl := models.MissionTemplate{ContributionTracking: models.TrackingActivity}

	recomputeScores(&g, &tpl)

	wantPercentiles := []int{100, 75, 50, 25}
	for i, want := range wantPercentiles {
		if got := g.Members[i].Contribution.Percentile; got != want {
			t.Errorf("member %d: want percentile %d, got %d", i, want, got)
		}
	}
}

func TestRecomputeScores_SkipsDepartedMembers(t *testing.T) {
	g := contributionGroup(3)
	g.Members[2].Status = models.MemberLeft
	g.Members[2].Contribution.Rank = 99
	tpl := models.MissionTemplate{ContributionTracking: models.TrackingEqual}

	recomputeScores(&g, &tpl)

	if g.Members[2].Contribution.Rank != 99 {
		t.Error("departed member's contribution should be untouched")
	}
	if g.Members[1].Contribution.Rank != 2 {
		t.Errorf("ranks should cover participating members only, got %d", g.Members[1].Contribution.Rank)
	}
}

func TestRatingAverage(t *testing.T) {
	if got := ratingAverage(nil); got != 0 {
		t.Errorf("empty ratings: want 0, got %v", got)
	}
	ratings := []models.Rating{{Value: 5}, {Value: 5}}
	if got := ratingAverage(ratings); got != 100 {
		t.Errorf("all fives: want 100, got %v", got)
	}
	ratings = []models.Rating{{Value: 1}}
	if got := ratingAverage(ratings); got != 20 {
		t.Errorf("single one: want 20, got %v", got)
	}
}

func TestUpsertRating_ReplacesSameRater(t *testing.T) {
	rater := primitive.NewObjectID()
	ratings := []models.Rating{{RaterID: rater, Value: 2}}

	ratings = upsertRating(ratings, models.Rating{RaterID: rater, Value: 5})
	if len(ratings) != 1 {
		t.Fatalf("expected replacement, got %d ratings", len(ratings))
	}
	if ratings[0].Value != 5 {
		t.Errorf("want updated value 5, got %d", ratings[0].Value)
	}

	ratings = upsertRating(ratings, models.Rating{RaterID: primitive.NewObjectID(), Value: 3})
	if len(ratings) != 2 {
		t.Errorf("expected append for a new rater, got %d ratings", len(ratings))
	}
}
