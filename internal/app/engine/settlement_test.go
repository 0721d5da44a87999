package engine

import (
	"testing"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func settledGroup(n int) (models.Group, models.MissionTemplate) {
	g := models.Group{
		ID:     primitive.NewObjectID(),
		Status: models.GroupStatus{Current: models.GroupCompleted},
	}
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		g.Members = append(g.Members, models.GroupMember{
			UserID:   primitive.NewObjectID(),
			Status:   models.MemberActive,
			JoinedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	tpl := models.MissionTemplate{
		ID: primitive.NewObjectID(),
		Rewards: models.RewardSchedule{
			GroupXP:      1000,
			GroupTokens:  100,
			MemberXP:     50,
			MemberTokens: 5,
			Distribution: models.DistributionEqual,
		},
	}
	return g, tpl
}

func TestComputeSettlement_EqualSplit(t *testing.T) {
	g, tpl := settledGroup(4)

	events := computeSettlement(&g, &tpl)

	if len(events) != 4 {
		t.Fatalf("want 4 base events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Reason != models.RewardBase {
			t.Errorf("want base reason, got %s", ev.Reason)
		}
		// 50 member XP + 1000/4 pool share
		if ev.XP != 300 {
			t.Errorf("want 300 XP, got %d", ev.XP)
		}
		if ev.TokenAmount != 30 {
			t.Errorf("want 30 tokens, got %d", ev.TokenAmount)
		}
	}
}

func TestComputeSettlement_ContributionSplit(t *testing.T) {
	g, tpl := settledGroup(2)
	tpl.Rewards.Distribution = models.DistributionContribution
	g.Members[0].Contribution.FinalScore = 75
	g.Members[1].Contribution.FinalScore = 25

	events := computeSettlement(&g, &tpl)

	if events[0].XP != 50+750 {
		t.Errorf("75%% contributor: want 800 XP, got %d", events[0].XP)
	}
	if events[1].XP != 50+250 {
		t.Errorf("25%% contributor: want 300 XP, got %d", events[1].XP)
	}
}

func TestComputeSettlement_ContributionAllZeroFallsBackEqual(t *testing.T) {
	g, tpl := settledGroup(2)
	tpl.Rewards.Distribution = models.DistributionContribution

	events := computeSettlement(&g, &tpl)

	for i, ev := range events {
		if ev.XP != 50+500 {
			t.Errorf("member %d: want even split 550 XP, got %d", i, ev.XP)
		}
	}
}

func TestComputeSettlement_NFTFlag(t *testing.T) {
	g, tpl := settledGroup(1)
	tpl.Rewards.NFTEnabled = true
	tpl.Rewards.NFTRarity = "rare"

	events := computeSettlement(&g, &tpl)

	if !events[0].NFTRequested || events[0].NFTRarity != "rare" {
		t.Errorf("NFT request not carried: %+v", events[0])
	}
}

func TestComputeSettlement_Bonuses(t *testing.T) {
	g, tpl := settledGroup(2)
	g.Status.CompletedEarly = true
	g.GroupObjectives = []models.Objective{objective("group-1", 10, 10, false)}
	for i := range g.Members {
		g.Members[i].Objectives = []models.Objective{objective("member-1", 5, 5, false)}
	}
	tpl.Rewards.Bonuses = models.BonusRules{
		FullCompletion:  &models.BonusReward{XP: 100},
		EarlyCompletion: &models.BonusReward{XP: 200},
	}

	events := computeSettlement(&g, &tpl)

	counts := map[string]int{}
	for _, ev := range events {
		counts[ev.Reason]++
	}
	if counts[models.RewardBase] != 2 {
		t.Errorf("want 2 base events, got %d", counts[models.RewardBase])
	}
	if counts[models.RewardFullCompletion] != 2 {
		t.Errorf("want 2 full-completion bonuses, got %d", counts[models.RewardFullCompletion])
	}
	if counts[models.RewardEarly] != 2 {
		t.Errorf("want 2 early bonuses, got %d", counts[models.RewardEarly])
	}
}

func TestComputeSettlement_FullCompletionRequiresEverything(t *testing.T) {
	g, tpl := settledGroup(2)
	g.GroupObjectives = []models.Objective{objective("group-1", 10, 10, false)}
	g.Members[0].Objectives = []models.Objective{objective("member-1", 2, 5, false)}
	tpl.Rewards.Bonuses = models.BonusRules{
		FullCompletion: &models.BonusReward{XP: 100},
	}

	events := computeSettlement(&g, &tpl)

	for _, ev := range events {
		if ev.Reason == models.RewardFullCompletion {
			t.Fatal("full-completion bonus must not pay with an incomplete member objective")
		}
	}
}

func TestComputeSettlement_TopContributor(t *testing.T) {
	g, tpl := settledGroup(4)
	// Percentiles as recomputeScores assigns them for 4 members.
	percentiles := []int{100, 75, 50, 25}
	for i := range g.Members {
		g.Members[i].Contribution.Percentile = percentiles[i]
	}
	tpl.Rewards.Bonuses = models.BonusRules{
		TopContributor: &models.TopContributorBonus{
			BonusReward: models.BonusReward{XP: 500},
			TopPercent:  25,
		},
	}

	events := computeSettlement(&g, &tpl)

	var winners []primitive.ObjectID
	for _, ev := range events {
		if ev.Reason == models.RewardTopContributor {
			winners = append(winners, *ev.MemberID)
		}
	}
	// Only percentile > 75 qualifies for the top 25%.
	if len(winners) != 1 || winners[0] != g.Members[0].UserID {
		t.Errorf("want only the top member, got %d winners", len(winners))
	}
}

func TestComputeSettlement_NoParticipants(t *testing.T) {
	g, tpl := settledGroup(0)
	if events := computeSettlement(&g, &tpl); events != nil {
		t.Errorf("want no events for an empty group, got %d", len(events))
	}
}

func TestRewardEventID_Deterministic(t *testing.T) {
	groupID := primitive.NewObjectID()
	memberID := primitive.NewObjectID()

	a := rewardEventID(groupID, &memberID, models.RewardBase)
	b := rewardEventID(groupID, &memberID, models.RewardBase)
	if a != b {
		t.Error("same inputs must derive the same event id")
	}

	c := rewardEventID(groupID, &memberID, models.RewardEarly)
	if a == c {
		t.Error("different reasons must derive different event ids")
	}

	other := primitive.NewObjectID()
	d := rewardEventID(groupID, &other, models.RewardBase)
	if a == d {
		t.Error("different members must derive different event ids")
	}
}

func TestComputeSettlement_EventIDsStableAcrossRuns(t *testing.T) {
	g, tpl := settledGroup(3)

	first := computeSettlement(&g, &tpl)
	second := computeSettlement(&g, &tpl)

	if len(first) != len(second) {
		t.Fatalf("event counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].EventID != second[i].EventID {
			t.Errorf("event %d: ids differ across identical runs", i)
		}
	}
}
