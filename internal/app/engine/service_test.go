package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	groupstore "github.com/nestforge/missionhub/internal/app/store/groups"
	notificationstore "github.com/nestforge/missionhub/internal/app/store/notifications"
	pendingstore "github.com/nestforge/missionhub/internal/app/store/pendingjoins"
	rewardstore "github.com/nestforge/missionhub/internal/app/store/rewards"
	templatestore "github.com/nestforge/missionhub/internal/app/store/templates"
	"github.com/nestforge/missionhub/internal/domain/models"
	"github.com/nestforge/missionhub/internal/testutil"
)

// testService wires a Service against a throwaway database. Tests that
// call it are skipped when no test MongoDB is reachable.
func testService(t *testing.T) (*Service, *testutil.Fixtures, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)

	fx := testutil.NewFixtures(t, db)
	svc := New(Deps{
		Templates:     templatestore.New(db),
		Groups:        groupstore.New(db),
		Pending:       pendingstore.New(db),
		Rewards:       rewardstore.New(db),
		Notifications: notificationstore.New(db),
		Log:           zap.NewNop(),
	})
	return svc, fx, ctx
}

func TestRequestJoin_SelfFormWithoutAutoMatch(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	user := primitive.NewObjectID()

	outcome, err := svc.RequestJoin(ctx, tpl.ID, user, JoinProfile{Level: 3}, true)
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	if outcome.Outcome != JoinedNew || outcome.GroupID == nil {
		t.Fatalf("expected a new group, got %+v", outcome)
	}

	g, err := svc.groups.GetByID(ctx, *outcome.GroupID)
	if err != nil {
		t.Fatalf("load group: %v", err)
	}
	if g.LeaderID != user {
		t.Error("requester should lead the self-formed group")
	}
	if g.Status.Current != models.GroupForming {
		t.Errorf("want forming, got %s", g.Status.Current)
	}
}

func TestRequestJoin_AutoMatchJoinsExisting(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.AutoMatch = true
	})
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()

	one, err := svc.RequestJoin(ctx, tpl.ID, first, JoinProfile{}, true)
	if err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	two, err := svc.RequestJoin(ctx, tpl.ID, second, JoinProfile{}, true)
	if err != nil {
		t.Fatalf("second join failed: %v", err)
	}
	if two.Outcome != JoinedExisting {
		t.Fatalf("second user should land in the first group, got %s", two.Outcome)
	}
	if *two.GroupID != *one.GroupID {
		t.Error("both users should share one group")
	}

	g, _ := svc.groups.GetByID(ctx, *one.GroupID)
	if m := g.Member(second); m == nil || m.Status != models.MemberPending {
		t.Error("matched joiner should enter as a pending member")
	}
}

func TestRequestJoin_DuplicateRejected(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	user := primitive.NewObjectID()

	if _, err := svc.RequestJoin(ctx, tpl.ID, user, JoinProfile{}, true); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	_, err := svc.RequestJoin(ctx, tpl.ID, user, JoinProfile{}, true)
	if !errors.Is(err, ErrAlreadyParticipating) {
		t.Fatalf("want ErrAlreadyParticipating, got %v", err)
	}
}

func TestRequestJoin_LevelRequirement(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.Requirements.MinLevel = 10
	})

	_, err := svc.RequestJoin(ctx, tpl.ID, primitive.NewObjectID(), JoinProfile{Level: 5}, true)
	if !errors.Is(err, ErrRequirementMet) {
		t.Fatalf("want requirement rejection, got %v", err)
	}
}

func TestRequestJoin_ClosedMission(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.Status = models.TemplateInProgress
	})

	_, err := svc.RequestJoin(ctx, tpl.ID, primitive.NewObjectID(), JoinProfile{}, true)
	if !errors.Is(err, ErrMissionClosed) {
		t.Fatalf("want ErrMissionClosed, got %v", err)
	}
}

func TestRequestJoin_PendingQueueAndCancel(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.AutoMatch = true
	})
	user := primitive.NewObjectID()

	outcome, err := svc.RequestJoin(ctx, tpl.ID, user, JoinProfile{}, false)
	if err != nil {
		t.Fatalf("queued join failed: %v", err)
	}
	if outcome.Outcome != JoinPending {
		t.Fatalf("want pending outcome, got %s", outcome.Outcome)
	}

	if err := svc.CancelPendingJoin(ctx, tpl.ID, user); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := svc.CancelPendingJoin(ctx, tpl.ID, user); !errors.Is(err, ErrNoPendingJoin) {
		t.Fatalf("second cancel should report nothing pending, got %v", err)
	}
}

func TestActivateGroup_BelowMinimum(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil) // min 2
	leader := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader)

	err := svc.ActivateGroup(ctx, g.ID, leader)
	if !errors.Is(err, ErrBelowMinimumMembers) {
		t.Fatalf("want ErrBelowMinimumMembers, got %v", err)
	}
}

func TestActivateGroup_FlipsPendingMembers(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	leader := primitive.NewObjectID()
	joiner := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, joiner)

	// Demote the second member to pending, as a matched joiner would be.
	loaded, _ := svc.groups.GetByID(ctx, g.ID)
	loaded.Member(joiner).Status = models.MemberPending
	if err := svc.groups.Save(ctx, &loaded); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	if err := svc.ActivateGroup(ctx, g.ID, leader); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	if after.Status.Current != models.GroupActive {
		t.Fatalf("want active, got %s", after.Status.Current)
	}
	if m := after.Member(joiner); m.Status != models.MemberActive {
		t.Errorf("pending member should become active, got %s", m.Status)
	}
	if after.Status.StartedAt == nil {
		t.Error("activation should stamp the start time")
	}
}

func TestApplyProgress_MonotonicAndClamped(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil) // group objective target 10
	leader := primitive.NewObjectID()
	buddy := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, buddy)
	if err := svc.ActivateGroup(ctx, g.ID, leader); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	res, err := svc.ApplyProgress(ctx, g.ID, ScopeGroup, "group-1", 3, leader, "")
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if res.Delta != 3 || res.Progress != 3 {
		t.Errorf("want delta 3 progress 3, got %+v", res)
	}

	res, err = svc.ApplyProgress(ctx, g.ID, ScopeGroup, "group-1", 7, buddy, "")
	if err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	if res.Delta != 4 {
		t.Errorf("want delta 4, got %v", res.Delta)
	}

	// Raising past the target clamps to it.
	res, err = svc.ApplyProgress(ctx, g.ID, ScopeGroup, "group-1", 99, leader, "")
	if err != nil {
		t.Fatalf("clamped update failed: %v", err)
	}
	if res.Progress != 10 || !res.ObjectiveCompleted {
		t.Errorf("want clamp at 10 and completion, got %+v", res)
	}

	// Lowering without a note is refused, with one it lands; completion
	// stays latched either way.
	if _, err = svc.ApplyProgress(ctx, g.ID, ScopeGroup, "group-1", 5, leader, ""); err == nil {
		t.Fatal("silent regression must be refused")
	}
	res, err = svc.ApplyProgress(ctx, g.ID, ScopeGroup, "group-1", 5, leader, "double count fixed")
	if err != nil {
		t.Fatalf("noted correction failed: %v", err)
	}
	if !res.ObjectiveCompleted {
		t.Error("completion is latched and must survive corrections")
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	obj := after.GroupObjective("group-1")
	if len(obj.History) != 4 {
		t.Errorf("want 4 history entries, got %d", len(obj.History))
	}
}

func TestApplyProgress_GroupCompletionSettlesOnce(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.MemberObjectives = nil // group objective only, for a clean 100%
	})
	leader := primitive.NewObjectID()
	buddy := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, buddy)
	if err := svc.ActivateGroup(ctx, g.ID, leader); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	res, err := svc.ApplyProgress(ctx, g.ID, ScopeGroup, "group-1", 10, leader, "")
	if err != nil {
		t.Fatalf("completing update failed: %v", err)
	}
	if !res.GroupCompleted {
		t.Fatal("reaching 100% should complete the group")
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	if after.Status.Current != models.GroupCompleted {
		t.Fatalf("want completed, got %s", after.Status.Current)
	}
	if !after.Rewards.RewardPaid {
		t.Fatal("settlement should have recorded rewards")
	}

	count, err := svc.rewards.CountByGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("count rewards: %v", err)
	}
	if count == 0 {
		t.Fatal("expected reward events in the outbox")
	}

	// A second settlement attempt must not add events.
	if err := svc.Settle(ctx, g.ID); err != nil {
		t.Fatalf("re-settle failed: %v", err)
	}
	again, _ := svc.rewards.CountByGroup(ctx, g.ID)
	if again != count {
		t.Errorf("settlement is not idempotent: %d then %d events", count, again)
	}
}

func TestApplyProgress_MemberScopeMarksCompletion(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil) // member objective target 5
	leader := primitive.NewObjectID()
	buddy := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, buddy)
	if err := svc.ActivateGroup(ctx, g.ID, leader); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if _, err := svc.ApplyProgress(ctx, g.ID, ScopeMember, "member-1", 5, buddy, ""); err != nil {
		t.Fatalf("member update failed: %v", err)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	m := after.Member(buddy)
	if !m.Completed || m.Status != models.MemberCompleted {
		t.Errorf("member finishing all objectives should be completed, got %+v", m.Status)
	}
	if len(m.ActivityLog) == 0 {
		t.Error("member progress should credit the activity log")
	}
	if after.Terminal() {
		t.Error("one member finishing must not complete the group")
	}
}

func TestApplyProgress_RequiresActiveGroup(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	leader := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, primitive.NewObjectID())

	_, err := svc.ApplyProgress(ctx, g.ID, ScopeGroup, "group-1", 1, leader, "")
	if !errors.Is(err, ErrGroupNotActive) {
		t.Fatalf("forming group must refuse progress, got %v", err)
	}
}

func TestLeaveGroup_LeaderSuccession(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.GroupSize = models.GroupSize{Min: 2, Max: 4}
	})
	leader := primitive.NewObjectID()
	second := primitive.NewObjectID()
	third := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, second, third)
	if err := svc.ActivateGroup(ctx, g.ID, leader); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if err := svc.LeaveGroup(ctx, g.ID, leader, "moving on"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	if after.LeaderID != second {
		t.Errorf("earliest-joined member should inherit leadership, got %s", after.LeaderID.Hex())
	}
	if m := after.Member(leader); m.Status != models.MemberLeft || m.LeftWhy != "moving on" {
		t.Errorf("leaver not recorded: %+v", m)
	}
	if after.Status.Current != models.GroupActive {
		t.Errorf("group continues without the old leader, got %s", after.Status.Current)
	}
}

func TestLeaveGroup_LastMemberDisbands(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	leader := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader)

	if err := svc.LeaveGroup(ctx, g.ID, leader, ""); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	if after.Status.Current != models.GroupDisbanded {
		t.Errorf("want disbanded tombstone, got %s", after.Status.Current)
	}
}

func TestKickMember_LeaderOnly(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	leader := primitive.NewObjectID()
	target := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, target)

	if err := svc.KickMember(ctx, g.ID, target, leader, "coup"); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("non-leader kick must fail, got %v", err)
	}
	if err := svc.KickMember(ctx, g.ID, leader, target, "inactive"); err != nil {
		t.Fatalf("leader kick failed: %v", err)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	if m := after.Member(target); m.Status != models.MemberKicked {
		t.Errorf("want kicked, got %s", m.Status)
	}
}

func TestSubmitRating_PeerMode(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.ContributionTracking = models.TrackingPeerRating
	})
	leader := primitive.NewObjectID()
	buddy := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, buddy)

	if err := svc.SubmitRating(ctx, g.ID, leader, leader, 5); !errors.Is(err, ErrSelfRating) {
		t.Fatalf("self-rating must fail, got %v", err)
	}
	if err := svc.SubmitRating(ctx, g.ID, leader, buddy, 9); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("out-of-range rating must fail, got %v", err)
	}
	if err := svc.SubmitRating(ctx, g.ID, leader, buddy, 4); err != nil {
		t.Fatalf("valid rating failed: %v", err)
	}
	// Re-rating replaces, not stacks.
	if err := svc.SubmitRating(ctx, g.ID, leader, buddy, 2); err != nil {
		t.Fatalf("re-rating failed: %v", err)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	ratings := after.Member(buddy).Contribution.PeerRatings
	if len(ratings) != 1 || ratings[0].Value != 2 {
		t.Errorf("want one replaced rating of 2, got %+v", ratings)
	}
}

func TestSubmitRating_LeaderMode(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.ContributionTracking = models.TrackingLeaderRating
	})
	leader := primitive.NewObjectID()
	buddy := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, buddy)

	if err := svc.SubmitRating(ctx, g.ID, buddy, leader, 3); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("member rating under leader mode must fail, got %v", err)
	}
	if err := svc.SubmitRating(ctx, g.ID, leader, buddy, 3); err != nil {
		t.Fatalf("leader rating failed: %v", err)
	}
}

func TestRunBatchMatching_FlushesPendingPool(t *testing.T) {
	svc, fx, ctx := testService(t)
	past := time.Now().UTC().Add(-time.Hour)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.AutoMatch = true
		m.FormationDeadline = past
		m.GroupSize = models.GroupSize{Min: 2, Max: 3}
	})
	userA := primitive.NewObjectID()
	userB := primitive.NewObjectID()
	for _, u := range []primitive.ObjectID{userA, userB} {
		if _, err := svc.RequestJoin(ctx, tpl.ID, u, JoinProfile{}, false); err != nil {
			t.Fatalf("queue join failed: %v", err)
		}
	}

	matched, err := svc.RunBatchMatching(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("batch matching failed: %v", err)
	}
	if matched != 2 {
		t.Fatalf("want 2 matched, got %d", matched)
	}

	groups, err := svc.groups.FindByStatus(ctx, models.GroupActive)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("two pending users should form one active group, got %d groups", len(groups))
	}
	g := groups[0]
	if g.Member(userA) == nil || g.Member(userB) == nil {
		t.Error("both queued users should be members")
	}
	for _, m := range g.Members {
		if !m.Participating() {
			t.Errorf("member %s should be active after activation, got %s", m.UserID.Hex(), m.Status)
		}
	}

	// The mission advances and a second sweep is a no-op.
	refreshed, _ := svc.templates.GetByID(ctx, tpl.ID)
	if refreshed.Status != models.TemplateInProgress {
		t.Errorf("mission should advance to in_progress, got %s", refreshed.Status)
	}
	matched, err = svc.RunBatchMatching(ctx, time.Now().UTC())
	if err != nil || matched != 0 {
		t.Errorf("second sweep should match nobody, got %d, %v", matched, err)
	}
}

func TestCheckDeadlines_FailsExpiredGroups(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.EndDate = time.Now().UTC().Add(-time.Hour)
	})
	leader := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, primitive.NewObjectID())
	if err := svc.ActivateGroup(ctx, g.ID, leader); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	failed, err := svc.CheckDeadlines(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("deadline check failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("want 1 failed group, got %d", failed)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	if after.Status.Current != models.GroupFailed {
		t.Errorf("want failed, got %s", after.Status.Current)
	}

	// Idempotent: terminal groups are out of scope next sweep.
	failed, _ = svc.CheckDeadlines(ctx, time.Now().UTC())
	if failed != 0 {
		t.Errorf("second sweep should fail nothing, got %d", failed)
	}
}

func TestPostChat_SanitizesContent(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	leader := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, primitive.NewObjectID())

	msg, err := svc.PostChat(ctx, g.ID, leader, `hello <script>alert(1)</script>`, nil)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if msg.Content != "hello " {
		t.Errorf("script tags must be stripped, got %q", msg.Content)
	}

	if _, err := svc.PostChat(ctx, g.ID, primitive.NewObjectID(), "hi", nil); !errors.Is(err, ErrNotMember) {
		t.Fatalf("outsider chat must fail, got %v", err)
	}
}

func TestCastVote_ReplacesSameTopic(t *testing.T) {
	svc, fx, ctx := testService(t)
	tpl := fx.CreateTemplate(ctx, nil)
	leader := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, tpl, leader, primitive.NewObjectID())

	if err := svc.CastVote(ctx, g.ID, leader, "strategy", "rush"); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if err := svc.CastVote(ctx, g.ID, leader, "strategy", "turtle"); err != nil {
		t.Fatalf("revote failed: %v", err)
	}

	after, _ := svc.groups.GetByID(ctx, g.ID)
	if len(after.VoteLog) != 1 || after.VoteLog[0].Choice != "turtle" {
		t.Errorf("same-topic revote should replace, got %+v", after.VoteLog)
	}
}
