// internal/app/engine/formation.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pendingstore "github.com/nestforge/missionhub/internal/app/store/pendingjoins"
	templatestore "github.com/nestforge/missionhub/internal/app/store/templates"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// JoinProfile carries the joining user's matching inputs. Level and
// interests come from the caller's profile service; NFT and token facts
// are verified externally.
type JoinProfile struct {
	Level     int      `json:"level"`
	Interests []string `json:"interests"`
}

// Join outcomes.
const (
	JoinedExisting = "joined_existing"
	JoinedNew      = "created_group"
	JoinPending    = "pending_match"
)

// JoinOutcome describes where a join request landed.
type JoinOutcome struct {
	Outcome string              `json:"outcome"`
	GroupID *primitive.ObjectID `json:"group_id,omitempty"`
}

// RequestJoin validates the user against the mission's join
// requirements and places them: into the best-scoring existing forming
// group when immediate auto-matching applies, into a fresh self-formed
// group otherwise, or into the pending pool to await the batch sweep.
//
// A user holding a slot in any open group of this mission, or an open
// pending entry, is rejected; a user is never placed twice.
func (s *Service) RequestJoin(ctx context.Context, templateID, userID primitive.ObjectID, profile JoinProfile, autoJoin bool) (JoinOutcome, error) {
	t, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, templatestore.ErrNotFound) {
			return JoinOutcome{}, ErrTemplateNotFound
		}
		return JoinOutcome{}, err
	}
	if t.Status != models.TemplateFormingGroups {
		return JoinOutcome{}, ErrMissionClosed
	}

	// Duplicate participation check across groups and pending pool.
	taken, err := s.groups.HasParticipant(ctx, templateID, userID)
	if err != nil {
		return JoinOutcome{}, err
	}
	if !taken {
		taken, err = s.pending.HasOpen(ctx, templateID, userID)
		if err != nil {
			return JoinOutcome{}, err
		}
	}
	if taken {
		return JoinOutcome{}, ErrAlreadyParticipating
	}

	if err := s.checkJoinRequirements(ctx, userID, profile, &t); err != nil {
		s.log.Info("join rejected",
			zap.String("template_id", templateID.Hex()),
			zap.String("user_id", userID.Hex()),
			zap.Error(err))
		return JoinOutcome{}, err
	}

	switch {
	case t.AutoMatch && autoJoin:
		// Immediate match into an existing forming group, else self-form.
		outcome, err := s.matchIntoExisting(ctx, &t, userID, profile)
		if err == nil || !errors.Is(err, errNoCandidate) {
			return outcome, err
		}
		return s.selfForm(ctx, &t, userID, profile)
	case t.AutoMatch:
		// The user waits for the deadline batch sweep.
		p := models.PendingJoin{
			TemplateID: templateID,
			UserID:     userID,
			Level:      profile.Level,
			Interests:  profile.Interests,
		}
		if _, err := s.pending.Create(ctx, p); err != nil {
			if errors.Is(err, pendingstore.ErrDuplicatePending) {
				return JoinOutcome{}, ErrAlreadyParticipating
			}
			return JoinOutcome{}, err
		}
		return JoinOutcome{Outcome: JoinPending}, nil
	default:
		return s.selfForm(ctx, &t, userID, profile)
	}
}

// errNoCandidate is an internal signal: no forming group could take the
// user under the template's matching criteria.
var errNoCandidate = errors.New("engine: no matching candidate group")

// matchIntoExisting scores forming groups with spare capacity and adds
// the user to the winner as a pending member. The version-checked save
// guarantees the capacity bound holds even against concurrent joins.
func (s *Service) matchIntoExisting(ctx context.Context, t *models.MissionTemplate, userID primitive.ObjectID, profile JoinProfile) (JoinOutcome, error) {
	candidates, err := s.groups.FindForming(ctx, t.ID)
	if err != nil {
		return JoinOutcome{}, err
	}

	best := pickCandidate(candidates, t, profile)
	if best == nil {
		return JoinOutcome{}, errNoCandidate
	}

	g, err := s.mutateGroup(ctx, best.ID, func(g *models.Group, t *models.MissionTemplate) error {
		return addPendingMember(g, t, userID, profile, s.now())
	})
	// The chosen group may have filled up between scoring and saving;
	// in that case fall back to forming a new group rather than failing
	// the user's request.
	if errors.Is(err, ErrGroupFull) || errors.Is(err, ErrGroupNotForming) {
		return JoinOutcome{}, errNoCandidate
	}
	if err != nil {
		return JoinOutcome{}, err
	}

	s.notify(ctx, models.Notification{
		Type:    models.NotifyGroupJoined,
		Title:   "Joined group " + g.Name,
		Content: fmt.Sprintf("You were matched into a group for mission %q.", t.Title),
		UserID:  &userID,
		GroupID: g.ID,
	})
	return JoinOutcome{Outcome: JoinedExisting, GroupID: &g.ID}, nil
}

// selfForm creates a new forming group with the requester as its active
// leader, seeded with the template's objective skeletons.
func (s *Service) selfForm(ctx context.Context, t *models.MissionTemplate, userID primitive.ObjectID, profile JoinProfile) (JoinOutcome, error) {
	g := newGroup(t, userID, profile, s.now())
	created, err := s.groups.Create(ctx, g)
	if err != nil {
		return JoinOutcome{}, err
	}
	s.log.Info("group formed",
		zap.String("template_id", t.ID.Hex()),
		zap.String("group_id", created.ID.Hex()),
		zap.String("leader_id", userID.Hex()))
	return JoinOutcome{Outcome: JoinedNew, GroupID: &created.ID}, nil
}

// CancelPendingJoin withdraws the user's open pending entry. Always
// available to the user; there is no in-flight dependency to wait on.
func (s *Service) CancelPendingJoin(ctx context.Context, templateID, userID primitive.ObjectID) error {
	err := s.pending.Resolve(ctx, templateID, userID, models.PendingCancelled)
	if errors.Is(err, pendingstore.ErrNotFound) {
		return ErrNoPendingJoin
	}
	return err
}

// checkJoinRequirements verifies level and tags locally and delegates
// NFT/token holdings to the external checker under a bounded timeout. A
// checker outage fails only this join attempt.
func (s *Service) checkJoinRequirements(ctx context.Context, userID primitive.ObjectID, profile JoinProfile, t *models.MissionTemplate) error {
	req := t.Requirements

	if profile.Level < req.MinLevel {
		return &RequirementError{Reason: fmt.Sprintf("level %d is below the minimum %d", profile.Level, req.MinLevel)}
	}
	if len(req.RequiredTags) > 0 && !tagsIntersect(profile.Interests, req.RequiredTags) {
		return &RequirementError{Reason: "none of the required tags match your interests"}
	}

	if !req.NFTRequired && req.MinTokenBalance <= 0 {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	res, err := s.checker.CheckRequirements(cctx, userID, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequirementCheck, err)
	}
	if !res.OK {
		reason := res.Reason
		if reason == "" {
			reason = "holding requirements not met"
		}
		return &RequirementError{Reason: reason}
	}
	return nil
}

func tagsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

// newGroup builds a forming group seeded from the template: live copies
// of the group objectives, the founder as active leader with their own
// member-objective skeletons, and stage one in progress when staged.
func newGroup(t *models.MissionTemplate, leaderID primitive.ObjectID, profile JoinProfile, now time.Time) models.Group {
	g := models.Group{
		TemplateID:      t.ID,
		Name:            t.Title + " group",
		GroupObjectives: seedObjectives("group", t.GroupObjectives),
		LeaderID:        leaderID,
		LeaderHistory: []models.LeaderChange{{
			UserID:     leaderID,
			AssignedAt: now,
			Reason:     "founded group",
		}},
		Status: models.GroupStatus{Current: models.GroupForming},
	}

	g.Members = append(g.Members, models.GroupMember{
		UserID:     leaderID,
		Status:     models.MemberActive,
		JoinedAt:   now,
		Level:      profile.Level,
		Interests:  profile.Interests,
		Objectives: seedObjectives("member", t.MemberObjectives),
	})

	if t.Staged() {
		g.StageProgress = make([]models.StageStatus, len(t.Stages))
		for i, st := range t.Stages {
			g.StageProgress[i] = models.StageStatus{Name: st.Name, Status: models.StageNotStarted}
		}
		g.StageProgress[0].Status = models.StageInProgress
		started := now
		g.StageProgress[0].StartedAt = &started
	}
	return g
}

// seedObjectives copies template objective definitions into live
// objectives with zero progress and stable positional ids.
func seedObjectives(prefix string, defs []models.ObjectiveDef) []models.Objective {
	out := make([]models.Objective, len(defs))
	for i, d := range defs {
		out[i] = models.Objective{
			ObjectiveID: fmt.Sprintf("%s-%d", prefix, i+1),
			Description: d.Description,
			Target:      d.Target,
			Unit:        d.Unit,
			Optional:    d.Optional,
		}
	}
	return out
}

// addPendingMember places a user into a forming group as a pending
// member, enforcing the capacity bound and seeding their objectives.
func addPendingMember(g *models.Group, t *models.MissionTemplate, userID primitive.ObjectID, profile JoinProfile, now time.Time) error {
	if g.Status.Current != models.GroupForming {
		return ErrGroupNotForming
	}
	if g.Member(userID) != nil {
		return ErrAlreadyParticipating
	}
	if g.CountedMembers() >= t.GroupSize.Max {
		return ErrGroupFull
	}
	g.Members = append(g.Members, models.GroupMember{
		UserID:     userID,
		Status:     models.MemberPending,
		JoinedAt:   now,
		Level:      profile.Level,
		Interests:  profile.Interests,
		Objectives: seedObjectives("member", t.MemberObjectives),
	})
	return nil
}
