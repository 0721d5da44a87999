// internal/app/engine/service.go

// Package engine is the group-mission coordination core: group
// formation and matching, the group lifecycle state machine, objective
// tracking, contribution scoring, and reward settlement. All group
// mutation flows through Service methods so the aggregate's invariants
// hold; persistence uses versioned documents so concurrent writers to
// the same group serialize.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nestforge/missionhub/internal/app/external/requirements"
	"github.com/nestforge/missionhub/internal/app/external/rewardsink"
	groupstore "github.com/nestforge/missionhub/internal/app/store/groups"
	notificationstore "github.com/nestforge/missionhub/internal/app/store/notifications"
	pendingstore "github.com/nestforge/missionhub/internal/app/store/pendingjoins"
	rewardstore "github.com/nestforge/missionhub/internal/app/store/rewards"
	templatestore "github.com/nestforge/missionhub/internal/app/store/templates"
	"github.com/nestforge/missionhub/internal/app/system/htmlsanitize"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Deps bundles everything the engine needs. Constructed once at
// startup and injected; the engine holds no global state.
type Deps struct {
	Templates     *templatestore.Store
	Groups        *groupstore.Store
	Pending       *pendingstore.Store
	Rewards       *rewardstore.Store
	Notifications *notificationstore.Store
	Checker       requirements.Checker
	Sink          rewardsink.Sink
	Log           *zap.Logger
}

// Service is the coordination engine's entry point.
type Service struct {
	templates     *templatestore.Store
	groups        *groupstore.Store
	pending       *pendingstore.Store
	rewards       *rewardstore.Store
	notifications *notificationstore.Store
	checker       requirements.Checker
	sink          rewardsink.Sink
	log           *zap.Logger

	now func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		templates:     d.Templates,
		groups:        d.Groups,
		pending:       d.Pending,
		rewards:       d.Rewards,
		notifications: d.Notifications,
		checker:       d.Checker,
		sink:          d.Sink,
		log:           d.Log,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if s.checker == nil {
		s.checker = requirements.AllowAll{}
	}
	if s.sink == nil {
		s.sink = rewardsink.Discard{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// mutateGroup runs fn against a freshly loaded group and saves the
// result. On a version conflict the load-mutate-save cycle runs once
// more with the newest document; a second conflict surfaces. fn must be
// side-effect free until the save lands, since it may run twice.
//
// fn may return errSkipSave to indicate the operation was a no-op and
// nothing needs persisting.
func (s *Service) mutateGroup(ctx context.Context, groupID primitive.ObjectID, fn func(g *models.Group, t *models.MissionTemplate) error) (models.Group, error) {
	var g models.Group
	for attempt := 0; attempt < 2; attempt++ {
		var err error
		g, err = s.groups.GetByID(ctx, groupID)
		if err != nil {
			if errors.Is(err, groupstore.ErrNotFound) {
				return models.Group{}, ErrGroupNotFound
			}
			return models.Group{}, err
		}

		t, err := s.templates.GetByID(ctx, g.TemplateID)
		if err != nil {
			if errors.Is(err, templatestore.ErrNotFound) {
				return models.Group{}, ErrTemplateNotFound
			}
			return models.Group{}, err
		}

		if err := fn(&g, &t); err != nil {
			if errors.Is(err, errSkipSave) {
				return g, nil
			}
			return models.Group{}, err
		}

		err = s.groups.Save(ctx, &g)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, groupstore.ErrVersionConflict) {
			return models.Group{}, err
		}
		s.log.Debug("group version conflict, retrying",
			zap.String("group_id", groupID.Hex()),
			zap.Int("attempt", attempt+1))
	}
	return models.Group{}, fmt.Errorf("group %s: %w", groupID.Hex(), groupstore.ErrVersionConflict)
}

// errSkipSave signals a mutation callback resulted in no change.
var errSkipSave = errors.New("engine: nothing to save")

// PostChat appends a sanitized chat message to the group's log. Chat is
// data only here; delivery is an external concern.
func (s *Service) PostChat(ctx context.Context, groupID, senderID primitive.ObjectID, content string, attachments []string) (models.ChatMessage, error) {
	clean := htmlsanitize.Sanitize(content)
	var msg models.ChatMessage
	_, err := s.mutateGroup(ctx, groupID, func(g *models.Group, _ *models.MissionTemplate) error {
		if g.Terminal() {
			return ErrGroupTerminal
		}
		m := g.Member(senderID)
		if m == nil || !m.Participating() {
			return ErrNotMember
		}
		msg = models.ChatMessage{
			SenderID:    senderID,
			Content:     clean,
			Attachments: attachments,
			Timestamp:   s.now(),
		}
		g.ChatLog = append(g.ChatLog, msg)
		return nil
	})
	return msg, err
}

// CastVote appends a vote entry for the voter, replacing any earlier
// vote on the same topic.
func (s *Service) CastVote(ctx context.Context, groupID, voterID primitive.ObjectID, topic, choice string) error {
	_, err := s.mutateGroup(ctx, groupID, func(g *models.Group, _ *models.MissionTemplate) error {
		if g.Terminal() {
			return ErrGroupTerminal
		}
		m := g.Member(voterID)
		if m == nil || !m.Participating() {
			return ErrNotMember
		}
		for i := range g.VoteLog {
			if g.VoteLog[i].VoterID == voterID && g.VoteLog[i].Topic == topic {
				g.VoteLog[i].Choice = choice
				g.VoteLog[i].Timestamp = s.now()
				return nil
			}
		}
		g.VoteLog = append(g.VoteLog, models.Vote{
			VoterID:   voterID,
			Topic:     topic,
			Choice:    choice,
			Timestamp: s.now(),
		})
		return nil
	})
	return err
}

// notify writes a notification record, best effort. A failed write is
// logged and never fails the triggering operation.
func (s *Service) notify(ctx context.Context, n models.Notification) {
	if s.notifications == nil {
		return
	}
	n.Content = htmlsanitize.Sanitize(n.Content)
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()
	if err := s.notifications.Create(nctx, n); err != nil {
		s.log.Warn("notification write failed",
			zap.String("type", n.Type),
			zap.String("group_id", n.GroupID.Hex()),
			zap.Error(err))
	}
}
