package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nestforge/missionhub/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Template returns a mission template in forming_groups state with a
// fresh id: auto-match off, groups of 2-4, one group objective with
// target 10, one member objective with target 5, all-objectives
// completion, equal tracking and distribution. Callers adjust fields
// with mutate.
func Template(mutate func(*models.MissionTemplate)) models.MissionTemplate {
	now := time.Now().UTC()
	t := models.MissionTemplate{
		ID:                primitive.NewObjectID(),
		Title:             "Test Mission",
		GroupSize:         models.GroupSize{Min: 2, Max: 4},
		FormationDeadline: now.Add(24 * time.Hour),
		StartDate:         now,
		EndDate:           now.Add(7 * 24 * time.Hour),
		GroupObjectives: []models.ObjectiveDef{
			{Description: "Collect items", Target: 10, Unit: "items"},
		},
		MemberObjectives: []models.ObjectiveDef{
			{Description: "Complete tasks", Target: 5, Unit: "tasks"},
		},
		CompletionCriteria:   models.CriteriaAll,
		ContributionTracking: models.TrackingEqual,
		Rewards: models.RewardSchedule{
			GroupXP:      1000,
			GroupTokens:  100,
			MemberXP:     100,
			MemberTokens: 10,
			Distribution: models.DistributionEqual,
		},
		Status:    models.TemplateFormingGroups,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mutate != nil {
		mutate(&t)
	}
	return t
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateTemplate inserts a template built by Template into the test
// database and returns it.
func (f *Fixtures) CreateTemplate(ctx context.Context, mutate func(*models.MissionTemplate)) models.MissionTemplate {
	f.t.Helper()

	t := Template(mutate)
	if _, err := f.db.Collection("mission_templates").InsertOne(ctx, t); err != nil {
		f.t.Fatalf("failed to create test template: %v", err)
	}
	return t
}

// CreateGroup inserts a forming group for the given template with the
// given users as active members, the first one as leader. Objectives
// are seeded from the template definitions with zero progress.
func (f *Fixtures) CreateGroup(ctx context.Context, tpl models.MissionTemplate, userIDs ...primitive.ObjectID) models.Group {
	f.t.Helper()

	g := BuildGroup(tpl, userIDs...)
	if _, err := f.db.Collection("mission_groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// BuildGroup constructs the same group document CreateGroup inserts,
// without touching a database. Engine unit tests use it directly.
func BuildGroup(tpl models.MissionTemplate, userIDs ...primitive.ObjectID) models.Group {
	now := time.Now().UTC()
	g := models.Group{
		ID:         primitive.NewObjectID(),
		TemplateID: tpl.ID,
		Name:       tpl.Title + " group",
		Version:    1,
		Status:     models.GroupStatus{Current: models.GroupForming},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	g.GroupObjectives = SeedObjectives("group", tpl.GroupObjectives)
	for i, uid := range userIDs {
		g.Members = append(g.Members, models.GroupMember{
			UserID: uid,
			Status: models.MemberActive,
			// stagger joins so succession order is deterministic
			JoinedAt:   now.Add(time.Duration(i) * time.Second),
			Objectives: SeedObjectives("member", tpl.MemberObjectives),
		})
	}
	if len(userIDs) > 0 {
		g.LeaderID = userIDs[0]
		g.LeaderHistory = []models.LeaderChange{
			{UserID: userIDs[0], AssignedAt: now, Reason: "founded group"},
		}
	}
	if tpl.Staged() {
		g.StageProgress = make([]models.StageStatus, len(tpl.Stages))
		for i, st := range tpl.Stages {
			g.StageProgress[i] = models.StageStatus{Name: st.Name, Status: models.StageNotStarted}
		}
	}
	return g
}

// SeedObjectives copies objective definitions into live objectives with
// zero progress and positional ids, matching how formation seeds them.
func SeedObjectives(prefix string, defs []models.ObjectiveDef) []models.Objective {
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
