package templatestore_test

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	templatestore "github.com/nestforge/missionhub/internal/app/store/templates"
	"github.com/nestforge/missionhub/internal/domain/models"
	"github.com/nestforge/missionhub/internal/testutil"
)

func TestGetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := templatestore.New(db)
	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, templatestore.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindDueForMatching(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := templatestore.New(db)
	fx := testutil.NewFixtures(t, db)
	now := time.Now().UTC()

	due := fx.CreateTemplate(ctx, func(m *models.MissionTemplate) {
		m.AutoMatch = true
		m.FormationDeadline = now.Add(-time.Hour)
	})
	fx.CreateTemplate(ctx, func(m *models.MissionTemplate) { // not yet due
		m.AutoMatch = true
		m.FormationDeadline = now.Add(time.Hour)
	})
	fx.CreateTemplate(ctx, func(m *models.MissionTemplate) { // manual formation
		m.AutoMatch = false
		m.FormationDeadline = now.Add(-time.Hour)
	})

	got, err := store.FindDueForMatching(ctx, now)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("want only the overdue auto-match template, got %d", len(got))
	}

	// Advancing removes it from the due set; advancing twice is harmless.
	if err := store.MarkInProgress(ctx, due.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkInProgress(ctx, due.ID); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	got, _ = store.FindDueForMatching(ctx, now)
	if len(got) != 0 {
		t.Errorf("advanced template should no longer be due, got %d", len(got))
	}
}
