package pendingstore_test

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	pendingstore "github.com/nestforge/missionhub/internal/app/store/pendingjoins"
	"github.com/nestforge/missionhub/internal/domain/models"
	"github.com/nestforge/missionhub/internal/testutil"
)

func TestCreate_DuplicateOpenRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := pendingstore.New(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	templateID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	if _, err := store.Create(ctx, models.PendingJoin{TemplateID: templateID, UserID: userID}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := store.Create(ctx, models.PendingJoin{TemplateID: templateID, UserID: userID})
	if !errors.Is(err, pendingstore.ErrDuplicatePending) {
		t.Fatalf("want ErrDuplicatePending, got %v", err)
	}

	// A resolved entry frees the slot for a new request.
	if err := store.Resolve(ctx, templateID, userID, models.PendingCancelled); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := store.Create(ctx, models.PendingJoin{TemplateID: templateID, UserID: userID}); err != nil {
		t.Fatalf("re-request after cancel failed: %v", err)
	}
}

func TestResolve_OnlyOpenEntries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := pendingstore.New(db)
	templateID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	if err := store.Resolve(ctx, templateID, userID, models.PendingCancelled); !errors.Is(err, pendingstore.ErrNotFound) {
		t.Fatalf("resolving nothing should return ErrNotFound, got %v", err)
	}

	if _, err := store.Create(ctx, models.PendingJoin{TemplateID: templateID, UserID: userID}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Resolve(ctx, templateID, userID, models.PendingMatched); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// The matched entry is no longer open; a late cancel loses the race.
	if err := store.Resolve(ctx, templateID, userID, models.PendingCancelled); !errors.Is(err, pendingstore.ErrNotFound) {
		t.Fatalf("second resolve should lose, got %v", err)
	}
}

func TestFindOpenByTemplate_RequestOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := pendingstore.New(db)
	templateID := primitive.NewObjectID()

	first := primitive.NewObjectID()
	second := primitive.NewObjectID()
	if _, err := store.Create(ctx, models.PendingJoin{TemplateID: templateID, UserID: first}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Create(ctx, models.PendingJoin{TemplateID: templateID, UserID: second}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	open, err := store.FindOpenByTemplate(ctx, templateID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("want 2 open entries, got %d", len(open))
	}
	if open[0].UserID != first {
		t.Error("earlier requester should come first")
	}
}
