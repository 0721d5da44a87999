// internal/app/store/pendingjoins/pendingstore.go
package pendingstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicatePending is returned when the user already has an open
// pending join for the mission.
var ErrDuplicatePending = errors.New("user already has a pending join request for this mission")

// ErrNotFound is returned when no open pending join matches.
var ErrNotFound = errors.New("pending join request not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("pending_joins")}
}

// EnsureIndexes enforces one open pending entry per (template, user).
// The partial filter keeps resolved entries around for audit without
// blocking a later re-request.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().
			SetName("uidx_pending_template_user").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": models.PendingOpen}),
	})
	return err
}

func (s *Store) Create(ctx context.Context, p models.PendingJoin) (models.PendingJoin, error) {
	p.ID = primitive.NewObjectID()
	p.Status = models.PendingOpen
	p.RequestedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.PendingJoin{}, ErrDuplicatePending
		}
		return models.PendingJoin{}, err
	}
	return p, nil
}

// FindOpenByTemplate returns the open pending pool for one mission in
// request order, so earlier requesters are matched first.
func (s *Store) FindOpenByTemplate(ctx context.Context, templateID primitive.ObjectID) ([]models.PendingJoin, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"template_id": templateID, "status": models.PendingOpen},
		options.Find().SetSort(bson.D{{Key: "requested_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.PendingJoin
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HasOpen reports whether the user has an open pending join for the mission.
func (s *Store) HasOpen(ctx context.Context, templateID, userID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"template_id": templateID,
		"user_id":     userID,
		"status":      models.PendingOpen,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Resolve marks an open entry matched or cancelled. Resolving an entry
// that is no longer open returns ErrNotFound, which makes both the
// sweep and user cancellation race-safe: only one path wins.
func (s *Store) Resolve(ctx context.Context, templateID, userID primitive.ObjectID, outcome string) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"template_id": templateID, "user_id": userID, "status": models.PendingOpen},
		bson.M{"$set": bson.M{"status": outcome, "resolved_at": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
