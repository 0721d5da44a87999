// internal/app/store/rewards/rewardstore.go
package rewardstore

import (
	"context"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the reward_events outbox. Settlement inserts events here and
// a periodic job dispatches undelivered ones to the configured sink, so
// emission is at least once and never lost to a sink outage.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("reward_events")}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("uidx_reward_event_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "dispatched", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_reward_dispatched"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetName("idx_reward_group"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// InsertBatch writes all events of one settlement. Event ids are
// deterministic, so a re-run of a crashed settlement re-inserts the
// same batch; duplicate-key errors are expected then and swallowed
// (ordered:false attempts every insert regardless).
func (s *Store) InsertBatch(ctx context.Context, events []models.RewardEvent) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(events))
	now := time.Now().UTC()
	for i := range events {
		events[i].ID = primitive.NewObjectID()
		events[i].CreatedAt = now
		docs = append(docs, events[i])
	}
	opts := options.InsertMany().SetOrdered(false)
	_, err := s.c.InsertMany(ctx, docs, opts)
	if err != nil {
		if bulkErr, ok := err.(mongo.BulkWriteException); ok {
			for _, we := range bulkErr.WriteErrors {
				if we.Code != 11000 {
					return err
				}
			}
			return nil
		}
		return err
	}
	return nil
}

// FindUndispatched returns up to limit events awaiting dispatch, oldest
// first.
func (s *Store) FindUndispatched(ctx context.Context, limit int64) ([]models.RewardEvent, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"dispatched": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RewardEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkDispatched records a successful handoff to the sink.
func (s *Store) MarkDispatched(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"event_id": eventID},
		bson.M{"$set": bson.M{"dispatched": true, "dispatched_at": now}})
	return err
}

// RecordAttempt bumps the attempt counter after a failed dispatch.
func (s *Store) RecordAttempt(ctx context.Context, eventID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"event_id": eventID},
		bson.M{"$inc": bson.M{"attempts": 1}})
	return err
}

// CountByGroup returns how many reward events exist for a group; used
// by tests to verify settlement idempotency.
func (s *Store) CountByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"group_id": groupID})
}
