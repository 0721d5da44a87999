// internal/app/store/templates/templatestore.go
package templatestore

import (
	"context"
	"errors"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no template matches the given id.
var ErrNotFound = errors.New("mission template not found")

// Store reads mission templates. Templates are authored by an external
// admin system; the engine never mutates them beyond advancing the
// run status at batch-matching time.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("mission_templates")}
}

// EnsureIndexes creates the index backing the batch-matching sweep.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "auto_match", Value: 1},
			{Key: "status", Value: 1},
			{Key: "formation_deadline", Value: 1},
		},
	})
	return err
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.MissionTemplate, error) {
	var t models.MissionTemplate
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.MissionTemplate{}, ErrNotFound
		}
		return models.MissionTemplate{}, err
	}
	return t, nil
}

// FindDueForMatching returns auto-match templates still forming groups
// whose formation deadline has passed.
func (s *Store) FindDueForMatching(ctx context.Context, now time.Time) ([]models.MissionTemplate, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"auto_match":         true,
		"status":             models.TemplateFormingGroups,
		"formation_deadline": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.MissionTemplate
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkInProgress advances a template from forming_groups to in_progress
// once its pending pool has been flushed. Idempotent: a template
// already advanced matches nothing.
func (s *Store) MarkInProgress(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TemplateFormingGroups},
		bson.M{"$set": bson.M{
			"status":     models.TemplateInProgress,
			"updated_at": time.Now().UTC(),
		}})
	return err
}
