// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrVersionConflict is returned by Save when the group document was
// modified since it was loaded. Callers reload and retry once; a second
// conflict surfaces to the API layer.
var ErrVersionConflict = errors.New("group was modified concurrently")

// ErrNotFound is returned when no group matches the given id.
var ErrNotFound = errors.New("group not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("mission_groups")}
}

// EnsureIndexes creates the indexes the formation engine and sweeps
// query on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "template_id", Value: 1}, {Key: "status.current", Value: 1}},
			Options: options.Index().SetName("idx_groups_template_status"),
		},
		{
			Keys:    bson.D{{Key: "members.user_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_member_user"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts a freshly formed group at version 1.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.Version = 1
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Save replaces the whole group document, but only if its stored
// version still matches the version the caller loaded. On success the
// persisted version is incremented and the passed struct updated to
// match, so a caller can chain further saves.
func (s *Store) Save(ctx context.Context, g *models.Group) error {
	loaded := g.Version
	g.Version = loaded + 1
	g.UpdatedAt = time.Now().UTC()

	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": g.ID, "version": loaded}, g)
	if err != nil {
		g.Version = loaded
		return err
	}
	if res.MatchedCount == 0 {
		g.Version = loaded
		// Distinguish a missing document from a stale version.
		n, err := s.c.CountDocuments(ctx, bson.M{"_id": g.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// FindForming returns the forming groups for a template, for matching.
func (s *Store) FindForming(ctx context.Context, templateID primitive.ObjectID) ([]models.Group, error) {
	return s.find(ctx, bson.M{
		"template_id":    templateID,
		"status.current": models.GroupForming,
	})
}

// FindOpen returns forming and active groups for a template; used to
// reject duplicate participation across the whole mission run.
func (s *Store) FindOpen(ctx context.Context, templateID primitive.ObjectID) ([]models.Group, error) {
	return s.find(ctx, bson.M{
		"template_id": templateID,
		"status.current": bson.M{"$in": []string{
			models.GroupForming, models.GroupActive, models.GroupPaused,
		}},
	})
}

// HasParticipant reports whether userID holds a capacity slot in any
// forming/active/paused group of the template.
func (s *Store) HasParticipant(ctx context.Context, templateID, userID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"template_id": templateID,
		"status.current": bson.M{"$in": []string{
			models.GroupForming, models.GroupActive, models.GroupPaused,
		}},
		"members": bson.M{"$elemMatch": bson.M{
			"user_id": userID,
			"status": bson.M{"$in": []string{
				models.MemberInvited, models.MemberPending,
				models.MemberActive, models.MemberCompleted,
			}},
		}},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindByStatus returns all groups currently in the given lifecycle
// state; the deadline sweep uses it to scan active groups.
func (s *Store) FindByStatus(ctx context.Context, status string) ([]models.Group, error) {
	return s.find(ctx, bson.M{"status.current": status})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
