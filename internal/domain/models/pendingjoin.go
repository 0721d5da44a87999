// internal/domain/models/pendingjoin.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pending join status values.
const (
	PendingOpen      = "pending"
	PendingMatched   = "matched"
	PendingCancelled = "cancelled"
)

// PendingJoin queues a user for the batch-matching sweep of a mission
// whose auto-match runs at the formation deadline. At most one open
// entry exists per (template, user).
type PendingJoin struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TemplateID primitive.ObjectID `bson:"template_id" json:"template_id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`

	Level     int      `bson:"level" json:"level"`
	Interests []string `bson:"interests,omitempty" json:"interests,omitempty"`

	Status      string     `bson:"status" json:"status"`
	RequestedAt time.Time  `bson:"requested_at" json:"requested_at"`
	ResolvedAt  *time.Time `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}
