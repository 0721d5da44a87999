// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types emitted by the engine.
const (
	NotifyGroupJoined    = "group_joined"
	NotifyLeaderChanged  = "leader_changed"
	NotifyGroupActivated = "group_activated"
	NotifyGroupCompleted = "group_completed"
	NotifyGroupFailed    = "group_failed"
	NotifyGroupDisbanded = "group_disbanded"
	NotifyRewardDue      = "reward_due"
)

// Notification is a stored notification record; transport and delivery
// are handled by an external service reading this collection.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Type      string              `bson:"type" json:"type"`
	Title     string              `bson:"title" json:"title"`
	Content   string              `bson:"content" json:"content"`
	UserID    *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	GroupID   primitive.ObjectID  `bson:"group_id" json:"group_id"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
}
