// internal/domain/models/rewardevent.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reward event reasons.
const (
	RewardBase           = "base"
	RewardFullCompletion = "full_completion_bonus"
	RewardEarly          = "early_completion_bonus"
	RewardTopContributor = "top_contributor_bonus"
)

// RewardEvent is one reward-due record produced by settlement. Events
// are written to the reward_events outbox inside the settling write and
// dispatched to the configured sink at least once; EventID (a UUID) is
// the idempotency key downstream consumers dedupe on.
type RewardEvent struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	EventID string             `bson:"event_id" json:"event_id"`

	GroupID  primitive.ObjectID  `bson:"group_id" json:"group_id"`
	MemberID *primitive.ObjectID `bson:"member_id,omitempty" json:"member_id,omitempty"`

	XP           int64  `bson:"xp" json:"xp"`
	TokenAmount  int64  `bson:"token_amount" json:"token_amount"`
	NFTRequested bool   `bson:"nft_requested" json:"nft_requested"`
	NFTRarity    string `bson:"nft_rarity,omitempty" json:"nft_rarity,omitempty"`
	Reason       string `bson:"reason" json:"reason"`

	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	Dispatched   bool       `bson:"dispatched" json:"dispatched"`
	DispatchedAt *time.Time `bson:"dispatched_at,omitempty" json:"dispatched_at,omitempty"`
	Attempts     int        `bson:"attempts" json:"attempts"`
}
