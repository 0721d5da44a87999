// internal/domain/models/missiontemplate.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mission template status values. The engine only forms groups for
// templates in StatusFormingGroups; the batch-matching sweep advances a
// template to StatusInProgress once its formation deadline has been flushed.
const (
	TemplateFormingGroups = "forming_groups"
	TemplateInProgress    = "in_progress"
	TemplateCompleted     = "completed"
	TemplateCancelled     = "cancelled"
)

// Completion criteria values.
const (
	CriteriaAll        = "all"
	CriteriaPercentage = "percentage"
)

// Contribution tracking modes.
const (
	TrackingEqual        = "equal"
	TrackingActivity     = "activity"
	TrackingPeerRating   = "peer_rating"
	TrackingLeaderRating = "leader_rating"
)

// Reward distribution methods.
const (
	DistributionEqual        = "equal"
	DistributionContribution = "contribution_based"
)

// GroupSize bounds how many members a formed group may hold.
type GroupSize struct {
	Min int `bson:"min" json:"min"`
	Max int `bson:"max" json:"max"`
}

// MatchingCriteria selects which heuristics the formation engine applies
// when scoring candidate groups for an auto-joining user.
type MatchingCriteria struct {
	ByInterest bool `bson:"by_interest" json:"by_interest"`
	ByActivity bool `bson:"by_activity" json:"by_activity"`
	ByLevel    bool `bson:"by_level" json:"by_level"`
	ByLocation bool `bson:"by_location" json:"by_location"`
}

// StageDef describes one stage of a multi-stage mission.
type StageDef struct {
	Name                  string `bson:"name" json:"name"`
	DurationDays          int    `bson:"duration_days" json:"duration_days"`
	RequiresPreviousStage bool   `bson:"requires_previous_stage" json:"requires_previous_stage"`
}

// ObjectiveDef is the template skeleton for a group or member objective.
// Formed groups copy these into live objectives with zero progress.
type ObjectiveDef struct {
	Description string  `bson:"description" json:"description"`
	Target      float64 `bson:"target" json:"target"`
	Unit        string  `bson:"unit" json:"unit"`
	Optional    bool    `bson:"optional" json:"optional"`
}

// BonusReward is a single additive bonus amount.
type BonusReward struct {
	XP          int64 `bson:"xp" json:"xp"`
	TokenAmount int64 `bson:"token_amount" json:"token_amount"`
}

// TopContributorBonus pays members whose contribution rank falls within
// the top TopPercent of the group.
type TopContributorBonus struct {
	BonusReward `bson:",inline"`
	TopPercent  int `bson:"top_percent" json:"top_percent"`
}

// BonusRules holds the additive, independent bonus schedule.
type BonusRules struct {
	FullCompletion  *BonusReward         `bson:"full_completion,omitempty" json:"full_completion,omitempty"`
	EarlyCompletion *BonusReward         `bson:"early_completion,omitempty" json:"early_completion,omitempty"`
	TopContributor  *TopContributorBonus `bson:"top_contributor,omitempty" json:"top_contributor,omitempty"`
}

// RewardSchedule defines base and bonus rewards for a mission run.
// GroupXP/GroupTokens is a pool split across members per Distribution;
// MemberXP/MemberTokens is paid per member outright.
type RewardSchedule struct {
	GroupXP      int64      `bson:"group_xp" json:"group_xp"`
	GroupTokens  int64      `bson:"group_tokens" json:"group_tokens"`
	MemberXP     int64      `bson:"member_xp" json:"member_xp"`
	MemberTokens int64      `bson:"member_tokens" json:"member_tokens"`
	Distribution string     `bson:"distribution" json:"distribution"` // equal | contribution_based
	NFTEnabled   bool       `bson:"nft_enabled" json:"nft_enabled"`
	NFTRarity    string     `bson:"nft_rarity,omitempty" json:"nft_rarity,omitempty"`
	Bonuses      BonusRules `bson:"bonuses" json:"bonuses"`
}

// JoinRequirements gates who may join a mission. NFT and token-balance
// checks are delegated to an external requirement checker.
type JoinRequirements struct {
	MinLevel        int      `bson:"min_level" json:"min_level"`
	RequiredTags    []string `bson:"required_tags,omitempty" json:"required_tags,omitempty"`
	NFTRequired     bool     `bson:"nft_required" json:"nft_required"`
	MinTokenBalance int64    `bson:"min_token_balance" json:"min_token_balance"`
}

// MissionTemplate is the immutable per-run configuration for a mission.
// The engine reads templates but never mutates them.
type MissionTemplate struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	GroupSize GroupSize        `bson:"group_size" json:"group_size"`
	AutoMatch bool             `bson:"auto_match" json:"auto_match"`
	Matching  MatchingCriteria `bson:"matching" json:"matching"`

	FormationDeadline time.Time `bson:"formation_deadline" json:"formation_deadline"`
	StartDate         time.Time `bson:"start_date" json:"start_date"`
	EndDate           time.Time `bson:"end_date" json:"end_date"`

	Stages []StageDef `bson:"stages,omitempty" json:"stages,omitempty"`

	GroupObjectives  []ObjectiveDef `bson:"group_objectives" json:"group_objectives"`
	MemberObjectives []ObjectiveDef `bson:"member_objectives" json:"member_objectives"`

	CompletionCriteria   string `bson:"completion_criteria" json:"completion_criteria"` // all | percentage
	CompletionPercentage int    `bson:"completion_percentage,omitempty" json:"completion_percentage,omitempty"`

	ContributionTracking string `bson:"contribution_tracking" json:"contribution_tracking"`

	Rewards      RewardSchedule   `bson:"rewards" json:"rewards"`
	Requirements JoinRequirements `bson:"requirements" json:"requirements"`

	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Staged reports whether the mission progresses through ordered stages.
func (t *MissionTemplate) Staged() bool {
	return len(t.Stages) > 0
}
