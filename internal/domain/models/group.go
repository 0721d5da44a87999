// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group status values.
const (
	GroupForming   = "forming"
	GroupActive    = "active"
	GroupPaused    = "paused"
	GroupCompleted = "completed"
	GroupFailed    = "failed"
	GroupDisbanded = "disbanded"
)

// Member status values.
const (
	MemberInvited   = "invited"
	MemberPending   = "pending"
	MemberActive    = "active"
	MemberPaused    = "paused"
	MemberLeft      = "left"
	MemberKicked    = "kicked"
	MemberCompleted = "completed"
)

// Stage status values.
const (
	StageNotStarted = "not_started"
	StageInProgress = "in_progress"
	StageCompleted  = "completed"
	StageSkipped    = "skipped"
)

// ProgressDelta is one entry in an objective's append-only history.
type ProgressDelta struct {
	Timestamp     time.Time          `bson:"timestamp" json:"timestamp"`
	Delta         float64            `bson:"delta" json:"delta"`
	TotalProgress float64            `bson:"total_progress" json:"total_progress"`
	ActingUserID  primitive.ObjectID `bson:"acting_user_id" json:"acting_user_id"`
	Note          string             `bson:"note,omitempty" json:"note,omitempty"`
}

// Objective is a live group- or member-level objective copied from a
// template ObjectiveDef. Progress is clamped to [0, Target] and only
// moves through recorded deltas.
type Objective struct {
	ObjectiveID string     `bson:"objective_id" json:"objective_id"`
	Description string     `bson:"description" json:"description"`
	Target      float64    `bson:"target" json:"target"`
	Progress    float64    `bson:"progress" json:"progress"`
	Unit        string     `bson:"unit" json:"unit"`
	Optional    bool       `bson:"optional" json:"optional"`
	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	// Group-level objectives track their own percentage for display;
	// member objectives derive it on read.
	ProgressPercentage float64 `bson:"progress_percentage" json:"progress_percentage"`

	History []ProgressDelta `bson:"history,omitempty" json:"history,omitempty"`
}

// Ratio returns completion as a ratio in [0, 1].
func (o *Objective) Ratio() float64 {
	if o.Target <= 0 {
		return 1
	}
	r := o.Progress / o.Target
	if r > 1 {
		return 1
	}
	return r
}

// Rating is a single 1-5 rating from a peer or the leader.
type Rating struct {
	RaterID primitive.ObjectID `bson:"rater_id" json:"rater_id"`
	Value   int                `bson:"value" json:"value"`
	RatedAt time.Time          `bson:"rated_at" json:"rated_at"`
}

// Contribution is a member's derived contribution state. Scores live on
// a 0-100 scale; Rank is 1-based within the group.
type Contribution struct {
	AutoScore     float64  `bson:"auto_score" json:"auto_score"`
	PeerScore     float64  `bson:"peer_score" json:"peer_score"`
	LeaderScore   float64  `bson:"leader_score" json:"leader_score"`
	FinalScore    float64  `bson:"final_score" json:"final_score"`
	Rank          int      `bson:"rank" json:"rank"`
	Percentile    int      `bson:"percentile" json:"percentile"`
	PeerRatings   []Rating `bson:"peer_ratings,omitempty" json:"peer_ratings,omitempty"`
	LeaderRatings []Rating `bson:"leader_ratings,omitempty" json:"leader_ratings,omitempty"`
}

// ActivityEntry records one scored member action for activity-based
// contribution tracking.
type ActivityEntry struct {
	Type          string    `bson:"type" json:"type"`
	ActivityScore float64   `bson:"activity_score" json:"activity_score"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
	Note          string    `bson:"note,omitempty" json:"note,omitempty"`
}

// GroupMember is one user's embedded membership record.
type GroupMember struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Status    string             `bson:"status" json:"status"`
	JoinedAt  time.Time          `bson:"joined_at" json:"joined_at"`
	LeftAt    *time.Time         `bson:"left_at,omitempty" json:"left_at,omitempty"`
	LeftWhy   string             `bson:"left_why,omitempty" json:"left_why,omitempty"`
	Level     int                `bson:"level" json:"level"`
	Interests []string           `bson:"interests,omitempty" json:"interests,omitempty"`

	Objectives   []Objective     `bson:"objectives" json:"objectives"`
	Contribution Contribution    `bson:"contribution" json:"contribution"`
	ActivityLog  []ActivityEntry `bson:"activity_log,omitempty" json:"activity_log,omitempty"`

	Completed     bool       `bson:"completed" json:"completed"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	RewardSettled bool       `bson:"reward_settled" json:"reward_settled"`
}

// Counted reports whether this member occupies a capacity slot.
func (m *GroupMember) Counted() bool {
	return m.Status == MemberActive || m.Status == MemberPending ||
		m.Status == MemberInvited || m.Status == MemberCompleted
}

// Participating reports whether the member still takes part in the
// mission (either actively working or having finished their objectives).
func (m *GroupMember) Participating() bool {
	return m.Status == MemberActive || m.Status == MemberCompleted
}

// Objective returns the member objective with the given id, or nil.
func (m *GroupMember) Objective(objectiveID string) *Objective {
	for i := range m.Objectives {
		if m.Objectives[i].ObjectiveID == objectiveID {
			return &m.Objectives[i]
		}
	}
	return nil
}

// StageStatus tracks one stage of a staged mission for a group.
type StageStatus struct {
	Name        string     `bson:"name" json:"name"`
	Status      string     `bson:"status" json:"status"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// LeaderChange is one entry in the leader succession audit trail.
type LeaderChange struct {
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	AssignedAt time.Time          `bson:"assigned_at" json:"assigned_at"`
	Reason     string             `bson:"reason" json:"reason"`
}

// ChatMessage is an append-only chat entry; delivery is external.
type ChatMessage struct {
	SenderID    primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	Content     string             `bson:"content" json:"content"`
	Attachments []string           `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Timestamp   time.Time          `bson:"timestamp" json:"timestamp"`
}

// Vote is an append-only group vote entry.
type Vote struct {
	VoterID   primitive.ObjectID `bson:"voter_id" json:"voter_id"`
	Topic     string             `bson:"topic" json:"topic"`
	Choice    string             `bson:"choice" json:"choice"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// GroupStatus is the group's lifecycle snapshot.
type GroupStatus struct {
	Current              string     `bson:"current" json:"current"`
	CompletionPercentage float64    `bson:"completion_percentage" json:"completion_percentage"`
	StartedAt            *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt          *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CompletedEarly       bool       `bson:"completed_early" json:"completed_early"`
	DaysCompletedEarly   int        `bson:"days_completed_early" json:"days_completed_early"`
}

// GroupRewards is the one-time settlement record for a group.
type GroupRewards struct {
	RewardPaid bool       `bson:"reward_paid" json:"reward_paid"`
	PaidAt     *time.Time `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	EventIDs   []string   `bson:"event_ids,omitempty" json:"event_ids,omitempty"`
}

// Group is the aggregate root for one formed group pursuing a mission
// template. All mutation goes through the engine package so that the
// member-count, leader, and progress invariants hold; callers never
// write embedded collections directly.
//
// Version implements optimistic concurrency: every save filters on the
// version that was loaded and increments it, so concurrent writers to
// the same group serialize (one wins, the other reloads and retries).
type Group struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	TemplateID primitive.ObjectID `bson:"template_id" json:"template_id"`
	Name       string             `bson:"name" json:"name"`
	Version    int64              `bson:"version" json:"version"`

	Members         []GroupMember `bson:"members" json:"members"`
	GroupObjectives []Objective   `bson:"group_objectives" json:"group_objectives"`
	StageProgress   []StageStatus `bson:"stage_progress,omitempty" json:"stage_progress,omitempty"`

	LeaderID      primitive.ObjectID `bson:"leader_id" json:"leader_id"`
	LeaderHistory []LeaderChange     `bson:"leader_history,omitempty" json:"leader_history,omitempty"`

	Status  GroupStatus   `bson:"status" json:"status"`
	ChatLog []ChatMessage `bson:"chat_log,omitempty" json:"chat_log,omitempty"`
	VoteLog []Vote        `bson:"vote_log,omitempty" json:"vote_log,omitempty"`
	Rewards GroupRewards  `bson:"rewards" json:"rewards"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Member returns the membership record for userID, or nil.
func (g *Group) Member(userID primitive.ObjectID) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// ActiveMembers returns pointers to all members with status active.
func (g *Group) ActiveMembers() []*GroupMember {
	var out []*GroupMember
	for i := range g.Members {
		if g.Members[i].Status == MemberActive {
			out = append(out, &g.Members[i])
		}
	}
	return out
}

// ParticipatingMembers returns members with status active or completed.
func (g *Group) ParticipatingMembers() []*GroupMember {
	var out []*GroupMember
	for i := range g.Members {
		if g.Members[i].Participating() {
			out = append(out, &g.Members[i])
		}
	}
	return out
}

// CountedMembers returns how many members occupy a capacity slot
// (active, pending, invited, or completed).
func (g *Group) CountedMembers() int {
	n := 0
	for i := range g.Members {
		if g.Members[i].Counted() {
			n++
		}
	}
	return n
}

// Terminal reports whether the group has reached a final state.
func (g *Group) Terminal() bool {
	switch g.Status.Current {
	case GroupCompleted, GroupFailed, GroupDisbanded:
		return true
	}
	return false
}

// GroupObjective returns the group-level objective with the given id, or nil.
func (g *Group) GroupObjective(objectiveID string) *Objective {
	for i := range g.GroupObjectives {
		if g.GroupObjectives[i].ObjectiveID == objectiveID {
			return &g.GroupObjectives[i]
		}
	}
	return nil
}
