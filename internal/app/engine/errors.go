// internal/app/engine/errors.go
package engine

import "errors"

// Validation errors: rejected synchronously, not retried.
var (
	ErrTemplateNotFound     = errors.New("mission template not found")
	ErrMissionClosed        = errors.New("mission is no longer forming groups")
	ErrGroupNotFound        = errors.New("group not found")
	ErrObjectiveNotFound    = errors.New("objective not found")
	ErrGroupFull            = errors.New("group has reached its maximum member count")
	ErrGroupNotForming      = errors.New("group is not in the forming state")
	ErrGroupNotActive       = errors.New("group is not active")
	ErrGroupTerminal        = errors.New("group has reached a terminal state")
	ErrBelowMinimumMembers  = errors.New("group has not reached its minimum member count")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrNoPendingJoin        = errors.New("no pending join request to cancel")
	ErrAlreadyParticipating = errors.New("user already participates in this mission")
	ErrNoStages             = errors.New("mission has no stages")
)

// Authorization errors: rejected synchronously.
var (
	ErrNotMember      = errors.New("user is not an active member of this group")
	ErrNotLeader      = errors.New("only the group leader may perform this action")
	ErrSelfRating     = errors.New("members cannot rate themselves")
	ErrRatingMode     = errors.New("this mission does not collect ratings of that kind")
	ErrTargetNotFound = errors.New("target member not found in this group")
)

// External-dependency errors: user-retriable.
var (
	ErrRequirementCheck = errors.New("requirement check unavailable, try again")
	ErrRequirementMet   = errors.New("join requirements not met")
)

// RequirementError carries the human-readable reason a join was refused.
type RequirementError struct {
	Reason string
}

func (e *RequirementError) Error() string { return "join requirements not met: " + e.Reason }

func (e *RequirementError) Is(target error) bool { return target == ErrRequirementMet }
