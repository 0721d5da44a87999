// internal/app/system/apiutil/apiutil.go

// Package apiutil holds the JSON response plumbing shared by the API
// feature handlers, including the mapping from engine errors to HTTP
// status codes.
package apiutil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nestforge/missionhub/internal/app/engine"
	groupstore "github.com/nestforge/missionhub/internal/app/store/groups"
	"github.com/nestforge/missionhub/internal/app/system/identity"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Retriable bool   `json:"retriable,omitempty"`
}

// Error writes an error response with an explicit status.
func Error(w http.ResponseWriter, status int, reason string) {
	JSON(w, status, errorBody{Error: reason})
}

// EngineError maps an engine error onto the API taxonomy: validation
// 400/404/409, authorization 403, conflicts 409, external dependencies
// 502. Unknown errors become a logged 500 with a generic body.
func EngineError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, engine.ErrTemplateNotFound),
		errors.Is(err, engine.ErrGroupNotFound),
		errors.Is(err, engine.ErrObjectiveNotFound),
		errors.Is(err, engine.ErrNoPendingJoin):
		Error(w, http.StatusNotFound, err.Error())

	case errors.Is(err, engine.ErrNotMember),
		errors.Is(err, engine.ErrNotLeader),
		errors.Is(err, engine.ErrSelfRating):
		Error(w, http.StatusForbidden, err.Error())

	case errors.Is(err, engine.ErrAlreadyParticipating),
		errors.Is(err, engine.ErrGroupFull),
		errors.Is(err, engine.ErrGroupTerminal),
		errors.Is(err, engine.ErrGroupNotForming),
		errors.Is(err, engine.ErrGroupNotActive),
		errors.Is(err, engine.ErrBelowMinimumMembers),
		errors.Is(err, groupstore.ErrVersionConflict):
		Error(w, http.StatusConflict, err.Error())

	case errors.Is(err, engine.ErrMissionClosed),
		errors.Is(err, engine.ErrInvalidRating),
		errors.Is(err, engine.ErrRatingMode),
		errors.Is(err, engine.ErrTargetNotFound),
		errors.Is(err, engine.ErrNoStages),
		errors.Is(err, engine.ErrRequirementMet):
		Error(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, engine.ErrRequirementCheck):
		JSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Retriable: true})

	default:
		log.Error("unhandled engine error", zap.Error(err))
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// RequireUser extracts the calling user or writes a 401.
func RequireUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	uid, err := identity.UserID(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, err.Error())
		return primitive.NilObjectID, false
	}
	return uid, true
}
