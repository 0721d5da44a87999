// internal/app/system/identity/identity.go

// Package identity extracts the calling user from requests.
// Authentication itself is external: the upstream gateway verifies the
// session and injects the user id as a header, so handlers here only
// need to parse and trust it.
package identity

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Header carries the authenticated user's ObjectID in hex.
const Header = "X-User-ID"

var ErrNoUser = errors.New("missing or invalid user identity")

// UserID returns the calling user's id from the request.
func UserID(r *http.Request) (primitive.ObjectID, error) {
	raw := r.Header.Get(Header)
	if raw == "" {
		return primitive.NilObjectID, ErrNoUser
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, ErrNoUser
	}
	return id, nil
}
