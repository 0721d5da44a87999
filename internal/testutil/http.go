package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nestforge/missionhub/internal/app/system/identity"
)

// AuthedRequest builds a test request carrying the given user's identity
// header, the way the gateway presents authenticated callers.
func AuthedRequest(method, target string, userID primitive.ObjectID, body []byte) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set(identity.Header, userID.Hex())
	return r
}

// JSONRequest marshals payload and builds an authenticated request with
// it as the body.
func JSONRequest(t *testing.T, method, target string, userID primitive.ObjectID, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request payload: %v", err)
	}
	return AuthedRequest(method, target, userID, body)
}

// DecodeJSON decodes a recorded response body into out.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}
