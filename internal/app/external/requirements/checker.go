// internal/app/external/requirements/checker.go

// Package requirements gates mission joins on externally verified facts:
// NFT ownership and token balances live in the wallet/mint services, so
// the engine only ships a question over HTTP and acts on the answer.
package requirements

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result is the answer to one requirement check. Reason is set when the
// user does not qualify.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Checker verifies a user against a mission's join requirements.
// Implementations must respect the context deadline; a timed-out check
// fails only that user's join attempt, never a whole batch.
type Checker interface {
	CheckRequirements(ctx context.Context, userID primitive.ObjectID, req models.JoinRequirements) (Result, error)
}

// HTTPChecker calls the external requirement-check service.
type HTTPChecker struct {
	base   string
	client *http.Client
}

// NewHTTPChecker builds a checker against baseURL with a hard request
// timeout; the per-call context may shorten it further.
func NewHTTPChecker(baseURL string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		base:   baseURL,
		client: &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	UserID       string                  `json:"user_id"`
	Requirements models.JoinRequirements `json:"requirements"`
}

func (c *HTTPChecker) CheckRequirements(ctx context.Context, userID primitive.ObjectID, req models.JoinRequirements) (Result, error) {
	body, err := json.Marshal(checkRequest{UserID: userID.Hex(), Requirements: req})
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/requirements/check", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("requirement check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("requirement check: unexpected status %d", resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("requirement check: decode: %w", err)
	}
	return out, nil
}

// AllowAll accepts every user; used when no checker service is
// configured and in tests.
type AllowAll struct{}

func (AllowAll) CheckRequirements(ctx context.Context, _ primitive.ObjectID, _ models.JoinRequirements) (Result, error) {
	return Result{OK: true}, nil
}
