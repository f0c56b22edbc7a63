// Package redisstore holds the Redis-backed ephemeral state shared across
// webhook deliveries: verification contexts, outcome flags, and the
// per-caller rate-limit counters. Nothing here survives its TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/doorlink/doorlink/internal/domain"
)

const (
	contextKeyPrefix = "verify:"
	outcomeKeyPrefix = "outcome:"
)

type EphemeralRepository interface {
	PutContext(ctx context.Context, vc *domain.VerificationContext, ttl time.Duration) error
	GetContext(ctx context.Context, callSID string) (*domain.VerificationContext, error)
	DeleteContext(ctx context.Context, callSID string) error

	// PutOutcome / TakeOutcome form the mailbox between the verification
	// phase and the reconciliation phase. TakeOutcome consumes the flags
	// exactly once; a second take for the same call SID returns nil.
	PutOutcome(ctx context.Context, callSID string, flags *domain.OutcomeFlags, ttl time.Duration) error
	TakeOutcome(ctx context.Context, callSID string) (*domain.OutcomeFlags, error)
}

type ephemeralRepository struct {
	client *redis.Client
}

func NewEphemeralRepository(client *redis.Client) EphemeralRepository {
	return &ephemeralRepository{client: client}
}

func (r *ephemeralRepository) PutContext(ctx context.Context, vc *domain.VerificationContext, ttl time.Duration) error {
	payload, err := json.Marshal(vc)
	if err != nil {
		return fmt.Errorf("failed to marshal verification context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Set(ctx, contextKeyPrefix+vc.CallSID, payload, ttl).Err()
}

func (r *ephemeralRepository) GetContext(ctx context.Context, callSID string) (*domain.VerificationContext, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	payload, err := r.client.Get(ctx, contextKeyPrefix+callSID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var vc domain.VerificationContext
	if err := json.Unmarshal(payload, &vc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification context: %w", err)
	}
	return &vc, nil
}

func (r *ephemeralRepository) DeleteContext(ctx context.Context, callSID string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Del(ctx, contextKeyPrefix+callSID).Err()
}

func (r *ephemeralRepository) PutOutcome(ctx context.Context, callSID string, flags *domain.OutcomeFlags, ttl time.Duration) error {
	payload, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome flags: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Set(ctx, outcomeKeyPrefix+callSID, payload, ttl).Err()
}

func (r *ephemeralRepository) TakeOutcome(ctx context.Context, callSID string) (*domain.OutcomeFlags, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	payload, err := r.client.GetDel(ctx, outcomeKeyPrefix+callSID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var flags domain.OutcomeFlags
	if err := json.Unmarshal(payload, &flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome flags: %w", err)
	}
	return &flags, nil
}
