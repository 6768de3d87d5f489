package clerkwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trendlens/trendlens-api/pkg/redis"
)

const DeliveryScope = "clerk_webhook"

// ProcessingTTL bounds how long an in-flight mark survives a process that
// dies mid-dispatch. Confirm extends the mark to the full replay TTL.
const ProcessingTTL = 2 * time.Minute

type guardStore interface {
	redis.IdempotencyStore
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// DeliveryGuard marks svix delivery ids as seen so redeliveries of a
// processed event are acknowledged without running the handler again.
type DeliveryGuard struct {
	store      guardStore
	ttl        time.Duration
	processing time.Duration
	scope      string
}

func NewDeliveryGuard(store guardStore, ttl time.Duration) (*DeliveryGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &DeliveryGuard{store: store, ttl: ttl, processing: min(ProcessingTTL, ttl), scope: DeliveryScope}, nil
}

// CheckAndMark reports whether deliveryID was already marked, marking it as
// in flight otherwise.
func (g *DeliveryGuard) CheckAndMark(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(deliveryID), "1", g.processing)
	if err != nil {
		return false, fmt.Errorf("set delivery key: %w", err)
	}
	return !set, nil
}

// Confirm keeps the mark for the full replay window after a successful
// dispatch.
func (g *DeliveryGuard) Confirm(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	return g.store.Expire(ctx, g.key(deliveryID), g.ttl)
}

func (g *DeliveryGuard) key(deliveryID string) string {
	return g.store.IdempotencyKey(g.scope, deliveryID)
}

// Release forgets deliveryID so the provider's retry is processed.
func (g *DeliveryGuard) Release(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	return g.store.Del(ctx, g.key(deliveryID))
}
