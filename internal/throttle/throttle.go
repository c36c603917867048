// Package throttle is the single rate-limiting decision point shared by the
// HTTP and socket transports. Both derive the same key from the same
// descriptor and increment the same distributed counter, so a client cannot
// dodge a limit by switching transports.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/logger"
)

// Defaults shared across both transports.
const (
	DefaultWindow        = 60 * time.Second
	DefaultLimit         = 150
	DefaultBlockDuration = 60 * time.Second
)

// RouteGlobal is the route label both transports use for the app-wide limit.
// A client that exhausts it over HTTP is equally blocked on the socket.
const RouteGlobal = "global"

// Descriptor abstracts one inbound request, whether it arrived over HTTP or
// a persistent socket.
type Descriptor struct {
	// Tracker identifies the client, typically its IP.
	Tracker string
	// Policy names the throttler configuration in force.
	Policy string
	// Route is the logical operation being limited.
	Route string
}

// Key derives the counter key. Identical descriptors map to identical keys
// regardless of transport.
func (d Descriptor) Key() string {
	return fmt.Sprintf("throttle:%s:%s:%s", d.Policy, d.Route, d.Tracker)
}

// Record is the counter store's answer for one increment.
type Record struct {
	TotalHits         int64
	IsBlocked         bool
	TimeToExpire      time.Duration
	TimeToBlockExpire time.Duration
}

// Store is the shared distributed counter. Increment must be atomic: two
// instances incrementing the same key concurrently observe a consistent
// total.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, limit int, blockDuration time.Duration) (Record, error)
}

// Policy is one named rate-limit configuration.
type Policy struct {
	Name          string
	Window        time.Duration
	Limit         int
	BlockDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Name:          "default",
		Window:        DefaultWindow,
		Limit:         DefaultLimit,
		BlockDuration: DefaultBlockDuration,
	}
}

// Throttler makes allow/deny decisions against a shared counter store.
type Throttler struct {
	store  Store
	policy Policy
}

func NewThrottler(store Store, policy Policy) *Throttler {
	if policy.Name == "" {
		policy = DefaultPolicy()
	}
	return &Throttler{store: store, policy: policy}
}

// Check increments the counter for the descriptor and fails with a
// rate-limited error before the underlying handler runs when the client is
// over the limit. Store errors fail open.
func (t *Throttler) Check(ctx context.Context, d Descriptor) error {
	if d.Policy == "" {
		d.Policy = t.policy.Name
	}

	rec, err := t.store.Increment(ctx, d.Key(), t.policy.Window, t.policy.Limit, t.policy.BlockDuration)
	if err != nil {
		logger.Warn().Err(err).Str("key", d.Key()).Msg("throttle store unavailable, allowing request")
		return nil
	}
	if rec.IsBlocked {
		retryAfter := int(rec.TimeToBlockExpire / time.Second)
		if retryAfter <= 0 {
			retryAfter = int(rec.TimeToExpire / time.Second)
		}
		if retryAfter <= 0 {
			retryAfter = 1
		}
		return apperr.RateLimited(retryAfter)
	}
	return nil
}
