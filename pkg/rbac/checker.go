package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Checker handles permission checking and evaluation
type Checker interface {
	// CheckPermission checks if a user holds a capability
	CheckPermission(ctx context.Context, check PermissionCheck) (*PermissionCheckResult, error)

	// InvalidateCache drops cached decisions for a user
	InvalidateCache(ctx context.Context, userID int64) error
}

// DecisionRecorder receives every guard decision
type DecisionRecorder interface {
	RecordGuardDecision(capability string, allowed, cached bool)
}

// CheckerConfig configures the decision cache
type CheckerConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultCheckerConfig returns the default cache settings
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		CacheSize: 4096,
		CacheTTL:  30 * time.Second,
	}
}

// PermissionChecker implements the Checker interface
type PermissionChecker struct {
	store    *Store
	cache    *lru.LRU[string, bool]
	flight   singleflight.Group
	recorder DecisionRecorder
	bus      InvalidationBus

	mu          sync.Mutex
	generations map[int64]uint64
	epoch       uint64
}

// NewPermissionChecker creates a new permission checker. A zero CacheTTL or
// CacheSize disables caching.
func NewPermissionChecker(db *sql.DB, config CheckerConfig) *PermissionChecker {
	pc := &PermissionChecker{
		store:       NewStore(db),
		generations: make(map[int64]uint64),
	}
	if config.CacheSize > 0 && config.CacheTTL > 0 {
		pc.cache = lru.NewLRU[string, bool](config.CacheSize, nil, config.CacheTTL)
	}
	return pc
}

// SetRecorder installs a decision recorder
func (pc *PermissionChecker) SetRecorder(recorder DecisionRecorder) {
	pc.recorder = recorder
}

// SetInvalidationBus makes InvalidateCache reach the caches of other
// processes too
func (pc *PermissionChecker) SetInvalidationBus(bus InvalidationBus) {
	pc.bus = bus
}

// CheckPermission checks if a user holds a capability. Anonymous and
// inactive actors are never allowed; superusers always are.
func (pc *PermissionChecker) CheckPermission(ctx context.Context, check PermissionCheck) (*PermissionCheckResult, error) {
	now := time.Now()

	if check.Actor == nil || !check.Actor.IsActive {
		return pc.record(check, &PermissionCheckResult{Allowed: false, Reason: "anonymous actor", CheckedAt: now}), nil
	}
	if check.Actor.IsSuperuser {
		return pc.record(check, &PermissionCheckResult{Allowed: true, Reason: "superuser", CheckedAt: now}), nil
	}
	if !check.Capability.Valid() {
		return nil, fmt.Errorf("unknown capability %q", check.Capability)
	}

	key := cacheKey(check)
	if pc.cache != nil {
		if allowed, ok := pc.cache.Get(key); ok {
			return pc.record(check, &PermissionCheckResult{
				Allowed:   allowed,
				Reason:    reason(allowed, check),
				Cached:    true,
				CheckedAt: now,
			}), nil
		}
	}

	userID := check.Actor.ID
	generation := pc.generation(userID)

	flightKey := fmt.Sprintf("%s#%s", key, generation)
	v, err, _ := pc.flight.Do(flightKey, func() (interface{}, error) {
		return pc.evaluate(ctx, check)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check permission: %w", err)
	}
	allowed := v.(bool)

	// Skip caching when the user was invalidated while we were loading
	if pc.cache != nil && pc.generation(userID) == generation {
		pc.cache.Add(key, allowed)
	}

	return pc.record(check, &PermissionCheckResult{
		Allowed:   allowed,
		Reason:    reason(allowed, check),
		CheckedAt: now,
	}), nil
}

func (pc *PermissionChecker) evaluate(ctx context.Context, check PermissionCheck) (bool, error) {
	userID := check.Actor.ID

	ok, err := pc.store.hasUserGrant(ctx, userID, check.Capability)
	if err != nil || ok {
		return ok, err
	}

	if check.LocationID == nil {
		return false, nil
	}
	return pc.store.hasGroupGrant(ctx, userID, check.Capability, *check.LocationID)
}

// InvalidateCache drops cached decisions for a user here and, with an
// invalidation bus, in every other process
func (pc *PermissionChecker) InvalidateCache(ctx context.Context, userID int64) error {
	pc.dropUser(userID)
	if pc.bus == nil {
		return nil
	}
	return pc.bus.Publish(ctx, userID)
}

func (pc *PermissionChecker) dropUser(userID int64) {
	pc.mu.Lock()
	pc.generations[userID]++
	pc.mu.Unlock()

	if pc.cache == nil {
		return
	}

	prefix := fmt.Sprintf("%d:", userID)
	for _, key := range pc.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			pc.cache.Remove(key)
		}
	}
}

func (pc *PermissionChecker) dropAll() {
	pc.mu.Lock()
	pc.epoch++
	pc.mu.Unlock()

	if pc.cache != nil {
		pc.cache.Purge()
	}
}

// generation changes whenever the user's cached decisions are dropped
func (pc *PermissionChecker) generation(userID int64) string {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return fmt.Sprintf("%d.%d", pc.epoch, pc.generations[userID])
}

func (pc *PermissionChecker) record(check PermissionCheck, result *PermissionCheckResult) *PermissionCheckResult {
	if pc.recorder != nil {
		pc.recorder.RecordGuardDecision(string(check.Capability), result.Allowed, result.Cached)
	}
	return result
}

func cacheKey(check PermissionCheck) string {
	var location int64
	if check.LocationID != nil {
		location = *check.LocationID
	}
	return fmt.Sprintf("%d:%s:%d", check.Actor.ID, check.Capability, location)
}

func reason(allowed bool, check PermissionCheck) string {
	if allowed {
		return fmt.Sprintf("granted %s", check.Capability)
	}
	return fmt.Sprintf("missing %s", check.Capability)
}
