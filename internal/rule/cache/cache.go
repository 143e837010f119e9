// Package cache maintains a time-bounded in-memory view of the active rule
// set. The whole active set is a single cache entry (plus one entry per rule
// type): rule sets are small relative to request volume, so whole-set
// caching beats per-rule lookups.
//
// Failure policy (explicit): when a reload from the backing store fails, the
// error PROPAGATES to the caller and the detection service converts it into
// a fail-closed REJECT. The cache never substitutes an empty rule set for a
// failed reload, since that would fail the system open.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"fraudwatch/internal/rule/metrics"
	"fraudwatch/internal/rule/models"
	"fraudwatch/internal/rule/ports"
)

const (
	// DefaultTTL bounds staleness between explicit invalidations.
	DefaultTTL = 5 * time.Minute

	keyAll        = "all"
	keyTypePrefix = "type:"

	// maxEntries covers the whole-set key plus one key per rule type, with
	// headroom for new types.
	maxEntries = 16
)

// ActiveRuleCache serves ordered active-rule snapshots in front of a
// RuleStore. Entries are immutable slices replaced whole on reload, so
// concurrent readers never observe a partially updated list; callers must
// treat returned slices as read-only.
type ActiveRuleCache struct {
	store   ports.RuleStore
	entries *expirable.LRU[string, []models.Rule]
	logger  *slog.Logger
	metrics *metrics.Metrics

	// reloadMu collapses concurrent misses into one synchronous reload.
	reloadMu sync.Mutex
}

// Option configures an ActiveRuleCache.
type Option func(*ActiveRuleCache)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ActiveRuleCache) {
		c.logger = logger
	}
}

// WithMetrics attaches hit/miss/invalidation counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ActiveRuleCache) {
		c.metrics = m
	}
}

// WithTTL overrides the default entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *ActiveRuleCache) {
		c.entries = expirable.NewLRU[string, []models.Rule](maxEntries, nil, ttl)
	}
}

// New constructs a cache over the given store.
func New(store ports.RuleStore, opts ...Option) (*ActiveRuleCache, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	c := &ActiveRuleCache{
		store:   store,
		entries: expirable.NewLRU[string, []models.Rule](maxEntries, nil, DefaultTTL),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ActiveRules returns the active rules sorted by (priority asc, id asc),
// reloading synchronously from the store on miss or expiry.
func (c *ActiveRuleCache) ActiveRules(ctx context.Context) ([]models.Rule, error) {
	return c.lookup(ctx, keyAll, func(ctx context.Context) ([]models.Rule, error) {
		return c.store.ListActive(ctx)
	})
}

// ActiveRulesByType returns the active rules of one type, same ordering.
func (c *ActiveRuleCache) ActiveRulesByType(ctx context.Context, ruleType models.RuleType) ([]models.Rule, error) {
	key := keyTypePrefix + string(ruleType)
	return c.lookup(ctx, key, func(ctx context.Context) ([]models.Rule, error) {
		return c.store.ListActiveByType(ctx, ruleType)
	})
}

func (c *ActiveRuleCache) lookup(ctx context.Context, key string, load func(context.Context) ([]models.Rule, error)) ([]models.Rule, error) {
	if rules, ok := c.entries.Get(key); ok {
		if c.metrics != nil {
			c.metrics.IncrementCacheHits()
		}
		return rules, nil
	}

	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	// Another goroutine may have completed the reload while we waited.
	if rules, ok := c.entries.Get(key); ok {
		if c.metrics != nil {
			c.metrics.IncrementCacheHits()
		}
		return rules, nil
	}

	if c.metrics != nil {
		c.metrics.IncrementCacheMisses()
	}

	rules, err := load(ctx)
	if err != nil {
		// Propagate; see the package failure policy.
		return nil, fmt.Errorf("reload rules for %q: %w", key, err)
	}
	if rules == nil {
		rules = []models.Rule{}
	}
	c.entries.Add(key, rules)

	c.logger.DebugContext(ctx, "rule cache reloaded", "key", key, "rules", len(rules))
	return rules, nil
}

// Invalidate evicts every cached view so the next read reloads from the
// store. The lifecycle service calls this after each successful mutation.
func (c *ActiveRuleCache) Invalidate() {
	c.entries.Purge()
	if c.metrics != nil {
		c.metrics.IncrementCacheInvalidations()
	}
	c.logger.Debug("rule cache invalidated")
}
