// Package service implements the rule lifecycle: create, update, delete,
// toggle, and the read operations the admin API exposes. Every mutation
// ends by invalidating the active-rule cache; that eviction is the sole
// mechanism keeping the evaluator's view coherent with durable state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fraudwatch/internal/rule/metrics"
	"fraudwatch/internal/rule/models"
	"fraudwatch/internal/rule/ports"
	dErrors "fraudwatch/pkg/domain-errors"
	"fraudwatch/pkg/platform/sentinel"
)

// Service manages rule state. Reads of the active set go through the cache;
// administrative reads (paged listing, find by id) go straight to the store.
type Service struct {
	store   ports.RuleStore
	cache   ports.CacheInvalidator
	source  ports.ActiveRuleSource
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics attaches rule metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock sets the time source for timestamp stamping, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs the lifecycle service. cache receives an Invalidate call
// after every successful mutation; source serves the cached active views
// for the read endpoints.
func New(store ports.RuleStore, cache ports.CacheInvalidator, source ports.ActiveRuleSource, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache invalidator is required")
	}
	if source == nil {
		return nil, fmt.Errorf("active rule source is required")
	}

	s := &Service{
		store:  store,
		cache:  cache,
		source: source,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates, stamps, and persists a new rule, then evicts the cache.
// The caller decides IsActive; handlers default it to true when omitted.
func (s *Service) Create(ctx context.Context, rule models.Rule) (models.Rule, error) {
	now := s.clock().UTC()
	rule.ID = uuid.NewString()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := rule.Validate(); err != nil {
		return models.Rule{}, err
	}

	saved, err := s.store.Save(ctx, rule)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Rule{}, dErrors.New(dErrors.CodeConflict, "rule name already in use")
		}
		return models.Rule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create rule")
	}

	s.invalidate("create")
	s.logger.InfoContext(ctx, "rule created", "rule_id", saved.ID, "name", saved.Name)
	return saved, nil
}

// Update replaces all mutable fields of an existing rule and re-stamps
// UpdatedAt. The created-at timestamp and id are preserved.
func (s *Service) Update(ctx context.Context, ruleID string, updated models.Rule) (models.Rule, error) {
	existing, err := s.store.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Rule{}, dErrors.New(dErrors.CodeNotFound, "rule not found: "+ruleID)
		}
		return models.Rule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule")
	}

	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.clock().UTC()

	if err := updated.Validate(); err != nil {
		return models.Rule{}, err
	}

	saved, err := s.store.Save(ctx, updated)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Rule{}, dErrors.New(dErrors.CodeConflict, "rule name already in use")
		}
		return models.Rule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update rule")
	}

	s.invalidate("update")
	s.logger.InfoContext(ctx, "rule updated", "rule_id", saved.ID, "name", saved.Name)
	return saved, nil
}

// Delete removes a rule by id. A missing id is a distinct NotFound error,
// never silently ignored.
func (s *Service) Delete(ctx context.Context, ruleID string) error {
	if err := s.store.DeleteByID(ctx, ruleID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "rule not found: "+ruleID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete rule")
	}

	s.invalidate("delete")
	s.logger.InfoContext(ctx, "rule deleted", "rule_id", ruleID)
	return nil
}

// Toggle flips the rule's active flag and re-stamps UpdatedAt.
func (s *Service) Toggle(ctx context.Context, ruleID string) (models.Rule, error) {
	rule, err := s.store.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Rule{}, dErrors.New(dErrors.CodeNotFound, "rule not found: "+ruleID)
		}
		return models.Rule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule")
	}

	rule.IsActive = !rule.IsActive
	rule.UpdatedAt = s.clock().UTC()

	saved, err := s.store.Save(ctx, rule)
	if err != nil {
		return models.Rule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to toggle rule")
	}

	s.invalidate("toggle")
	s.logger.InfoContext(ctx, "rule toggled", "rule_id", saved.ID, "active", saved.IsActive)
	return saved, nil
}

// Get returns a rule by id, bypassing the cache.
func (s *Service) Get(ctx context.Context, ruleID string) (models.Rule, error) {
	rule, err := s.store.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Rule{}, dErrors.New(dErrors.CodeNotFound, "rule not found: "+ruleID)
		}
		return models.Rule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule")
	}
	return rule, nil
}

// RulePage is one page of the full rule listing.
type RulePage struct {
	Rules []models.Rule `json:"rules"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int           `json:"total"`
}

// List returns a page of all rules ordered by (priority asc, id asc).
func (s *Service) List(ctx context.Context, page, size int) (RulePage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}

	rules, total, err := s.store.List(ctx, page*size, size)
	if err != nil {
		return RulePage{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rules")
	}
	return RulePage{Rules: rules, Page: page, Size: size, Total: total}, nil
}

// ListActive returns the cached ordered active rule set.
func (s *Service) ListActive(ctx context.Context) ([]models.Rule, error) {
	rules, err := s.source.ActiveRules(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active rules")
	}
	return rules, nil
}

// ListActiveByType returns the cached active rules of one type.
func (s *Service) ListActiveByType(ctx context.Context, ruleType models.RuleType) ([]models.Rule, error) {
	if !ruleType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown rule type: "+string(ruleType))
	}
	rules, err := s.source.ActiveRulesByType(ctx, ruleType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active rules by type")
	}
	return rules, nil
}

// CountActive returns the number of active rules, straight from the store.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	count, err := s.store.CountActive(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count active rules")
	}
	return count, nil
}

// ClearCache forces the next active-rule read to reload from the store.
// Exposed for the operator cache-clear endpoint.
func (s *Service) ClearCache(ctx context.Context) {
	s.invalidate("clear_cache")
	s.logger.InfoContext(ctx, "rule cache cleared")
}

func (s *Service) invalidate(operation string) {
	s.cache.Invalidate()
	if s.metrics != nil {
		s.metrics.IncrementMutations(operation)
	}
}
