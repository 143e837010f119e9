// Package ports defines shared interfaces for the rule module.
// Interfaces live here when consumed by more than one package (service,
// cache, handlers) to avoid duplication.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"fraudwatch/internal/rule/models"
)

// RuleStore persists rules. Implementations return sentinel errors
// (pkg/platform/sentinel) for infrastructure facts; services translate them.
type RuleStore interface {
	// ListActive returns active rules ordered by (priority asc, id asc).
	ListActive(ctx context.Context) ([]models.Rule, error)

	// ListActiveByType returns active rules of one type, same ordering.
	ListActiveByType(ctx context.Context, ruleType models.RuleType) ([]models.Rule, error)

	// CountActive returns the number of active rules.
	CountActive(ctx context.Context) (int, error)

	// List returns a page of all rules (active or not) ordered by
	// (priority asc, id asc), plus the total rule count.
	List(ctx context.Context, offset, limit int) ([]models.Rule, int, error)

	// Save inserts or updates a rule. Returns sentinel.ErrConflict when the
	// rule name is already taken by a different rule.
	Save(ctx context.Context, rule models.Rule) (models.Rule, error)

	// FindByID returns sentinel.ErrNotFound when no rule has the id.
	FindByID(ctx context.Context, id string) (models.Rule, error)

	// DeleteByID returns sentinel.ErrNotFound when no rule has the id.
	DeleteByID(ctx context.Context, id string) error
}

// ActiveRuleSource serves the ordered active rule set, typically from a
// cache in front of a RuleStore.
type ActiveRuleSource interface {
	ActiveRules(ctx context.Context) ([]models.Rule, error)
	ActiveRulesByType(ctx context.Context, ruleType models.RuleType) ([]models.Rule, error)
}

// CacheInvalidator evicts cached rule views. The lifecycle service calls it
// after every successful mutation; this is the sole coherence mechanism
// between durable state and the evaluator's view.
type CacheInvalidator interface {
	Invalidate()
}
