package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fraudwatch/internal/rule/models"
	"fraudwatch/pkg/platform/sentinel"
)

// InMemory implements ports.RuleStore with a mutex-guarded map. It backs unit
// tests and single-node development; production deployments use Postgres.
type InMemory struct {
	mu    sync.RWMutex
	rules map[string]models.Rule
}

// NewInMemory creates an empty in-memory rule store.
func NewInMemory() *InMemory {
	return &InMemory{rules: make(map[string]models.Rule)}
}

func (s *InMemory) ListActive(ctx context.Context) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (s *InMemory) ListActiveByType(ctx context.Context, ruleType models.RuleType) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Rule
	for _, r := range s.rules {
		if r.IsActive && r.Type == ruleType {
			out = append(out, r)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (s *InMemory) CountActive(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.rules {
		if r.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) List(ctx context.Context, offset, limit int) ([]models.Rule, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		all = append(all, r)
	}
	sortByPriority(all)

	total := len(all)
	if offset >= total {
		return []models.Rule{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *InMemory) Save(ctx context.Context, rule models.Rule) (models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Rule names are unique, case-insensitively, across all rules.
	for _, existing := range s.rules {
		if existing.ID != rule.ID && strings.EqualFold(existing.Name, rule.Name) {
			return models.Rule{}, sentinel.ErrConflict
		}
	}

	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *InMemory) FindByID(ctx context.Context, id string) (models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return models.Rule{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *InMemory) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// sortByPriority orders rules by (priority asc, id asc). The id tiebreak
// makes evaluation order a total order for any fixed snapshot.
func sortByPriority(rules []models.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}
