package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudwatch/internal/rule/models"
	"fraudwatch/pkg/platform/sentinel"
)

func memRule(id, name string, priority int, active bool) models.Rule {
	v := "10.0.0."
	return models.Rule{
		ID:          id,
		Name:        name,
		Type:        models.RuleTypeIPBlacklist,
		Condition:   models.CondStartsWith,
		Action:      models.ActionReject,
		Priority:    priority,
		IsActive:    active,
		StringValue: &v,
	}
}

func TestInMemorySaveAndFind(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	saved, err := s.Save(ctx, memRule("a", "R1", 1, true))
	require.NoError(t, err)
	assert.Equal(t, "R1", saved.Name)

	found, err := s.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, saved, found)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemorySaveNameUniqueness(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, err := s.Save(ctx, memRule("a", "High Amount", 1, true))
	require.NoError(t, err)

	// Same name under a different id conflicts, case-insensitively.
	_, err = s.Save(ctx, memRule("b", "HIGH AMOUNT", 2, true))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// Re-saving the same id with the same name is an update, not a conflict.
	updated := memRule("a", "High Amount", 9, true)
	saved, err := s.Save(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, 9, saved.Priority)
}

func TestInMemoryListActiveOrdering(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, err := s.Save(ctx, memRule("c", "R3", 2, true))
	require.NoError(t, err)
	_, err = s.Save(ctx, memRule("a", "R1", 2, true))
	require.NoError(t, err)
	_, err = s.Save(ctx, memRule("b", "R2", 1, true))
	require.NoError(t, err)
	_, err = s.Save(ctx, memRule("d", "R4", 0, false))
	require.NoError(t, err)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	// Priority ascending, id breaking the tie.
	assert.Equal(t, []string{"b", "a", "c"}, []string{active[0].ID, active[1].ID, active[2].ID})
}

func TestInMemoryListActiveByType(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	ip := memRule("a", "IP", 1, true)
	_, err := s.Save(ctx, ip)
	require.NoError(t, err)

	amount := memRule("b", "AMT", 2, true)
	amount.Type = models.RuleTypeAmountThreshold
	amount.Condition = models.CondGreaterThan
	_, err = s.Save(ctx, amount)
	require.NoError(t, err)

	byType, err := s.ListActiveByType(ctx, models.RuleTypeAmountThreshold)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "b", byType[0].ID)
}

func TestInMemoryCountActive(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, err := s.Save(ctx, memRule("a", "R1", 1, true))
	require.NoError(t, err)
	_, err = s.Save(ctx, memRule("b", "R2", 2, false))
	require.NoError(t, err)

	count, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInMemoryListPagination(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		_, err := s.Save(ctx, memRule(id, "R"+id, i, i%2 == 0))
		require.NoError(t, err)
	}

	page, total, err := s.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)

	page, total, err = s.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)

	page, total, err = s.List(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)
}

func TestInMemoryDelete(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, err := s.Save(ctx, memRule("a", "R1", 1, true))
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, "a"))
	assert.ErrorIs(t, s.DeleteByID(ctx, "a"), sentinel.ErrNotFound)
}

func TestSeedDefaultRules(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	seeded, err := SeedDefaultRules(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 3, seeded)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "AMOUNT_REJECT_THRESHOLD", active[0].Name)
	assert.Equal(t, "AMOUNT_HOLD_THRESHOLD", active[1].Name)
	assert.Equal(t, "IP_BLACKLIST_192_SUBNET", active[2].Name)

	// Seeding is idempotent: a populated store is left untouched.
	seeded, err = SeedDefaultRules(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, seeded)

	count, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
