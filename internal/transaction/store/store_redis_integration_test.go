package store_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudwatch/internal/transaction/models"
	"fraudwatch/internal/transaction/ports"
	"fraudwatch/internal/transaction/store"
	"fraudwatch/pkg/testutil"
	"fraudwatch/pkg/testutil/containers"
)

// countingTxStore counts how often the duplicate check reaches the inner
// store, so tests can tell index hits from fall-throughs.
type countingTxStore struct {
	ports.TransactionStore
	existsCalls atomic.Int64
}

func (c *countingTxStore) ExistsByID(ctx context.Context, id string) (bool, error) {
	c.existsCalls.Add(1)
	return c.TransactionStore.ExistsByID(ctx, id)
}

func seenTxn(id string) models.Transaction {
	amount := decimal.NewFromInt(120)
	ip := "10.0.0.1"
	return models.Transaction{
		TransactionID: id,
		Amount:        &amount,
		IPAddress:     &ip,
		Status:        models.StatusApproved,
		StatusReason:  "All checks passed",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestRedisSeenIndex(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingTxStore{TransactionStore: store.NewInMemory()}
	idx := store.NewRedisSeenIndex(inner, rc.Client, time.Minute)

	testutil.Given(t, "a transaction saved through the index", func(t *testing.T) {
		_, err := idx.Save(ctx, seenTxn("txn-redis-1"))
		require.NoError(t, err)
	})

	testutil.When(t, "the same id is checked again", func(t *testing.T) {
		before := inner.existsCalls.Load()
		exists, err := idx.ExistsByID(ctx, "txn-redis-1")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, before, inner.existsCalls.Load(), "index hit should not reach the inner store")
	})

	testutil.Then(t, "an unknown id falls through to the inner store", func(t *testing.T) {
		before := inner.existsCalls.Load()
		exists, err := idx.ExistsByID(ctx, "txn-redis-missing")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Equal(t, before+1, inner.existsCalls.Load())
	})
}

func TestRedisSeenIndexBackfillsAfterFlush(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingTxStore{TransactionStore: store.NewInMemory()}
	idx := store.NewRedisSeenIndex(inner, rc.Client, time.Minute)

	_, err := idx.Save(ctx, seenTxn("txn-redis-2"))
	require.NoError(t, err)
	require.NoError(t, rc.FlushAll(ctx))

	// First check misses Redis, consults the store, and backfills the key.
	exists, err := idx.ExistsByID(ctx, "txn-redis-2")
	require.NoError(t, err)
	assert.True(t, exists)

	before := inner.existsCalls.Load()
	exists, err = idx.ExistsByID(ctx, "txn-redis-2")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, before, inner.existsCalls.Load(), "backfilled id should be served from Redis")
}
