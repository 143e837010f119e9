package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"fraudwatch/internal/platform/config"
	"fraudwatch/internal/platform/postgres"
	"fraudwatch/internal/rule/models"
	"fraudwatch/internal/rule/store"
	txmodels "fraudwatch/internal/transaction/models"
	txstore "fraudwatch/internal/transaction/store"
	"fraudwatch/pkg/platform/sentinel"
	platformtx "fraudwatch/pkg/platform/tx"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fraudwatch"),
		tcpostgres.WithUsername("fraudwatch"),
		tcpostgres.WithPassword("fraudwatch"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(ctr))
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.Open(ctx, config.PostgresConfig{
		URL:             url,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, postgres.Migrate(ctx, db))
	return db
}

func pgRule(name string, priority int) models.Rule {
	threshold := decimal.NewFromInt(2000)
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.Rule{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           models.RuleTypeAmountThreshold,
		Condition:      models.CondGreaterThan,
		Action:         models.ActionReject,
		ActionMessage:  "Amount exceeds maximum limit",
		Priority:       priority,
		IsActive:       true,
		ThresholdValue: &threshold,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPostgresRuleStoreRoundTrip(t *testing.T) {
	db := startPostgres(t)
	s := store.NewPostgres(db)
	ctx := context.Background()

	rule := pgRule("HIGH_AMOUNT", 1)
	saved, err := s.Save(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, saved.ID)

	found, err := s.FindByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, found.Name)
	require.NotNil(t, found.ThresholdValue)
	assert.True(t, rule.ThresholdValue.Equal(*found.ThresholdValue))

	// Upsert by id replaces fields.
	rule.Priority = 9
	_, err = s.Save(ctx, rule)
	require.NoError(t, err)
	found, err = s.FindByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, found.Priority)

	// Name uniqueness is enforced case-insensitively by the database.
	dup := pgRule("high_amount", 2)
	_, err = s.Save(ctx, dup)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// Ordering and pagination.
	second := pgRule("SECOND_RULE", 1)
	_, err = s.Save(ctx, second)
	require.NoError(t, err)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "SECOND_RULE", active[0].Name, "lower priority sorts first")

	page, total, err := s.List(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, page, 1)

	count, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.DeleteByID(ctx, second.ID))
	assert.ErrorIs(t, s.DeleteByID(ctx, second.ID), sentinel.ErrNotFound)
}

func TestPostgresTransactionStoreRoundTrip(t *testing.T) {
	db := startPostgres(t)
	s := txstore.NewPostgres(db)
	ctx := context.Background()

	amount := decimal.NewFromInt(150)
	ip := "192.0.0.7"
	txn := txmodels.Transaction{
		TransactionID:     "txn-pg-1",
		Amount:            &amount,
		IPAddress:         &ip,
		OriginatorDetails: map[string]string{"account": "alice"},
		TransferDetails:   map[string]string{"dest": "bob"},
		Status:            txmodels.StatusHold,
		StatusReason:      "Requires manual review",
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := s.Save(ctx, txn)
	require.NoError(t, err)

	exists, err := s.ExistsByID(ctx, "txn-pg-1")
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := s.FindByTransactionID(ctx, "txn-pg-1")
	require.NoError(t, err)
	assert.Equal(t, txn.Status, found.Status)
	assert.Equal(t, txn.OriginatorDetails, found.OriginatorDetails)
	require.NotNil(t, found.Amount)
	assert.True(t, amount.Equal(*found.Amount))

	// Duplicate insert conflicts; the first record stays.
	txn.Status = txmodels.StatusApproved
	_, err = s.Save(ctx, txn)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	_, err = s.FindByTransactionID(ctx, "txn-pg-missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresRuleStoreJoinsContextTransaction(t *testing.T) {
	db := startPostgres(t)
	s := store.NewPostgres(db)
	ctx := context.Background()

	rolledBack := pgRule("TX_ROLLED_BACK", 1)
	sqlTx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = s.Save(platformtx.WithTx(ctx, sqlTx), rolledBack)
	require.NoError(t, err)
	require.NoError(t, sqlTx.Rollback())

	_, err = s.FindByID(ctx, rolledBack.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	committed := pgRule("TX_COMMITTED", 1)
	sqlTx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = s.Save(platformtx.WithTx(ctx, sqlTx), committed)
	require.NoError(t, err)
	require.NoError(t, sqlTx.Commit())

	found, err := s.FindByID(ctx, committed.ID)
	require.NoError(t, err)
	assert.Equal(t, committed.Name, found.Name)
}
