package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"fraudwatch/internal/transaction/models"
	"fraudwatch/internal/transaction/ports"
	"fraudwatch/pkg/platform/circuit"
)

var duplicateCheckDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "fraudwatch_duplicate_check_duration_ms",
	Help:    "Latency of duplicate transaction-id checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const seenKeyPrefix = "fw:txn:"

// RedisSeenIndex layers a Redis membership index over another transaction
// store so the hot duplicate check avoids a database round trip. Redis is an
// accelerator only: on any Redis failure the check falls through to the
// inner store, and a missed index entry is backfilled on the next lookup.
// A circuit breaker stops hammering Redis while it is down.
type RedisSeenIndex struct {
	inner     ports.TransactionStore
	client    *redis.Client
	retention time.Duration
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

// NewRedisSeenIndex constructs the index. retention bounds how long a
// transaction id is held in Redis; the inner store remains authoritative.
func NewRedisSeenIndex(inner ports.TransactionStore, client *redis.Client, retention time.Duration) *RedisSeenIndex {
	return &RedisSeenIndex{
		inner:     inner,
		client:    client,
		retention: retention,
		breaker:   circuit.New("redis-seen-index"),
		logger:    slog.Default(),
	}
}

func (s *RedisSeenIndex) ExistsByID(ctx context.Context, transactionID string) (bool, error) {
	start := time.Now()
	defer func() {
		duplicateCheckDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if s.breaker.IsOpen() {
		// Probe occasionally via mark(); reads go straight to the store.
		return s.inner.ExistsByID(ctx, transactionID)
	}

	_, err := s.client.Get(ctx, seenKeyPrefix+transactionID).Result()
	if err == nil {
		s.breaker.RecordSuccess()
		return true, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Redis unavailable: the authoritative store answers.
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.Warn("redis seen-index circuit opened", "error", err)
		}
		return s.inner.ExistsByID(ctx, transactionID)
	}
	s.breaker.RecordSuccess()

	exists, err := s.inner.ExistsByID(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if exists {
		s.mark(ctx, transactionID)
	}
	return exists, nil
}

func (s *RedisSeenIndex) Save(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	saved, err := s.inner.Save(ctx, txn)
	if err != nil {
		return models.Transaction{}, err
	}
	s.mark(ctx, saved.TransactionID)
	return saved, nil
}

func (s *RedisSeenIndex) FindByTransactionID(ctx context.Context, transactionID string) (models.Transaction, error) {
	return s.inner.FindByTransactionID(ctx, transactionID)
}

// mark records the id in Redis, best effort. The key existence is what
// matters; the value is a placeholder. Writes keep running while the circuit
// is open so they double as recovery probes.
func (s *RedisSeenIndex) mark(ctx context.Context, transactionID string) {
	if err := s.client.Set(ctx, seenKeyPrefix+transactionID, "1", s.retention).Err(); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.Warn("redis seen-index circuit opened", "error", err)
		}
		return
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.Info("redis seen-index circuit closed")
	}
}
