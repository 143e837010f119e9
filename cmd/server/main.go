package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	detectionhandler "fraudwatch/internal/detection/handler"
	detectionmetrics "fraudwatch/internal/detection/metrics"
	detectionservice "fraudwatch/internal/detection/service"
	jwttoken "fraudwatch/internal/jwt_token"
	"fraudwatch/internal/platform/config"
	"fraudwatch/internal/platform/httpserver"
	"fraudwatch/internal/platform/logger"
	"fraudwatch/internal/platform/metrics"
	"fraudwatch/internal/platform/postgres"
	platformredis "fraudwatch/internal/platform/redis"
	rulecache "fraudwatch/internal/rule/cache"
	rulehandler "fraudwatch/internal/rule/handler"
	rulemetrics "fraudwatch/internal/rule/metrics"
	ruleports "fraudwatch/internal/rule/ports"
	ruleservice "fraudwatch/internal/rule/service"
	rulestore "fraudwatch/internal/rule/store"
	txports "fraudwatch/internal/transaction/ports"
	txstore "fraudwatch/internal/transaction/store"
	httptransport "fraudwatch/internal/transport/http"
	"fraudwatch/pkg/platform/events"
	"fraudwatch/pkg/platform/executor"
	platformtx "fraudwatch/pkg/platform/tx"
)

// seenIndexRetention bounds how long the Redis duplicate index remembers a
// transaction id. The durable store stays authoritative beyond it.
const seenIndexRetention = 24 * time.Hour

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httptransport.HealthChecker{}

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		db        *sql.DB
		ruleStore ruleports.RuleStore
		txStore   txports.TransactionStore
	)
	if cfg.Postgres.URL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		ruleStore = rulestore.NewPostgres(db)
		txStore = txstore.NewPostgres(db)
		health["postgres"] = dbHealth{db: db}
	} else {
		log.Warn("no database configured, using in-memory stores")
		ruleStore = rulestore.NewInMemory()
		txStore = txstore.NewInMemory()
	}

	// Optional Redis seen-index in front of the transaction store.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		txStore = txstore.NewRedisSeenIndex(txStore, redisClient.Client, seenIndexRetention)
		health["redis"] = redisClient
	}

	if cfg.SeedRules {
		seeded, err := seedRules(ctx, db, ruleStore)
		if err != nil {
			log.Error("rule seeding failed", "error", err)
			os.Exit(1)
		}
		if seeded > 0 {
			log.Info("seeded default rules", "count", seeded)
		}
	}

	ruleCache, err := rulecache.New(ruleStore,
		rulecache.WithTTL(cfg.CacheTTL),
		rulecache.WithLogger(log),
		rulecache.WithMetrics(rulemetrics.New()),
	)
	if err != nil {
		log.Error("rule cache init failed", "error", err)
		os.Exit(1)
	}

	// Optional decision event stream.
	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			events.WithKafkaLogger(log))
		if err != nil {
			log.Error("kafka publisher init failed", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	}

	evalPool := executor.New("evaluation", cfg.Detection.Workers, cfg.Detection.QueueSize)
	defer evalPool.Close()
	asyncPool := executor.New("async-check", cfg.Detection.Workers, cfg.Detection.QueueSize)
	defer asyncPool.Close()

	detectionOpts := []detectionservice.Option{
		detectionservice.WithLogger(log),
		detectionservice.WithMetrics(detectionmetrics.New()),
		detectionservice.WithEvaluationTimeout(cfg.Detection.EvalTimeout),
	}
	if publisher != nil {
		detectionOpts = append(detectionOpts, detectionservice.WithPublisher(publisher))
	}
	detectionSvc, err := detectionservice.New(ruleCache, txStore, evalPool, detectionOpts...)
	if err != nil {
		log.Error("detection service init failed", "error", err)
		os.Exit(1)
	}

	ruleSvc, err := ruleservice.New(ruleStore, ruleCache, ruleCache,
		ruleservice.WithLogger(log))
	if err != nil {
		log.Error("rule service init failed", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "fraudwatch", "fraudwatch-api")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := httptransport.NewRouter(httptransport.Deps{
		Rules:     rulehandler.New(ruleSvc, log, validator),
		Detection: detectionhandler.New(detectionSvc, asyncPool, log),
		Metrics:   metrics.New(),
		Logger:    log,
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting fraudwatch", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// seedRules installs the baseline rule set. With PostgreSQL the inserts run
// inside one transaction so a partial seed never becomes visible.
func seedRules(ctx context.Context, db *sql.DB, rs ruleports.RuleStore) (int, error) {
	if db == nil {
		return rulestore.SeedDefaultRules(ctx, rs)
	}

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	seeded, err := rulestore.SeedDefaultRules(platformtx.WithTx(ctx, sqlTx), rs)
	if err != nil {
		return 0, err
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, err
	}
	return seeded, nil
}

type dbHealth struct {
	db interface {
		PingContext(ctx context.Context) error
	}
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
