package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"rwagate/internal/platform/config"
	"rwagate/internal/platform/httpserver"
	"rwagate/internal/platform/postgres"
	redisplatform "rwagate/internal/platform/redis"
	auditpg "rwagate/pkg/platform/audit/store/postgres"
	"rwagate/pkg/platform/audit/worker"
	"rwagate/pkg/platform/tx"
)

// infra holds the external connections. Every field is optional: without a
// DATABASE_URL the gateway runs on in-memory stores, without REDIS_URL it
// uses process-local locks, and without KAFKA_BROKERS the outbox is not
// relayed.
type infra struct {
	db       *sql.DB
	pool     *pgxpool.Pool
	redis    *redisplatform.Client
	runner   tx.Runner
	outbox   *auditpg.Store
	producer *worker.KafkaProducer
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{runner: tx.NopRunner{}}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		in.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			in.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("open ledger pool: %w", err)
		}
		in.pool = pool
		in.runner = tx.NewSQLRunner(db)
		in.outbox = auditpg.New(db)
		log.Info("postgres stores enabled")
	}

	client, err := redisplatform.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	in.redis = client
	if client != nil {
		log.Info("redis ledger and locks enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if in.outbox == nil {
			log.Warn("KAFKA_BROKERS is set but there is no outbox without DATABASE_URL; relay disabled")
		} else {
			producer, err := worker.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				in.Close()
				return nil, fmt.Errorf("create kafka producer: %w", err)
			}
			in.producer = producer
		}
	}
	return in, nil
}

func (in *infra) HealthChecks() map[string]httpserver.HealthCheck {
	checks := map[string]httpserver.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.pool != nil {
		checks["ledger_pool"] = in.pool.Ping
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.producer != nil {
		checks["kafka"] = in.producer.Ping
	}
	return checks
}

func (in *infra) Close() {
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.pool != nil {
		in.pool.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
