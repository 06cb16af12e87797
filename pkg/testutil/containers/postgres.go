//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	pgplatform "rwagate/internal/platform/postgres"
)

// PostgresContainer wraps a migrated PostgreSQL instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts PostgreSQL, connects with lib/pq and applies the
// embedded schema migrations.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("rwagate"),
		tcpostgres.WithUsername("rwagate"),
		tcpostgres.WithPassword("rwagate"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := pgplatform.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := pgplatform.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// Truncate empties the given tables between tests.
func (p *PostgresContainer) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := p.DB.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}
