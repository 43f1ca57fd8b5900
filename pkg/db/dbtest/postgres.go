//go:build integration

package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	dbpkg "github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

// Postgres starts a throwaway postgres container and applies the embedded
// goose migrations. Callers run with: go test -tags integration ./...
func Postgres(t testing.TB) *dbpkg.Client {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("marketplace"),
		postgres.WithUsername("marketplace"),
		postgres.WithPassword("marketplace"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}
	client, err := dbpkg.New(ctx, config.DBConfig{DSN: dsn, Driver: "postgres", MaxOpenConns: 16}, logger.Nop())
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	pool, err := client.SQL()
	if err != nil {
		t.Fatalf("postgres pool: %v", err)
	}
	if err := migrate.Up(ctx, pool); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return client
}
