package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"repverse/internal/shared/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const testDatabaseEnv = "REPVERSE_TEST_DATABASE_URL"

// NewPostgresTestPool returns a pool bound to a fresh schema, or skips the
// test when REPVERSE_TEST_DATABASE_URL is unset. The cleanup drops the schema.
func NewPostgresTestPool(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	raw, ok := config.DefaultEnvLookup(testDatabaseEnv)
	dbURL := strings.TrimSpace(raw)
	if !ok || dbURL == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adminPool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("create postgres pool: %v", err)
	}
	if err := adminPool.Ping(ctx); err != nil {
		adminPool.Close()
		t.Fatalf("ping postgres: %v", err)
	}

	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	if _, err := adminPool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		adminPool.Close()
		t.Fatalf("create schema: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		adminPool.Close()
		t.Fatalf("parse postgres config: %v", err)
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}
	poolConfig.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		adminPool.Close()
		t.Fatalf("create test postgres pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = adminPool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		adminPool.Close()
	}
	return pool, cleanup
}
