package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
	testPoolErr  error
)

// TestPool returns a shared database connection pool for testing.
// The pool is created once and reused across all tests.
// Migrations are run once when the pool is first created.
// Skips the test if TEST_DATABASE_URL is not set.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	testPoolOnce.Do(func() {
		ctx := context.Background()
		testPool, testPoolErr = Connect(ctx, dbURL)
		if testPoolErr != nil {
			return
		}

		// Run migrations once for the shared pool.
		testPoolErr = RunMigrations(ctx, testPool)
	})

	if testPoolErr != nil {
		t.Fatalf("failed to setup test database: %v", testPoolErr)
	}

	return testPool
}

// TestTx returns a database transaction for testing.
// The transaction is automatically rolled back when the test completes,
// ensuring test isolation without the need for table cleanup.
//
// The returned pgx.Tx also satisfies Conn: units of work begun on it
// become savepoints, so commit/rollback semantics can still be exercised.
//
// Usage:
//
//	tx := database.TestTx(t)
//	cards := repository.NewCardRepository(tx)
//	engine := ledger.NewEngine(ledger.NewPostgresGateway(tx), rates)
//	// Everything written through tx is rolled back after the test.
func TestTx(t *testing.T) pgx.Tx {
	t.Helper()

	pool := TestPool(t)
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return tx
}
