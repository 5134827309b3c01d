package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"vega/internal/adapters/config"
	"vega/internal/adapters/postgres"
)

// snapshotSchema creates the snapshot table inside the test transaction
const snapshotSchema = `
	CREATE TABLE IF NOT EXISTS option_snapshots (
		symbol           TEXT NOT NULL,
		snapshot_date    DATE NOT NULL,
		underlying_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		data             JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, snapshot_date)
	)
`

// PostgresTestHelper manages a transactional connection for integration tests.
type PostgresTestHelper struct {
	client     *postgres.Client
	tx         *sqlx.Tx
	rolledBack bool
}

// NewPostgresTestHelper opens a connection and begins a transaction that is always rolled back.
func NewPostgresTestHelper(t *testing.T, cfg config.PostgresConfig) *PostgresTestHelper {
	t.Helper()

	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("failed to start transaction: %v", err)
	}

	if _, err := tx.ExecContext(context.Background(), snapshotSchema); err != nil {
		_ = tx.Rollback()
		_ = client.Close()
		t.Fatalf("failed to ensure snapshot schema: %v", err)
	}

	helper := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(helper.Rollback)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return helper
}

// Tx returns the active transaction for the test.
func (h *PostgresTestHelper) Tx() *sqlx.Tx {
	return h.tx
}

// DB returns the underlying database handle.
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

// Rollback rolls back the transaction once.
func (h *PostgresTestHelper) Rollback() {
	if h.rolledBack {
		return
	}
	_ = h.tx.Rollback()
	h.rolledBack = true
}

// NewTestPostgres creates a test helper with config loaded from the environment,
// skipping the test when the integration environment is absent.
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()
	return NewPostgresTestHelper(t, LoadDatabaseConfigsFromEnv(t).Postgres)
}
