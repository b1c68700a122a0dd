//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/storage/postgres"
	"github.com/ClipFinance/bridge-engine/storage/storetest"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres returns a DSN from TEST_DB_URL or from a throwaway container.
func startPostgres(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DB_URL"); dsn != "" {
		return dsn
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bridge_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestStoreConformance(t *testing.T) {
	dsn := startPostgres(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storetest.Run(t, func(t *testing.T) types.TransactionStore {
		store, err := postgres.NewStore(context.Background(), postgres.Config{DSN: dsn, MaxOpenConns: 10}, logger)
		require.NoError(t, err)

		t.Cleanup(func() { store.Close() })

		_, err = db.ExecContext(context.Background(),
			`TRUNCATE bridge_transaction_events, bridge_transactions RESTART IDENTITY`)
		require.NoError(t, err)
		return store
	})
}
