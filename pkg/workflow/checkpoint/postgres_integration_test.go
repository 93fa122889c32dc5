//go:build integration

package checkpoint_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
)

// testPool is shared by every integration test in this package.
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("medigraph_test"),
		postgres.WithUsername("medigraph"),
		postgres.WithPassword("medigraph"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("checkpoint: failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("checkpoint: failed to get connection string: %v", err)
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("checkpoint: failed to create pool: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Printf("checkpoint: failed to terminate container: %v", err)
	}
	os.Exit(code)
}

var tableSeq int

// TestPostgresStore runs the store contract against a real database, one
// table per subtest so runs stay isolated.
func TestPostgresStore(t *testing.T) {
	factory := func(t *testing.T) checkpoint.Store {
		tableSeq++
		store := checkpoint.NewPostgresStore(testPool,
			checkpoint.WithTableName(fmt.Sprintf("checkpoints_%d", tableSeq)))
		require.NoError(t, store.EnsureSchema(context.Background()))
		return store
	}
	storeContractTest(t, "PostgresStore", factory)
}
