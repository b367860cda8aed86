//go:build integration

package sqlite_test

import (
	"context"
	"testing"

	tcdolt "github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/quentier/localstorage/internal/storage/sqlite"
)

// TestOpenConnectionAgainstDoltServer exercises the Database Driver
// Wrapper's "dolt" path against a real dolt sql-server, the server-mode
// connection beads/internal/storage/dolt/store.go's newServerMode falls
// back to over the MySQL wire protocol (go-sql-driver/mysql) rather than
// the embedded CGO driver, so this test runs without CGO.
func TestOpenConnectionAgainstDoltServer(t *testing.T) {
	ctx := context.Background()

	container, err := tcdolt.Run(ctx, "dolthub/dolt-sql-server:latest")
	if err != nil {
		t.Fatalf("start dolt container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate dolt container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("dolt connection string: %v", err)
	}

	db, err := sqlite.OpenConnection(sqlite.DriverMySQL, dsn)
	if err != nil {
		t.Fatalf("open dolt connection: %v", err)
	}
	defer db.Close()

	if err := sqlite.InitializeTables(ctx, db); err != nil {
		t.Fatalf("initialize tables against dolt: %v", err)
	}

	version, err := sqlite.Version(ctx, db)
	if err != nil {
		t.Fatalf("read schema version from dolt: %v", err)
	}
	if version != 1 {
		t.Fatalf("freshly initialized dolt database at version %d, want 1 (InitializeTables writes no Auxiliary row)", version)
	}
}
