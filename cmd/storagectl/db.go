package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storage/sqlite"
)

// openDB opens a single ad hoc connection to cfg's database for a one-shot
// CLI command (migrate, backup, sweep, ...), creating the schema if needed.
// A sqlite database file that did not exist before this call is stamped
// with sqlite.HighestSupportedVersion, since its tables already have the
// latest shape. These commands run outside the writer/read-pool split the
// running engine uses, so a bare database/sql handle is enough.
func openDB() (*sql.DB, error) {
	if err := os.MkdirAll(cfg.StorageRoot, 0o750); err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	fresh := false
	if dsn == "" && cfg.Driver == sqlite.DriverSQLite {
		dsn = storage.SQLiteConnString(cfg.DatabasePath(), false)
		_, statErr := os.Stat(cfg.DatabasePath())
		fresh = os.IsNotExist(statErr)
	}
	db, err := sqlite.OpenConnection(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := sqlite.InitializeTables(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	if fresh {
		if _, err := db.Exec("INSERT INTO Auxiliary(version) VALUES (?)", sqlite.HighestSupportedVersion); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
