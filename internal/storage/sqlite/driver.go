package sqlite

import (
	"database/sql"

	// Blank-imported so database/sql recognizes the "sqlite" driver name;
	// this is the engine's default and only CGO-free backend.
	_ "modernc.org/sqlite"
	// Blank-imported for the "mysql" driver name, used when the engine is
	// pointed at a MySQL-compatible server (including Dolt's server mode).
	_ "github.com/go-sql-driver/mysql"
	// Blank-imported for the "dolt" driver name, an embedded (no server
	// required) Dolt connection.
	_ "github.com/dolthub/driver"

	"github.com/quentier/localstorage/internal/storeerrors"
)

// DriverName identifies which database/sql driver a Connection Pool should
// use to open connections.
type DriverName string

const (
	DriverSQLite DriverName = "sqlite"
	DriverMySQL  DriverName = "mysql"
	DriverDolt   DriverName = "dolt"
)

// SupportedDrivers lists every driver name this build recognizes. It is
// used to validate a requested driver and to compose the "driver
// unavailable" error message.
var SupportedDrivers = []DriverName{DriverSQLite, DriverMySQL, DriverDolt}

func isSupportedDriver(name DriverName) bool {
	for _, d := range SupportedDrivers {
		if d == name {
			return true
		}
	}
	return false
}

// openDB is the thin indirection over database/sql.Open the Connection
// Pool calls through — its only purpose is to make connection opening
// substitutable in tests (spec's "exists solely to allow testing").
var openDB = sql.Open

// OpenConnection opens a single *sql.DB handle for driver against dsn. It
// does not configure pooling (database/sql's own pool is disabled by the
// caller, which wants exactly one connection per pool entry) or run
// PRAGMAs; callers do that once they have the handle.
func OpenConnection(driver DriverName, dsn string) (*sql.DB, error) {
	if !isSupportedDriver(driver) {
		return nil, storeerrors.New(
			storeerrors.StorageOpen,
			"unsupported driver "+string(driver),
			driverListForError(),
		)
	}
	db, err := openDB(string(driver), dsn)
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "open "+string(driver)+" connection", err)
	}
	return db, nil
}

func driverListForError() string {
	out := "available drivers: "
	for i, d := range SupportedDrivers {
		if i > 0 {
			out += ", "
		}
		out += string(d)
	}
	return out
}
