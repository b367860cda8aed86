package handlers

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storage/sqlite"
)

// testEnv wires one in-memory database through the same Writer/ReadPool/
// Notifier collaborators every handler expects, so each handler's tests can
// run against as close to the real stack as the toolchain allows.
type testEnv struct {
	db       *sql.DB
	writer   *storage.Writer
	readPool *storage.ReadPool
	notifier *events.Notifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := sqlite.InitializeTables(context.Background(), db); err != nil {
		t.Fatalf("InitializeTables() error: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}

	env := &testEnv{
		db:       db,
		writer:   storage.NewWriter(db, 8),
		readPool: storage.NewReadPool([]*sql.DB{db}, 2),
		notifier: events.NewNotifier(),
	}
	t.Cleanup(func() {
		env.writer.Stop()
		env.readPool.Stop()
		env.notifier.Stop()
	})
	return env
}

func (e *testEnv) newBase(t *testing.T) base {
	t.Helper()
	storageRoot := t.TempDir()
	return newBase(e.writer, e.readPool, e.notifier, storageRoot)
}
