package sqlite

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitializeTablesIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("first InitializeTables() error: %v", err)
	}
	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("second InitializeTables() error: %v", err)
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO Notebooks(localId, name, nameLower) VALUES ('nb1', 'Personal', 'personal')"); err != nil {
		t.Fatalf("insert into Notebooks: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO Notebooks(localId, name, nameLower) VALUES ('nb2', 'PERSONAL', 'personal')"); err == nil {
		t.Fatal("expected unique-name-in-scope constraint violation")
	}
}

func TestInitializeTablesEnforcesNoteNotebookForeignKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("InitializeTables() error: %v", err)
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO Notes(localId, notebookLocalId) VALUES ('n1', 'missing-notebook')")
	if err == nil {
		t.Fatal("expected foreign key violation inserting a note with an unknown notebook")
	}
}
