package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/quentier/localstorage/internal/settings"
)

func openV2Database(t *testing.T, storageRoot string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(storageRoot, "qn.storage.sqlite"))
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("InitializeTables() error: %v", err)
	}
	if err := bumpVersion(ctx, db, 2); err != nil {
		t.Fatalf("bumpVersion() error: %v", err)
	}
	return db
}

func TestPatch2To3BackfillsNotebookGuidOnNotes(t *testing.T) {
	storageRoot := t.TempDir()
	backupRoot := t.TempDir()
	db := openV2Database(t, storageRoot)
	ctx := context.Background()

	if _, err := db.Exec(
		"INSERT INTO Notebooks(localId, guid, name, nameLower, updateSequenceNumber) VALUES ('nb1', 'nb-guid-1', 'Work', 'work', 5)"); err != nil {
		t.Fatalf("insert notebook: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO Notes(localId, notebookLocalId, notebookGuid) VALUES ('note1', 'nb1', NULL)"); err != nil {
		t.Fatalf("insert note: %v", err)
	}

	store, err := settings.OpenFileStore(filepath.Join(storageRoot, "settings.toml"))
	if err != nil {
		t.Fatalf("OpenFileStore() error: %v", err)
	}
	patch := NewPatch2To3(PatchDependencies{DB: db, StorageRoot: storageRoot, BackupRoot: backupRoot, Settings: store})

	if err := patch.Backup(ctx); err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	if err := patch.Apply(ctx, nil); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if err := patch.RemoveBackup(); err != nil {
		t.Fatalf("RemoveBackup() error: %v", err)
	}

	var notebookGuid string
	if err := db.QueryRow("SELECT notebookGuid FROM Notes WHERE localId = 'note1'").Scan(&notebookGuid); err != nil {
		t.Fatalf("read notebookGuid: %v", err)
	}
	if notebookGuid != "nb-guid-1" {
		t.Fatalf("notebookGuid = %q, want %q", notebookGuid, "nb-guid-1")
	}

	v, err := Version(ctx, db)
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != 3 {
		t.Fatalf("Version() after patch = %d, want 3", v)
	}
}

func TestPatch2To3RelocatesResourceBodyFilesUnderVersionID(t *testing.T) {
	storageRoot := t.TempDir()
	backupRoot := t.TempDir()
	db := openV2Database(t, storageRoot)
	ctx := context.Background()

	if _, err := db.Exec(
		"INSERT INTO Notebooks(localId, name, nameLower) VALUES ('nb1', 'Personal', 'personal')"); err != nil {
		t.Fatalf("insert notebook: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO Notes(localId, notebookLocalId) VALUES ('note1', 'nb1')"); err != nil {
		t.Fatalf("insert note: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO Resources(localId, noteLocalId) VALUES ('res1', 'note1')"); err != nil {
		t.Fatalf("insert resource: %v", err)
	}

	flatDir := filepath.Join(storageRoot, "Resources", "data", "note1")
	if err := os.MkdirAll(flatDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(flatDir, "res1.dat"), []byte("body bytes"), 0o640); err != nil {
		t.Fatalf("write flat file: %v", err)
	}

	store, err := settings.OpenFileStore(filepath.Join(storageRoot, "settings.toml"))
	if err != nil {
		t.Fatalf("OpenFileStore() error: %v", err)
	}
	patch := NewPatch2To3(PatchDependencies{DB: db, StorageRoot: storageRoot, BackupRoot: backupRoot, Settings: store})

	if err := patch.Backup(ctx); err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	if err := patch.Apply(ctx, nil); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	var versionID string
	if err := db.QueryRow(
		"SELECT versionId FROM ResourceDataBodyVersionIds WHERE resourceLocalId = 'res1'").Scan(&versionID); err != nil {
		t.Fatalf("read assigned version id: %v", err)
	}
	if versionID == "" {
		t.Fatal("expected a non-empty generated version id")
	}

	if _, err := os.Stat(filepath.Join(flatDir, "res1.dat")); !os.IsNotExist(err) {
		t.Fatal("expected the flat res1.dat file to no longer exist")
	}

	relocated := filepath.Join(flatDir, "res1", versionID+".dat")
	got, err := os.ReadFile(relocated)
	if err != nil {
		t.Fatalf("read relocated file %s: %v", relocated, err)
	}
	if string(got) != "body bytes" {
		t.Fatalf("relocated file content = %q, want %q", got, "body bytes")
	}

	var altVersionID string
	err = db.QueryRow(
		"SELECT versionId FROM ResourceAlternateDataBodyVersionIds WHERE resourceLocalId = 'res1'").Scan(&altVersionID)
	if err != sql.ErrNoRows {
		t.Fatalf("res1 has no alternateData file, expected no ResourceAlternateDataBodyVersionIds row, got err=%v", err)
	}
}
