package synccache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/storage/sqlite"
	"github.com/quentier/localstorage/internal/types"
)

type testEnv struct {
	db       *sql.DB
	writer   *storage.Writer
	readPool *storage.ReadPool
	notifier *events.Notifier
	notebook *handlers.NotebookHandler
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
	env.notebook = handlers.NewNotebookHandler(env.writer, env.readPool, env.notifier, t.TempDir())
	t.Cleanup(func() {
		env.writer.Stop()
		env.readPool.Stop()
		env.notifier.Stop()
	})
	return env
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCacheFillPopulatesMaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.notebook.Put(ctx, &types.Notebook{LocalID: "nb-1", Guid: "guid-1", Name: "Work"}).Wait(); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if _, err := env.notebook.Put(ctx, &types.Notebook{LocalID: "nb-2", Name: "Personal", LocallyModified: true}).Wait(); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	cache := NewNotebookCache(env.notifier, env.notebook, "")
	defer cache.Stop()

	if cache.IsFilled() {
		t.Fatal("cache should not be filled before Fill is called")
	}
	if err := cache.Fill(ctx); err != nil {
		t.Fatalf("Fill() error: %v", err)
	}
	if !cache.IsFilled() {
		t.Fatal("cache should be filled after Fill returns")
	}

	if name, ok := cache.NameByLocalID("nb-1"); !ok || name != "work" {
		t.Fatalf("NameByLocalID(nb-1) = %q, %v, want work, true", name, ok)
	}
	if guid, ok := cache.GuidByName("work"); !ok || guid != "guid-1" {
		t.Fatalf("GuidByName(work) = %q, %v, want guid-1, true", guid, ok)
	}
	if _, ok := cache.GuidByName("personal"); ok {
		t.Fatal("GuidByName(personal) should be unset: nb-2 has no guid yet")
	}

	dirty := cache.DirtyItemsByGuid()
	if len(dirty) != 0 {
		t.Fatalf("DirtyItemsByGuid() = %d entries, want 0 (nb-2 has no guid to key on)", len(dirty))
	}
}

func TestCacheFillIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cache := NewNotebookCache(env.notifier, env.notebook, "")
	defer cache.Stop()

	if err := cache.Fill(ctx); err != nil {
		t.Fatalf("Fill() error: %v", err)
	}
	if err := cache.Fill(ctx); err != nil {
		t.Fatalf("second Fill() error: %v", err)
	}
	if !cache.IsFilled() {
		t.Fatal("expected cache to remain filled")
	}
}

func TestCacheReactsToPutAfterFill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cache := NewNotebookCache(env.notifier, env.notebook, "")
	defer cache.Stop()

	if err := cache.Fill(ctx); err != nil {
		t.Fatalf("Fill() error: %v", err)
	}

	if _, err := env.notebook.Put(ctx, &types.Notebook{
		LocalID: "nb-3", Guid: "guid-3", Name: "Archive", LocallyModified: true,
	}).Wait(); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	waitForCondition(t, func() bool {
		_, ok := cache.NameByGuid("guid-3")
		return ok
	})

	dirty := cache.DirtyItemsByGuid()
	nb, ok := dirty["guid-3"]
	if !ok {
		t.Fatal("expected nb-3 to appear in DirtyItemsByGuid")
	}
	if nb.LocalID != "nb-3" {
		t.Fatalf("dirty entry LocalID = %q, want nb-3", nb.LocalID)
	}
}

func TestCacheReactsToExpunge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.notebook.Put(ctx, &types.Notebook{LocalID: "nb-1", Guid: "guid-1", Name: "Work"}).Wait(); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	cache := NewNotebookCache(env.notifier, env.notebook, "")
	defer cache.Stop()
	if err := cache.Fill(ctx); err != nil {
		t.Fatalf("Fill() error: %v", err)
	}

	if _, err := env.notebook.ExpungeByLocalID(ctx, "nb-1").Wait(); err != nil {
		t.Fatalf("ExpungeByLocalID() error: %v", err)
	}

	waitForCondition(t, func() bool {
		_, ok := cache.NameByLocalID("nb-1")
		return !ok
	})
	if _, ok := cache.NameByGuid("guid-1"); ok {
		t.Fatal("expected guid-1 to be removed from nameByGuid after expunge")
	}
	if _, ok := cache.GuidByName("work"); ok {
		t.Fatal("expected work to be removed from guidByName after expunge")
	}
}

func TestCacheClearResetsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.notebook.Put(ctx, &types.Notebook{LocalID: "nb-1", Guid: "guid-1", Name: "Work"}).Wait(); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	cache := NewNotebookCache(env.notifier, env.notebook, "")
	defer cache.Stop()
	if err := cache.Fill(ctx); err != nil {
		t.Fatalf("Fill() error: %v", err)
	}

	cache.Clear()
	if cache.IsFilled() {
		t.Fatal("expected IsFilled() to be false after Clear")
	}
	if _, ok := cache.NameByLocalID("nb-1"); ok {
		t.Fatal("expected NameByLocalID to be empty after Clear")
	}
}
