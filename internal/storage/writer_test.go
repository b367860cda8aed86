package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec("CREATE TABLE counters(name TEXT PRIMARY KEY, value INTEGER NOT NULL)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec("INSERT INTO counters(name, value) VALUES ('n', 0)"); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	return db
}

func TestWriterCommitsOnSuccess(t *testing.T) {
	db := newTestDB(t)
	w := NewWriter(db, 4)
	defer w.Stop()

	ctx := context.Background()
	future := Submit(w, ctx, func(ctx context.Context, tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, "UPDATE counters SET value = value + 1 WHERE name = 'n'")
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})

	n, err := future.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("RowsAffected = %d, want 1", n)
	}

	var value int
	if err := db.QueryRow("SELECT value FROM counters WHERE name = 'n'").Scan(&value); err != nil {
		t.Fatalf("query value: %v", err)
	}
	if value != 1 {
		t.Fatalf("value = %d, want 1", value)
	}
}

func TestWriterRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	w := NewWriter(db, 4)
	defer w.Stop()

	wantErr := errors.New("intentional failure")
	ctx := context.Background()
	future := Submit(w, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, "UPDATE counters SET value = value + 1 WHERE name = 'n'"); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, wantErr
	})

	_, err := future.Wait()
	if !errors.Is(err, wantErr) {
		t.Fatalf("Wait() error = %v, want %v", err, wantErr)
	}

	var value int
	if err := db.QueryRow("SELECT value FROM counters WHERE name = 'n'").Scan(&value); err != nil {
		t.Fatalf("query value: %v", err)
	}
	if value != 0 {
		t.Fatalf("value = %d, want 0 (rolled back)", value)
	}
}

func TestWriterSerializesConcurrentSubmits(t *testing.T) {
	db := newTestDB(t)
	w := NewWriter(db, 16)
	defer w.Stop()

	ctx := context.Background()
	const submits = 20
	futures := make([]*Future[struct{}], submits)
	for i := 0; i < submits; i++ {
		futures[i] = Submit(w, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
			_, err := tx.ExecContext(ctx, "UPDATE counters SET value = value + 1 WHERE name = 'n'")
			return struct{}{}, err
		})
	}
	for _, f := range futures {
		if _, err := f.Wait(); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}

	var value int
	if err := db.QueryRow("SELECT value FROM counters WHERE name = 'n'").Scan(&value); err != nil {
		t.Fatalf("query value: %v", err)
	}
	if value != submits {
		t.Fatalf("value = %d, want %d", value, submits)
	}
}
