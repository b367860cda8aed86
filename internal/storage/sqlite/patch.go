package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quentier/localstorage/internal/settings"
	"github.com/quentier/localstorage/internal/storeerrors"
)

// patchTracer traces schema migrations, the same span-per-operation shape
// beads/internal/storage/dolt/store.go's doltTracer uses for SQL-level
// exec/query spans, applied here to the Patch Engine's own unit of work.
var patchTracer = otel.Tracer("github.com/quentier/localstorage/storage/sqlite")

// endSpan records err (if any) on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ProgressFunc receives a patch's progress, 0 through 100, at each stage
// boundary. May be nil.
type ProgressFunc func(percent int)

// Patch is a single schema migration step. Every patch must be resumable:
// Apply persists enough state in Deps.Settings that re-running it after a
// partial failure skips whatever it already committed.
type Patch interface {
	FromVersion() int
	ToVersion() int
	ShortDescription() string
	LongDescription() string
	Backup(ctx context.Context) error
	Apply(ctx context.Context, progress ProgressFunc) error
	Restore(ctx context.Context) error
	RemoveBackup() error
}

// PatchDependencies bundles everything a patch needs: the database
// connection it migrates, the account storage root (for the Resources/
// file moves), a backup root, and a settings store for resumability flags.
type PatchDependencies struct {
	DB          *sql.DB
	StorageRoot string
	BackupRoot  string
	Settings    settings.Store
}

// RunUpgrade applies every patch in order: backup, apply (restoring and
// aborting on failure), remove the backup, then bump the stored schema
// version to the patch's target version. Stops at the first failing patch,
// leaving the database at the last successfully completed version.
func RunUpgrade(ctx context.Context, db *sql.DB, patches []Patch, progress ProgressFunc) error {
	for _, p := range patches {
		if err := runOnePatch(ctx, db, p, progress); err != nil {
			return err
		}
	}
	return nil
}

func runOnePatch(ctx context.Context, db *sql.DB, p Patch, progress ProgressFunc) error {
	ctx, span := patchTracer.Start(ctx, "sqlite.patch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("localstorage.patch.from_version", p.FromVersion()),
			attribute.Int("localstorage.patch.to_version", p.ToVersion()),
		),
	)
	var err error
	defer func() { endSpan(span, err) }()

	if err = p.Backup(ctx); err != nil {
		err = storeerrors.Wrap(storeerrors.MigrationFailure, "backup before patch "+p.ShortDescription(), err)
		return err
	}

	if err = p.Apply(ctx, progress); err != nil {
		if restoreErr := p.Restore(ctx); restoreErr != nil {
			err = storeerrors.Wrap(storeerrors.MigrationFailure,
				"patch "+p.ShortDescription()+" failed and restore from backup also failed", restoreErr)
			return err
		}
		err = storeerrors.Wrap(storeerrors.MigrationFailure, "patch "+p.ShortDescription()+" failed, restored from backup", err)
		return err
	}

	if err = p.RemoveBackup(); err != nil {
		err = storeerrors.Wrap(storeerrors.MigrationFailure, "remove backup after patch "+p.ShortDescription(), err)
		return err
	}

	if err = bumpVersion(ctx, db, p.ToVersion()); err != nil {
		return err
	}
	return nil
}

// patchExecMaxElapsed bounds how long execWithBusyRetry keeps retrying a
// statement that keeps colliding with a concurrent reader.
const patchExecMaxElapsed = 30 * time.Second

func newPatchExecBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = patchExecMaxElapsed
	return bo
}

func isSQLiteBusy(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "database is locked")
}

// execWithBusyRetry runs exec, retrying with exponential backoff on
// SQLITE_BUSY collisions with a concurrent reader — a patch's bulk
// UPDATE/VACUUM statements run outside the Connection Pool's normal
// single-owner discipline, so a sweeper or read-pool query can still be
// mid-transaction when a patch starts, mirroring
// dolt/store.go's withRetry/newServerRetryBackoff for its own transient
// connection errors.
func execWithBusyRetry(ctx context.Context, db *sql.DB, query string, args ...any) error {
	return backoff.Retry(func() error {
		_, err := db.ExecContext(ctx, query, args...)
		if err != nil && !isSQLiteBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(newPatchExecBackoff(), ctx))
}
