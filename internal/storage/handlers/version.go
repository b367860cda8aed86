package handlers

import (
	"context"
	"database/sql"

	"github.com/quentier/localstorage/internal/settings"
	"github.com/quentier/localstorage/internal/storage/sqlite"
)

// VersionHandler exposes the schema version operations of spec.md §4.4:
// reading the current version, checking whether an upgrade is required or
// the schema is too new for this build, and running any pending patches.
// Unlike the other handlers this one needs direct access to the database
// connection patches mutate outside of a per-call transaction (each patch
// manages its own backup/apply/restore transactions), so it's constructed
// with the Writer's underlying *sql.DB rather than going through Submit.
type VersionHandler struct {
	db   *sql.DB
	deps sqlite.PatchDependencies
}

func NewVersionHandler(db *sql.DB, storageRoot, backupRoot string, settingsStore settings.Store) *VersionHandler {
	return &VersionHandler{
		db: db,
		deps: sqlite.PatchDependencies{
			DB:          db,
			StorageRoot: storageRoot,
			BackupRoot:  backupRoot,
			Settings:    settingsStore,
		},
	}
}

func (h *VersionHandler) Version(ctx context.Context) (int, error) {
	return sqlite.Version(ctx, h.db)
}

func (h *VersionHandler) IsVersionTooHigh(ctx context.Context) (bool, error) {
	return sqlite.IsVersionTooHigh(ctx, h.db)
}

func (h *VersionHandler) RequiresUpgrade(ctx context.Context) (bool, error) {
	return sqlite.RequiresUpgrade(ctx, h.db)
}

// Upgrade runs every patch required to bring the database up to
// sqlite.HighestSupportedVersion, reporting overall progress to progress
// (0-100, scaled across however many patches must run).
func (h *VersionHandler) Upgrade(ctx context.Context, progress sqlite.ProgressFunc) error {
	patches, err := sqlite.RequiredPatches(ctx, h.db, h.deps)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return nil
	}

	for i, p := range patches {
		var scaled sqlite.ProgressFunc
		if progress != nil {
			base, n := i*100, len(patches)
			scaled = func(percent int) { progress((base + percent) / n) }
		}
		if err := sqlite.RunUpgrade(ctx, h.db, []sqlite.Patch{p}, scaled); err != nil {
			return err
		}
	}
	return nil
}
