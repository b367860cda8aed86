package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quentier/localstorage/internal/debug"
	"github.com/quentier/localstorage/internal/idgen"
	"github.com/quentier/localstorage/internal/storeerrors"
)

const (
	patch2To3NotebookGuidsFixedUpKey = "patch2to3.notebooksGuidsFixedUp"
	patch2To3TagGuidsFixedUpKey      = "patch2to3.tagsParentGuidsFixedUp"
	// ResourcesTableTagGuidsFixedUp actually gates the noteGuid fixup on the
	// Resources table, not anything to do with tags. The name is wrong but
	// kept verbatim for on-disk compatibility with settings files already
	// written by earlier builds.
	patch2To3ResourcesTableTagGuidsFixedUpKey = "patch2to3.resourcesTableTagGuidsFixedUp"

	patch2To3VersionTablesCreatedKey = "patch2to3.versionIdTablesCreated"
	patch2To3VersionIDsAssignedKey   = "patch2to3.versionIdsAssigned"
	patch2To3FilesRelocatedKey       = "patch2to3.filesRelocated"
)

// Patch2To3 performs two orthogonal fixups: backfilling guid fields that an
// earlier version of the engine left null, and introducing per-body
// version ids so resource body files live under
// Resources/<data|alternateData>/<noteLocalId>/<resourceLocalId>/<versionId>.dat
// instead of a flat <resourceLocalId>.dat. Every sub-step records its own
// completion flag so a resumed patch skips whatever already committed.
type Patch2To3 struct {
	deps      PatchDependencies
	backupDir string
}

func NewPatch2To3(deps PatchDependencies) *Patch2To3 { return &Patch2To3{deps: deps} }

func (p *Patch2To3) FromVersion() int { return 2 }
func (p *Patch2To3) ToVersion() int   { return 3 }

func (p *Patch2To3) ShortDescription() string {
	return "backfill guid fields and introduce resource body version ids"
}

func (p *Patch2To3) LongDescription() string {
	return "Fills in notebookGuid, parentGuid and noteGuid fields that " +
		"earlier versions left null when the referenced entity already had " +
		"a guid, and relocates resource body files under a per-version-id " +
		"directory so old bodies can be retained during a future write."
}

func (p *Patch2To3) Backup(ctx context.Context) error {
	dir, err := BackupDatabaseFiles(filepath.Join(p.deps.StorageRoot, "qn.storage.sqlite"), p.deps.BackupRoot)
	if err != nil {
		return err
	}
	p.backupDir = dir
	return nil
}

func (p *Patch2To3) Restore(ctx context.Context) error {
	return RestoreDatabaseFiles(p.backupDir, filepath.Join(p.deps.StorageRoot, "qn.storage.sqlite"))
}

func (p *Patch2To3) RemoveBackup() error {
	if p.backupDir == "" {
		return nil
	}
	return RemoveBackup(p.backupDir)
}

func (p *Patch2To3) Apply(ctx context.Context, progress ProgressFunc) error {
	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	if err := p.fixMissingGuidField(ctx, patch2To3NotebookGuidsFixedUpKey, `
		UPDATE Notes SET notebookGuid = (
			SELECT guid FROM Notebooks
			WHERE Notebooks.localId = Notes.notebookLocalId
			AND Notebooks.guid IS NOT NULL
			AND Notebooks.updateSequenceNumber IS NOT NULL
		)
		WHERE notebookGuid IS NULL`); err != nil {
		return err
	}
	report(20)

	if err := p.fixMissingGuidField(ctx, patch2To3TagGuidsFixedUpKey, `
		UPDATE Tags SET parentGuid = (
			SELECT guid FROM Tags AS Parent
			WHERE Parent.localId = Tags.parentTagLocalId
			AND Parent.guid IS NOT NULL
			AND Parent.updateSequenceNumber IS NOT NULL
		)
		WHERE parentGuid IS NULL AND parentTagLocalId IS NOT NULL`); err != nil {
		return err
	}
	report(40)

	// See patch2To3ResourcesTableTagGuidsFixedUpKey's doc comment: this
	// fixes Resources.noteGuid, despite the key name.
	if err := p.fixMissingGuidField(ctx, patch2To3ResourcesTableTagGuidsFixedUpKey, `
		UPDATE Resources SET noteGuid = (
			SELECT guid FROM Notes
			WHERE Notes.localId = Resources.noteLocalId
			AND Notes.guid IS NOT NULL
			AND Notes.updateSequenceNumber IS NOT NULL
		)
		WHERE noteGuid IS NULL`); err != nil {
		return err
	}
	report(55)

	tablesCreated, _ := p.deps.Settings.GetBool(ctx, patch2To3VersionTablesCreatedKey)
	if !tablesCreated {
		if err := InitializeTables(ctx, p.deps.DB); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "create version-id tables", err)
		}
		if err := p.deps.Settings.SetBool(ctx, patch2To3VersionTablesCreatedKey, true); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "persist resume flag", err)
		}
	}
	report(60)

	idsAssigned, _ := p.deps.Settings.GetBool(ctx, patch2To3VersionIDsAssignedKey)
	if !idsAssigned {
		if err := p.assignVersionIDs(ctx, "data", "ResourceDataBodyVersionIds"); err != nil {
			return err
		}
		if err := p.assignVersionIDs(ctx, "alternateData", "ResourceAlternateDataBodyVersionIds"); err != nil {
			return err
		}
		if err := p.deps.Settings.SetBool(ctx, patch2To3VersionIDsAssignedKey, true); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "persist resume flag", err)
		}
	}
	report(80)

	filesRelocated, _ := p.deps.Settings.GetBool(ctx, patch2To3FilesRelocatedKey)
	if !filesRelocated {
		if err := p.relocateBodyFiles(ctx, "data"); err != nil {
			return err
		}
		if err := p.relocateBodyFiles(ctx, "alternateData"); err != nil {
			return err
		}
		if err := p.deps.Settings.SetBool(ctx, patch2To3FilesRelocatedKey, true); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "persist resume flag", err)
		}
	}
	if err := bumpVersion(ctx, p.deps.DB, p.ToVersion()); err != nil {
		return err
	}
	report(100)
	return nil
}

// fixMissingGuidField runs stmt inside one transaction, begun with the
// driver's default (deferred) locking rather than BEGIN EXCLUSIVE, and records
// key as done, skipping entirely if key is already marked done (the
// transaction as a whole is the resumability unit for each sub-step).
func (p *Patch2To3) fixMissingGuidField(ctx context.Context, key, stmt string) error {
	done, _ := p.deps.Settings.GetBool(ctx, key)
	if done {
		return nil
	}

	tx, err := p.deps.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "begin guid fixup transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "apply guid fixup", err)
	}
	if err := tx.Commit(); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "commit guid fixup", err)
	}

	if err := p.deps.Settings.SetBool(ctx, key, true); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "persist resume flag "+key, err)
	}
	return nil
}

// assignVersionIDs mints one version id per existing <resourceLocalId>.dat
// file under Resources/<kind>/<noteLocalId>/, mirroring the original
// Patch2To3::generateVersionIds(), which scans the on-disk body files
// rather than the Resources table: a resource with no alternate data body
// has no file under Resources/alternateData and so must get no row in
// ResourceAlternateDataBodyVersionIds, preserving fileExists <=>
// versionIdTableContains once relocateBodyFiles runs.
func (p *Patch2To3) assignVersionIDs(ctx context.Context, kind, table string) error {
	localIDs, err := p.resourceLocalIDsWithBodyFile(kind)
	if err != nil {
		return err
	}

	for _, id := range localIDs {
		var exists int
		err := p.deps.DB.QueryRowContext(ctx,
			fmt.Sprintf("SELECT 1 FROM %s WHERE resourceLocalId = ?", table), id,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "check existing version id for "+id, err)
		}

		versionID, err := idgen.NewVersionID()
		if err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "generate version id", err)
		}
		if err := execWithBusyRetry(ctx, p.deps.DB,
			fmt.Sprintf("INSERT INTO %s(resourceLocalId, versionId) VALUES (?, ?)", table),
			id, versionID,
		); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "insert version id for "+id, err)
		}
	}
	return nil
}

// resourceLocalIDsWithBodyFile walks Resources/<kind>/<noteLocalId>/*.dat
// and returns the resource local ids with an existing body file under kind.
func (p *Patch2To3) resourceLocalIDsWithBodyFile(kind string) ([]string, error) {
	root := filepath.Join(p.deps.StorageRoot, "Resources", kind)
	noteDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storeerrors.Wrap(storeerrors.MigrationFailure, "list "+root, err)
	}

	var localIDs []string
	for _, noteDir := range noteDirs {
		if !noteDir.IsDir() {
			continue
		}
		noteDirPath := filepath.Join(root, noteDir.Name())
		entries, err := os.ReadDir(noteDirPath)
		if err != nil {
			return nil, storeerrors.Wrap(storeerrors.MigrationFailure, "list "+noteDirPath, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || filepath.Ext(name) != ".dat" {
				continue
			}
			localIDs = append(localIDs, name[:len(name)-len(".dat")])
		}
	}
	return localIDs, nil
}

// relocateBodyFiles walks <storageRoot>/Resources/<kind>/<noteLocalId>/
// <resourceLocalId>.dat files left by Patch1To2 and moves each into
// <resourceLocalId>/<versionId>.dat, using the version id assigned in
// assignVersionIDs. Files with any other name shape are left alone; a
// resource with no version-id row is logged and skipped, not treated as
// fatal, since its body may have been expunged between Patch1To2 and here.
func (p *Patch2To3) relocateBodyFiles(ctx context.Context, kind string) error {
	table := "ResourceDataBodyVersionIds"
	if kind == "alternateData" {
		table = "ResourceAlternateDataBodyVersionIds"
	}

	root := filepath.Join(p.deps.StorageRoot, "Resources", kind)
	noteDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return storeerrors.Wrap(storeerrors.MigrationFailure, "list "+root, err)
	}

	for _, noteDir := range noteDirs {
		if !noteDir.IsDir() {
			continue
		}
		noteDirPath := filepath.Join(root, noteDir.Name())
		entries, err := os.ReadDir(noteDirPath)
		if err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "list "+noteDirPath, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || filepath.Ext(name) != ".dat" {
				continue
			}
			resourceLocalID := name[:len(name)-len(".dat")]

			var versionID string
			err := p.deps.DB.QueryRowContext(ctx,
				fmt.Sprintf("SELECT versionId FROM %s WHERE resourceLocalId = ?", table),
				resourceLocalID,
			).Scan(&versionID)
			if err != nil {
				// No version-id row for this file: the resource body was
				// likely expunged concurrently with the upgrade. Skip it.
				debug.Logf("patch 2->3: no version id for %s, leaving it in place: %v", filepath.Join(noteDirPath, name), err)
				continue
			}

			targetDir := filepath.Join(noteDirPath, resourceLocalID)
			if err := os.MkdirAll(targetDir, 0o750); err != nil {
				return storeerrors.Wrap(storeerrors.MigrationFailure, "create "+targetDir, err)
			}
			oldPath := filepath.Join(noteDirPath, name)
			newPath := filepath.Join(targetDir, versionID+".dat")
			if err := os.Rename(oldPath, newPath); err != nil {
				return storeerrors.Wrap(storeerrors.MigrationFailure, "move "+oldPath+" to "+newPath, err)
			}
		}
	}
	return nil
}
