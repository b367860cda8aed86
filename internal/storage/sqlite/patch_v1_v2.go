package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/quentier/localstorage/internal/storeerrors"
)

const (
	patch1To2DataCopiedKey   = "patch1to2.allResourceDataCopiedFromTableToFiles"
	patch1To2DataRemovedKey  = "patch1to2.allResourceDataRemovedFromResourceTable"
	patch1To2ProcessedIDsKey = "patch1to2.processedResourceLocalIds"
)

// Patch1To2 moves Resources.dataBody / alternateDataBody out of SQLite into
// plain files under Resources/data and Resources/alternateData, one file
// per resource, named by the owning note's local id and the resource's own
// local id. Resumable: the list of already-written resource local ids and
// two phase-completion flags are persisted to the settings store, so a
// restart after a partial run skips work already done.
type Patch1To2 struct {
	deps      PatchDependencies
	backupDir string
}

func NewPatch1To2(deps PatchDependencies) *Patch1To2 { return &Patch1To2{deps: deps} }

func (p *Patch1To2) FromVersion() int { return 1 }
func (p *Patch1To2) ToVersion() int   { return 2 }

func (p *Patch1To2) ShortDescription() string {
	return "move resource attachments from the database into files"
}

func (p *Patch1To2) LongDescription() string {
	return "Moves note attachment data from the SQLite database to separate " +
		"files. This avoids SQLite performance issues with large binary " +
		"blobs stored inline in table rows."
}

func (p *Patch1To2) Backup(ctx context.Context) error {
	dir, err := BackupDatabaseFiles(filepath.Join(p.deps.StorageRoot, "qn.storage.sqlite"), p.deps.BackupRoot)
	if err != nil {
		return err
	}
	p.backupDir = dir
	return nil
}

func (p *Patch1To2) Restore(ctx context.Context) error {
	return RestoreDatabaseFiles(p.backupDir, filepath.Join(p.deps.StorageRoot, "qn.storage.sqlite"))
}

func (p *Patch1To2) RemoveBackup() error {
	if p.backupDir == "" {
		return nil
	}
	return RemoveBackup(p.backupDir)
}

type resourceRow struct {
	localID           string
	noteLocalID       string
	dataBody          []byte
	alternateDataBody []byte
}

func (p *Patch1To2) Apply(ctx context.Context, progress ProgressFunc) error {
	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	allCopied, _ := p.deps.Settings.GetBool(ctx, patch1To2DataCopiedKey)

	if !allCopied {
		if err := p.copyResourceBodiesToFiles(ctx, report); err != nil {
			return err
		}
		if err := p.deps.Settings.SetBool(ctx, patch1To2DataCopiedKey, true); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "persist resume flag", err)
		}
	}
	report(70)

	allRemoved, _ := p.deps.Settings.GetBool(ctx, patch1To2DataRemovedKey)
	if !allRemoved {
		if err := execWithBusyRetry(ctx, p.deps.DB, "UPDATE Resources SET dataBody = NULL, alternateDataBody = NULL"); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "clear resource body columns", err)
		}
		if err := p.deps.Settings.SetBool(ctx, patch1To2DataRemovedKey, true); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "persist resume flag", err)
		}
	}
	report(80)

	if err := execWithBusyRetry(ctx, p.deps.DB, "VACUUM"); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "vacuum database", err)
	}
	report(90)

	if err := p.deps.Settings.Delete(ctx, patch1To2ProcessedIDsKey); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "clear resume state", err)
	}
	report(100)
	return nil
}

func (p *Patch1To2) copyResourceBodiesToFiles(ctx context.Context, report ProgressFunc) error {
	processedRaw, _ := p.deps.Settings.GetString(ctx, patch1To2ProcessedIDsKey)
	processed := splitNonEmpty(processedRaw)
	processedSet := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		processedSet[id] = struct{}{}
	}

	rows, err := p.deps.DB.QueryContext(ctx,
		"SELECT localId, noteLocalId FROM Resources")
	if err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "list resources", err)
	}
	var resources []resourceRow
	for rows.Next() {
		var r resourceRow
		if err := rows.Scan(&r.localID, &r.noteLocalID); err != nil {
			rows.Close()
			return storeerrors.Wrap(storeerrors.MigrationFailure, "scan resource row", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "iterate resources", err)
	}
	rows.Close()
	report(5)

	dataRoot := filepath.Join(p.deps.StorageRoot, "Resources", "data")
	altRoot := filepath.Join(p.deps.StorageRoot, "Resources", "alternateData")

	total := len(resources)
	for i, r := range resources {
		if _, done := processedSet[r.localID]; done {
			continue
		}

		var dataBody []byte
		var altBody []byte
		err := p.deps.DB.QueryRowContext(ctx,
			"SELECT dataBody, alternateDataBody FROM Resources WHERE localId = ?", r.localID,
		).Scan(&dataBody, &altBody)
		if err != nil && err != sql.ErrNoRows {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "read resource body for "+r.localID, err)
		}

		noteDir := filepath.Join(dataRoot, r.noteLocalID)
		if err := os.MkdirAll(noteDir, 0o750); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "create resource data dir", err)
		}
		dataPath := filepath.Join(noteDir, r.localID+".dat")
		if err := os.WriteFile(dataPath, dataBody, 0o640); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "write resource data file", err)
		}

		if len(altBody) > 0 {
			altNoteDir := filepath.Join(altRoot, r.noteLocalID)
			if err := os.MkdirAll(altNoteDir, 0o750); err != nil {
				return storeerrors.Wrap(storeerrors.MigrationFailure, "create resource alternate data dir", err)
			}
			altPath := filepath.Join(altNoteDir, r.localID+".dat")
			if err := os.WriteFile(altPath, altBody, 0o640); err != nil {
				return storeerrors.Wrap(storeerrors.MigrationFailure, "write resource alternate data file", err)
			}
		}

		processed = append(processed, r.localID)
		if err := p.deps.Settings.SetString(ctx, patch1To2ProcessedIDsKey, strings.Join(processed, ",")); err != nil {
			return storeerrors.Wrap(storeerrors.MigrationFailure, "persist processed resource ids", err)
		}

		if total > 0 {
			report(5 + int(float64(i+1)/float64(total)*65))
		}
	}
	return nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
