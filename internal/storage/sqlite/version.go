package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/quentier/localstorage/internal/storeerrors"
)

// HighestSupportedVersion is the schema version this build knows how to
// reach. Bump it, and add a patch, whenever a new migration is introduced.
const HighestSupportedVersion = 3

// Version reads the schema version from the Auxiliary table. A database
// with no Auxiliary row is treated as version 1 (the pre-migration shape
// that never wrote one).
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	row := db.QueryRowContext(ctx, "SELECT version FROM Auxiliary LIMIT 1")
	switch err := row.Scan(&version); {
	case errors.Is(err, sql.ErrNoRows):
		return 1, nil
	case err != nil:
		return 0, storeerrors.Wrap(storeerrors.StorageOperation, "read schema version", err)
	default:
		return version, nil
	}
}

// IsVersionTooHigh reports whether the database's schema version exceeds
// what this build supports (opening an old binary against a newer schema).
func IsVersionTooHigh(ctx context.Context, db *sql.DB) (bool, error) {
	v, err := Version(ctx, db)
	if err != nil {
		return false, err
	}
	return v > HighestSupportedVersion, nil
}

// RequiresUpgrade reports whether any patch must run before the database
// is usable at HighestSupportedVersion.
func RequiresUpgrade(ctx context.Context, db *sql.DB) (bool, error) {
	v, err := Version(ctx, db)
	if err != nil {
		return false, err
	}
	return v < HighestSupportedVersion, nil
}

// RequiredPatches returns, in application order, the patches needed to
// bring db from its current version up to HighestSupportedVersion.
func RequiredPatches(ctx context.Context, db *sql.DB, deps PatchDependencies) ([]Patch, error) {
	v, err := Version(ctx, db)
	if err != nil {
		return nil, err
	}

	var patches []Patch
	if v < 2 {
		patches = append(patches, NewPatch1To2(deps))
	}
	if v < 3 {
		patches = append(patches, NewPatch2To3(deps))
	}
	return patches, nil
}

func bumpVersion(ctx context.Context, db *sql.DB, version int) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM Auxiliary"); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "clear Auxiliary row", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO Auxiliary(version) VALUES (?)", version); err != nil {
		return storeerrors.Wrap(storeerrors.MigrationFailure, "bump schema version", err)
	}
	return nil
}
