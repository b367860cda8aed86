package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/quentier/localstorage/internal/idgen"
	"github.com/quentier/localstorage/internal/storeerrors"
)

// BodyStream distinguishes a resource's primary body from its (optional)
// alternate body; each has its own directory tree and version-id table.
type BodyStream int

const (
	DataBody BodyStream = iota
	AlternateDataBody
)

func (s BodyStream) directory() string {
	if s == AlternateDataBody {
		return "alternateData"
	}
	return "data"
}

func (s BodyStream) versionTable() string {
	if s == AlternateDataBody {
		return "ResourceAlternateDataBodyVersionIds"
	}
	return "ResourceDataBodyVersionIds"
}

// ResourceBodyStore reads and writes resource body files under the
// content-addressed layout Resources/<data|alternateData>/<noteLocalId>/
// <resourceLocalId>/<versionId>.dat, keeping the current version id for
// each stream in its matching SQL table. All writes go through db so the
// version-id update commits atomically with whatever row change the
// caller is also making in the same transaction.
type ResourceBodyStore struct {
	storageRoot string
}

func NewResourceBodyStore(storageRoot string) *ResourceBodyStore {
	return &ResourceBodyStore{storageRoot: storageRoot}
}

func (s *ResourceBodyStore) path(stream BodyStream, noteLocalID, resourceLocalID, versionID string) string {
	return filepath.Join(s.storageRoot, "Resources", stream.directory(), noteLocalID, resourceLocalID, versionID+".dat")
}

// CurrentVersionID returns the version id currently recorded for
// resourceLocalID's stream, or ("", false) if the stream has no body.
func (s *ResourceBodyStore) CurrentVersionID(ctx context.Context, tx *sql.Tx, stream BodyStream, resourceLocalID string) (string, bool, error) {
	var versionID string
	err := tx.QueryRowContext(ctx,
		"SELECT versionId FROM "+stream.versionTable()+" WHERE resourceLocalId = ?", resourceLocalID,
	).Scan(&versionID)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, storeerrors.Wrap(storeerrors.StorageOperation, "read current body version id", err)
	default:
		return versionID, true, nil
	}
}

// Read fetches the bytes of resourceLocalID's current body for stream. A
// body that has no version-id row returns (nil, false, nil); a version-id
// row whose file is missing on disk is a StorageOperation error, never
// silently treated as absent, per spec's "missing file is reported as a
// storage error" contract.
func (s *ResourceBodyStore) Read(ctx context.Context, tx *sql.Tx, stream BodyStream, noteLocalID, resourceLocalID string) ([]byte, bool, error) {
	versionID, ok, err := s.CurrentVersionID(ctx, tx, stream, resourceLocalID)
	if err != nil || !ok {
		return nil, false, err
	}

	data, err := os.ReadFile(s.path(stream, noteLocalID, resourceLocalID, versionID))
	if err != nil {
		return nil, false, storeerrors.Wrap(storeerrors.StorageOperation,
			"read resource body file for "+resourceLocalID, err)
	}
	return data, true, nil
}

// Write replaces resourceLocalID's current body for stream with body,
// following the staged protocol spec.md §4.3 requires: generate a new
// version id, write the new file and fsync it, commit the version-id
// upsert inside tx (the caller's transaction, alongside whatever metadata
// row change it's also making), and only on successful commit does the
// caller invoke the returned cleanup func to best-effort-delete the prior
// file. A crash before commit leaves only an orphan new file; a crash
// after commit but before cleanup leaves a stale old file — both are
// reconciled later by the sweeper, neither corrupts the current-version
// invariant.
func (s *ResourceBodyStore) Write(ctx context.Context, tx *sql.Tx, stream BodyStream, noteLocalID, resourceLocalID string, body []byte) (cleanup func(), err error) {
	oldVersionID, hadOld, err := s.CurrentVersionID(ctx, tx, stream, resourceLocalID)
	if err != nil {
		return nil, err
	}

	newVersionID, err := idgen.NewVersionID()
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.Runtime, "generate resource body version id", err)
	}

	newPath := s.path(stream, noteLocalID, resourceLocalID, newVersionID)
	if err := os.MkdirAll(filepath.Dir(newPath), 0o750); err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "create resource body directory", err)
	}

	f, err := os.OpenFile(newPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "open resource body file for writing", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "write resource body file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "fsync resource body file", err)
	}
	if err := f.Close(); err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "close resource body file", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+stream.versionTable()+"(resourceLocalId, versionId) VALUES (?, ?) "+
			"ON CONFLICT(resourceLocalId) DO UPDATE SET versionId = excluded.versionId",
		resourceLocalID, newVersionID,
	); err != nil {
		_ = os.Remove(newPath)
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "commit resource body version id", err)
	}

	if !hadOld {
		return func() {}, nil
	}
	oldPath := s.path(stream, noteLocalID, resourceLocalID, oldVersionID)
	return func() { _ = os.Remove(oldPath) }, nil
}

// Delete removes resourceLocalID's version-id row for stream and, on
// success, returns a cleanup func that best-effort-removes the now
// dereferenced file. Call cleanup only after the caller's transaction
// commits.
func (s *ResourceBodyStore) Delete(ctx context.Context, tx *sql.Tx, stream BodyStream, noteLocalID, resourceLocalID string) (cleanup func(), err error) {
	versionID, ok, err := s.CurrentVersionID(ctx, tx, stream, resourceLocalID)
	if err != nil || !ok {
		return func() {}, err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+stream.versionTable()+" WHERE resourceLocalId = ?", resourceLocalID,
	); err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "delete resource body version id", err)
	}

	path := s.path(stream, noteLocalID, resourceLocalID, versionID)
	return func() { _ = os.Remove(path) }, nil
}
