package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storeerrors"
	"github.com/quentier/localstorage/internal/types"
)

// NotebookHandler implements the notebook entity operations of spec.md
// §4.4: insert-or-replace by localId, lookup by localId/guid, cascade
// expunge, and count — every write dispatched through the single writer,
// every read through the bounded read pool.
type NotebookHandler struct {
	base
}

func NewNotebookHandler(writer *storage.Writer, readPool *storage.ReadPool, notifier *events.Notifier, storageRoot string) *NotebookHandler {
	return &NotebookHandler{base: newBase(writer, readPool, notifier, storageRoot)}
}

// Put inserts or replaces nb by localId: every column nb carries,
// including a zero-value Guid or USN, overwrites whatever was stored for
// that localId. The one exception is createdAt, which putNotebookRow
// preserves from the prior row when nb.CreatedAt is zero. Callers that
// need to clear a single field (e.g. expunge/expunger.go's detachNotebook)
// read the full row first and write back a complete object rather than
// relying on Put to merge a partial one.
func (h *NotebookHandler) Put(ctx context.Context, nb *types.Notebook) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		if err := nb.Validate(); err != nil {
			return struct{}{}, err
		}
		if err := putNotebookRow(ctx, tx, nb); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.Notebook, events.Put, nb, nb.LocalID) })
}

// PutMetadata behaves exactly as Put for notebooks: notebooks carry no
// binary body, so there is no distinct metadata-only write path.
func (h *NotebookHandler) PutMetadata(ctx context.Context, nb *types.Notebook) *storage.Future[struct{}] {
	return h.Put(ctx, nb)
}

func putNotebookRow(ctx context.Context, tx *sql.Tx, nb *types.Notebook) error {
	var existingCreatedAt sql.NullInt64
	_ = tx.QueryRowContext(ctx, "SELECT createdAt FROM Notebooks WHERE localId = ?", nb.LocalID).Scan(&existingCreatedAt)
	createdAt := existingCreatedAt.Int64
	if !nb.CreatedAt.IsZero() {
		createdAt = nb.CreatedAt.Unix()
	} else if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO Notebooks(localId, guid, name, nameLower, linkedNotebookGuid, updateSequenceNumber,
			isDefault, isLastUsed, stack, locallyModified, localOnly, createdAt, updatedAt)
		VALUES (?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(localId) DO UPDATE SET
			guid = excluded.guid,
			name = excluded.name,
			nameLower = excluded.nameLower,
			linkedNotebookGuid = excluded.linkedNotebookGuid,
			updateSequenceNumber = excluded.updateSequenceNumber,
			isDefault = excluded.isDefault,
			isLastUsed = excluded.isLastUsed,
			stack = excluded.stack,
			locallyModified = excluded.locallyModified,
			localOnly = excluded.localOnly,
			updatedAt = excluded.updatedAt`,
		nb.LocalID, nb.Guid, nb.Name, nb.NormalizedName(), nb.LinkedNotebookGuid, nb.UpdateSequenceNumber,
		boolToInt(nb.IsDefault), boolToInt(nb.LastUsed), nb.Stack,
		boolToInt(nb.LocallyModified), boolToInt(nb.LocalOnly), createdAt, time.Now().Unix(),
	)
	return storeerrors.WrapDB("put notebook", err)
}

// FindByLocalID returns the notebook with the given localId, or
// (nil, nil) if none exists.
func (h *NotebookHandler) FindByLocalID(ctx context.Context, localID string) *storage.Future[*types.Notebook] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Notebook, error) {
		return scanNotebook(db.QueryRowContext(ctx, notebookSelectColumns+" WHERE localId = ?", localID))
	})
}

// FindByGuid returns the notebook with the given guid, or (nil, nil) if
// none exists.
func (h *NotebookHandler) FindByGuid(ctx context.Context, guid string) *storage.Future[*types.Notebook] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Notebook, error) {
		return scanNotebook(db.QueryRowContext(ctx, notebookSelectColumns+" WHERE guid = ?", guid))
	})
}

const notebookSelectColumns = `SELECT localId, guid, name, stack, isDefault, isLastUsed, linkedNotebookGuid,
	updateSequenceNumber, locallyModified, localOnly, createdAt, updatedAt FROM Notebooks`

// scannable is satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanNotebook(row *sql.Row) (*types.Notebook, error) {
	nb, err := scanNotebookRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.WrapDB("find notebook", err)
	}
	return nb, nil
}

func scanNotebookRow(row scannable) (*types.Notebook, error) {
	var nb types.Notebook
	var guid, linkedGuid, stack sql.NullString
	var createdAt, updatedAt sql.NullInt64
	if err := row.Scan(&nb.LocalID, &guid, &nb.Name, &stack, &nb.IsDefault, &nb.LastUsed, &linkedGuid,
		&nb.UpdateSequenceNumber, &nb.LocallyModified, &nb.LocalOnly, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	nb.Guid = guid.String
	nb.LinkedNotebookGuid = linkedGuid.String
	nb.Stack = stack.String
	if createdAt.Valid {
		nb.CreatedAt = time.Unix(createdAt.Int64, 0).UTC()
	}
	if updatedAt.Valid {
		nb.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}
	return &nb, nil
}

// ExpungeByLocalID removes the notebook and cascades to its notes (and
// their resources/tags) per the schema's ON DELETE CASCADE graph.
// Idempotent: expunging an already-absent localId is not an error.
func (h *NotebookHandler) ExpungeByLocalID(ctx context.Context, localID string) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM Notebooks WHERE localId = ?", localID); err != nil {
			return struct{}{}, storeerrors.WrapDB("expunge notebook", err)
		}
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.Notebook, events.Expunged, nil, localID) })
}

// ExpungeByGuid removes the notebook identified by guid, if any.
func (h *NotebookHandler) ExpungeByGuid(ctx context.Context, guid string) *storage.Future[struct{}] {
	var expungedLocalID string
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		var localID string
		err := tx.QueryRowContext(ctx, "SELECT localId FROM Notebooks WHERE guid = ?", guid).Scan(&localID)
		if err == sql.ErrNoRows {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, storeerrors.WrapDB("find notebook by guid", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Notebooks WHERE localId = ?", localID); err != nil {
			return struct{}{}, storeerrors.WrapDB("expunge notebook", err)
		}
		expungedLocalID = localID
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) {
		if expungedLocalID != "" {
			h.publish(events.Notebook, events.Expunged, nil, expungedLocalID)
		}
	})
}

// ListPage returns up to limit notebooks ordered by localId, starting after
// offset, scoped to linkedNotebookGuid (empty for the account's own
// notebooks). Sync caches page through this to build their lookup maps.
func (h *NotebookHandler) ListPage(ctx context.Context, linkedNotebookGuid string, offset, limit int) *storage.Future[[]*types.Notebook] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) ([]*types.Notebook, error) {
		rows, err := db.QueryContext(ctx,
			notebookSelectColumns+" WHERE COALESCE(linkedNotebookGuid, '') = ? ORDER BY localId LIMIT ? OFFSET ?",
			linkedNotebookGuid, limit, offset)
		if err != nil {
			return nil, storeerrors.WrapDB("list notebooks", err)
		}
		defer rows.Close()

		var out []*types.Notebook
		for rows.Next() {
			nb, err := scanNotebookRow(rows)
			if err != nil {
				return nil, storeerrors.WrapDB("scan notebook row", err)
			}
			out = append(out, nb)
		}
		return out, storeerrors.WrapDB("iterate notebooks", rows.Err())
	})
}

// Count returns the number of notebooks on file.
func (h *NotebookHandler) Count(ctx context.Context) *storage.Future[int64] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (int64, error) {
		var n int64
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Notebooks").Scan(&n)
		return n, storeerrors.WrapDB("count notebooks", err)
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
