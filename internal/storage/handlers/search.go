package handlers

import (
	"context"
	"database/sql"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storeerrors"
	"github.com/quentier/localstorage/internal/types"
)

// SavedSearchHandler implements the saved search entity operations of
// spec.md §4.4. Saved searches are never scoped to a linked notebook, so
// unlike NotebookHandler/TagHandler this handler has no guid-scope
// parameter anywhere.
type SavedSearchHandler struct {
	base
}

func NewSavedSearchHandler(writer *storage.Writer, readPool *storage.ReadPool, notifier *events.Notifier, storageRoot string) *SavedSearchHandler {
	return &SavedSearchHandler{base: newBase(writer, readPool, notifier, storageRoot)}
}

func (h *SavedSearchHandler) Put(ctx context.Context, s *types.SavedSearch) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		if err := s.Validate(); err != nil {
			return struct{}{}, err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO SavedSearches(localId, guid, name, nameLower, query, updateSequenceNumber, locallyModified, localOnly)
			VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)
			ON CONFLICT(localId) DO UPDATE SET
				guid = excluded.guid,
				name = excluded.name,
				nameLower = excluded.nameLower,
				query = excluded.query,
				updateSequenceNumber = excluded.updateSequenceNumber,
				locallyModified = excluded.locallyModified,
				localOnly = excluded.localOnly`,
			s.LocalID, s.Guid, s.Name, s.NormalizedName(), s.Query, s.UpdateSequenceNumber,
			boolToInt(s.LocallyModified), boolToInt(s.LocalOnly),
		)
		return struct{}{}, storeerrors.WrapDB("put saved search", err)
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.SavedSearch, events.Put, s, s.LocalID) })
}

func (h *SavedSearchHandler) PutMetadata(ctx context.Context, s *types.SavedSearch) *storage.Future[struct{}] {
	return h.Put(ctx, s)
}

const savedSearchSelectColumns = `SELECT localId, guid, name, query, updateSequenceNumber, locallyModified, localOnly
	FROM SavedSearches`

func scanSavedSearch(row *sql.Row) (*types.SavedSearch, error) {
	s, err := scanSavedSearchRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.WrapDB("find saved search", err)
	}
	return s, nil
}

func scanSavedSearchRow(row scannable) (*types.SavedSearch, error) {
	var s types.SavedSearch
	var guid sql.NullString
	if err := row.Scan(&s.LocalID, &guid, &s.Name, &s.Query, &s.UpdateSequenceNumber, &s.LocallyModified, &s.LocalOnly); err != nil {
		return nil, err
	}
	s.Guid = guid.String
	return &s, nil
}

func (h *SavedSearchHandler) FindByLocalID(ctx context.Context, localID string) *storage.Future[*types.SavedSearch] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.SavedSearch, error) {
		return scanSavedSearch(db.QueryRowContext(ctx, savedSearchSelectColumns+" WHERE localId = ?", localID))
	})
}

func (h *SavedSearchHandler) FindByGuid(ctx context.Context, guid string) *storage.Future[*types.SavedSearch] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.SavedSearch, error) {
		return scanSavedSearch(db.QueryRowContext(ctx, savedSearchSelectColumns+" WHERE guid = ?", guid))
	})
}

// ListPage returns up to limit saved searches ordered by localId, starting
// after offset. Saved searches are never scoped to a linked notebook.
func (h *SavedSearchHandler) ListPage(ctx context.Context, offset, limit int) *storage.Future[[]*types.SavedSearch] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) ([]*types.SavedSearch, error) {
		rows, err := db.QueryContext(ctx, savedSearchSelectColumns+" ORDER BY localId LIMIT ? OFFSET ?", limit, offset)
		if err != nil {
			return nil, storeerrors.WrapDB("list saved searches", err)
		}
		defer rows.Close()

		var out []*types.SavedSearch
		for rows.Next() {
			s, err := scanSavedSearchRow(rows)
			if err != nil {
				return nil, storeerrors.WrapDB("scan saved search row", err)
			}
			out = append(out, s)
		}
		return out, storeerrors.WrapDB("iterate saved searches", rows.Err())
	})
}

func (h *SavedSearchHandler) ExpungeByLocalID(ctx context.Context, localID string) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(ctx, "DELETE FROM SavedSearches WHERE localId = ?", localID)
		return struct{}{}, storeerrors.WrapDB("expunge saved search", err)
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.SavedSearch, events.Expunged, nil, localID) })
}

func (h *SavedSearchHandler) ExpungeByGuid(ctx context.Context, guid string) *storage.Future[struct{}] {
	var expungedLocalID string
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		var localID string
		err := tx.QueryRowContext(ctx, "SELECT localId FROM SavedSearches WHERE guid = ?", guid).Scan(&localID)
		if err == sql.ErrNoRows {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, storeerrors.WrapDB("find saved search by guid", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM SavedSearches WHERE localId = ?", localID); err != nil {
			return struct{}{}, storeerrors.WrapDB("expunge saved search", err)
		}
		expungedLocalID = localID
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) {
		if expungedLocalID != "" {
			h.publish(events.SavedSearch, events.Expunged, nil, expungedLocalID)
		}
	})
}

func (h *SavedSearchHandler) Count(ctx context.Context) *storage.Future[int64] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (int64, error) {
		var n int64
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM SavedSearches").Scan(&n)
		return n, storeerrors.WrapDB("count saved searches", err)
	})
}
