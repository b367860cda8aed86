package handlers

import (
	"context"
	"database/sql"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storeerrors"
	"github.com/quentier/localstorage/internal/types"
)

// TagHandler implements the tag entity operations of spec.md §4.4.
// parentTagLocalId is the storage layer's own foreign key; callers
// normally supply parentGuid and let the handler resolve it to a
// parentTagLocalId via a lookup, mirroring the resolver's documented
// "recompute from parentGuid via the FK" behavior on override.
type TagHandler struct {
	base
}

func NewTagHandler(writer *storage.Writer, readPool *storage.ReadPool, notifier *events.Notifier, storageRoot string) *TagHandler {
	return &TagHandler{base: newBase(writer, readPool, notifier, storageRoot)}
}

func (h *TagHandler) Put(ctx context.Context, tag *types.Tag) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		if err := tag.Validate(); err != nil {
			return struct{}{}, err
		}
		parentLocalID := tag.ParentTagLocalID
		if parentLocalID == "" && tag.ParentGuid != "" {
			_ = tx.QueryRowContext(ctx, "SELECT localId FROM Tags WHERE guid = ?", tag.ParentGuid).Scan(&parentLocalID)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO Tags(localId, guid, name, nameLower, parentTagLocalId, parentGuid,
				linkedNotebookGuid, updateSequenceNumber, locallyModified, localOnly)
			VALUES (?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
			ON CONFLICT(localId) DO UPDATE SET
				guid = excluded.guid,
				name = excluded.name,
				nameLower = excluded.nameLower,
				parentTagLocalId = excluded.parentTagLocalId,
				parentGuid = excluded.parentGuid,
				linkedNotebookGuid = excluded.linkedNotebookGuid,
				updateSequenceNumber = excluded.updateSequenceNumber,
				locallyModified = excluded.locallyModified,
				localOnly = excluded.localOnly`,
			tag.LocalID, tag.Guid, tag.Name, tag.NormalizedName(), parentLocalID, tag.ParentGuid,
			tag.LinkedNotebookGuid, tag.UpdateSequenceNumber, boolToInt(tag.LocallyModified), boolToInt(tag.LocalOnly),
		)
		return struct{}{}, storeerrors.WrapDB("put tag", err)
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.Tag, events.Put, tag, tag.LocalID) })
}

func (h *TagHandler) PutMetadata(ctx context.Context, tag *types.Tag) *storage.Future[struct{}] {
	return h.Put(ctx, tag)
}

const tagSelectColumns = `SELECT localId, guid, name, parentTagLocalId, parentGuid, linkedNotebookGuid,
	updateSequenceNumber, locallyModified, localOnly FROM Tags`

func scanTag(row *sql.Row) (*types.Tag, error) {
	t, err := scanTagRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.WrapDB("find tag", err)
	}
	return t, nil
}

func scanTagRow(row scannable) (*types.Tag, error) {
	var t types.Tag
	var guid, parentLocalID, parentGuid, linkedGuid sql.NullString
	if err := row.Scan(&t.LocalID, &guid, &t.Name, &parentLocalID, &parentGuid, &linkedGuid,
		&t.UpdateSequenceNumber, &t.LocallyModified, &t.LocalOnly); err != nil {
		return nil, err
	}
	t.Guid = guid.String
	t.ParentTagLocalID = parentLocalID.String
	t.ParentGuid = parentGuid.String
	t.LinkedNotebookGuid = linkedGuid.String
	return &t, nil
}

func (h *TagHandler) FindByLocalID(ctx context.Context, localID string) *storage.Future[*types.Tag] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Tag, error) {
		return scanTag(db.QueryRowContext(ctx, tagSelectColumns+" WHERE localId = ?", localID))
	})
}

func (h *TagHandler) FindByGuid(ctx context.Context, guid string) *storage.Future[*types.Tag] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Tag, error) {
		return scanTag(db.QueryRowContext(ctx, tagSelectColumns+" WHERE guid = ?", guid))
	})
}

// ListPage returns up to limit tags ordered by localId, starting after
// offset, scoped to linkedNotebookGuid (empty for the account's own tags).
func (h *TagHandler) ListPage(ctx context.Context, linkedNotebookGuid string, offset, limit int) *storage.Future[[]*types.Tag] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) ([]*types.Tag, error) {
		rows, err := db.QueryContext(ctx,
			tagSelectColumns+" WHERE COALESCE(linkedNotebookGuid, '') = ? ORDER BY localId LIMIT ? OFFSET ?",
			linkedNotebookGuid, limit, offset)
		if err != nil {
			return nil, storeerrors.WrapDB("list tags", err)
		}
		defer rows.Close()

		var out []*types.Tag
		for rows.Next() {
			t, err := scanTagRow(rows)
			if err != nil {
				return nil, storeerrors.WrapDB("scan tag row", err)
			}
			out = append(out, t)
		}
		return out, storeerrors.WrapDB("iterate tags", rows.Err())
	})
}

func (h *TagHandler) ExpungeByLocalID(ctx context.Context, localID string) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(ctx, "DELETE FROM Tags WHERE localId = ?", localID)
		return struct{}{}, storeerrors.WrapDB("expunge tag", err)
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.Tag, events.Expunged, nil, localID) })
}

func (h *TagHandler) ExpungeByGuid(ctx context.Context, guid string) *storage.Future[struct{}] {
	var expungedLocalID string
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		var localID string
		err := tx.QueryRowContext(ctx, "SELECT localId FROM Tags WHERE guid = ?", guid).Scan(&localID)
		if err == sql.ErrNoRows {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, storeerrors.WrapDB("find tag by guid", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Tags WHERE localId = ?", localID); err != nil {
			return struct{}{}, storeerrors.WrapDB("expunge tag", err)
		}
		expungedLocalID = localID
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) {
		if expungedLocalID != "" {
			h.publish(events.Tag, events.Expunged, nil, expungedLocalID)
		}
	})
}

func (h *TagHandler) Count(ctx context.Context) *storage.Future[int64] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (int64, error) {
		var n int64
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Tags").Scan(&n)
		return n, storeerrors.WrapDB("count tags", err)
	})
}
