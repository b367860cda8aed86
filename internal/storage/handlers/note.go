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

// NoteHandler implements the note entity operations of spec.md §4.4,
// including its nested tag assignments and resources. Resource bodies are
// written through ResourceHandler's body-writing path; NoteHandler only
// persists Resources rows and their tag/position metadata here, keeping
// the content-addressed file logic in one place.
type NoteHandler struct {
	base
	resources *ResourceHandler
}

func NewNoteHandler(writer *storage.Writer, readPool *storage.ReadPool, notifier *events.Notifier, storageRoot string, resources *ResourceHandler) *NoteHandler {
	return &NoteHandler{base: newBase(writer, readPool, notifier, storageRoot), resources: resources}
}

// Put inserts or replaces note by localId, including its tag assignments
// and resources (with bodies). PutMetadata does everything Put does
// except write resource body files.
func (h *NoteHandler) Put(ctx context.Context, note *types.Note) *storage.Future[struct{}] {
	return h.put(ctx, note, true)
}

func (h *NoteHandler) PutMetadata(ctx context.Context, note *types.Note) *storage.Future[struct{}] {
	return h.put(ctx, note, false)
}

func (h *NoteHandler) put(ctx context.Context, note *types.Note, withBodies bool) *storage.Future[struct{}] {
	var cleanups []func()
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		if err := note.Validate(); err != nil {
			return struct{}{}, err
		}
		if err := putNoteRow(ctx, tx, note); err != nil {
			return struct{}{}, err
		}
		if err := putNoteTags(ctx, tx, note); err != nil {
			return struct{}{}, err
		}
		for _, r := range note.Resources {
			rc, err := h.resources.putRow(ctx, tx, r, withBodies)
			if err != nil {
				return struct{}{}, err
			}
			cleanups = append(cleanups, rc...)
		}
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) {
		for _, c := range cleanups {
			c()
		}
		h.publish(events.Note, events.Put, note, note.LocalID)
	})
}

func putNoteRow(ctx context.Context, tx *sql.Tx, n *types.Note) error {
	now := time.Now().Unix()
	var existingCreatedAt sql.NullInt64
	_ = tx.QueryRowContext(ctx, "SELECT createdAt FROM Notes WHERE localId = ?", n.LocalID).Scan(&existingCreatedAt)
	createdAt := existingCreatedAt.Int64
	if !n.CreatedAt.IsZero() {
		createdAt = n.CreatedAt.Unix()
	} else if createdAt == 0 {
		createdAt = now
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO Notes(localId, guid, notebookLocalId, notebookGuid, title, content, contentHash,
			contentLength, updateSequenceNumber, thumbnail, locallyModified, localOnly, createdAt, updatedAt)
		VALUES (?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(localId) DO UPDATE SET
			guid = excluded.guid,
			notebookLocalId = excluded.notebookLocalId,
			notebookGuid = excluded.notebookGuid,
			title = excluded.title,
			content = excluded.content,
			contentHash = excluded.contentHash,
			contentLength = excluded.contentLength,
			updateSequenceNumber = excluded.updateSequenceNumber,
			thumbnail = excluded.thumbnail,
			locallyModified = excluded.locallyModified,
			localOnly = excluded.localOnly,
			updatedAt = excluded.updatedAt`,
		n.LocalID, n.Guid, n.NotebookLocalID, n.NotebookGuid, n.Title, n.Content, n.ContentHash,
		n.ContentLength, n.UpdateSequenceNumber, n.Thumbnail, boolToInt(n.LocallyModified), boolToInt(n.LocalOnly),
		createdAt, now,
	)
	return storeerrors.WrapDB("put note", err)
}

func putNoteTags(ctx context.Context, tx *sql.Tx, n *types.Note) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM NoteTags WHERE noteLocalId = ?", n.LocalID); err != nil {
		return storeerrors.WrapDB("clear note tags", err)
	}
	for i, tagLocalID := range n.TagLocalIDs {
		var tagGuid string
		if i < len(n.TagGuids) {
			tagGuid = n.TagGuids[i]
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO NoteTags(noteLocalId, tagLocalId, tagGuid, position) VALUES (?, ?, NULLIF(?, ''), ?)",
			n.LocalID, tagLocalID, tagGuid, i,
		); err != nil {
			return storeerrors.WrapDB("put note tag", err)
		}
	}
	return nil
}

const noteSelectColumns = `SELECT localId, guid, notebookLocalId, notebookGuid, title, content, contentHash,
	contentLength, updateSequenceNumber, thumbnail, locallyModified, localOnly, createdAt, updatedAt FROM Notes`

func scanNote(row *sql.Row) (*types.Note, error) {
	n, err := scanNoteRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.WrapDB("find note", err)
	}
	return n, nil
}

func scanNoteRow(row scannable) (*types.Note, error) {
	var n types.Note
	var guid, notebookGuid, title, content sql.NullString
	var contentHash, thumbnail []byte
	var createdAt, updatedAt sql.NullInt64
	if err := row.Scan(&n.LocalID, &guid, &n.NotebookLocalID, &notebookGuid, &title, &content, &contentHash,
		&n.ContentLength, &n.UpdateSequenceNumber, &thumbnail, &n.LocallyModified, &n.LocalOnly, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.Guid = guid.String
	n.NotebookGuid = notebookGuid.String
	n.Title = title.String
	n.Content = content.String
	n.ContentHash = contentHash
	n.Thumbnail = thumbnail
	if createdAt.Valid {
		n.CreatedAt = time.Unix(createdAt.Int64, 0).UTC()
	}
	if updatedAt.Valid {
		n.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}
	return &n, nil
}

// ListPage returns up to limit notes (metadata only, no tags/resources
// hydrated) ordered by localId, starting after offset. The note sync cache
// pages through this to build its title/guid lookup maps.
func (h *NoteHandler) ListPage(ctx context.Context, offset, limit int) *storage.Future[[]*types.Note] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) ([]*types.Note, error) {
		rows, err := db.QueryContext(ctx, noteSelectColumns+" ORDER BY localId LIMIT ? OFFSET ?", limit, offset)
		if err != nil {
			return nil, storeerrors.WrapDB("list notes", err)
		}
		defer rows.Close()

		var out []*types.Note
		for rows.Next() {
			n, err := scanNoteRow(rows)
			if err != nil {
				return nil, storeerrors.WrapDB("scan note row", err)
			}
			out = append(out, n)
		}
		return out, storeerrors.WrapDB("iterate notes", rows.Err())
	})
}

// FetchOptions selects how much of a note (or resource) to hydrate on a
// find: tags/resources are cheap metadata, bodies are potentially large
// blobs a caller may not need for a list view.
type FetchOptions struct {
	WithTags           bool
	WithResources      bool
	WithResourceBodies bool
}

func (h *NoteHandler) FindByLocalID(ctx context.Context, localID string, opts FetchOptions) *storage.Future[*types.Note] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Note, error) {
		n, err := scanNote(db.QueryRowContext(ctx, noteSelectColumns+" WHERE localId = ?", localID))
		if err != nil || n == nil {
			return n, err
		}
		return h.hydrate(ctx, db, n, opts)
	})
}

func (h *NoteHandler) FindByGuid(ctx context.Context, guid string, opts FetchOptions) *storage.Future[*types.Note] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Note, error) {
		n, err := scanNote(db.QueryRowContext(ctx, noteSelectColumns+" WHERE guid = ?", guid))
		if err != nil || n == nil {
			return n, err
		}
		return h.hydrate(ctx, db, n, opts)
	})
}

func (h *NoteHandler) hydrate(ctx context.Context, db *sql.DB, n *types.Note, opts FetchOptions) (*types.Note, error) {
	if opts.WithTags {
		rows, err := db.QueryContext(ctx,
			"SELECT tagLocalId, tagGuid FROM NoteTags WHERE noteLocalId = ? ORDER BY position", n.LocalID)
		if err != nil {
			return nil, storeerrors.WrapDB("list note tags", err)
		}
		for rows.Next() {
			var tagLocalID string
			var tagGuid sql.NullString
			if err := rows.Scan(&tagLocalID, &tagGuid); err != nil {
				rows.Close()
				return nil, storeerrors.WrapDB("scan note tag", err)
			}
			n.TagLocalIDs = append(n.TagLocalIDs, tagLocalID)
			n.TagGuids = append(n.TagGuids, tagGuid.String)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, storeerrors.WrapDB("iterate note tags", err)
		}
		rows.Close()
	}

	if opts.WithResources {
		resourceIDs, err := queryStrings(ctx, db,
			"SELECT localId FROM Resources WHERE noteLocalId = ? ORDER BY position", n.LocalID)
		if err != nil {
			return nil, err
		}
		for _, rid := range resourceIDs {
			r, err := h.resources.findByLocalIDTx(ctx, db, rid, opts.WithResourceBodies)
			if err != nil {
				return nil, err
			}
			if r != nil {
				n.Resources = append(n.Resources, r)
			}
		}
	}
	return n, nil
}

func (h *NoteHandler) ExpungeByLocalID(ctx context.Context, localID string) *storage.Future[struct{}] {
	return h.expunge(ctx, "localId", localID)
}

func (h *NoteHandler) ExpungeByGuid(ctx context.Context, guid string) *storage.Future[struct{}] {
	return h.expunge(ctx, "guid", guid)
}

// expunge looks up the note by column (either "localId" or "guid") and
// removes it and its resources' body files, all inside one transaction so
// a concurrent reader never observes the note gone but its resource rows
// still present, or vice versa.
func (h *NoteHandler) expunge(ctx context.Context, column, value string) *storage.Future[struct{}] {
	var cleanups []func()
	var expungedLocalID string
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		var localID string
		err := tx.QueryRowContext(ctx, "SELECT localId FROM Notes WHERE "+column+" = ?", value).Scan(&localID)
		if err == sql.ErrNoRows {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, storeerrors.WrapDB("find note", err)
		}

		ids, err := queryStringsTx(ctx, tx, "SELECT localId FROM Resources WHERE noteLocalId = ?", localID)
		if err != nil {
			return struct{}{}, err
		}
		for _, rid := range ids {
			rc, err := h.resources.deleteBodies(ctx, tx, rid)
			if err != nil {
				return struct{}{}, err
			}
			cleanups = append(cleanups, rc...)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Notes WHERE localId = ?", localID); err != nil {
			return struct{}{}, storeerrors.WrapDB("expunge note", err)
		}
		expungedLocalID = localID
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) {
		for _, c := range cleanups {
			c()
		}
		if expungedLocalID != "" {
			h.publish(events.Note, events.Expunged, nil, expungedLocalID)
		}
	})
}

func (h *NoteHandler) Count(ctx context.Context) *storage.Future[int64] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (int64, error) {
		var n int64
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Notes").Scan(&n)
		return n, storeerrors.WrapDB("count notes", err)
	})
}

func queryStringsTx(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeerrors.WrapDB("query string list", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storeerrors.WrapDB("scan string list row", err)
		}
		out = append(out, s)
	}
	return out, storeerrors.WrapDB("iterate string list", rows.Err())
}
