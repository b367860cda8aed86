package handlers

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"strings"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storage/sqlite"
	"github.com/quentier/localstorage/internal/storeerrors"
	"github.com/quentier/localstorage/internal/types"
)

// ResourceHandler implements the resource entity operations of spec.md
// §4.4 and the staged body-write protocol of §4.3. NoteHandler calls
// putRow/deleteBodies/findByLocalIDTx directly (under the note's own
// transaction) when a note carries inline resources; the exported
// Put/FindByLocalID/etc. methods below are for standalone resource access.
type ResourceHandler struct {
	base
}

func NewResourceHandler(writer *storage.Writer, readPool *storage.ReadPool, notifier *events.Notifier, storageRoot string) *ResourceHandler {
	return &ResourceHandler{base: newBase(writer, readPool, notifier, storageRoot)}
}

func (h *ResourceHandler) Put(ctx context.Context, r *types.Resource) *storage.Future[struct{}] {
	return h.put(ctx, r, true)
}

func (h *ResourceHandler) PutMetadata(ctx context.Context, r *types.Resource) *storage.Future[struct{}] {
	return h.put(ctx, r, false)
}

func (h *ResourceHandler) put(ctx context.Context, r *types.Resource, withBodies bool) *storage.Future[struct{}] {
	var cleanups []func()
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		rc, err := h.putRow(ctx, tx, r, withBodies)
		cleanups = rc
		return struct{}{}, err
	})
	return notifyAfter(f, func(struct{}) {
		for _, c := range cleanups {
			c()
		}
		h.publish(events.Resource, events.Put, r, r.LocalID)
	})
}

// putRow inserts/replaces r's metadata row and, when withBodies is true,
// writes its data/alternateData bodies through the Resource Body Store (the
// recognition body is stored inline in the row's recognitionBody column),
// returning the cleanup closures the caller must invoke after
// its own transaction commits.
func (h *ResourceHandler) putRow(ctx context.Context, tx *sql.Tx, r *types.Resource, withBodies bool) ([]func(), error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var cleanups []func()
	if withBodies {
		if r.Data != nil {
			hashBody(r.Data)
			c, err := h.bodies.Write(ctx, tx, sqlite.DataBody, r.NoteLocalID, r.LocalID, r.Data.Body)
			if err != nil {
				return nil, err
			}
			cleanups = append(cleanups, c)
		}
		if r.AlternateData != nil {
			hashBody(r.AlternateData)
			c, err := h.bodies.Write(ctx, tx, sqlite.AlternateDataBody, r.NoteLocalID, r.LocalID, r.AlternateData.Body)
			if err != nil {
				return nil, err
			}
			cleanups = append(cleanups, c)
		}
	}

	var recognitionBody string
	if r.Recognition != nil {
		recognitionBody = string(r.Recognition.Body)
	}
	attrs := encodeAttributes(r.Attributes)

	var dataSize, altSize sql.NullInt64
	var dataHash, altHash []byte
	if r.Data != nil {
		dataSize = sql.NullInt64{Int64: r.Data.Size, Valid: true}
		dataHash = r.Data.Hash
	}
	if r.AlternateData != nil {
		altSize = sql.NullInt64{Int64: r.AlternateData.Size, Valid: true}
		altHash = r.AlternateData.Hash
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO Resources(localId, guid, noteLocalId, noteGuid, mime, width, height,
			dataSize, dataHash, alternateDataSize, alternateDataHash, recognitionBody, attributes,
			updateSequenceNumber, position)
		VALUES (?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT MAX(position) + 1 FROM Resources WHERE noteLocalId = ?), 0))
		ON CONFLICT(localId) DO UPDATE SET
			guid = excluded.guid,
			noteLocalId = excluded.noteLocalId,
			noteGuid = excluded.noteGuid,
			mime = excluded.mime,
			width = excluded.width,
			height = excluded.height,
			dataSize = excluded.dataSize,
			dataHash = excluded.dataHash,
			alternateDataSize = excluded.alternateDataSize,
			alternateDataHash = excluded.alternateDataHash,
			recognitionBody = excluded.recognitionBody,
			attributes = excluded.attributes,
			updateSequenceNumber = excluded.updateSequenceNumber`,
		r.LocalID, r.Guid, r.NoteLocalID, r.NoteGuid, r.Mime, r.Width, r.Height,
		dataSize, dataHash, altSize, altHash, recognitionBody, attrs, r.UpdateSequenceNumber, r.NoteLocalID,
	)
	if err != nil {
		return nil, storeerrors.WrapDB("put resource", err)
	}
	return cleanups, nil
}

func hashBody(b *types.ResourceBody) {
	if b.Hash == nil {
		sum := sha256.Sum256(b.Body)
		b.Hash = sum[:]
	}
	b.Size = int64(len(b.Body))
}

func encodeAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	buf := make([]byte, 0, 64)
	first := true
	for k, v := range attrs {
		if !first {
			buf = append(buf, '\n')
		}
		first = false
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = append(buf, v...)
	}
	return string(buf)
}

// decodeAttributes inverts encodeAttributes's "key=value" lines.
func decodeAttributes(encoded string) map[string]string {
	if encoded == "" {
		return nil
	}
	lines := strings.Split(encoded, "\n")
	attrs := make(map[string]string, len(lines))
	for _, line := range lines {
		k, v, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		attrs[k] = v
	}
	return attrs
}

const resourceSelectColumns = `SELECT localId, guid, noteLocalId, noteGuid, mime, width, height,
	dataSize, dataHash, alternateDataSize, alternateDataHash, recognitionBody, attributes, updateSequenceNumber
	FROM Resources`

func scanResource(row *sql.Row) (*types.Resource, error) {
	var r types.Resource
	var guid, noteGuid, mime, recognitionBody, attrs sql.NullString
	var dataSize, altSize sql.NullInt64
	var dataHash, altHash []byte
	err := row.Scan(&r.LocalID, &guid, &r.NoteLocalID, &noteGuid, &mime, &r.Width, &r.Height,
		&dataSize, &dataHash, &altSize, &altHash, &recognitionBody, &attrs, &r.UpdateSequenceNumber)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, storeerrors.WrapDB("find resource", err)
	}
	r.Guid = guid.String
	r.NoteGuid = noteGuid.String
	r.Mime = mime.String
	if dataSize.Valid {
		r.Data = &types.ResourceBody{Size: dataSize.Int64, Hash: dataHash}
	}
	if altSize.Valid {
		r.AlternateData = &types.ResourceBody{Size: altSize.Int64, Hash: altHash}
	}
	if recognitionBody.String != "" {
		r.Recognition = &types.ResourceBody{Body: []byte(recognitionBody.String)}
	}
	r.Attributes = decodeAttributes(attrs.String)
	return &r, nil
}

func (h *ResourceHandler) FindByLocalID(ctx context.Context, localID string, withBodies bool) *storage.Future[*types.Resource] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Resource, error) {
		return h.findByLocalIDTx(ctx, db, localID, withBodies)
	})
}

// findByLocalIDTx works against any *sql.DB (standalone read connection or
// one borrowed from the read pool); it's factored out so NoteHandler can
// hydrate a note's resources using the same *sql.DB its own read is
// already running against, instead of recursing back into the read pool.
func (h *ResourceHandler) findByLocalIDTx(ctx context.Context, db *sql.DB, localID string, withBodies bool) (*types.Resource, error) {
	r, err := scanResource(db.QueryRowContext(ctx, resourceSelectColumns+" WHERE localId = ?", localID))
	if err != nil || r == nil {
		return r, err
	}
	if withBodies {
		if err := h.loadBodies(ctx, db, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (h *ResourceHandler) FindByGuid(ctx context.Context, guid string, withBodies bool) *storage.Future[*types.Resource] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.Resource, error) {
		r, err := scanResource(db.QueryRowContext(ctx, resourceSelectColumns+" WHERE guid = ?", guid))
		if err != nil || r == nil {
			return r, err
		}
		if withBodies {
			if err := h.loadBodies(ctx, db, r); err != nil {
				return nil, err
			}
		}
		return r, nil
	})
}

// loadBodies reads a resource's data/alternateData bytes from the content-
// addressed file tree. ResourceBodyStore.Read requires a *sql.Tx (the same
// contract Write/Delete use so a caller can read-your-writes inside one
// transaction), so this opens a short read-only one on db, the connection
// the caller's read job is already running against.
func (h *ResourceHandler) loadBodies(ctx context.Context, db *sql.DB, r *types.Resource) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return storeerrors.WrapDB("begin read transaction", err)
	}
	defer tx.Rollback()

	if r.Data != nil {
		body, ok, err := h.bodies.Read(ctx, tx, sqlite.DataBody, r.NoteLocalID, r.LocalID)
		if err != nil {
			return err
		}
		if ok {
			r.Data.Body = body
		}
	}
	if r.AlternateData != nil {
		body, ok, err := h.bodies.Read(ctx, tx, sqlite.AlternateDataBody, r.NoteLocalID, r.LocalID)
		if err != nil {
			return err
		}
		if ok {
			r.AlternateData.Body = body
		}
	}
	return nil
}

// deleteBodies removes r's version-id rows for both streams under tx and
// returns the cleanup closures to run after commit. Used both by
// ResourceHandler's own ExpungeByLocalID and by NoteHandler cascading a
// note expunge to its resources.
func (h *ResourceHandler) deleteBodies(ctx context.Context, tx *sql.Tx, resourceLocalID string) ([]func(), error) {
	var noteLocalID string
	err := tx.QueryRowContext(ctx, "SELECT noteLocalId FROM Resources WHERE localId = ?", resourceLocalID).Scan(&noteLocalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.WrapDB("find resource note", err)
	}

	var cleanups []func()
	for _, stream := range []sqlite.BodyStream{sqlite.DataBody, sqlite.AlternateDataBody} {
		c, err := h.bodies.Delete(ctx, tx, stream, noteLocalID, resourceLocalID)
		if err != nil {
			return nil, err
		}
		cleanups = append(cleanups, c)
	}
	return cleanups, nil
}

func (h *ResourceHandler) ExpungeByLocalID(ctx context.Context, localID string) *storage.Future[struct{}] {
	var cleanups []func()
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		rc, err := h.deleteBodies(ctx, tx, localID)
		if err != nil {
			return struct{}{}, err
		}
		cleanups = rc
		if _, err := tx.ExecContext(ctx, "DELETE FROM Resources WHERE localId = ?", localID); err != nil {
			return struct{}{}, storeerrors.WrapDB("expunge resource", err)
		}
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) {
		for _, c := range cleanups {
			c()
		}
		h.publish(events.Resource, events.Expunged, nil, localID)
	})
}

func (h *ResourceHandler) ExpungeByGuid(ctx context.Context, guid string) *storage.Future[struct{}] {
	var cleanups []func()
	var expungedLocalID string
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		var localID string
		err := tx.QueryRowContext(ctx, "SELECT localId FROM Resources WHERE guid = ?", guid).Scan(&localID)
		if err == sql.ErrNoRows {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, storeerrors.WrapDB("find resource by guid", err)
		}
		rc, err := h.deleteBodies(ctx, tx, localID)
		if err != nil {
			return struct{}{}, err
		}
		cleanups = rc
		if _, err := tx.ExecContext(ctx, "DELETE FROM Resources WHERE localId = ?", localID); err != nil {
			return struct{}{}, storeerrors.WrapDB("expunge resource", err)
		}
		expungedLocalID = localID
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) {
		for _, c := range cleanups {
			c()
		}
		if expungedLocalID != "" {
			h.publish(events.Resource, events.Expunged, nil, expungedLocalID)
		}
	})
}

func (h *ResourceHandler) Count(ctx context.Context) *storage.Future[int64] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (int64, error) {
		var n int64
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Resources").Scan(&n)
		return n, storeerrors.WrapDB("count resources", err)
	})
}

func (h *ResourceHandler) CountPerNote(ctx context.Context, noteLocalID string) *storage.Future[int64] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (int64, error) {
		var n int64
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Resources WHERE noteLocalId = ?", noteLocalID).Scan(&n)
		return n, storeerrors.WrapDB("count resources per note", err)
	})
}
