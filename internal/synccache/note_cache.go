package synccache

import (
	"context"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/types"
)

// NewNoteCache builds the single, unscoped note cache. Unlike the
// notebook/tag/saved-search caches, its "name" is the note's title: the
// stale-items expunger and resolvers only need title/guid/localId/dirty,
// never the full hydrated note (tags, resources, bodies), which is why
// NoteHandler.ListPage returns metadata-only rows.
func NewNoteCache(notifier *events.Notifier, h *handlers.NoteHandler) *Cache[*types.Note] {
	list := func(ctx context.Context, offset, limit int) ([]*types.Note, error) {
		return h.ListPage(ctx, offset, limit).Wait()
	}
	info := Info[*types.Note]{
		LocalID: func(n *types.Note) string { return n.LocalID },
		Guid:    func(n *types.Note) string { return n.Guid },
		Name:    func(n *types.Note) string { return n.Title },
		Dirty:   func(n *types.Note) bool { return n.LocallyModified },
	}
	return New(events.Note, notifier, list, info)
}
