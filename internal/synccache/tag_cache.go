package synccache

import (
	"context"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/types"
)

// NewTagCache builds a Cache scoped to linkedNotebookGuid (empty for the
// account's own tags), matching TagSyncCache's one-cache-per-scope
// construction.
func NewTagCache(notifier *events.Notifier, h *handlers.TagHandler, linkedNotebookGuid string) *Cache[*types.Tag] {
	list := func(ctx context.Context, offset, limit int) ([]*types.Tag, error) {
		return h.ListPage(ctx, linkedNotebookGuid, offset, limit).Wait()
	}
	info := Info[*types.Tag]{
		LocalID: func(t *types.Tag) string { return t.LocalID },
		Guid:    func(t *types.Tag) string { return t.Guid },
		Name:    func(t *types.Tag) string { return t.NormalizedName() },
		Dirty:   func(t *types.Tag) bool { return t.LocallyModified },
	}
	return New(events.Tag, notifier, list, info)
}
