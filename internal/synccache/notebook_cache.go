package synccache

import (
	"context"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/types"
)

// NewNotebookCache builds a Cache scoped to linkedNotebookGuid (empty for
// the account's own notebooks), matching NotebookSyncCache's one-cache-
// per-scope construction.
func NewNotebookCache(notifier *events.Notifier, h *handlers.NotebookHandler, linkedNotebookGuid string) *Cache[*types.Notebook] {
	list := func(ctx context.Context, offset, limit int) ([]*types.Notebook, error) {
		return h.ListPage(ctx, linkedNotebookGuid, offset, limit).Wait()
	}
	info := Info[*types.Notebook]{
		LocalID: func(nb *types.Notebook) string { return nb.LocalID },
		Guid:    func(nb *types.Notebook) string { return nb.Guid },
		Name:    func(nb *types.Notebook) string { return nb.NormalizedName() },
		Dirty:   func(nb *types.Notebook) bool { return nb.LocallyModified },
	}
	return New(events.Notebook, notifier, list, info)
}
