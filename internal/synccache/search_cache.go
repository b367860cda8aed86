package synccache

import (
	"context"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/types"
)

// NewSavedSearchCache builds the single, unscoped saved-search cache:
// saved searches are never tied to a linked notebook.
func NewSavedSearchCache(notifier *events.Notifier, h *handlers.SavedSearchHandler) *Cache[*types.SavedSearch] {
	list := func(ctx context.Context, offset, limit int) ([]*types.SavedSearch, error) {
		return h.ListPage(ctx, offset, limit).Wait()
	}
	info := Info[*types.SavedSearch]{
		LocalID: func(s *types.SavedSearch) string { return s.LocalID },
		Guid:    func(s *types.SavedSearch) string { return s.Guid },
		Name:    func(s *types.SavedSearch) string { return s.NormalizedName() },
		Dirty:   func(s *types.SavedSearch) bool { return s.LocallyModified },
	}
	return New(events.SavedSearch, notifier, list, info)
}
