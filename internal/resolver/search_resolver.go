package resolver

import (
	"context"

	"github.com/quentier/localstorage/internal/idgen"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/synccache"
	"github.com/quentier/localstorage/internal/types"
)

// SavedSearchResolver resolves saved-search sync conflicts per spec.md
// §4.5. Saved searches have no linked-notebook scope, so the resolver's
// scope comparison is always a match and PendingRemoteAdoption is only
// ever reached via the rename path.
type SavedSearchResolver struct {
	handler *handlers.SavedSearchHandler
	cache   *synccache.Cache[*types.SavedSearch]
}

func NewSavedSearchResolver(handler *handlers.SavedSearchHandler, cache *synccache.Cache[*types.SavedSearch]) *SavedSearchResolver {
	return &SavedSearchResolver{handler: handler, cache: cache}
}

func (r *SavedSearchResolver) Resolve(ctx context.Context, remote, local *types.SavedSearch) (*types.SavedSearch, State, error) {
	ops := Ops[*types.SavedSearch]{
		IsNil:              func(s *types.SavedSearch) bool { return s == nil },
		Guid:               func(s *types.SavedSearch) string { return s.Guid },
		Name:               func(s *types.SavedSearch) string { return s.Name },
		LinkedNotebookGuid: func(s *types.SavedSearch) string { return "" },
		NewLocalID:         idgen.NewLocalID,
		Override: func(local, remote *types.SavedSearch) *types.SavedSearch {
			out := *remote
			out.LocalID = local.LocalID
			out.LocallyModified = false
			out.LocalOnly = false
			return &out
		},
		FromRemote: func(remote *types.SavedSearch, newLocalID string) *types.SavedSearch {
			out := *remote
			out.LocalID = newLocalID
			out.LocallyModified = false
			out.LocalOnly = false
			return &out
		},
		Rename: func(local *types.SavedSearch, newName string) *types.SavedSearch {
			out := *local
			out.Name = newName
			return &out
		},
		Adjust: func(s *types.SavedSearch) *types.SavedSearch { return s },
		FindByGuid: func(ctx context.Context, guid string) (*types.SavedSearch, error) {
			return r.handler.FindByGuid(ctx, guid).Wait()
		},
		Put: func(ctx context.Context, s *types.SavedSearch) error {
			_, err := r.handler.Put(ctx, s).Wait()
			return err
		},
	}
	return Resolve(ctx, remote, local, r.cache, ops)
}
