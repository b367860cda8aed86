package resolver

import (
	"context"

	"github.com/quentier/localstorage/internal/idgen"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/synccache"
	"github.com/quentier/localstorage/internal/types"
)

// TagResolver resolves tag sync conflicts per spec.md §4.5. Tags have no
// linked-notebook scope conflict of their own kind (a linked notebook's
// tags live in the same Tags table, scoped by LinkedNotebookGuid like
// notebooks), so the scope comparison still applies.
type TagResolver struct {
	handler *handlers.TagHandler
	cache   *synccache.Cache[*types.Tag]
}

func NewTagResolver(handler *handlers.TagHandler, cache *synccache.Cache[*types.Tag]) *TagResolver {
	return &TagResolver{handler: handler, cache: cache}
}

func (r *TagResolver) Resolve(ctx context.Context, remote, local *types.Tag) (*types.Tag, State, error) {
	ops := Ops[*types.Tag]{
		IsNil:              func(t *types.Tag) bool { return t == nil },
		Guid:               func(t *types.Tag) string { return t.Guid },
		Name:               func(t *types.Tag) string { return t.Name },
		LinkedNotebookGuid: func(t *types.Tag) string { return t.LinkedNotebookGuid },
		NewLocalID:         idgen.NewLocalID,
		Override: func(local, remote *types.Tag) *types.Tag {
			out := *remote
			out.LocalID = local.LocalID
			out.LocallyModified = false
			out.LocalOnly = false
			// Cleared so storage recomputes it from ParentGuid via the FK.
			out.ParentTagLocalID = ""
			return &out
		},
		FromRemote: func(remote *types.Tag, newLocalID string) *types.Tag {
			out := *remote
			out.LocalID = newLocalID
			out.LocallyModified = false
			out.LocalOnly = false
			out.ParentTagLocalID = ""
			return &out
		},
		Rename: func(local *types.Tag, newName string) *types.Tag {
			out := *local
			out.Name = newName
			return &out
		},
		Adjust: func(t *types.Tag) *types.Tag { return t },
		FindByGuid: func(ctx context.Context, guid string) (*types.Tag, error) {
			return r.handler.FindByGuid(ctx, guid).Wait()
		},
		Put: func(ctx context.Context, t *types.Tag) error {
			_, err := r.handler.Put(ctx, t).Wait()
			return err
		},
	}
	return Resolve(ctx, remote, local, r.cache, ops)
}
