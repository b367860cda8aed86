package resolver

import (
	"context"

	"github.com/quentier/localstorage/internal/idgen"
	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/synccache"
	"github.com/quentier/localstorage/internal/types"
)

// NotebookResolver resolves notebook sync conflicts per spec.md §4.5.
type NotebookResolver struct {
	handler *handlers.NotebookHandler
	cache   *synccache.Cache[*types.Notebook]
}

func NewNotebookResolver(handler *handlers.NotebookHandler, cache *synccache.Cache[*types.Notebook]) *NotebookResolver {
	return &NotebookResolver{handler: handler, cache: cache}
}

// Resolve reconciles local against remote, returning the committed row and
// the state the resolver reached.
func (r *NotebookResolver) Resolve(ctx context.Context, remote, local *types.Notebook) (*types.Notebook, State, error) {
	ops := Ops[*types.Notebook]{
		IsNil:              func(nb *types.Notebook) bool { return nb == nil },
		Guid:               func(nb *types.Notebook) string { return nb.Guid },
		Name:               func(nb *types.Notebook) string { return nb.Name },
		LinkedNotebookGuid: func(nb *types.Notebook) string { return nb.LinkedNotebookGuid },
		NewLocalID:         idgen.NewLocalID,
		Override: func(local, remote *types.Notebook) *types.Notebook {
			out := *remote
			out.LocalID = local.LocalID
			out.LocallyModified = false
			out.LocalOnly = false
			return &out
		},
		FromRemote: func(remote *types.Notebook, newLocalID string) *types.Notebook {
			out := *remote
			out.LocalID = newLocalID
			out.LocallyModified = false
			out.LocalOnly = false
			return &out
		},
		Rename: func(local *types.Notebook, newName string) *types.Notebook {
			out := *local
			out.Name = newName
			return &out
		},
		Adjust: func(nb *types.Notebook) *types.Notebook {
			if nb.LinkedNotebookGuid != "" {
				nb.IsDefault = false
				nb.LastUsed = false
			}
			return nb
		},
		FindByGuid: func(ctx context.Context, guid string) (*types.Notebook, error) {
			return r.handler.FindByGuid(ctx, guid).Wait()
		},
		Put: func(ctx context.Context, nb *types.Notebook) error {
			_, err := r.handler.Put(ctx, nb).Wait()
			return err
		},
	}
	return Resolve(ctx, remote, local, r.cache, ops)
}
