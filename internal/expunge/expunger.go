// Package expunge implements the full-sync stale data items expunger of
// spec.md §4.6, grounded on
// original_source/src/synchronization/FullSyncStaleDataItemsExpunger.cpp.
// After a forced full sync, the engine learns the full set of guids the
// server still has for notebooks, tags, saved searches, and notes; every
// local item whose guid fell out of that set either gets detached from its
// server identity (if dirty) or expunged outright (if clean).
package expunge

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/quentier/localstorage/internal/storage/handlers"
	"github.com/quentier/localstorage/internal/synccache"
	"github.com/quentier/localstorage/internal/types"
)

// SyncedGuids is the set of guids the server reported still exist, per
// entity kind, scoped (optionally) to one linked notebook.
type SyncedGuids struct {
	Notebooks     map[string]struct{}
	Tags          map[string]struct{}
	SavedSearches map[string]struct{}
	Notes         map[string]struct{}
}

// NewSyncedGuids builds a SyncedGuids from plain slices, the shape a sync
// protocol response naturally comes in.
func NewSyncedGuids(notebookGuids, tagGuids, savedSearchGuids, noteGuids []string) SyncedGuids {
	return SyncedGuids{
		Notebooks:     toSet(notebookGuids),
		Tags:          toSet(tagGuids),
		SavedSearches: toSet(savedSearchGuids),
		Notes:         toSet(noteGuids),
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}

// Engine runs the expunger once per invocation. Construct one per full
// sync; the caches it holds must already be filled.
type Engine struct {
	notebooks     *handlers.NotebookHandler
	tags          *handlers.TagHandler
	savedSearches *handlers.SavedSearchHandler
	notes         *handlers.NoteHandler

	notebookCache     *synccache.Cache[*types.Notebook]
	tagCache          *synccache.Cache[*types.Tag]
	savedSearchCache  *synccache.Cache[*types.SavedSearch]
	noteCache         *synccache.Cache[*types.Note]
	linkedNotebookGuid string
}

func New(
	notebooks *handlers.NotebookHandler,
	tags *handlers.TagHandler,
	savedSearches *handlers.SavedSearchHandler,
	notes *handlers.NoteHandler,
	notebookCache *synccache.Cache[*types.Notebook],
	tagCache *synccache.Cache[*types.Tag],
	savedSearchCache *synccache.Cache[*types.SavedSearch],
	noteCache *synccache.Cache[*types.Note],
	linkedNotebookGuid string,
) *Engine {
	return &Engine{
		notebooks:          notebooks,
		tags:               tags,
		savedSearches:       savedSearches,
		notes:              notes,
		notebookCache:      notebookCache,
		tagCache:           tagCache,
		savedSearchCache:   savedSearchCache,
		noteCache:          noteCache,
		linkedNotebookGuid: linkedNotebookGuid,
	}
}

// plan is the pure, IO-free classification of every cached item, computed
// once up front so Execute's concurrent requests never race over shared
// state.
type plan struct {
	expungeNotebooks []string
	expungeTags      []string
	expungeSearches  []string
	expungeNotes     []string

	updateNotebooks []*types.Notebook
	updateTags      []*types.Tag
	updateSearches  []*types.SavedSearch
	updateNotes     []*types.Note
}

// classify implements spec.md §4.6 step 1 for one entity kind: every
// cached guid not in synced is either added to the detach-and-update list
// (if the cache holds a dirty entry for it) or the expunge list.
func classify[T any](cache *synccache.Cache[T], synced map[string]struct{}) (expunge []string, update []T) {
	dirty := cache.DirtyItemsByGuid()
	for _, guid := range cache.Guids() {
		if _, ok := synced[guid]; ok {
			continue
		}
		if v, ok := dirty[guid]; ok {
			update = append(update, v)
		} else {
			expunge = append(expunge, guid)
		}
	}
	return expunge, update
}

func (e *Engine) buildPlan(synced SyncedGuids) plan {
	var p plan
	p.expungeNotebooks, p.updateNotebooks = classify(e.notebookCache, synced.Notebooks)
	p.expungeTags, p.updateTags = classify(e.tagCache, synced.Tags)
	p.expungeSearches, p.updateSearches = classify(e.savedSearchCache, synced.SavedSearches)
	p.expungeNotes, p.updateNotes = classify(e.noteCache, synced.Notes)

	expungeTagSet := toSet(p.expungeTags)
	for i, t := range p.updateTags {
		if t.ParentGuid == "" {
			continue
		}
		if _, scheduled := expungeTagSet[t.ParentGuid]; scheduled {
			clone := *t
			clone.ParentGuid = ""
			clone.ParentTagLocalID = ""
			p.updateTags[i] = &clone
		}
	}

	expungeNotebookSet := toSet(p.expungeNotebooks)
	updateNotebookSet := make(map[string]struct{}, len(p.updateNotebooks))
	for _, nb := range p.updateNotebooks {
		updateNotebookSet[nb.Guid] = struct{}{}
	}
	keptNotes := p.updateNotes[:0]
	for _, n := range p.updateNotes {
		if _, scheduled := expungeNotebookSet[n.NotebookGuid]; scheduled {
			if _, alsoDetached := updateNotebookSet[n.NotebookGuid]; !alsoDetached {
				continue // dropped: the notebook's cascade expunge removes it too
			}
		}
		keptNotes = append(keptNotes, n)
	}
	p.updateNotes = keptNotes

	return p
}

// detachNotebook, detachSearch, detachNote, detachTag clear the fields
// that tie a dirty item to its server identity, per spec.md §4.6 step 4.
func detachNotebook(nb *types.Notebook) *types.Notebook {
	out := *nb
	out.Guid = ""
	out.UpdateSequenceNumber = 0
	return &out
}

func detachSearch(s *types.SavedSearch) *types.SavedSearch {
	out := *s
	out.Guid = ""
	out.UpdateSequenceNumber = 0
	return &out
}

func detachNote(n *types.Note) *types.Note {
	out := *n
	out.Guid = ""
	out.NotebookGuid = ""
	out.UpdateSequenceNumber = 0
	return &out
}

func detachTag(t *types.Tag) *types.Tag {
	out := *t
	out.Guid = ""
	out.UpdateSequenceNumber = 0
	return &out
}

// Execute runs the plan: issues update requests for every dirty item,
// expunge requests for every stale clean item. Tag updates complete
// before any tag-expunge request is issued — the database cascades
// child-tag expungement along parent, so expunging a parent whose dirty
// child hasn't yet been detached would destroy the child.
func (e *Engine) Execute(ctx context.Context, synced SyncedGuids) error {
	p := e.buildPlan(synced)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.runTags(gctx, p) })
	g.Go(func() error { return e.runNotebooks(gctx, p) })
	g.Go(func() error { return e.runSearches(gctx, p) })
	g.Go(func() error { return e.runNotes(gctx, p) })

	return g.Wait()
}

func (e *Engine) runTags(ctx context.Context, p plan) error {
	updates, uctx := errgroup.WithContext(ctx)
	for _, t := range p.updateTags {
		t := t
		updates.Go(func() error {
			_, err := e.tags.Put(uctx, detachTag(t)).Wait()
			return err
		})
	}
	if err := updates.Wait(); err != nil {
		return err
	}

	expunges, ectx := errgroup.WithContext(ctx)
	for _, guid := range p.expungeTags {
		guid := guid
		expunges.Go(func() error {
			_, err := e.tags.ExpungeByGuid(ectx, guid).Wait()
			return err
		})
	}
	return expunges.Wait()
}

func (e *Engine) runNotebooks(ctx context.Context, p plan) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, nb := range p.updateNotebooks {
		nb := nb
		g.Go(func() error {
			_, err := e.notebooks.Put(gctx, detachNotebook(nb)).Wait()
			return err
		})
	}
	for _, guid := range p.expungeNotebooks {
		guid := guid
		g.Go(func() error {
			_, err := e.notebooks.ExpungeByGuid(gctx, guid).Wait()
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) runSearches(ctx context.Context, p plan) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range p.updateSearches {
		s := s
		g.Go(func() error {
			_, err := e.savedSearches.Put(gctx, detachSearch(s)).Wait()
			return err
		})
	}
	for _, guid := range p.expungeSearches {
		guid := guid
		g.Go(func() error {
			_, err := e.savedSearches.ExpungeByGuid(gctx, guid).Wait()
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) runNotes(ctx context.Context, p plan) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range p.updateNotes {
		n := n
		g.Go(func() error {
			_, err := e.notes.PutMetadata(gctx, detachNote(n)).Wait()
			return err
		})
	}
	for _, guid := range p.expungeNotes {
		guid := guid
		g.Go(func() error {
			_, err := e.notes.ExpungeByGuid(gctx, guid).Wait()
			return err
		})
	}
	return g.Wait()
}
