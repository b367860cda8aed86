// Package resolver implements the per-entity sync conflict resolvers of
// spec.md §4.5: notebook, tag, and saved-search each get a resolver
// instantiated from the same generic state machine, grounded on
// NotebookSyncConflictResolver/TagSyncConflictResolver/
// SavedSearchSyncConflictResolver in original_source/src/synchronization.
// The originals drive the same steps through Qt signals/slots chained
// across several async local-storage requests; here every request already
// goes through a Future-returning handler, so the whole state machine
// collapses into one synchronous call per conflict — Resolve blocks until
// every IO step it needs has completed or failed.
package resolver

import (
	"context"
	"fmt"

	"github.com/quentier/localstorage/internal/storeerrors"
	"github.com/quentier/localstorage/internal/synccache"
	"github.com/quentier/localstorage/internal/types"
)

// State names the resolver's outcome, mirroring the C++ enum class State.
type State int

const (
	Undefined State = iota
	OverrideLocalWithRemote
	PendingConflictingRename
	PendingRemoteAdoption
)

func (s State) String() string {
	switch s {
	case OverrideLocalWithRemote:
		return "overrideLocalWithRemote"
	case PendingConflictingRename:
		return "pendingConflictingRename"
	case PendingRemoteAdoption:
		return "pendingRemoteAdoption"
	default:
		return "undefined"
	}
}

// Ops gives Resolve everything it needs to know about and do to a concrete
// entity type without the generic core importing internal/types or
// internal/storage/handlers itself.
type Ops[T any] struct {
	IsNil              func(T) bool
	Guid               func(T) string
	Name               func(T) string // the entity's raw display name, not normalized
	LinkedNotebookGuid func(T) string // "" for entity types with no scope (saved searches)

	NewLocalID func() (string, error)

	// Override returns a value combining local's localId with remote's
	// fields, with dirty/local-only cleared.
	Override func(local, remote T) T

	// FromRemote builds a brand-new local entity out of remote's fields,
	// assigned newLocalID, not dirty, not local-only.
	FromRemote func(remote T, newLocalID string) T

	// Rename returns a copy of local with its Name field replaced.
	Rename func(local T, newName string) T

	// Adjust applies entity-specific fixups right before a value is
	// persisted, such as clearing a linked notebook's default/lastUsed
	// flags. A pass-through func(v T) T { return v } is fine when nothing
	// applies (saved searches, and tags, whose parentTagLocalId is cleared
	// in Override and FromRemote instead).
	Adjust func(v T) T

	FindByGuid func(ctx context.Context, guid string) (T, error)
	Put        func(ctx context.Context, v T) error
}

// Resolve runs the state machine of spec.md §4.5 for one conflicting pair.
// local is the entity that triggered the resolver (matched to remote by
// guid or, when names collide first, the caller's best-known local row);
// cache is consulted for name-collision lookups.
func Resolve[T any](ctx context.Context, remote, local T, cache *synccache.Cache[T], ops Ops[T]) (T, State, error) {
	var zero T
	if ops.Guid(remote) == "" || ops.Name(remote) == "" {
		return zero, Undefined, storeerrors.New(storeerrors.InvalidArgument, "resolve conflict", "remote entity must carry both guid and name")
	}
	if ops.Guid(local) == "" && ops.Name(local) == "" {
		return zero, Undefined, storeerrors.New(storeerrors.InvalidArgument, "resolve conflict", "local entity must carry a guid or a name")
	}

	if types.NormalizeName(ops.Name(local)) == types.NormalizeName(ops.Name(remote)) {
		if ops.Guid(local) == ops.Guid(remote) {
			return overrideLocal(ctx, local, remote, ops)
		}
		return resolveSameNameDifferentGuid(ctx, local, remote, cache, ops)
	}

	// Conflict by guid: the caller matched local to remote by guid, so a
	// name clash (if any) is against some other, unrelated local row.
	clashGuid, nameClashes := cache.GuidByName(types.NormalizeName(ops.Name(remote)))
	if !nameClashes {
		return overrideLocal(ctx, local, remote, ops)
	}
	clashLocal, err := ops.FindByGuid(ctx, clashGuid)
	if err != nil {
		return zero, Undefined, err
	}
	if ops.IsNil(clashLocal) {
		return zero, Undefined, storeerrors.New(storeerrors.Runtime, "resolve conflict", "sync cache points at a guid with no local row")
	}
	return resolveSameNameDifferentGuid(ctx, clashLocal, remote, cache, ops)
}

// resolveSameNameDifferentGuid implements spec.md §4.5 step 1.ii: local and
// remote share a name but not a guid, so the server considers them distinct
// entities.
func resolveSameNameDifferentGuid[T any](ctx context.Context, nameClashLocal, remote T, cache *synccache.Cache[T], ops Ops[T]) (T, State, error) {
	var zero T

	if ops.LinkedNotebookGuid(nameClashLocal) != ops.LinkedNotebookGuid(remote) {
		fresh, err := fromRemote(remote, ops)
		if err != nil {
			return zero, Undefined, err
		}
		if err := ops.Put(ctx, fresh); err != nil {
			return zero, Undefined, err
		}
		return fresh, PendingRemoteAdoption, nil
	}

	newName := lowestFreeConflictName(cache, ops.Name(nameClashLocal))
	renamed := ops.Adjust(ops.Rename(nameClashLocal, newName))
	if err := ops.Put(ctx, renamed); err != nil {
		return zero, Undefined, err
	}

	// The rename has committed; now adopt the remote under its own guid,
	// either into a local row that already shares that guid or as new.
	existing, err := ops.FindByGuid(ctx, ops.Guid(remote))
	if err != nil {
		return zero, Undefined, err
	}

	var result T
	if !ops.IsNil(existing) {
		result = ops.Adjust(ops.Override(existing, remote))
	} else {
		fresh, err := fromRemote(remote, ops)
		if err != nil {
			return zero, Undefined, err
		}
		result = fresh
	}
	if err := ops.Put(ctx, result); err != nil {
		return zero, Undefined, err
	}
	return result, PendingRemoteAdoption, nil
}

// fromRemote mints a fresh local id and builds a new local entity from
// remote, applying the entity-specific Adjust fixup.
func fromRemote[T any](remote T, ops Ops[T]) (T, error) {
	var zero T
	localID, err := ops.NewLocalID()
	if err != nil {
		return zero, storeerrors.Wrap(storeerrors.Runtime, "generate local id", err)
	}
	return ops.Adjust(ops.FromRemote(remote, localID)), nil
}

func overrideLocal[T any](ctx context.Context, local, remote T, ops Ops[T]) (T, State, error) {
	var zero T
	result := ops.Adjust(ops.Override(local, remote))
	if err := ops.Put(ctx, result); err != nil {
		return zero, Undefined, err
	}
	return result, OverrideLocalWithRemote, nil
}

// lowestFreeConflictName appends " - conflicting" to base, and then
// " (N)" for increasing N, until it finds a name the cache has no guid
// for.
func lowestFreeConflictName[T any](cache *synccache.Cache[T], base string) string {
	candidate := base + " - conflicting"
	if _, taken := cache.GuidByName(types.NormalizeName(candidate)); !taken {
		return candidate
	}
	for n := 1; ; n++ {
		candidate = fmt.Sprintf("%s - conflicting (%d)", base, n)
		if _, taken := cache.GuidByName(types.NormalizeName(candidate)); !taken {
			return candidate
		}
	}
}
