// Package synccache implements the lazy sync caches of spec.md §4.5: one
// per entity type (notebook, tag, saved search, note), amortizing the
// name/guid/localId lookups the sync conflict resolvers and the full-sync
// stale-items expunger both need. A cache starts empty and does no work
// until Fill is called; from then on it keeps itself current by subscribing
// to the same Notifier events the rest of the engine publishes after every
// commit, mirroring NotebookSyncCache's "fill() once, then react to
// add/update/expunge signals" lifecycle.
package synccache

import (
	"context"
	"sync"

	"github.com/quentier/localstorage/internal/events"
)

// pageSize mirrors the original cache's listing page size.
const pageSize = 50

// Info describes how to extract the fields a Cache needs from an entity
// value of type T (always a pointer type, e.g. *types.Notebook) and from
// the localId string Expunged events carry.
type Info[T any] struct {
	LocalID func(T) string
	Guid    func(T) string
	// Name extracts the cache's name key. Tags/notebooks/saved searches use
	// their normalized display name; the note cache uses the note's title.
	Name  func(T) string
	Dirty func(T) bool
}

// Lister pages through an entity's rows, ordered so repeated calls with
// increasing offset never skip or repeat a row added since the first call.
type Lister[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Cache lazily mirrors one entity type's name/guid/localId/dirty state.
// Safe for concurrent use: Fill, the event-driven updates, and every
// accessor all take the same mutex.
type Cache[T any] struct {
	entity   events.Entity
	notifier *events.Notifier
	list     Lister[T]
	info     Info[T]

	mu            sync.RWMutex
	filled        bool
	filling       bool
	nameByLocalID map[string]string
	nameByGuid    map[string]string
	guidByName    map[string]string
	guidByLocalID map[string]string
	dirtyByGuid   map[string]T

	sub  *events.Subscription
	done chan struct{}
}

// New constructs a cache for the given entity kind. It immediately
// subscribes to the notifier so events published before Fill completes are
// never missed, but does no listing until Fill is called.
func New[T any](entity events.Entity, notifier *events.Notifier, list Lister[T], info Info[T]) *Cache[T] {
	c := &Cache[T]{
		entity:        entity,
		notifier:      notifier,
		list:          list,
		info:          info,
		nameByLocalID: make(map[string]string),
		nameByGuid:    make(map[string]string),
		guidByName:    make(map[string]string),
		guidByLocalID: make(map[string]string),
		dirtyByGuid:   make(map[string]T),
		done:          make(chan struct{}),
	}
	c.sub = notifier.Subscribe()
	go c.consume()
	return c
}

func (c *Cache[T]) consume() {
	for {
		select {
		case ev, ok := <-c.sub.Events:
			if !ok {
				return
			}
			if ev.Entity != c.entity {
				continue
			}
			c.handle(ev)
		case <-c.done:
			return
		}
	}
}

func (c *Cache[T]) handle(ev events.Event) {
	switch ev.Action {
	case events.Put, events.MetadataPut:
		if v, ok := ev.Value.(T); ok {
			c.mu.Lock()
			c.process(v)
			c.mu.Unlock()
		}
	case events.Expunged:
		c.mu.Lock()
		c.removeByLocalID(ev.LocalID)
		c.mu.Unlock()
	}
}

// process records/updates v's entry. Caller holds c.mu.
func (c *Cache[T]) process(v T) {
	localID := c.info.LocalID(v)
	guid := c.info.Guid(v)
	name := c.info.Name(v)

	if prevGuid, ok := c.guidByLocalID[localID]; ok && prevGuid != guid {
		delete(c.nameByGuid, prevGuid)
		delete(c.dirtyByGuid, prevGuid)
	}
	if prevName, ok := c.nameByLocalID[localID]; ok && prevName != name {
		delete(c.guidByName, prevName)
	}

	c.nameByLocalID[localID] = name
	if guid != "" {
		c.guidByName[name] = guid
		c.nameByGuid[guid] = name
		c.guidByLocalID[localID] = guid
		if c.info.Dirty(v) {
			c.dirtyByGuid[guid] = v
		} else {
			delete(c.dirtyByGuid, guid)
		}
	} else {
		delete(c.guidByLocalID, localID)
	}
}

// removeByLocalID drops localID's entry, if any. Caller holds c.mu.
func (c *Cache[T]) removeByLocalID(localID string) {
	name, ok := c.nameByLocalID[localID]
	if !ok {
		return
	}
	delete(c.nameByLocalID, localID)
	delete(c.guidByName, name)
	if guid, ok := c.guidByLocalID[localID]; ok {
		delete(c.nameByGuid, guid)
		delete(c.dirtyByGuid, guid)
		delete(c.guidByLocalID, localID)
	}
}

// Fill triggers the initial paged listing if it hasn't already run (or
// isn't already running). Safe to call redundantly; subsequent calls while
// filled return nil immediately, matching NotebookSyncCache::fill's "does
// nothing if already collected or being collected" contract.
func (c *Cache[T]) Fill(ctx context.Context) error {
	c.mu.Lock()
	if c.filled || c.filling {
		c.mu.Unlock()
		return nil
	}
	c.filling = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.filling = false
		c.mu.Unlock()
	}()

	offset := 0
	for {
		page, err := c.list(ctx, offset, pageSize)
		if err != nil {
			return err
		}

		c.mu.Lock()
		for _, v := range page {
			c.process(v)
		}
		c.mu.Unlock()

		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	c.mu.Lock()
	c.filled = true
	c.mu.Unlock()
	return nil
}

// IsFilled reports whether the initial listing has completed.
func (c *Cache[T]) IsFilled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filled
}

// NameByLocalID returns the cached name for localID, if known.
func (c *Cache[T]) NameByLocalID(localID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.nameByLocalID[localID]
	return name, ok
}

// NameByGuid returns the cached name for guid, if known.
func (c *Cache[T]) NameByGuid(guid string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.nameByGuid[guid]
	return name, ok
}

// GuidByName returns the cached guid for name, if known. name must already
// be normalized the way the entity's own NormalizedName method would.
func (c *Cache[T]) GuidByName(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	guid, ok := c.guidByName[name]
	return guid, ok
}

// Guids returns a snapshot of every guid the cache currently knows about.
// The stale-items expunger walks this set to decide what survives a full
// sync.
func (c *Cache[T]) Guids() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.nameByGuid))
	for guid := range c.nameByGuid {
		out = append(out, guid)
	}
	return out
}

// DirtyItemsByGuid returns a snapshot copy of the currently dirty entities,
// keyed by guid.
func (c *Cache[T]) DirtyItemsByGuid() map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]T, len(c.dirtyByGuid))
	for k, v := range c.dirtyByGuid {
		out[k] = v
	}
	return out
}

// Clear discards all cached state and resets filled to false, without
// unsubscribing from the notifier.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filled = false
	c.nameByLocalID = make(map[string]string)
	c.nameByGuid = make(map[string]string)
	c.guidByName = make(map[string]string)
	c.guidByLocalID = make(map[string]string)
	c.dirtyByGuid = make(map[string]T)
}

// Stop unsubscribes from the notifier and terminates the consume loop.
func (c *Cache[T]) Stop() {
	close(c.done)
	c.notifier.Unsubscribe(c.sub)
}
