// Package handlers implements the per-entity Entity Handlers: notebook,
// note, resource, tag, saved search, user, and version operations, each
// dispatching reads to a bounded worker pool and writes to a single
// serializing writer, returning a Future for the eventual result.
package handlers

import (
	"context"
	"database/sql"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storage/sqlite"
)

// base is embedded by every concrete handler; it carries the collaborators
// spec.md §4.4's common contract names: a writer, a read pool, a notifier,
// and the storage root path resources are staged under. The Connection
// Pool itself isn't embedded directly — the Writer and ReadPool already
// each hold their own dedicated connection(s) drawn from it at
// construction time, mirroring how the original hands each handler a
// writer-thread handle and a read-worker pool rather than the pool itself.
type base struct {
	writer      *storage.Writer
	readPool    *storage.ReadPool
	notifier    *events.Notifier
	bodies      *sqlite.ResourceBodyStore
	storageRoot string
}

func newBase(writer *storage.Writer, readPool *storage.ReadPool, notifier *events.Notifier, storageRoot string) base {
	return base{
		writer:      writer,
		readPool:    readPool,
		notifier:    notifier,
		bodies:      sqlite.NewResourceBodyStore(storageRoot),
		storageRoot: storageRoot,
	}
}

func (b *base) publish(entity events.Entity, action events.Action, value any, localID string) {
	b.notifier.Publish(events.Event{Entity: entity, Action: action, Value: value, LocalID: localID})
}

// read submits fn to the read worker pool.
func read[T any](b *base, ctx context.Context, fn func(ctx context.Context, db *sql.DB) (T, error)) *storage.Future[T] {
	return storage.SubmitRead(b.readPool, ctx, fn)
}

// write submits fn to the single writer, running inside one transaction.
func write[T any](b *base, ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) (T, error)) *storage.Future[T] {
	return storage.Submit(b.writer, ctx, fn)
}

// notifyAfter returns a Future that resolves/rejects identically to f, but
// only after notify has run on success — so a subscriber reacting to the
// notification never observes it before the write it describes has
// actually committed.
func notifyAfter[T any](f *storage.Future[T], notify func(T)) *storage.Future[T] {
	out, resolve, reject := storage.NewFuture[T]()
	go func() {
		v, err := f.Wait()
		if err != nil {
			reject(err)
			return
		}
		notify(v)
		resolve(v)
	}()
	return out
}
