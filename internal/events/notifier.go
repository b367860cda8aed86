// Package events implements the engine's write-notification fan-out
// (spec.md §6's "Notifier"): every committed write publishes an event that
// sync caches and other subscribers consume to stay in sync, without the
// writer blocking on a slow subscriber.
package events

import (
	"github.com/quentier/localstorage/internal/debug"
)

// Entity identifies which entity kind an Event concerns.
type Entity int

const (
	Notebook Entity = iota
	Note
	Resource
	Tag
	SavedSearch
	LinkedNotebook
	User
)

func (e Entity) String() string {
	switch e {
	case Notebook:
		return "notebook"
	case Note:
		return "note"
	case Resource:
		return "resource"
	case Tag:
		return "tag"
	case SavedSearch:
		return "savedSearch"
	case LinkedNotebook:
		return "linkedNotebook"
	case User:
		return "user"
	default:
		return "unknown"
	}
}

// Action distinguishes the three kinds of post-commit notification a
// handler emits.
type Action int

const (
	// Put fires after a full put, carrying the new entity value.
	Put Action = iota
	// MetadataPut fires after putMetadata (every field but body blobs),
	// carrying the new entity value.
	MetadataPut
	// Expunged fires after an expunge, carrying the removed localId.
	Expunged
)

// Event is published after a write transaction commits. Value holds the
// entity for Put/MetadataPut; LocalID holds the removed identifier for
// Expunged.
type Event struct {
	Entity  Entity
	Action  Action
	Value   any
	LocalID string
}

// subscriberBuffer bounds how many undelivered events a slow subscriber can
// accumulate before the oldest is dropped to make room for the newest.
const subscriberBuffer = 256

// Notifier fans a stream of Events out to subscribers, each on its own
// buffered channel. A slow or absent subscriber never blocks a publisher;
// once its buffer is full the oldest pending event is dropped.
type Notifier struct {
	subscribe   chan chan Event
	unsubscribe chan chan Event
	publish     chan Event
	done        chan struct{}
}

// NewNotifier starts the notifier's dispatch loop and returns a handle.
// Stop must be called to release the loop's goroutine.
func NewNotifier() *Notifier {
	n := &Notifier{
		subscribe:   make(chan chan Event),
		unsubscribe: make(chan chan Event),
		publish:     make(chan Event, subscriberBuffer),
		done:        make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	subscribers := make(map[chan Event]struct{})
	for {
		select {
		case ch := <-n.subscribe:
			subscribers[ch] = struct{}{}
		case ch := <-n.unsubscribe:
			delete(subscribers, ch)
		case ev := <-n.publish:
			for ch := range subscribers {
				sendNonBlocking(ch, ev)
			}
		case <-n.done:
			return
		}
	}
}

func sendNonBlocking(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	// Buffer full: drop the oldest queued event to make room. ch is a
	// buffered channel this package owns the writer side of, so it's safe
	// to pop one entry here.
	select {
	case <-ch:
		debug.Logf("events: subscriber buffer full, dropped oldest event\n")
	default:
	}
	select {
	case ch <- ev:
	default:
		debug.Logf("events: subscriber still full after drop, dropping newest event\n")
	}
}

// Subscription is a handle returned by Subscribe. Events is the receive
// side a caller reads from; pass the Subscription itself to Unsubscribe.
type Subscription struct {
	Events <-chan Event
	ch     chan Event
}

// Subscribe registers a new subscriber and returns a handle to its
// receive-only channel.
func (n *Notifier) Subscribe() *Subscription {
	ch := make(chan Event, subscriberBuffer)
	n.subscribe <- ch
	return &Subscription{Events: ch, ch: ch}
}

// Unsubscribe removes a subscriber registered via Subscribe.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	n.unsubscribe <- sub.ch
}

// Publish enqueues ev for delivery to all current subscribers. Safe to call
// from the writer goroutine after a transaction commits.
func (n *Notifier) Publish(ev Event) {
	n.publish <- ev
}

// Stop terminates the dispatch loop. Subscribers' channels are left open;
// callers should stop reading from them once Stop returns.
func (n *Notifier) Stop() {
	close(n.done)
}
