package events

import (
	"testing"
	"time"
)

func TestNotifierDeliversToSubscriber(t *testing.T) {
	n := NewNotifier()
	defer n.Stop()

	sub := n.Subscribe()
	// Subscribe is itself a message to the dispatch loop; give it a beat
	// to register before publishing.
	time.Sleep(10 * time.Millisecond)

	n.Publish(Event{Entity: Notebook, Action: Put, Value: "nb1"})

	select {
	case ev := <-sub.Events:
		if ev.Entity != Notebook || ev.Action != Put || ev.Value != "nb1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNotifierFansOutToMultipleSubscribers(t *testing.T) {
	n := NewNotifier()
	defer n.Stop()

	subA := n.Subscribe()
	subB := n.Subscribe()
	time.Sleep(10 * time.Millisecond)

	n.Publish(Event{Entity: Tag, Action: Expunged, LocalID: "t1"})

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case ev := <-sub.Events:
			if ev.Entity != Tag || ev.Action != Expunged || ev.LocalID != "t1" {
				t.Fatalf("unexpected event: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestNotifierUnsubscribeStopsDelivery(t *testing.T) {
	n := NewNotifier()
	defer n.Stop()

	sub := n.Subscribe()
	time.Sleep(10 * time.Millisecond)
	n.Unsubscribe(sub)
	time.Sleep(10 * time.Millisecond)

	n.Publish(Event{Entity: Note, Action: Put, Value: "n1"})

	select {
	case ev, ok := <-sub.Events:
		if ok {
			t.Fatalf("expected no further events after unsubscribe, got %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		// no event arrived, as expected
	}
}

func TestNotifierDropsOldestWhenSubscriberBufferFull(t *testing.T) {
	n := NewNotifier()
	defer n.Stop()

	sub := n.Subscribe()
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < subscriberBuffer+10; i++ {
		n.Publish(Event{Entity: Resource, Action: Put, LocalID: "r"})
	}
	time.Sleep(50 * time.Millisecond)

	// Draining should not block forever; the buffer caps delivery.
	drained := 0
	for {
		select {
		case <-sub.Events:
			drained++
		default:
			if drained > subscriberBuffer {
				t.Fatalf("drained %d events, want at most %d", drained, subscriberBuffer)
			}
			return
		}
	}
}

func TestEntityString(t *testing.T) {
	if Notebook.String() != "notebook" {
		t.Fatalf("Notebook.String() = %q", Notebook.String())
	}
	if Entity(99).String() != "unknown" {
		t.Fatalf("Entity(99).String() = %q", Entity(99).String())
	}
}
