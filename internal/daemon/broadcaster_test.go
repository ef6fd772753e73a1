package daemon

import (
	"testing"
	"time"
)

func TestBroadcastDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster()
	_, ch1 := b.Subscribe("")
	_, ch2 := b.Subscribe("")

	b.Broadcast(Event{Type: "task.queued", TaskID: "t1", Repo: "octocat/hello"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != "task.queued" || ev.TaskID != "t1" {
				t.Errorf("subscriber %d got %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBroadcastRepoFilter(t *testing.T) {
	b := NewBroadcaster()
	_, filtered := b.Subscribe("octocat/hello")
	_, all := b.Subscribe("")

	b.Broadcast(Event{Type: "task.queued", Repo: "other/repo"})
	b.Broadcast(Event{Type: "task.queued", Repo: "octocat/hello"})

	select {
	case ev := <-filtered:
		if ev.Repo != "octocat/hello" {
			t.Errorf("filtered subscriber got event for %q", ev.Repo)
		}
	case <-time.After(time.Second):
		t.Fatal("filtered subscriber received nothing")
	}
	select {
	case ev := <-filtered:
		t.Errorf("filtered subscriber got second event: %+v", ev)
	default:
	}

	// Unfiltered subscriber sees both
	for i := 0; i < 2; i++ {
		select {
		case <-all:
		case <-time.After(time.Second):
			t.Fatalf("unfiltered subscriber got %d events, want 2", i)
		}
	}
}

func TestBroadcastDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe("")

	// Channel buffer is 16; overfill it. Broadcast must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.Broadcast(Event{Type: "task.progress"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full subscriber")
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received == 0 || received > 16 {
				t.Errorf("received %d events, want 1..16", received)
			}
			return
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe("")

	if got := b.SubscriberCount(); got != 1 {
		t.Errorf("SubscriberCount = %d, want 1", got)
	}

	b.Unsubscribe(id)

	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel delivered an event after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Double unsubscribe is a no-op
	b.Unsubscribe(id)
}
