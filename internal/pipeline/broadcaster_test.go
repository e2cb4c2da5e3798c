package pipeline

import (
	"fmt"
	"testing"
	"time"

	"pdf-layout-server/internal/domain"
)

func pageEvent(docID string, pageIndex int, to domain.PageStatus) domain.StatusEvent {
	return domain.StatusEvent{
		JobID:      "job-1",
		DocumentID: docID,
		PageIndex:  pageIndex,
		NewStatus:  string(to),
		Timestamp:  time.Now(),
	}
}

func TestBroadcasterDeliversInOrder(t *testing.T) {
	b := NewBroadcaster(0, testLogger{})
	defer b.Close()

	sub := b.Subscribe("doc-1", 16)
	defer sub.Close()

	statuses := []domain.PageStatus{
		domain.PageStatusRendering,
		domain.PageStatusExtractingText,
		domain.PageStatusIndexed,
	}
	for _, st := range statuses {
		b.Publish(pageEvent("doc-1", 0, st))
	}

	for i, want := range statuses {
		select {
		case ev := <-sub.C:
			if ev.NewStatus != string(want) {
				t.Errorf("event %d = %q, want %q", i, ev.NewStatus, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBroadcasterFiltersByDocument(t *testing.T) {
	b := NewBroadcaster(0, testLogger{})
	defer b.Close()

	sub := b.Subscribe("doc-1", 16)
	defer sub.Close()
	all := b.Subscribe("", 16)
	defer all.Close()

	b.Publish(pageEvent("doc-2", 0, domain.PageStatusRendering))
	b.Publish(pageEvent("doc-1", 0, domain.PageStatusRendering))

	select {
	case ev := <-sub.C:
		if ev.DocumentID != "doc-1" {
			t.Errorf("filtered subscriber received event for %q", ev.DocumentID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-all.C:
		case <-time.After(time.Second):
			t.Fatalf("wildcard subscriber missed event %d", i)
		}
	}
}

func TestBroadcasterSubscriberSeesOnlyEventsAfterAttach(t *testing.T) {
	b := NewBroadcaster(0, testLogger{})
	defer b.Close()

	b.Publish(pageEvent("doc-1", 0, domain.PageStatusRendering))

	sub := b.Subscribe("doc-1", 16)
	defer sub.Close()

	b.Publish(pageEvent("doc-1", 0, domain.PageStatusIndexed))

	select {
	case ev := <-sub.C:
		if ev.NewStatus != string(domain.PageStatusIndexed) {
			t.Errorf("first delivered event = %q, want the post-attach one", ev.NewStatus)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-attach event")
	}
}

func TestBroadcasterSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster(0, testLogger{})
	defer b.Close()

	slow := b.Subscribe("doc-1", 2)
	defer slow.Close()
	fast := b.Subscribe("doc-1", 64)
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			ev := pageEvent("doc-1", i, domain.PageStatusRendering)
			b.Publish(ev)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The fast subscriber still received everything.
	for i := 0; i < 20; i++ {
		select {
		case ev := <-fast.C:
			if ev.PageIndex != i {
				t.Fatalf("fast subscriber event %d has page index %d", i, ev.PageIndex)
			}
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber missed event %d", i)
		}
	}

	// The slow one kept the newest events it had room for.
	var got []int
	for {
		select {
		case ev := <-slow.C:
			got = append(got, ev.PageIndex)
			continue
		default:
		}
		break
	}
	if len(got) == 0 || len(got) > 2 {
		t.Fatalf("slow subscriber buffered %d events, want 1..2", len(got))
	}
	if got[len(got)-1] != 19 {
		t.Errorf("slow subscriber's newest event is page %d, want 19", got[len(got)-1])
	}
}

func TestBroadcasterReplayRetention(t *testing.T) {
	b := NewBroadcaster(3, testLogger{})
	defer b.Close()

	for i := 0; i < 5; i++ {
		ev := pageEvent("doc-1", i, domain.PageStatusIndexed)
		ev.Error = fmt.Sprintf("ev-%d", i)
		b.Publish(ev)
	}

	replay := b.Replay("doc-1")
	if len(replay) != 3 {
		t.Fatalf("replay holds %d events, want 3", len(replay))
	}
	for i, ev := range replay {
		if want := fmt.Sprintf("ev-%d", i+2); ev.Error != want {
			t.Errorf("replay[%d] = %q, want %q", i, ev.Error, want)
		}
	}

	b.DropReplay("doc-1")
	if replay := b.Replay("doc-1"); len(replay) != 0 {
		t.Errorf("replay not cleared, %d events remain", len(replay))
	}
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster(0, testLogger{})
	sub := b.Subscribe("doc-1", 4)
	b.Close()

	if _, open := <-sub.C; open {
		t.Error("subscriber channel should be closed")
	}

	// Publishing and re-subscribing after close must not panic.
	b.Publish(pageEvent("doc-1", 0, domain.PageStatusRendering))
	late := b.Subscribe("doc-1", 4)
	if _, open := <-late.C; open {
		t.Error("late subscriber channel should be closed immediately")
	}
}
