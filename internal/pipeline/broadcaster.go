package pipeline

import (
	"sync"

	"pdf-layout-server/internal/domain"
)

// DefaultEventRetention is the per-document replay window size.
const DefaultEventRetention = 200

// DefaultSubscriberBuffer is the per-subscriber channel capacity used when
// the caller does not specify one.
const DefaultSubscriberBuffer = 64

// Subscription is one observer's attachment to the broadcaster. Events
// arrive on C in emission order; a subscription that falls behind loses its
// oldest undelivered events, never anyone else's.
type Subscription struct {
	C <-chan domain.StatusEvent

	id int
	ch chan domain.StatusEvent
	b  *Broadcaster
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.b.unsubscribe(s.id)
}

type subscriber struct {
	id         int
	documentID string // empty subscribes to all documents
	ch         chan domain.StatusEvent
}

// Broadcaster fans StatusEvents out to any number of subscribers and keeps
// a bounded per-document replay buffer for late attachers. Publishing never
// blocks on a slow subscriber.
type Broadcaster struct {
	logger    domain.Logger
	retention int

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	replay map[string][]domain.StatusEvent
	closed bool
}

// NewBroadcaster creates a broadcaster retaining the last `retention` events
// per document for replay.
func NewBroadcaster(retention int, logger domain.Logger) *Broadcaster {
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	return &Broadcaster{
		logger:    logger,
		retention: retention,
		subs:      make(map[int]*subscriber),
		replay:    make(map[string][]domain.StatusEvent),
	}
}

// Subscribe attaches an observer. documentID filters events to one document;
// empty receives everything. The subscriber sees every event published after
// attach, minus any it was too slow to drain.
func (b *Broadcaster) Subscribe(documentID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan domain.StatusEvent, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if !b.closed {
		b.subs[id] = &subscriber{id: id, documentID: documentID, ch: ch}
	} else {
		close(ch)
	}
	return &Subscription{C: ch, id: id, ch: ch, b: b}
}

func (b *Broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish delivers an event to all matching subscribers and appends it to
// the document's replay buffer. A subscriber with a saturated channel drops
// its oldest buffered event instead of blocking the publisher.
func (b *Broadcaster) Publish(ev domain.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	buf := append(b.replay[ev.DocumentID], ev)
	if len(buf) > b.retention {
		buf = buf[len(buf)-b.retention:]
	}
	b.replay[ev.DocumentID] = buf

	for _, sub := range b.subs {
		if sub.documentID != "" && sub.documentID != ev.DocumentID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Drop oldest for this subscriber only.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
			b.logger.Debug("slow status subscriber dropped an event", "subscriber", sub.id, "document_id", ev.DocumentID)
		}
	}
}

// Replay returns a copy of the retained events for a document, oldest first.
func (b *Broadcaster) Replay(documentID string) []domain.StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := b.replay[documentID]
	out := make([]domain.StatusEvent, len(buf))
	copy(out, buf)
	return out
}

// DropReplay discards the retained events for a document. Called when a
// document is reprocessed so stale events are not replayed to new observers.
func (b *Broadcaster) DropReplay(documentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.replay, documentID)
}

// Close detaches all subscribers and rejects further publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
