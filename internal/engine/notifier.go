package engine

import (
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/viralforge/procindex/internal/domain"
)

var notificationsDropped = metrics.GetOrCreateCounter(`procindex_notifications_dropped_total`)

// Notification carries the post-merge entity to subscription listeners.
// Entity is the full domain value for the kind.
type Notification struct {
	Kind     domain.EntityKind
	EntityID string
	Entity   any
}

// Notifier fans committed changes out to subscribers. Delivery is
// best-effort and in-process: each subscriber owns a bounded buffer and a
// full buffer drops its oldest entry (counted, never an error on the write
// path), so a stalled listener cannot stall the merge engine. Publish is
// called under the per-id lock, which keeps notifications for one id in
// commit order.
type Notifier struct {
	mu     sync.Mutex
	buffer int
	nextID int
	subs   map[domain.EntityKind]map[int]chan Notification
}

func NewNotifier(buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{
		buffer: buffer,
		subs:   make(map[domain.EntityKind]map[int]chan Notification),
	}
}

// Subscribe registers a listener for one entity kind. The cancel function
// closes the stream; it is safe to call more than once.
func (n *Notifier) Subscribe(kind domain.EntityKind) (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[kind] == nil {
		n.subs[kind] = make(map[int]chan Notification)
	}
	id := n.nextID
	n.nextID++
	ch := make(chan Notification, n.buffer)
	n.subs[kind][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[kind], id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers to every subscriber of the kind without ever blocking.
func (n *Notifier) Publish(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[note.Kind] {
		select {
		case ch <- note:
		default:
			// Buffer full: evict the oldest entry to make room. The mutex
			// makes this publisher the only sender, so the retry cannot race
			// another Publish.
			select {
			case <-ch:
				notificationsDropped.Inc()
			default:
			}
			select {
			case ch <- note:
			default:
				notificationsDropped.Inc()
			}
		}
	}
}
