package property

import "sync"

// Change describes one accepted property mutation on a node instance.
type Change struct {
	NodeID   string `json:"node_id"`
	Name     string `json:"name"`
	Value    any    `json:"value"`
	Previous any    `json:"previous,omitempty"`
}

// Bus fans property changes out to subscribers (editing surfaces).
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	next   int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Change)}
}

// Subscribe registers a subscriber with the given channel buffer size.
// The returned cancel func unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers c to every subscriber that has room for it.
func (b *Bus) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscriptions receive a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.closed = true
}
