package livequery

import "sync"

// Broadcaster fans out per-user change signals. Signals coalesce: each
// subscriber holds at most one pending signal, so Publish never blocks.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]chan struct{})}
}

// Subscribe registers interest in userID. The returned cancel is idempotent.
func (b *Broadcaster) Subscribe(userID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan struct{})
	}
	b.subs[userID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[userID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(b.subs, userID)
				}
			}
		})
	}
}

// Publish signals every subscriber of userID.
func (b *Broadcaster) Publish(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[userID] {
		signal(ch)
	}
}

// PublishAll signals every subscriber, used after a listener reconnect when
// notifications may have been missed.
func (b *Broadcaster) PublishAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, set := range b.subs {
		for _, ch := range set {
			signal(ch)
		}
	}
}

// Subscribers returns the number of subscriptions for userID.
func (b *Broadcaster) Subscribers(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
