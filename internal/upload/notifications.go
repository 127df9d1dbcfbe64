package upload

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the notification severity.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// NotificationTTL is how long a notification stays visible.
const NotificationTTL = 5 * time.Second

// Notification is a transient message for the user.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifications is a list of expiring messages.
type Notifications struct {
	mu    sync.Mutex
	items []Notification
	ttl   time.Duration
	now   func() time.Time
}

func NewNotifications(now func() time.Time) *Notifications {
	if now == nil {
		now = time.Now
	}
	return &Notifications{ttl: NotificationTTL, now: now}
}

// Push adds a notification. Every notification carries a kind; an unknown
// kind is shown as info.
func (n *Notifications) Push(kind Kind, message string) Notification {
	switch kind {
	case KindSuccess, KindError, KindInfo:
	default:
		kind = KindInfo
	}
	note := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		ExpiresAt: n.now().Add(n.ttl),
	}
	n.mu.Lock()
	n.items = append(n.items, note)
	n.mu.Unlock()
	return note
}

// Active returns the notifications that have not expired, oldest first.
func (n *Notifications) Active() []Notification {
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.items[:0]
	for _, note := range n.items {
		if now.Before(note.ExpiresAt) {
			kept = append(kept, note)
		}
	}
	n.items = kept
	out := make([]Notification, len(kept))
	copy(out, kept)
	return out
}

// Dismiss removes a notification and reports whether it existed.
func (n *Notifications) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, note := range n.items {
		if note.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}
