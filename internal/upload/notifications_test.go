package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotificationsExpireAfterTTL(t *testing.T) {
	c := &clock{t: time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)}
	n := NewNotifications(c.Now)

	n.Push(KindInfo, "first")
	c.t = c.t.Add(3 * time.Second)
	n.Push(KindSuccess, "second")

	assert.Len(t, n.Active(), 2)
	c.t = c.t.Add(2 * time.Second)
	active := n.Active()
	if assert.Len(t, active, 1) {
		assert.Equal(t, "second", active[0].Message)
	}
}

func TestNotificationsDismiss(t *testing.T) {
	n := NewNotifications(nil)
	note := n.Push(KindError, "x")

	assert.True(t, n.Dismiss(note.ID))
	assert.False(t, n.Dismiss(note.ID))
	assert.Empty(t, n.Active())
}

func TestNotificationsDefaultKind(t *testing.T) {
	n := NewNotifications(nil)
	assert.Equal(t, KindInfo, n.Push(Kind(""), "untyped").Kind)
}
