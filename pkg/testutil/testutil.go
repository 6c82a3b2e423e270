// Package testutil provides deterministic fakes shared by CurioBox tests.
package testutil

import (
	"sync"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/notify"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/random"
)

// Sequence returns a random source that replays values in order and then
// starts over. With no values it always yields 0.
func Sequence(values ...float64) random.Source {
	var (
		mu sync.Mutex
		i  int
	)
	return random.SourceFunc(func() (float64, error) {
		if len(values) == 0 {
			return 0, nil
		}
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)]
		i++
		return v, nil
	})
}

// Drawer returns a draw service fed by Sequence(values...).
func Drawer(values ...float64) *random.Service {
	return random.New(nil, random.WithSource(Sequence(values...)))
}

// Notification is one recorded publish.
type Notification struct {
	UserID string
	Type   string
}

// Notifications records published events instead of delivering them.
type Notifications struct {
	mu     sync.Mutex
	events []Notification
}

// Publish records ev for userID.
func (n *Notifications) Publish(userID string, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, Notification{UserID: userID, Type: ev.Type})
}

// All returns a copy of everything recorded so far.
func (n *Notifications) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.events...)
}

// Reset forgets recorded events.
func (n *Notifications) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}
