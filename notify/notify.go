// Package notify wakes open tracking streams when an order's tracking changes.
// Notifications carry no state; receivers re-read storage.
package notify

import (
	"context"
	"sync"
)

type Notifier interface {
	Publish(ctx context.Context, orderID string) error
	// Subscribe returns a channel signalled on each change and a func to release it
	Subscribe(ctx context.Context, orderID string) (<-chan struct{}, func())
}

// Local fans out notifications inside one process
type Local struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[chan struct{}]struct{})}
}

func (l *Local) Publish(_ context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs[orderID] {
		signal(ch)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, orderID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	if l.subs[orderID] == nil {
		l.subs[orderID] = make(map[chan struct{}]struct{})
	}
	l.subs[orderID][ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs[orderID], ch)
			if len(l.subs[orderID]) == 0 {
				delete(l.subs, orderID)
			}
		})
	}
}

// signal never blocks; one pending wake-up is enough since receivers re-read
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
