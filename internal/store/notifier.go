package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Notifier is an in-process ChangeFeed for backends whose writes all pass
// through this process.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]notifierSub
}

type notifierSub struct {
	scope Scope
	fn    func(Change)
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]notifierSub)}
}

func (n *Notifier) Subscribe(ctx context.Context, scope Scope, fn func(Change)) (func(), error) {
	id := uuid.NewString()
	n.mu.Lock()
	n.subs[id] = notifierSub{scope: scope, fn: fn}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
	return cancel, nil
}

// Notify delivers c to every matching subscriber on the calling goroutine.
func (n *Notifier) Notify(c Change) {
	n.mu.RLock()
	targets := make([]func(Change), 0, len(n.subs))
	for _, s := range n.subs {
		if s.scope.Matches(c) {
			targets = append(targets, s.fn)
		}
	}
	n.mu.RUnlock()

	for _, fn := range targets {
		fn(c)
	}
}

func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
