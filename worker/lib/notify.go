package lib

import (
	"context"
	"sync"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/models"
)

// Notifier fans change sets out to subscribers. Changes posted while a
// subscriber is busy are merged into a single change set, so Notify never
// blocks and nothing is lost.
type Notifier struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	out     chan models.ChangeSet
	wake    chan struct{}
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending models.ChangeSet
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[*subscription]struct{})}
}

// Subscribe returns a channel of change sets. It is closed when ctx is done
// or when the notifier is closed.
func (n *Notifier) Subscribe(ctx context.Context) <-chan models.ChangeSet {
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		out:    make(chan models.ChangeSet),
		wake:   make(chan struct{}, 1),
		cancel: cancel,
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		cancel()
		close(sub.out)
		return sub.out
	}
	n.subs[sub] = struct{}{}
	n.mu.Unlock()

	go func() {
		defer log.PanicHandler()
		defer close(sub.out)
		defer func() {
			n.mu.Lock()
			delete(n.subs, sub)
			n.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.wake:
			}
			sub.mu.Lock()
			changes := sub.pending
			sub.pending = models.ChangeSet{}
			sub.mu.Unlock()
			if changes.Empty() {
				continue
			}
			select {
			case sub.out <- changes:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub.out
}

// Notify posts changes to every subscriber.
func (n *Notifier) Notify(changes models.ChangeSet) {
	if changes.Empty() {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		sub.mu.Lock()
		sub.pending.Merge(&changes)
		sub.mu.Unlock()
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// Close ends every subscription.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for sub := range n.subs {
		sub.cancel()
	}
}
