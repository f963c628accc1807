// Package memory implements an in-memory store. It is used by tests and as
// a staging area by the read-only stores.
package memory

import (
	"context"
	"sync"

	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/lib"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

type Store struct {
	name string

	notifier *lib.Notifier

	mu      sync.RWMutex
	order   []models.UID
	records map[models.UID]*models.Record
	closed  bool
}

func NewStore(name string, records ...*models.Record) *Store {
	s := &Store{
		name:     name,
		notifier: lib.NewNotifier(),
		records:  make(map[models.UID]*models.Record),
	}
	for _, r := range records {
		if _, dup := s.records[r.Uid]; !dup {
			s.order = append(s.order, r.Uid)
		}
		s.records[r.Uid] = r.Clone()
	}
	return s
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Uids(ctx context.Context) ([]models.UID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreUnavailable
	}
	uids := make([]models.UID, len(s.order))
	copy(uids, s.order)
	return uids, nil
}

func (s *Store) Search(ctx context.Context, expr string) ([]models.UID, error) {
	criteria, err := lib.ParseSearch(expr)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreUnavailable
	}
	records := make([]*models.Record, 0, len(s.order))
	for _, uid := range s.order {
		records = append(records, s.records[uid])
	}
	return lib.Search(records, criteria), nil
}

func (s *Store) Record(ctx context.Context, uid models.UID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreUnavailable
	}
	return s.records[uid].Clone(), nil
}

func (s *Store) Subscribe(ctx context.Context) <-chan models.ChangeSet {
	return s.notifier.Subscribe(ctx)
}

// Put adds or replaces records and notifies subscribers.
func (s *Store) Put(records ...*models.Record) {
	var changes models.ChangeSet
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, ok := s.records[r.Uid]; ok {
			changes.Changed = append(changes.Changed, r.Uid)
		} else {
			changes.Added = append(changes.Added, r.Uid)
			s.order = append(s.order, r.Uid)
		}
		s.records[r.Uid] = r.Clone()
	}
	s.notifier.Notify(changes)
}

// Delete removes records and notifies subscribers.
func (s *Store) Delete(uids ...models.UID) {
	var changes models.ChangeSet
	s.mu.Lock()
	defer s.mu.Unlock()
	gone := make(map[models.UID]struct{}, len(uids))
	for _, uid := range uids {
		if _, ok := s.records[uid]; ok {
			delete(s.records, uid)
			gone[uid] = struct{}{}
			changes.Removed = append(changes.Removed, uid)
		}
	}
	order := s.order[:0]
	for _, uid := range s.order {
		if _, ok := gone[uid]; !ok {
			order = append(order, uid)
		}
	}
	s.order = order
	s.notifier.Notify(changes)
}

// Close makes the store unavailable and closes every subscription.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.notifier.Close()
}
