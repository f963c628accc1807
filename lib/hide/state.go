package hide

import (
	"sync"

	"git.sr.ht/~rjarry/msglist/models"
)

// State is the mutable hiding state of one view. It is the only part of a
// view which may be touched from other goroutines.
type State struct {
	mu      sync.Mutex
	hidden  Set
	window  Range
	pending []string
}

func NewState() *State {
	return &State{hidden: make(Set), window: Full}
}

// Snapshot is an immutable copy of a State handed to the regeneration
// worker.
type Snapshot struct {
	Hidden Set
	Window Range
	// Expressions whose matches must be added to Hidden.
	Exprs []string
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	exprs := make([]string, len(s.pending))
	copy(exprs, s.pending)
	return Snapshot{
		Hidden: s.hidden.clone(),
		Window: s.window,
		Exprs:  exprs,
	}
}

// Add queues expr (if not empty) for resolution and updates the window
// bounds which are not Same.
func (s *State) Add(expr string, lower, upper int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expr != "" {
		s.pending = append(s.pending, expr)
	}
	if lower != Same {
		s.window.Lower = lower
	}
	if upper != Same {
		s.window.Upper = upper
	}
}

// HideUids adds uids to the hidden set and returns how many were new.
func (s *State) HideUids(uids []models.UID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, uid := range uids {
		if _, ok := s.hidden[uid]; !ok {
			s.hidden[uid] = struct{}{}
			added++
		}
	}
	return added
}

// Resolve merges the matches of the expressions in exprs into the hidden
// set and drops them from the pending queue.
func (s *State) Resolve(exprs []string, matches []models.UID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range matches {
		s.hidden[uid] = struct{}{}
	}
	s.dropPending(exprs)
}

// Discard drops the given expressions without resolving them.
func (s *State) Discard(exprs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropPending(exprs)
}

func (s *State) dropPending(exprs []string) {
	for _, e := range exprs {
		for i, p := range s.pending {
			if p == e {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				break
			}
		}
	}
}

// Clear empties the hidden set, resets the window and forgets pending
// expressions.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = make(Set)
	s.window = Full
	s.pending = nil
}

func (s *State) SetWindow(r Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = r
}

func (s *State) Window() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Idle returns true when nothing is hidden and nothing is pending.
func (s *State) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hidden) == 0 && len(s.pending) == 0 && s.window.IsFull()
}

// IsHidden reports whether uid is in the explicit hidden set.
func (s *State) IsHidden(uid models.UID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden.Has(uid)
}

// Pending returns true if hide expressions still wait for resolution.
func (s *State) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}
