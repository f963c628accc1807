// Package hide implements the message list hiding policy: an explicit set of
// hidden uids, an optional deleted-message rule and an index window applied
// over what remains.
package hide

import (
	"math"

	"git.sr.ht/~rjarry/msglist/lib/iterator"
	"git.sr.ht/~rjarry/msglist/models"
)

const (
	// Start is the lowest window bound, nothing hidden at the top.
	Start = 0
	// End is the highest window bound, nothing hidden at the bottom.
	End = math.MaxInt
	// Same leaves a window bound unchanged when passed to State.Add.
	Same = math.MaxInt - 1
)

// Range is the visible index window [Lower, Upper). Negative bounds count
// from the end of the sequence.
type Range struct {
	Lower int
	Upper int
}

// Full is the window which hides nothing.
var Full = Range{Lower: Start, Upper: End}

func (r Range) IsFull() bool {
	return r.Lower == Start && r.Upper == End
}

// Bounds resolves the window against a sequence of length n.
func (r Range) Bounds(n int) (int, int) {
	resolve := func(i int) int {
		if i < 0 {
			i += n
		}
		return iterator.FixBounds(i, 0, n)
	}
	lower, upper := resolve(r.Lower), resolve(r.Upper)
	if upper < lower {
		upper = lower
	}
	return lower, upper
}

// Set is a set of uids.
type Set map[models.UID]struct{}

func NewSet(uids ...models.UID) Set {
	s := make(Set, len(uids))
	for _, uid := range uids {
		s[uid] = struct{}{}
	}
	return s
}

func (s Set) Has(uid models.UID) bool {
	_, ok := s[uid]
	return ok
}

func (s Set) clone() Set {
	c := make(Set, len(s))
	for uid := range s {
		c[uid] = struct{}{}
	}
	return c
}

// Visible returns the subset of all which survives the policy, in the same
// order. Hidden uids and, if hideDeleted is set, deleted ones are dropped
// first; the window is then applied over the remaining sequence. When
// nothing can be hidden the input slice is returned as is.
func Visible(all []models.UID, hidden Set, window Range, hideDeleted bool,
	isDeleted func(models.UID) bool,
) []models.UID {
	filtering := len(hidden) > 0 || (hideDeleted && isDeleted != nil)
	if !filtering && window.IsFull() {
		return all
	}
	seq := all
	if filtering {
		seq = make([]models.UID, 0, len(all))
		for _, uid := range all {
			if hidden.Has(uid) {
				continue
			}
			if hideDeleted && isDeleted != nil && isDeleted(uid) {
				continue
			}
			seq = append(seq, uid)
		}
	}
	lower, upper := window.Bounds(len(seq))
	return seq[lower:upper]
}
