package iterator

// IndexProvider describes the index span of an ordered sequence. StartIndex
// is the index of the entry shown on top, EndIndex the one at the bottom.
type IndexProvider interface {
	StartIndex() int
	EndIndex() int
}

// FixBounds will force the index i to either its lower- or upper-bound value
// if out-of-bound
func FixBounds(i, lower, upper int) int {
	switch {
	case i > upper:
		i = upper
	case i < lower:
		i = lower
	}
	return i
}

// WrapBounds will wrap the index i around its upper- or lower-bound if
// out-of-bound
func WrapBounds(i, lower, upper int) int {
	size := upper - lower + 1
	if size <= 0 {
		return lower
	}
	return lower + ((i-lower)%size+size)%size
}

type BoundsCheckFunc func(int, int, int) int

// MoveIndex moves the index variable idx forward by delta steps and ensures
// that the boundary policy as defined by the CheckBoundsFunc is enforced.
//
// If CheckBoundsFunc is nil, fix boundary checks are performed.
func MoveIndex(idx, delta int, indexer IndexProvider, cb BoundsCheckFunc) int {
	lower, upper := indexer.StartIndex(), indexer.EndIndex()
	sign := 1
	if upper < lower {
		lower, upper = upper, lower
		sign = -1
	}
	result := idx + sign*delta
	if cb == nil {
		return FixBounds(result, lower, upper)
	}
	return cb(result, lower, upper)
}

// Span is an IndexProvider over a sequence of n entries displayed top to
// bottom.
type Span int

func (s Span) StartIndex() int {
	return 0
}

func (s Span) EndIndex() int {
	return int(s) - 1
}

// Seek looks for the first index after idx, stepping by direction (+1 or
// -1), for which match returns true. When wrap is false the search stops at
// the ends of the sequence. idx may be -1 (or n) to start before the first
// (or after the last) entry. Returns -1 if nothing matches.
func Seek(idx, direction int, span IndexProvider, wrap bool,
	match func(int) bool,
) int {
	lower, upper := span.StartIndex(), span.EndIndex()
	if upper < lower {
		return -1
	}
	if direction >= 0 {
		direction = 1
	} else {
		direction = -1
	}
	bounds := FixBounds
	if wrap {
		bounds = WrapBounds
	}
	count := upper - lower + 1
	cur := idx
	for step := 0; step < count; step++ {
		next := MoveIndex(cur, direction, span, bounds)
		if next == cur || (next == idx && step > 0) {
			break
		}
		cur = next
		if match(cur) {
			return cur
		}
	}
	return -1
}
