package msglist

import (
	"fmt"
	"strings"

	"git.sr.ht/~rjarry/msglist/models"
)

type OpKind int

const (
	// a new node is inserted with no children
	OpInsert OpKind = iota
	// a node is removed along with its whole subtree
	OpRemove
	// a node is detached and attached elsewhere, its subtree follows
	OpMove
	// the record of a node changed, its position did not
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	case OpMove:
		return "move"
	case OpUpdate:
		return "update"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Mutation is one step of a MutationLog. Parent is the uid of the parent
// node, empty for roots. Index is the position among the siblings, in the
// state left by the previous mutations of the log. For OpMove, the node is
// first detached from FromParent at FromIndex, then attached under Parent at
// Index.
type Mutation struct {
	Op         OpKind
	Uid        models.UID
	Parent     models.UID
	Index      int
	FromParent models.UID
	FromIndex  int
}

func (m Mutation) String() string {
	switch m.Op {
	case OpMove:
		return fmt.Sprintf("move %s %s/%d -> %s/%d", m.Uid,
			m.FromParent, m.FromIndex, m.Parent, m.Index)
	case OpUpdate:
		return fmt.Sprintf("update %s", m.Uid)
	}
	return fmt.Sprintf("%s %s %s/%d", m.Op, m.Uid, m.Parent, m.Index)
}

// MutationLog is an ordered list of mutations transforming a view into a new
// one. Replaying it in order on the old tree yields the new tree.
type MutationLog []Mutation

func (l MutationLog) String() string {
	ops := make([]string, 0, len(l))
	for _, m := range l {
		ops = append(ops, m.String())
	}
	return "[" + strings.Join(ops, ", ") + "]"
}

// Count returns the number of mutations of the given kind.
func (l MutationLog) Count(op OpKind) int {
	n := 0
	for _, m := range l {
		if m.Op == op {
			n++
		}
	}
	return n
}
