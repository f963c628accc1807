package threading

import (
	"errors"
	"fmt"

	"git.sr.ht/~rjarry/msglist/models"
)

// Node is one message of a computed forest. Forests are built by the
// regeneration worker and are read-only afterwards.
type Node struct {
	Record   *models.Record
	Parent   *Node
	Children []*Node
}

func (n *Node) Uid() models.UID {
	if n == nil || n.Record == nil {
		return ""
	}
	return n.Record.Uid
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	parent := models.UID("-")
	if n.Parent != nil {
		parent = n.Parent.Uid()
	}
	return fmt.Sprintf("[%s] (parent:%s, children:%d)",
		n.Uid(), parent, len(n.Children))
}

// Forest is an ordered list of root nodes. A flat list is a forest whose
// roots have no children.
type Forest struct {
	Roots []*Node
}

// Flat returns a single level forest of records, in the given order.
func Flat(records []*models.Record) *Forest {
	f := &Forest{Roots: make([]*Node, 0, len(records))}
	for _, r := range records {
		f.Roots = append(f.Roots, &Node{Record: r})
	}
	return f
}

// ErrSkipThread can be returned by a WalkFunc to avoid descending into the
// children of the current node.
var ErrSkipThread = errors.New("skip this Thread")

type WalkFunc func(n *Node, level int) error

// Walk visits every node in display order (depth first, pre-order). It does
// not recurse so arbitrarily deep reply chains are fine.
func (f *Forest) Walk(fn WalkFunc) error {
	if f == nil {
		return nil
	}
	type frame struct {
		node  *Node
		level int
	}
	stack := make([]frame, 0, len(f.Roots))
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{f.Roots[i], 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		err := fn(top.node, top.level)
		switch {
		case errors.Is(err, ErrSkipThread):
			continue
		case err != nil:
			return err
		}
		children := top.node.Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], top.level + 1})
		}
	}
	return nil
}

// Uids returns the uids of the forest in display order.
func (f *Forest) Uids() []models.UID {
	var uids []models.UID
	_ = f.Walk(func(n *Node, _ int) error {
		uids = append(uids, n.Uid())
		return nil
	})
	return uids
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	count := 0
	_ = f.Walk(func(*Node, int) error {
		count++
		return nil
	})
	return count
}

// Parents maps every uid of the forest to the uid of its parent. Roots map
// to the empty uid.
func (f *Forest) Parents() map[models.UID]models.UID {
	parents := make(map[models.UID]models.UID)
	_ = f.Walk(func(n *Node, _ int) error {
		parents[n.Uid()] = n.Parent.Uid()
		return nil
	})
	return parents
}
