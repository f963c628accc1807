package msglist

import (
	"errors"

	"git.sr.ht/~rjarry/msglist/lib/threading"
	"git.sr.ht/~rjarry/msglist/models"
)

// NodeID is the stable arena index of a displayed node. It stays valid for
// as long as the node is displayed, whatever its position.
type NodeID int

const noNode NodeID = -1

type slot struct {
	record   *models.Record
	parent   NodeID
	children []NodeID
	// last known index in the parent list
	pos  int
	live bool
}

// View is the displayed tree. It is owned by a single goroutine and is only
// modified through Apply and Clear.
type View struct {
	slots  []slot
	free   []NodeID
	roots  []NodeID
	index  map[models.UID]NodeID
	cursor models.UID
}

func NewView() *View {
	return &View{index: make(map[models.UID]NodeID)}
}

// Len returns the number of displayed nodes.
func (v *View) Len() int {
	return len(v.index)
}

// Lookup returns the node displaying uid.
func (v *View) Lookup(uid models.UID) (NodeID, bool) {
	id, ok := v.index[uid]
	return id, ok
}

// Record returns the record displayed by a node.
func (v *View) Record(id NodeID) *models.Record {
	if !v.valid(id) {
		return nil
	}
	return v.slots[id].record
}

// Parent returns the parent node of id, false for roots.
func (v *View) Parent(id NodeID) (NodeID, bool) {
	if !v.valid(id) || v.slots[id].parent == noNode {
		return noNode, false
	}
	return v.slots[id].parent, true
}

// Children returns the child nodes of id. The slice must not be modified.
func (v *View) Children(id NodeID) []NodeID {
	if !v.valid(id) {
		return nil
	}
	return v.slots[id].children
}

// Roots returns the root nodes. The slice must not be modified.
func (v *View) Roots() []NodeID {
	return v.roots
}

func (v *View) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(v.slots) && v.slots[id].live
}

// Walk visits every displayed node in display order.
func (v *View) Walk(fn func(id NodeID, level int) error) error {
	type frame struct {
		id    NodeID
		level int
	}
	stack := make([]frame, 0, len(v.roots))
	for i := len(v.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{v.roots[i], 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		err := fn(top.id, top.level)
		switch {
		case errors.Is(err, threading.ErrSkipThread):
			continue
		case err != nil:
			return err
		}
		children := v.slots[top.id].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], top.level + 1})
		}
	}
	return nil
}

// Uids returns the displayed uids in display order.
func (v *View) Uids() []models.UID {
	uids := make([]models.UID, 0, len(v.index))
	_ = v.Walk(func(id NodeID, _ int) error {
		uids = append(uids, v.slots[id].record.Uid)
		return nil
	})
	return uids
}

// Forest returns a read-only copy of the displayed tree.
func (v *View) Forest() *threading.Forest {
	forest := &threading.Forest{}
	nodes := make(map[NodeID]*threading.Node, len(v.index))
	_ = v.Walk(func(id NodeID, _ int) error {
		s := &v.slots[id]
		n := &threading.Node{Record: s.record}
		nodes[id] = n
		if s.parent == noNode {
			forest.Roots = append(forest.Roots, n)
		} else {
			p := nodes[s.parent]
			n.Parent = p
			p.Children = append(p.Children, n)
		}
		return nil
	})
	return forest
}

// Cursor returns the selected uid, empty when nothing is selected.
func (v *View) Cursor() models.UID {
	return v.cursor
}

// Select moves the cursor to uid. It returns false when uid is not
// displayed, leaving the cursor unchanged.
func (v *View) Select(uid models.UID) bool {
	if _, ok := v.index[uid]; !ok {
		return false
	}
	v.cursor = uid
	return true
}

// checkCursor clears the cursor if its uid is not displayed anymore and
// reports whether it was lost.
func (v *View) checkCursor() bool {
	if v.cursor == "" {
		return false
	}
	if _, ok := v.index[v.cursor]; ok {
		return false
	}
	v.cursor = ""
	return true
}

// Clear removes every node. The returned log holds one removal per root.
func (v *View) Clear() MutationLog {
	var log MutationLog
	for len(v.roots) > 0 {
		id := v.roots[0]
		log = append(log, Mutation{
			Op: OpRemove, Uid: v.slots[id].record.Uid, Index: 0,
		})
		v.detachAt(id, 0)
		v.release(id)
	}
	return log
}

func (v *View) uid(id NodeID) models.UID {
	if id == noNode {
		return ""
	}
	return v.slots[id].record.Uid
}

func (v *View) list(parent NodeID) []NodeID {
	if parent == noNode {
		return v.roots
	}
	return v.slots[parent].children
}

func (v *View) setList(parent NodeID, list []NodeID) {
	if parent == noNode {
		v.roots = list
	} else {
		v.slots[parent].children = list
	}
}

// position returns the index of id in its parent list. The cached index is
// refreshed for the whole list when it is stale.
func (v *View) position(id NodeID) int {
	list := v.list(v.slots[id].parent)
	if p := v.slots[id].pos; p < len(list) && list[p] == id {
		return p
	}
	found := -1
	for i, c := range list {
		v.slots[c].pos = i
		if c == id {
			found = i
		}
	}
	return found
}

func (v *View) alloc(r *models.Record) NodeID {
	s := slot{record: r, parent: noNode, live: true}
	var id NodeID
	if n := len(v.free); n > 0 {
		id = v.free[n-1]
		v.free = v.free[:n-1]
		v.slots[id] = s
	} else {
		id = NodeID(len(v.slots))
		v.slots = append(v.slots, s)
	}
	v.index[r.Uid] = id
	return id
}

// attach inserts a detached node under parent at index i.
func (v *View) attach(id, parent NodeID, i int) {
	list := v.list(parent)
	list = append(list, noNode)
	copy(list[i+1:], list[i:])
	list[i] = id
	v.setList(parent, list)
	v.slots[id].parent = parent
	v.slots[id].pos = i
}

// detach unlinks a node from its parent and returns its former index.
func (v *View) detach(id NodeID) int {
	i := v.position(id)
	v.detachAt(id, i)
	return i
}

// detachAt unlinks a node found at index i of its parent.
func (v *View) detachAt(id NodeID, i int) {
	parent := v.slots[id].parent
	list := v.list(parent)
	copy(list[i:], list[i+1:])
	list[len(list)-1] = noNode
	v.setList(parent, list[:len(list)-1])
	v.slots[id].parent = noNode
}

// release frees a detached node and its whole subtree.
func (v *View) release(id NodeID) {
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s := &v.slots[cur]
		stack = append(stack, s.children...)
		if v.index[s.record.Uid] == cur {
			delete(v.index, s.record.Uid)
		}
		*s = slot{parent: noNode}
		v.free = append(v.free, cur)
	}
}
