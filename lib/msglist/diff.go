package msglist

import (
	"time"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/threading"
	"git.sr.ht/~rjarry/msglist/models"
)

type targetInfo struct {
	node   *threading.Node
	parent models.UID
	index  int
}

type differ struct {
	view   *View
	target map[models.UID]targetInfo
	log    MutationLog
}

type pending struct {
	parent NodeID
	want   []*threading.Node
}

// Apply transforms the view into target and returns the mutations that were
// performed. Nodes whose uid exists in both trees keep their identity. An
// identical target yields an empty log.
//
// Each sibling list is aligned top-down with two cursors over the current
// list and the wanted one. On a mismatch, the position of the current node
// in the wanted list and the position of the wanted node in the current
// list are compared: the nearest match wins and the other side is either
// inserted (or moved in) or skipped. Skipped nodes which are still wanted
// somewhere are moved in place when their wanted parent is aligned.
func (v *View) Apply(target *threading.Forest) MutationLog {
	start := time.Now()
	d := &differ{
		view:   v,
		target: make(map[models.UID]targetInfo),
	}
	var roots []*threading.Node
	if target != nil {
		roots = target.Roots
		d.indexTarget(roots)
	}
	stack := []pending{{parent: noNode, want: roots}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		next := d.align(top.parent, top.want)
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	log.Tracef("diff: %d mutations, %d nodes in %s",
		len(d.log), v.Len(), time.Since(start))
	return d.log
}

// indexTarget records the parent and sibling index of every wanted node.
func (d *differ) indexTarget(roots []*threading.Node) {
	type frame struct {
		parent models.UID
		nodes  []*threading.Node
	}
	stack := []frame{{"", roots}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i, n := range top.nodes {
			d.target[n.Uid()] = targetInfo{node: n, parent: top.parent, index: i}
			if len(n.Children) > 0 {
				stack = append(stack, frame{n.Uid(), n.Children})
			}
		}
	}
}

// align reorders the children of parent to match want. It returns the
// child lists to align next.
func (d *differ) align(parent NodeID, want []*threading.Node) []pending {
	v := d.view
	parentUid := v.uid(parent)
	next := make([]pending, 0, len(want))
	i, b := 0, 0

	for b < len(want) {
		list := v.list(parent)
		if i >= len(list) {
			id, at := d.place(want[b], parent, i)
			next = append(next, pending{id, want[b].Children})
			i = at + 1
			b++
			continue
		}
		x := list[i]
		xUid := v.uid(x)
		info, wanted := d.target[xUid]
		switch {
		case !wanted:
			d.remove(x, i)
			continue
		case info.parent != parentUid:
			// moved in by its new parent
			i++
			continue
		case info.node == want[b]:
			d.update(x, want[b].Record)
			next = append(next, pending{x, want[b].Children})
			i++
			b++
			continue
		}

		// x is wanted further in this list at info.index
		distB := info.index - b
		distA := -1
		if y, ok := v.index[want[b].Uid()]; ok && v.slots[y].parent == parent {
			if ia := v.position(y); ia > i {
				distA = ia - i
			}
		}
		if distA >= 0 && distA < distB {
			i++
			continue
		}
		id, at := d.place(want[b], parent, i)
		next = append(next, pending{id, want[b].Children})
		i = at + 1
		b++
	}

	// leftovers are either moved elsewhere later or gone
	for list := v.list(parent); i < len(list); list = v.list(parent) {
		x := list[i]
		if _, wanted := d.target[v.uid(x)]; wanted {
			i++
		} else {
			d.remove(x, i)
		}
	}
	return next
}

// place puts the wanted node n under parent at index i, moving it if it is
// already displayed or creating it otherwise. It returns the node and its
// final index.
func (d *differ) place(n *threading.Node, parent NodeID, i int) (NodeID, int) {
	v := d.view
	if id, ok := v.index[n.Uid()]; ok {
		fromParent := v.slots[id].parent
		from := v.detach(id)
		if fromParent == parent && from < i {
			i--
		}
		v.attach(id, parent, i)
		d.log = append(d.log, Mutation{
			Op:         OpMove,
			Uid:        n.Uid(),
			Parent:     v.uid(parent),
			Index:      i,
			FromParent: v.uid(fromParent),
			FromIndex:  from,
		})
		d.update(id, n.Record)
		return id, i
	}
	id := v.alloc(n.Record)
	v.attach(id, parent, i)
	d.log = append(d.log, Mutation{
		Op:     OpInsert,
		Uid:    n.Uid(),
		Parent: v.uid(parent),
		Index:  i,
	})
	return id, i
}

func (d *differ) update(id NodeID, r *models.Record) {
	s := &d.view.slots[id]
	if s.record == r {
		return
	}
	changed := !s.record.Equal(r)
	s.record = r
	if changed {
		d.log = append(d.log, Mutation{Op: OpUpdate, Uid: r.Uid})
	}
}

// remove drops x, found at index at, and its subtree. Descendants which are
// still wanted are first lifted into the place of x, in display order.
func (d *differ) remove(x NodeID, at int) {
	v := d.view
	parent := v.slots[x].parent

	var survivors []NodeID
	stack := append([]NodeID(nil), reversed(v.slots[x].children)...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, wanted := d.target[v.uid(cur)]; wanted {
			survivors = append(survivors, cur)
			continue
		}
		stack = append(stack, reversed(v.slots[cur].children)...)
	}
	for k, s := range survivors {
		fromParent := v.slots[s].parent
		from := v.detach(s)
		v.attach(s, parent, at+k)
		d.log = append(d.log, Mutation{
			Op:         OpMove,
			Uid:        v.uid(s),
			Parent:     v.uid(parent),
			Index:      at + k,
			FromParent: v.uid(fromParent),
			FromIndex:  from,
		})
	}

	index := at + len(survivors)
	v.detachAt(x, index)
	d.log = append(d.log, Mutation{
		Op:     OpRemove,
		Uid:    v.uid(x),
		Parent: v.uid(parent),
		Index:  index,
	})
	v.release(x)
}

func reversed(ids []NodeID) []NodeID {
	r := make([]NodeID, len(ids))
	for i, id := range ids {
		r[len(ids)-1-i] = id
	}
	return r
}
