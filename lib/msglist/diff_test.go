package msglist

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"git.sr.ht/~rjarry/msglist/lib/threading"
	"git.sr.ht/~rjarry/msglist/models"
)

func node(uid models.UID, children ...*threading.Node) *threading.Node {
	n := &threading.Node{Record: &models.Record{Uid: uid}}
	for _, c := range children {
		c.Parent = n
		n.Children = append(n.Children, c)
	}
	return n
}

func forest(roots ...*threading.Node) *threading.Forest {
	return &threading.Forest{Roots: roots}
}

func renderForest(f *threading.Forest) string {
	var sb strings.Builder
	_ = f.Walk(func(n *threading.Node, level int) error {
		fmt.Fprintf(&sb, "%d:%s ", level, n.Uid())
		return nil
	})
	return sb.String()
}

func renderView(v *View) string {
	var sb strings.Builder
	_ = v.Walk(func(id NodeID, level int) error {
		fmt.Fprintf(&sb, "%d:%s ", level, v.Record(id).Uid)
		return nil
	})
	return sb.String()
}

// replay is an independent model of the displayed tree used to check that
// mutation logs are applicable in order.
type replay map[models.UID][]models.UID

func (r replay) apply(log MutationLog) error {
	for _, m := range log {
		switch m.Op {
		case OpInsert:
			list := r[m.Parent]
			if m.Index > len(list) {
				return fmt.Errorf("%v: index out of range", m)
			}
			r[m.Parent] = insertUid(list, m.Index, m.Uid)
		case OpRemove:
			list := r[m.Parent]
			if m.Index >= len(list) || list[m.Index] != m.Uid {
				return fmt.Errorf("%v: not found in %v", m, list)
			}
			r[m.Parent] = append(list[:m.Index:m.Index], list[m.Index+1:]...)
			r.drop(m.Uid)
		case OpMove:
			from := r[m.FromParent]
			if m.FromIndex >= len(from) || from[m.FromIndex] != m.Uid {
				return fmt.Errorf("%v: not found in %v", m, from)
			}
			r[m.FromParent] = append(from[:m.FromIndex:m.FromIndex], from[m.FromIndex+1:]...)
			to := r[m.Parent]
			if m.Index > len(to) {
				return fmt.Errorf("%v: index out of range", m)
			}
			r[m.Parent] = insertUid(to, m.Index, m.Uid)
		}
	}
	return nil
}

func (r replay) drop(uid models.UID) {
	for _, c := range r[uid] {
		r.drop(c)
	}
	delete(r, uid)
}

func (r replay) render() string {
	var sb strings.Builder
	var walk func(parent models.UID, level int)
	walk = func(parent models.UID, level int) {
		for _, uid := range r[parent] {
			fmt.Fprintf(&sb, "%d:%s ", level, uid)
			walk(uid, level+1)
		}
	}
	walk("", 0)
	return sb.String()
}

func insertUid(list []models.UID, i int, uid models.UID) []models.UID {
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = uid
	return list
}

func replayOf(f *threading.Forest) replay {
	r := make(replay)
	_ = f.Walk(func(n *threading.Node, _ int) error {
		parent := n.Parent.Uid()
		r[parent] = append(r[parent], n.Uid())
		return nil
	})
	return r
}

// check applies target on v and verifies the log against a replay of the
// previous state.
func check(t *testing.T, v *View, target *threading.Forest) MutationLog {
	t.Helper()
	model := replayOf(v.Forest())
	log := v.Apply(target)
	require.NoError(t, model.apply(log))
	want := renderForest(target)
	assert.Equal(t, want, renderView(v))
	assert.Equal(t, want, model.render())
	return log
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		current *threading.Forest
		target  *threading.Forest
		ops     map[OpKind]int
	}{
		{
			name:    "empty to flat",
			current: forest(),
			target:  forest(node("a"), node("b")),
			ops:     map[OpKind]int{OpInsert: 2},
		},
		{
			name:    "flat reorder",
			current: forest(node("a"), node("b"), node("c")),
			target:  forest(node("c"), node("a"), node("b")),
			ops:     map[OpKind]int{OpMove: 1},
		},
		{
			name:    "disjoint",
			current: forest(node("a"), node("b")),
			target:  forest(node("c"), node("d")),
			ops:     map[OpKind]int{OpRemove: 2, OpInsert: 2},
		},
		{
			name:    "thread collapse",
			current: forest(node("a"), node("b"), node("c")),
			target:  forest(node("a", node("b", node("c")))),
			ops:     map[OpKind]int{OpMove: 2},
		},
		{
			name:    "parent swap",
			current: forest(node("a", node("b"))),
			target:  forest(node("b", node("a"))),
			ops:     map[OpKind]int{OpMove: 2},
		},
		{
			name:    "lift survivors",
			current: forest(node("a", node("b", node("c")), node("d"))),
			target:  forest(node("c"), node("d")),
			ops:     map[OpKind]int{OpMove: 2, OpRemove: 1},
		},
		{
			name:    "insert inside thread",
			current: forest(node("a", node("c")), node("d")),
			target:  forest(node("a", node("b"), node("c")), node("d")),
			ops:     map[OpKind]int{OpInsert: 1},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := NewView()
			v.Apply(test.current)
			log := check(t, v, test.target)
			for _, op := range []OpKind{OpInsert, OpRemove, OpMove, OpUpdate} {
				assert.Equal(t, test.ops[op], log.Count(op), "%s in %s", op, log)
			}
		})
	}
}

func TestApplyIdempotent(t *testing.T) {
	v := NewView()
	target := forest(node("a", node("b"), node("c", node("d"))), node("e"))
	v.Apply(target)
	assert.Empty(t, v.Apply(target))

	same := forest(node("a", node("b"), node("c", node("d"))), node("e"))
	assert.Empty(t, v.Apply(same))
}

func TestApplyFlatRemoval(t *testing.T) {
	v := NewView()
	u1, u3 := node("u1"), node("u3")
	v.Apply(forest(u1, node("u2"), u3))

	log := v.Apply(forest(u1, u3))
	assert.Equal(t, MutationLog{
		{Op: OpRemove, Uid: "u2", Index: 1},
	}, log)
	assert.Equal(t, []models.UID{"u1", "u3"}, v.Uids())
	_, ok := v.Lookup("u2")
	assert.False(t, ok)
}

func TestApplyThreadedInsert(t *testing.T) {
	v := NewView()
	log := v.Apply(forest(node("u1", node("u4"))))
	assert.Equal(t, MutationLog{
		{Op: OpInsert, Uid: "u1", Index: 0},
		{Op: OpInsert, Uid: "u4", Parent: "u1", Index: 0},
	}, log)
}

func TestApplyKeepsIdentity(t *testing.T) {
	v := NewView()
	v.Apply(forest(node("a"), node("b"), node("c")))
	ids := make(map[models.UID]NodeID)
	for _, uid := range []models.UID{"a", "b", "c"} {
		ids[uid], _ = v.Lookup(uid)
	}

	check(t, v, forest(node("c", node("a")), node("b")))
	for uid, id := range ids {
		got, ok := v.Lookup(uid)
		require.True(t, ok)
		assert.Equal(t, id, got, uid)
	}
	parent, ok := v.Parent(ids["a"])
	assert.True(t, ok)
	assert.Equal(t, ids["c"], parent)
}

func TestApplyUpdate(t *testing.T) {
	v := NewView()
	v.Apply(forest(node("a"), node("b")))

	changed := node("b")
	changed.Record.Flags = models.SeenFlag
	log := v.Apply(forest(node("a"), changed))
	assert.Equal(t, MutationLog{{Op: OpUpdate, Uid: "b"}}, log)
	id, _ := v.Lookup("b")
	assert.Same(t, changed.Record, v.Record(id))
}

func TestApplyClearsCursor(t *testing.T) {
	v := NewView()
	v.Apply(forest(node("a"), node("b")))
	require.True(t, v.Select("b"))
	assert.False(t, v.Select("z"))

	v.Apply(forest(node("a")))
	assert.True(t, v.checkCursor())
	assert.Empty(t, v.Cursor())
	assert.False(t, v.checkCursor())
}

func genForest(t *rapid.T, label string) *threading.Forest {
	uids := rapid.SliceOfDistinct(rapid.IntRange(0, 20), rapid.ID[int]).
		Draw(t, label)
	f := &threading.Forest{}
	nodes := make([]*threading.Node, len(uids))
	for i, u := range uids {
		n := &threading.Node{Record: &models.Record{
			Uid: models.UID(fmt.Sprintf("u%02d", u)),
		}}
		nodes[i] = n
		p := rapid.IntRange(-1, i-1).Draw(t, fmt.Sprintf("%s-parent-%d", label, i))
		if p < 0 {
			f.Roots = append(f.Roots, n)
		} else {
			n.Parent = nodes[p]
			nodes[p].Children = append(nodes[p].Children, n)
		}
	}
	return f
}

func TestApplyRandom(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		current := genForest(rt, "current")
		target := genForest(rt, "target")

		v := NewView()
		v.Apply(current)
		model := replayOf(current)
		ids := make(map[models.UID]NodeID)
		for _, uid := range current.Uids() {
			ids[uid], _ = v.Lookup(uid)
		}

		log := v.Apply(target)
		if err := model.apply(log); err != nil {
			rt.Fatalf("log %s not applicable: %v", log, err)
		}
		want := renderForest(target)
		if got := renderView(v); got != want {
			rt.Fatalf("view %q, want %q (log %s)", got, want, log)
		}
		if got := model.render(); got != want {
			rt.Fatalf("replay %q, want %q (log %s)", got, want, log)
		}
		for _, uid := range target.Uids() {
			if before, ok := ids[uid]; ok {
				if after, _ := v.Lookup(uid); after != before {
					rt.Fatalf("%s changed identity", uid)
				}
			}
		}
		if again := v.Apply(target); len(again) != 0 {
			rt.Fatalf("second apply not empty: %s", again)
		}
		if v.Len() != target.Len() {
			rt.Fatalf("%d nodes, want %d", v.Len(), target.Len())
		}
	})
}

func TestApplyDeterministic(t *testing.T) {
	base := []*models.Record{
		{Uid: "u1", MessageId: "1", DateSent: 10},
		{Uid: "u2", MessageId: "2", InReplyTo: "1", DateSent: 20},
		{Uid: "u3", MessageId: "3", InReplyTo: "1", DateSent: 30},
		{Uid: "u4", MessageId: "4", InReplyTo: "3", DateSent: 40},
		{Uid: "u5", MessageId: "5", DateSent: 50},
		{Uid: "u6", MessageId: "6", InReplyTo: "5", DateSent: 60},
	}
	build := func(records []*models.Record) MutationLog {
		f, _ := threading.BuildForest(records,
			threading.ReferenceParents(records), nil)
		return NewView().Apply(f)
	}
	want := build(base)

	rapid.Check(t, func(rt *rapid.T) {
		records := rapid.Permutation(base).Draw(rt, "records")
		if got := build(records); got.String() != want.String() {
			rt.Fatalf("got %s, want %s", got, want)
		}
	})
}

func flatForest(from, to int) *threading.Forest {
	f := &threading.Forest{}
	for i := from; i < to; i++ {
		f.Roots = append(f.Roots, &threading.Node{Record: &models.Record{
			Uid: models.UID(fmt.Sprintf("u%06d", i)),
		}})
	}
	return f
}

// edgeApply times an identical apply then a drop-first/append-one apply on
// a flat list of n nodes, keeping the fastest of a few runs.
func edgeApply(t *testing.T, n int) time.Duration {
	t.Helper()
	best := time.Duration(-1)
	for run := 0; run < 3; run++ {
		v := NewView()
		v.Apply(flatForest(0, n))
		start := time.Now()
		assert.Empty(t, v.Apply(flatForest(0, n)))
		log := v.Apply(flatForest(1, n+1))
		elapsed := time.Since(start)
		require.Len(t, log, 2, "%s", log)
		assert.Equal(t, OpRemove, log[0].Op)
		assert.Equal(t, OpInsert, log[1].Op)
		assert.Equal(t, n-1, log[1].Index)
		if best < 0 || elapsed < best {
			best = elapsed
		}
	}
	return best
}

func TestApplyLargeFlat(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	small := edgeApply(t, 10000)
	large := edgeApply(t, 40000)
	// 4 times the nodes, quadratic growth would be 16 times slower
	assert.Less(t, int64(large), int64(10*small+5*time.Millisecond),
		"10000 nodes: %s, 40000 nodes: %s", small, large)
}

func BenchmarkApplyEdge(b *testing.B) {
	base, shifted := flatForest(0, 20000), flatForest(1, 20001)
	for i := 0; i < b.N; i++ {
		v := NewView()
		v.Apply(base)
		v.Apply(shifted)
	}
}
