package threading

import (
	"fmt"
	"time"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/sort"
	"git.sr.ht/~rjarry/msglist/models"
)

// ParentFunc resolves the parent of a message. It returns false when the
// message has no parent.
type ParentFunc func(uid models.UID) (models.UID, bool)

type LinkProblem int

const (
	// the parent is not part of the records being threaded
	LinkUnresolved LinkProblem = iota
	// the message claims to be its own parent
	LinkSelf
	// following parents leads back to the message
	LinkCycle
	// the same uid was given twice
	LinkDuplicate
)

func (p LinkProblem) String() string {
	switch p {
	case LinkUnresolved:
		return "unresolved parent"
	case LinkSelf:
		return "self reference"
	case LinkCycle:
		return "reference cycle"
	case LinkDuplicate:
		return "duplicate uid"
	}
	return "unknown"
}

// MalformedLinkError reports a parent link which was ignored. The message is
// displayed as a root instead.
type MalformedLinkError struct {
	Uid     models.UID
	Parent  models.UID
	Problem LinkProblem
}

func (e *MalformedLinkError) Error() string {
	return fmt.Sprintf("message %s: %s (parent %s): shown as root",
		e.Uid, e.Problem, e.Parent)
}

// BuildForest groups records into threads. Records without a usable parent
// become roots; siblings are ordered with less (sort.ByDate when nil). The
// result does not depend on the order of records as long as parentOf does
// not either, which holds for JWZParents and ReferenceParents.
func BuildForest(records []*models.Record, parentOf ParentFunc,
	less sort.LessFunc,
) (*Forest, []*MalformedLinkError) {
	start := time.Now()
	if less == nil {
		less = sort.ByDate
	}
	var problems []*MalformedLinkError

	nodes := make(map[models.UID]*Node, len(records))
	ordered := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if _, dup := nodes[r.Uid]; dup {
			problems = append(problems, &MalformedLinkError{
				Uid: r.Uid, Problem: LinkDuplicate,
			})
			continue
		}
		nodes[r.Uid] = &Node{Record: r}
		ordered = append(ordered, r)
	}
	sort.Records(ordered, less)

	links := make(map[models.UID]models.UID, len(ordered))
	if parentOf != nil {
		for _, r := range ordered {
			parent, ok := parentOf(r.Uid)
			if !ok || parent == "" {
				continue
			}
			switch {
			case parent == r.Uid:
				problems = append(problems, &MalformedLinkError{
					Uid: r.Uid, Parent: parent, Problem: LinkSelf,
				})
			case nodes[parent] == nil:
				problems = append(problems, &MalformedLinkError{
					Uid: r.Uid, Parent: parent, Problem: LinkUnresolved,
				})
			default:
				links[r.Uid] = parent
			}
		}
		problems = append(problems, breakCycles(ordered, links)...)
	}

	forest := &Forest{}
	for _, r := range ordered {
		node := nodes[r.Uid]
		if parent, ok := links[r.Uid]; ok {
			p := nodes[parent]
			node.Parent = p
			p.Children = append(p.Children, node)
		} else {
			forest.Roots = append(forest.Roots, node)
		}
	}

	for _, p := range problems {
		log.Warnf("threading: %v", p)
	}
	log.Tracef("%d roots from %d records created in %s",
		len(forest.Roots), len(ordered), time.Since(start))
	return forest, problems
}

// breakCycles removes the links of every message which is part of a
// parent cycle. Each message is visited at most twice.
func breakCycles(ordered []*models.Record, links map[models.UID]models.UID,
) []*MalformedLinkError {
	const (
		unvisited = iota
		onPath
		done
	)
	var problems []*MalformedLinkError
	state := make(map[models.UID]int, len(ordered))
	position := make(map[models.UID]int)
	var path []models.UID

	for _, r := range ordered {
		path = path[:0]
		for k := range position {
			delete(position, k)
		}
		cur := r.Uid
		for {
			s := state[cur]
			if s == done {
				break
			}
			if s == onPath {
				cycle := path[position[cur]:]
				for _, uid := range cycle {
					problems = append(problems, &MalformedLinkError{
						Uid: uid, Parent: links[uid], Problem: LinkCycle,
					})
				}
				for _, uid := range cycle {
					delete(links, uid)
				}
				break
			}
			state[cur] = onPath
			position[cur] = len(path)
			path = append(path, cur)
			parent, ok := links[cur]
			if !ok {
				break
			}
			cur = parent
		}
		for _, uid := range path {
			state[uid] = done
		}
	}
	return problems
}
