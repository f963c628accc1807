package threading

import (
	"strings"
	"time"

	sortthread "github.com/emersion/go-imap-sortthread"
	"github.com/gatherstars-com/jwz"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/sort"
	"git.sr.ht/~rjarry/msglist/models"
)

// JWZParents resolves parents with the JWZ threading algorithm over the
// Message-ID, In-Reply-To and References headers of records. When bySubject
// is set, messages without references are grouped by base subject as well.
// Placeholder containers for missing messages are skipped: the parent of a
// message is its nearest ancestor present in records. The links do not
// depend on the order of records.
func JWZParents(records []*models.Record, bySubject bool) ParentFunc {
	start := time.Now()
	parents := make(map[models.UID]models.UID)
	records = canonical(records)

	threadables := make([]jwz.Threadable, 0, len(records))
	for _, r := range records {
		if t := newThreadable(r); t != nil {
			threadables = append(threadables, t)
		}
	}
	if len(threadables) == 0 {
		return finish(records, parents, bySubject, start)
	}

	structure, err := jwz.NewThreader().ThreadSlice(threadables)
	if err != nil {
		log.Errorf("failed slicing threads: %v", err)
		return finish(records, parents, bySubject, start)
	}

	type frame struct {
		node     jwz.Threadable
		ancestor models.UID
	}
	var stack []frame
	for node := structure; node != nil; node = node.GetNext() {
		stack = append(stack, frame{node, ""})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ancestor := top.ancestor
		if t, ok := top.node.(*threadable); ok && !t.IsDummy() && t.record != nil {
			if ancestor != "" {
				parents[t.record.Uid] = ancestor
			}
			ancestor = t.record.Uid
		}
		for child := top.node.GetChild(); child != nil; child = child.GetNext() {
			stack = append(stack, frame{child, ancestor})
		}
	}
	return finish(records, parents, bySubject, start)
}

func finish(records []*models.Record, parents map[models.UID]models.UID,
	bySubject bool, start time.Time,
) ParentFunc {
	if bySubject {
		groupBySubject(records, parents)
	}
	log.Tracef("jwz: %d links from %d records in %s",
		len(parents), len(records), time.Since(start))
	return mapParents(parents)
}

// groupBySubject links root replies under the earliest root which is not a
// reply and shares their base subject, ignoring case. records must be in
// canonical order.
func groupBySubject(records []*models.Record, parents map[models.UID]models.UID) {
	var roots []*models.Record
	heads := make(map[string]*models.Record)
	for _, r := range records {
		if _, ok := parents[r.Uid]; ok {
			continue
		}
		roots = append(roots, r)
		subject, reply := baseSubject(r)
		if subject == "" || reply {
			continue
		}
		if _, ok := heads[subject]; !ok {
			heads[subject] = r
		}
	}
	for _, r := range roots {
		subject, reply := baseSubject(r)
		if !reply {
			continue
		}
		if head, ok := heads[subject]; ok && head.Uid != r.Uid {
			parents[r.Uid] = head.Uid
		}
	}
}

// ReferenceParents resolves the parent of each record from its In-Reply-To
// header, falling back to the closest References entry which is present.
// The first record by date wins when a Message-ID is duplicated.
func ReferenceParents(records []*models.Record) ParentFunc {
	records = canonical(records)
	byId := make(map[string]models.UID, len(records))
	for _, r := range records {
		if r.MessageId != "" {
			if _, dup := byId[r.MessageId]; !dup {
				byId[r.MessageId] = r.Uid
			}
		}
	}
	parents := make(map[models.UID]models.UID)
	for _, r := range records {
		if uid, ok := byId[r.InReplyTo]; ok && r.InReplyTo != "" {
			parents[r.Uid] = uid
			continue
		}
		for i := len(r.References) - 1; i >= 0; i-- {
			if uid, ok := byId[r.References[i]]; ok {
				parents[r.Uid] = uid
				break
			}
		}
	}
	return mapParents(parents)
}

func baseSubject(r *models.Record) (string, bool) {
	subject, reply := sortthread.GetBaseSubject(r.Subject)
	return strings.ToLower(subject), reply
}

// canonical returns a copy of records in sort.ByDate order, without nil
// entries.
func canonical(records []*models.Record) []*models.Record {
	ordered := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	sort.Records(ordered, sort.ByDate)
	return ordered
}

func mapParents(parents map[models.UID]models.UID) ParentFunc {
	return func(uid models.UID) (models.UID, bool) {
		p, ok := parents[uid]
		return p, ok
	}
}

// threadable implements the jwz.Threadable interface which is required for
// the jwz threading algorithm
type threadable struct {
	record    *models.Record
	messageId string
	next      jwz.Threadable
	parent    jwz.Threadable
	child     jwz.Threadable
	dummy     bool
}

func newThreadable(r *models.Record) *threadable {
	if r == nil || r.MessageId == "" {
		return nil
	}
	return &threadable{
		record:    r,
		messageId: r.MessageId,
	}
}

func (t *threadable) MessageThreadID() string {
	return t.messageId
}

func (t *threadable) MessageThreadReferences() []string {
	if t.IsDummy() || t.record == nil {
		return nil
	}
	refs := t.record.References
	irp := t.record.InReplyTo
	if len(refs) == 0 {
		if irp == "" {
			return nil
		}
		refs = []string{irp}
	}
	return cleanRefs(t.messageId, irp, refs)
}

// cleanRefs cleans up the references headers for threading
// 1) message-id should not be part of the references
// 2) no message-id should occur twice (avoid circularities)
// 3) in-reply-to header should not be at the beginning
func cleanRefs(m, irp string, refs []string) []string {
	considered := make(map[string]any)
	cleanRefs := make([]string, 0, len(refs))
	for _, r := range refs {
		if _, seen := considered[r]; r != m && !seen {
			considered[r] = nil
			cleanRefs = append(cleanRefs, r)
		}
	}
	if irp != "" && len(cleanRefs) > 0 {
		if cleanRefs[0] == irp {
			cleanRefs = append(cleanRefs[1:], irp)
		}
	}
	return cleanRefs
}

// Subjects are hidden from the threader, see groupBySubject.
func (t *threadable) Subject() string {
	return ""
}

func (t *threadable) SimplifiedSubject() string {
	return ""
}

func (t *threadable) SubjectIsReply() bool {
	return false
}

func (t *threadable) SetNext(next jwz.Threadable) {
	t.next = next
}

func (t *threadable) SetChild(kid jwz.Threadable) {
	t.child = kid
	if kid != nil {
		kid.SetParent(t)
	}
}

func (t *threadable) SetParent(parent jwz.Threadable) {
	t.parent = parent
}

func (t *threadable) GetNext() jwz.Threadable {
	return t.next
}

func (t *threadable) GetChild() jwz.Threadable {
	return t.child
}

func (t *threadable) GetParent() jwz.Threadable {
	return t.parent
}

func (t *threadable) GetDate() time.Time {
	if t.IsDummy() {
		if t.GetChild() != nil {
			return t.GetChild().GetDate()
		}
		return time.Unix(0, 0)
	}
	if t.record == nil {
		return time.Unix(0, 0)
	}
	return time.Unix(t.record.DateSent, 0)
}

func (t *threadable) MakeDummy(forID string) jwz.Threadable {
	return &threadable{
		messageId: forID,
		dummy:     true,
	}
}

func (t *threadable) IsDummy() bool {
	return t.dummy
}
