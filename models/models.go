package models

import (
	"strings"
)

// UID identifies a message inside one folder. The value is opaque to the
// engine and only compared for equality and for ordering ties.
type UID string

// Flags is a bitmask of per-message states relevant for listing.
type Flags uint32

const (
	SeenFlag Flags = 1 << iota
	DeletedFlag
	FlaggedFlag
	AnsweredFlag
	AttachmentFlag
)

// Has returns true if all bits of other are set.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	var names []string
	for _, n := range []struct {
		flag Flags
		name string
	}{
		{SeenFlag, "seen"},
		{DeletedFlag, "deleted"},
		{FlaggedFlag, "flagged"},
		{AnsweredFlag, "answered"},
		{AttachmentFlag, "attachment"},
	} {
		if f.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseFlag maps a user supplied flag name to its bit. Unknown names yield
// zero and false.
func ParseFlag(name string) (Flags, bool) {
	switch strings.ToLower(name) {
	case "seen", "read":
		return SeenFlag, true
	case "deleted", "trashed":
		return DeletedFlag, true
	case "flagged":
		return FlaggedFlag, true
	case "answered", "replied":
		return AnsweredFlag, true
	case "attachment":
		return AttachmentFlag, true
	}
	return 0, false
}

// A Record holds the listing metadata of one message. Records are owned by
// the store; the engine only keeps snapshots.
type Record struct {
	Uid          UID
	Flags        Flags
	Subject      string
	From         string
	To           string
	Size         uint32
	DateSent     int64
	DateReceived int64

	// threading headers
	MessageId  string
	InReplyTo  string
	References []string

	Tags Tags
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.References != nil {
		c.References = make([]string, len(r.References))
		copy(c.References, r.References)
	}
	c.Tags = r.Tags.clone()
	return &c
}

// Equal reports whether both records would be displayed identically.
func (r *Record) Equal(o *Record) bool {
	switch {
	case r == nil || o == nil:
		return r == o
	case r.Uid != o.Uid, r.Flags != o.Flags, r.Subject != o.Subject,
		r.From != o.From, r.To != o.To, r.Size != o.Size,
		r.DateSent != o.DateSent, r.DateReceived != o.DateReceived,
		r.MessageId != o.MessageId, r.InReplyTo != o.InReplyTo,
		len(r.References) != len(o.References), len(r.Tags) != len(o.Tags):
		return false
	}
	for i := range r.References {
		if r.References[i] != o.References[i] {
			return false
		}
	}
	for k, v := range r.Tags {
		if ov, ok := o.Tags[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Tags carries backend specific values. Use the typed keys to access them.
type Tags map[string]any

func (t Tags) clone() Tags {
	if t == nil {
		return nil
	}
	c := make(Tags, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// TagKey is a typed accessor into Tags.
type TagKey[T comparable] struct {
	name string
}

func NewTagKey[T comparable](name string) TagKey[T] {
	return TagKey[T]{name: name}
}

var (
	ScoreTag  = NewTagKey[int]("score")
	ColourTag = NewTagKey[string]("colour")
)

func (k TagKey[T]) Name() string {
	return k.name
}

// Get returns the value stored under k, if any and of the right type.
func (k TagKey[T]) Get(r *Record) (T, bool) {
	var zero T
	if r == nil || r.Tags == nil {
		return zero, false
	}
	v, ok := r.Tags[k.name].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

func (k TagKey[T]) Set(r *Record, v T) {
	if r.Tags == nil {
		r.Tags = make(Tags)
	}
	r.Tags[k.name] = v
}

func (k TagKey[T]) Delete(r *Record) {
	delete(r.Tags, k.name)
}

// ChangeSet is what a store reports when a folder was modified.
type ChangeSet struct {
	Added   []UID
	Removed []UID
	Changed []UID
}

func (c *ChangeSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Added) + len(c.Removed) + len(c.Changed)
}

func (c *ChangeSet) Empty() bool {
	return c.Len() == 0
}

// Merge appends the uids of other to c.
func (c *ChangeSet) Merge(other *ChangeSet) {
	if other == nil {
		return
	}
	c.Added = append(c.Added, other.Added...)
	c.Removed = append(c.Removed, other.Removed...)
	c.Changed = append(c.Changed, other.Changed...)
}
