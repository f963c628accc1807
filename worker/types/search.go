package types

import (
	"strings"

	"git.sr.ht/~rjarry/msglist/models"
)

// SearchCriteria is a parsed search expression. All criteria must match.
type SearchCriteria struct {
	WithFlags    models.Flags
	WithoutFlags models.Flags
	From         []string
	To           []string
	// words which must all appear in the subject
	Terms []string
	// match terms as fuzzy subsequences instead of substrings
	Fuzzy bool
}

// Empty returns true if the criteria match every message.
func (c *SearchCriteria) Empty() bool {
	return c == nil || (c.WithFlags == 0 && c.WithoutFlags == 0 &&
		len(c.From) == 0 && len(c.To) == 0 && len(c.Terms) == 0)
}

func (c *SearchCriteria) String() string {
	if c == nil {
		return "<all>"
	}
	var parts []string
	if c.WithFlags != 0 {
		parts = append(parts, "+"+c.WithFlags.String())
	}
	if c.WithoutFlags != 0 {
		parts = append(parts, "-"+c.WithoutFlags.String())
	}
	for _, f := range c.From {
		parts = append(parts, "from:"+f)
	}
	for _, t := range c.To {
		parts = append(parts, "to:"+t)
	}
	parts = append(parts, c.Terms...)
	return strings.Join(parts, " ")
}
