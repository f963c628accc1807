package lib

import (
	"fmt"
	"strings"
	"unicode"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/google/shlex"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

// ParseSearch parses a search expression:
//
//	[-r] [-u] [-x <flag>] [-X <flag>] [-f <from>] [-t <to>] [-z] [terms...]
//
// Malformed expressions are reported as *types.QueryError.
func ParseSearch(expr string) (*types.SearchCriteria, error) {
	args, err := shlex.Split(expr)
	if err != nil {
		return nil, &types.QueryError{Expr: expr, Err: err}
	}
	// getopt skips the command name
	args = append([]string{"search"}, args...)
	opts, optind, err := getopt.Getopts(args, "rux:X:f:t:z")
	if err != nil {
		return nil, &types.QueryError{Expr: expr, Err: err}
	}
	criteria := &types.SearchCriteria{}
	for _, opt := range opts {
		switch opt.Option {
		case 'r':
			criteria.WithFlags |= models.SeenFlag
		case 'u':
			criteria.WithoutFlags |= models.SeenFlag
		case 'x', 'X':
			flag, ok := models.ParseFlag(opt.Value)
			if !ok {
				return nil, &types.QueryError{
					Expr: expr,
					Err:  fmt.Errorf("unknown flag %q", opt.Value),
				}
			}
			if opt.Option == 'x' {
				criteria.WithFlags |= flag
			} else {
				criteria.WithoutFlags |= flag
			}
		case 'f':
			criteria.From = append(criteria.From, opt.Value)
		case 't':
			criteria.To = append(criteria.To, opt.Value)
		case 'z':
			criteria.Fuzzy = true
		}
	}
	criteria.Terms = args[optind:]
	if criteria.WithFlags&criteria.WithoutFlags != 0 {
		return nil, &types.QueryError{
			Expr: expr,
			Err: fmt.Errorf("flags %s both required and excluded",
				criteria.WithFlags&criteria.WithoutFlags),
		}
	}
	return criteria, nil
}

// Match returns true if the record satisfies every criterion.
func Match(r *models.Record, criteria *types.SearchCriteria) bool {
	if r == nil {
		return false
	}
	if criteria.Empty() {
		return true
	}
	if criteria.WithFlags != 0 && !r.Flags.Has(criteria.WithFlags) {
		return false
	}
	if criteria.WithoutFlags != 0 && r.Flags&criteria.WithoutFlags != 0 {
		return false
	}
	for _, from := range criteria.From {
		if !containsSmartCase(r.From, from) {
			return false
		}
	}
	for _, to := range criteria.To {
		if !containsSmartCase(r.To, to) {
			return false
		}
	}
	for _, term := range criteria.Terms {
		if criteria.Fuzzy {
			if !fuzzy.MatchFold(term, r.Subject) {
				return false
			}
		} else if !containsSmartCase(r.Subject, term) {
			return false
		}
	}
	return true
}

// Search returns the uids of the records matching criteria, in order.
func Search(records []*models.Record, criteria *types.SearchCriteria) []models.UID {
	matched := []models.UID{}
	for _, r := range records {
		if Match(r, criteria) {
			matched = append(matched, r.Uid)
		}
	}
	log.Tracef("search %s: %d of %d records", criteria, len(matched), len(records))
	return matched
}

// containsSmartCase is a smarter version of strings.Contains for searching.
// Is case-insensitive unless substr contains an upper case character
func containsSmartCase(s string, substr string) bool {
	if hasUpper(substr) {
		return strings.Contains(s, substr)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
