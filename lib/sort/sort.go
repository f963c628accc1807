package sort

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	sortthread "github.com/emersion/go-imap-sortthread"

	"git.sr.ht/~rjarry/msglist/models"
)

type SortField int

const (
	SortArrival SortField = iota
	SortDate
	SortFrom
	SortRead
	SortSize
	SortSubject
	SortTo
	SortFlagged
)

type SortCriterion struct {
	Field   SortField
	Reverse bool
}

func GetSortCriteria(args []string) ([]*SortCriterion, error) {
	var sortCriteria []*SortCriterion
	reverse := false
	for _, arg := range args {
		if arg == "-r" {
			reverse = true
			continue
		}
		field, err := parseSortField(arg)
		if err != nil {
			return nil, err
		}
		sortCriteria = append(sortCriteria, &SortCriterion{
			Field:   field,
			Reverse: reverse,
		})
		reverse = false
	}
	if reverse {
		return nil, errors.New("Expected argument to reverse")
	}
	return sortCriteria, nil
}

func parseSortField(arg string) (SortField, error) {
	switch strings.ToLower(arg) {
	case "arrival":
		return SortArrival, nil
	case "date":
		return SortDate, nil
	case "from":
		return SortFrom, nil
	case "read":
		return SortRead, nil
	case "size":
		return SortSize, nil
	case "subject":
		return SortSubject, nil
	case "to":
		return SortTo, nil
	case "flagged":
		return SortFlagged, nil
	default:
		return SortArrival, fmt.Errorf("%v is not a valid sort criterion", arg)
	}
}

// LessFunc orders two records. It must be a strict weak ordering.
type LessFunc func(a, b *models.Record) bool

// ByDate is the default sibling order: sent date ascending, ties broken by
// uid so that the order never depends on input order.
func ByDate(a, b *models.Record) bool {
	if a.DateSent != b.DateSent {
		return a.DateSent < b.DateSent
	}
	return a.Uid < b.Uid
}

// Less builds a LessFunc applying the criteria in turn. Records comparing
// equal on every criterion fall back to ByDate.
func Less(criteria []*SortCriterion) LessFunc {
	if len(criteria) == 0 {
		return ByDate
	}
	return func(a, b *models.Record) bool {
		for _, c := range criteria {
			cmp := compare(c.Field, a, b)
			if c.Reverse {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return ByDate(a, b)
	}
}

func compare(field SortField, a, b *models.Record) int {
	switch field {
	case SortArrival:
		return compareInt(a.DateReceived, b.DateReceived)
	case SortDate:
		return compareInt(a.DateSent, b.DateSent)
	case SortFrom:
		return strings.Compare(strings.ToLower(a.From), strings.ToLower(b.From))
	case SortTo:
		return strings.Compare(strings.ToLower(a.To), strings.ToLower(b.To))
	case SortSize:
		return compareInt(int64(a.Size), int64(b.Size))
	case SortSubject:
		return strings.Compare(baseSubject(a), baseSubject(b))
	case SortRead:
		return compareFlag(a, b, models.SeenFlag)
	case SortFlagged:
		return compareFlag(a, b, models.FlaggedFlag)
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// records carrying the flag go first
func compareFlag(a, b *models.Record, flag models.Flags) int {
	fa, fb := a.Flags.Has(flag), b.Flags.Has(flag)
	switch {
	case fa && !fb:
		return -1
	case !fa && fb:
		return 1
	}
	return 0
}

func baseSubject(r *models.Record) string {
	subject, _ := sortthread.GetBaseSubject(r.Subject)
	return strings.ToLower(subject)
}

// Records sorts records in place.
func Records(records []*models.Record, less LessFunc) {
	if less == nil {
		less = ByDate
	}
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

// Criteria renders criteria back to their argument form.
func Criteria(criteria []*SortCriterion) []string {
	var args []string
	for _, c := range criteria {
		if c.Reverse {
			args = append(args, "-r")
		}
		args = append(args, c.Field.String())
	}
	return args
}

func (f SortField) String() string {
	switch f {
	case SortArrival:
		return "arrival"
	case SortDate:
		return "date"
	case SortFrom:
		return "from"
	case SortRead:
		return "read"
	case SortSize:
		return "size"
	case SortSubject:
		return "subject"
	case SortTo:
		return "to"
	case SortFlagged:
		return "flagged"
	}
	return fmt.Sprintf("field(%d)", int(f))
}
