package sort_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.sr.ht/~rjarry/msglist/lib/sort"
	"git.sr.ht/~rjarry/msglist/models"
)

func TestGetSortCriteria(t *testing.T) {
	criteria, err := sort.GetSortCriteria([]string{"-r", "date", "subject"})
	assert.Nil(t, err)
	assert.Len(t, criteria, 2)
	assert.Equal(t, sort.SortDate, criteria[0].Field)
	assert.True(t, criteria[0].Reverse)
	assert.Equal(t, sort.SortSubject, criteria[1].Field)
	assert.False(t, criteria[1].Reverse)
	assert.Equal(t, []string{"-r", "date", "subject"}, sort.Criteria(criteria))

	_, err = sort.GetSortCriteria([]string{"date", "-r"})
	assert.NotNil(t, err)
	_, err = sort.GetSortCriteria([]string{"colour"})
	assert.NotNil(t, err)
}

func uidsOf(records []*models.Record) []models.UID {
	var res []models.UID
	for _, r := range records {
		res = append(res, r.Uid)
	}
	return res
}

func TestByDateTies(t *testing.T) {
	records := []*models.Record{
		{Uid: "c", DateSent: 10},
		{Uid: "b", DateSent: 20},
		{Uid: "a", DateSent: 10},
	}
	sort.Records(records, nil)
	assert.Equal(t, []models.UID{"a", "c", "b"}, uidsOf(records))
}

func TestLessCriteria(t *testing.T) {
	records := []*models.Record{
		{Uid: "1", Subject: "Re: beta", DateSent: 1},
		{Uid: "2", Subject: "alpha", DateSent: 2},
		{Uid: "3", Subject: "beta", DateSent: 0, Flags: models.FlaggedFlag},
	}
	criteria, err := sort.GetSortCriteria([]string{"subject"})
	assert.Nil(t, err)
	sort.Records(records, sort.Less(criteria))
	assert.Equal(t, []models.UID{"2", "3", "1"}, uidsOf(records))

	criteria, err = sort.GetSortCriteria([]string{"flagged", "-r", "date"})
	assert.Nil(t, err)
	sort.Records(records, sort.Less(criteria))
	assert.Equal(t, []models.UID{"3", "2", "1"}, uidsOf(records))
}
