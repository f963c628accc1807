package lib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.sr.ht/~rjarry/msglist/models"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

func TestParseSearch(t *testing.T) {
	tests := []struct {
		expr     string
		criteria *types.SearchCriteria
	}{
		{
			expr:     "",
			criteria: &types.SearchCriteria{Terms: []string{}},
		},
		{
			expr: "-u -x flagged -f alice 'weekly report'",
			criteria: &types.SearchCriteria{
				WithFlags:    models.FlaggedFlag,
				WithoutFlags: models.SeenFlag,
				From:         []string{"alice"},
				Terms:        []string{"weekly report"},
			},
		},
		{
			expr: "-z -X deleted -t bob lnch",
			criteria: &types.SearchCriteria{
				WithoutFlags: models.DeletedFlag,
				To:           []string{"bob"},
				Terms:        []string{"lnch"},
				Fuzzy:        true,
			},
		},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			criteria, err := ParseSearch(test.expr)
			assert.Nil(t, err)
			assert.Equal(t, test.criteria, criteria)
		})
	}
}

func TestParseSearchErrors(t *testing.T) {
	for _, expr := range []string{
		"-x",
		"-x colourful",
		"-q foo",
		"-r -x seen -X seen",
		"'unterminated",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseSearch(expr)
			var qerr *types.QueryError
			assert.True(t, errors.As(err, &qerr), "got %v", err)
		})
	}
}

func TestSearch(t *testing.T) {
	records := []*models.Record{
		{Uid: "1", Subject: "Lunch on Friday", From: "Alice <alice@example.org>"},
		{Uid: "2", Subject: "lunch menu", Flags: models.SeenFlag},
		{Uid: "3", Subject: "Weekly report", Flags: models.FlaggedFlag},
	}
	search := func(expr string) []models.UID {
		criteria, err := ParseSearch(expr)
		assert.Nil(t, err)
		return Search(records, criteria)
	}
	assert.Equal(t, []models.UID{"1", "2"}, search("lunch"))
	assert.Equal(t, []models.UID{"1"}, search("Lunch"))
	assert.Equal(t, []models.UID{"1", "3"}, search("-u"))
	assert.Equal(t, []models.UID{"3"}, search("-x flagged"))
	assert.Equal(t, []models.UID{"1"}, search("-f alice"))
	assert.Equal(t, []models.UID{"3"}, search("-z wkrpt"))
	assert.Equal(t, []models.UID{}, search("dinner"))
}

func TestSearchCriteria(t *testing.T) {
	tests := []struct {
		expr  string
		str   string
		empty bool
	}{
		{expr: "", str: "", empty: true},
		{expr: "-z", str: "", empty: true},
		{expr: "-u -x flagged -f alice 'weekly report'",
			str: "+flagged -seen from:alice weekly report"},
		{expr: "-t bob lunch", str: "to:bob lunch"},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			criteria, err := ParseSearch(test.expr)
			assert.Nil(t, err)
			assert.Equal(t, test.str, criteria.String())
			assert.Equal(t, test.empty, criteria.Empty())
		})
	}

	var all *types.SearchCriteria
	assert.True(t, all.Empty())
	assert.Equal(t, "<all>", all.String())
	assert.True(t, Match(&models.Record{Uid: "1"}, all))
	assert.False(t, Match(nil, all))
}
