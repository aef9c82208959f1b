package issue

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOpen(t *testing.T) {
	cases := map[string]bool{
		"true":     true,
		"TRUE":     true,
		" True ":   true,
		"false":    false,
		"":         false,
		"yes":      false,
		"1":        false,
		"truthy":   false,
		"t":        false,
		"\ttrue\n": true,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseOpen(in), "ParseOpen(%q)", in)
	}
}

func TestOpenValueAcceptsBoolOrString(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"x","open":false}`), &req))
	require.NotNil(t, req.Open)
	assert.Equal(t, "false", req.Open.Raw)

	req = UpdateRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"open":"true"}`), &req))
	require.NotNil(t, req.Open)
	assert.Equal(t, "true", req.Open.Raw)

	req = UpdateRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"issue_title":"t"}`), &req))
	assert.Nil(t, req.Open)
}

func TestParseID(t *testing.T) {
	_, err := ParseID("")
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = ParseID("   ")
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = ParseID(strings.Repeat("a", IDLen-1))
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = ParseID(strings.Repeat("a", IDLen+1))
	assert.ErrorIs(t, err, ErrInvalidID)

	// Only the width is checked.
	id, err := ParseID(strings.Repeat("z", IDLen))
	require.NoError(t, err)
	assert.Equal(t, ID(strings.Repeat("z", IDLen)), id)

	// Width counts characters, not bytes.
	_, err = ParseID(strings.Repeat("é", IDLen/2))
	assert.ErrorIs(t, err, ErrInvalidID)

	id, err = ParseID(strings.Repeat("é", IDLen))
	require.NoError(t, err)
	assert.Equal(t, ID(strings.Repeat("é", IDLen)), id)

	_, err = ParseID(strings.Repeat("a", IDLen-1) + "\xff")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestNewIDIsUniqueAndParses(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		_, err := ParseID(id.String())
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCreateValidateBounds(t *testing.T) {
	req := CreateRequest{
		Title:      strings.Repeat("t", 101),
		Text:       "ab",
		CreatedBy:  "Jo",
		AssignedTo: strings.Repeat("a", 31),
		StatusText: strings.Repeat("s", 17),
	}
	err := req.Validate()

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{
		"issue_title must be at most 100 characters",
		"issue_text must be at least 3 characters",
		"created_by must be at least 3 characters",
		"assigned_to must be at most 30 characters",
		"status_text must be at most 16 characters",
	}, ve.Violations)
}

func TestValidateCountsRunes(t *testing.T) {
	req := CreateRequest{Title: "é", Text: "äöü", CreatedBy: "Zoë"}
	assert.NoError(t, req.Validate())
}

func TestPatchSkipsEmptyFields(t *testing.T) {
	open := &OpenValue{Raw: "false"}
	p, err := UpdateRequest{Title: strp(" "), StatusText: strp(" Done "), Open: open}.Patch()
	require.NoError(t, err)

	assert.Nil(t, p.Title)
	require.NotNil(t, p.StatusText)
	assert.Equal(t, "Done", *p.StatusText)
	require.NotNil(t, p.Open)
	assert.False(t, *p.Open)
}

func TestPatchApply(t *testing.T) {
	is := Issue{Title: "a", Text: "b", Open: true}
	closed := false
	Patch{Text: strp("c"), Open: &closed}.Apply(&is)

	assert.Equal(t, "a", is.Title)
	assert.Equal(t, "c", is.Text)
	assert.False(t, is.Open)
}

func TestFilterFromQueryAllowList(t *testing.T) {
	q := url.Values{
		"created_by":  {"Joe"},
		"open":        {"true"},
		"assigned_to": {""},
		"project":     {"other"},
		"$where":      {"1"},
		"sort":        {"created_on"},
	}
	f := FilterFromQuery(q)

	require.NotNil(t, f.CreatedBy)
	assert.Equal(t, "Joe", *f.CreatedBy)
	require.NotNil(t, f.AssignedTo)
	assert.Equal(t, "", *f.AssignedTo)
	assert.Nil(t, f.ID)
	assert.Nil(t, f.Title)
	assert.Equal(t, "created_on", f.Sort)

	query, err := BuildQuery("apitest", f)
	require.NoError(t, err)
	assert.Equal(t, "apitest", query.Project)
	require.NotNil(t, query.Open)
	assert.True(t, *query.Open)
	assert.Equal(t, SortCreatedAsc, query.Sort)
}

func TestParseSortDefaults(t *testing.T) {
	assert.Equal(t, SortUpdatedDesc, ParseSort(""))
	assert.Equal(t, SortUpdatedDesc, ParseSort("title"))
	assert.Equal(t, SortUpdatedAsc, ParseSort("updated_on"))
	assert.Equal(t, SortCreatedDesc, ParseSort("-created_on"))
}
