package issue

import (
	"net/url"
	"strings"
)

type SortOrder string

const (
	SortUpdatedDesc SortOrder = "-updated_on"
	SortUpdatedAsc  SortOrder = "updated_on"
	SortCreatedDesc SortOrder = "-created_on"
	SortCreatedAsc  SortOrder = "created_on"
)

// ParseSort returns the requested order, or updated_on descending for
// anything it does not recognize.
func ParseSort(s string) SortOrder {
	switch SortOrder(strings.TrimSpace(s)) {
	case SortUpdatedAsc:
		return SortUpdatedAsc
	case SortCreatedDesc:
		return SortCreatedDesc
	case SortCreatedAsc:
		return SortCreatedAsc
	default:
		return SortUpdatedDesc
	}
}

// ListFilter holds raw query values from the allow-list. Nil means the
// parameter was absent; an empty string is a filter for the empty value.
type ListFilter struct {
	ID         *string
	Open       *string
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Sort       string
}

// FilterFromQuery picks the allow-listed parameters out of q and drops the rest.
func FilterFromQuery(q url.Values) ListFilter {
	pick := func(key string) *string {
		vs, ok := q[key]
		if !ok || len(vs) == 0 {
			return nil
		}
		v := vs[0]
		return &v
	}
	return ListFilter{
		ID:         pick("_id"),
		Open:       pick("open"),
		Title:      pick("issue_title"),
		Text:       pick("issue_text"),
		CreatedBy:  pick("created_by"),
		AssignedTo: pick("assigned_to"),
		StatusText: pick("status_text"),
		Sort:       q.Get("sort"),
	}
}

// Query is an equality filter scoped to one project, in the store's types.
type Query struct {
	Project    string
	ID         *ID
	Open       *bool
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Sort       SortOrder
}

// BuildQuery converts the raw filter into a store query. A present but
// malformed _id is ErrInvalidID rather than a query that matches nothing.
func BuildQuery(project string, f ListFilter) (Query, error) {
	q := Query{
		Project:    project,
		Title:      f.Title,
		Text:       f.Text,
		CreatedBy:  f.CreatedBy,
		AssignedTo: f.AssignedTo,
		StatusText: f.StatusText,
		Sort:       ParseSort(f.Sort),
	}
	if f.ID != nil {
		id, err := ParseID(*f.ID)
		if err != nil {
			return Query{}, ErrInvalidID
		}
		q.ID = &id
	}
	if f.Open != nil {
		open := ParseOpen(*f.Open)
		q.Open = &open
	}
	return q, nil
}

// Match reports whether is satisfies every set condition of q.
func (q Query) Match(is Issue) bool {
	if is.Project != q.Project {
		return false
	}
	if q.ID != nil && is.ID != *q.ID {
		return false
	}
	if q.Open != nil && is.Open != *q.Open {
		return false
	}
	eq := func(want *string, got string) bool { return want == nil || *want == got }
	return eq(q.Title, is.Title) &&
		eq(q.Text, is.Text) &&
		eq(q.CreatedBy, is.CreatedBy) &&
		eq(q.AssignedTo, is.AssignedTo) &&
		eq(q.StatusText, is.StatusText)
}

// Less orders a before b under q.Sort, falling back to id so the order is total.
func (q Query) Less(a, b Issue) bool {
	desc := q.Sort == SortUpdatedDesc || q.Sort == SortCreatedDesc || q.Sort == ""
	ta, tb := a.UpdatedOn, b.UpdatedOn
	if q.Sort == SortCreatedAsc || q.Sort == SortCreatedDesc {
		ta, tb = a.CreatedOn, b.CreatedOn
	}
	if !ta.Equal(tb) {
		if desc {
			return ta.After(tb)
		}
		return ta.Before(tb)
	}
	if desc {
		return a.ID > b.ID
	}
	return a.ID < b.ID
}
