package issue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dialect covers the differences between the SQL backends.
type dialect struct {
	placeholder func(n int) string
	timeArg     func(t time.Time) any
	boolArg     func(b bool) any
	// greatest is the two-argument max function (GREATEST or MAX).
	greatest    string
}

// sqlStore implements DocumentStore over the issues table.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

const issueColumns = `id, project, title, text, created_by, assigned_to, status_text, open, created_on, updated_on`

func scanIssue(sc interface{ Scan(...any) error }) (Issue, error) {
	var out Issue
	var id string
	err := sc.Scan(
		&id,
		&out.Project,
		&out.Title,
		&out.Text,
		&out.CreatedBy,
		&out.AssignedTo,
		&out.StatusText,
		&out.Open,
		timeScanner{&out.CreatedOn},
		timeScanner{&out.UpdatedOn},
	)
	out.ID = ID(id)
	return out, err
}

func (s *sqlStore) Find(ctx context.Context, q Query) ([]Issue, error) {
	var conds []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = "+s.d.placeholder(len(args)))
	}

	add("project", q.Project)
	if q.ID != nil {
		add("id", string(*q.ID))
	}
	if q.Open != nil {
		add("open", s.d.boolArg(*q.Open))
	}
	if q.Title != nil {
		add("title", *q.Title)
	}
	if q.Text != nil {
		add("text", *q.Text)
	}
	if q.CreatedBy != nil {
		add("created_by", *q.CreatedBy)
	}
	if q.AssignedTo != nil {
		add("assigned_to", *q.AssignedTo)
	}
	if q.StatusText != nil {
		add("status_text", *q.StatusText)
	}

	query := "SELECT " + issueColumns + " FROM issues WHERE " + strings.Join(conds, " AND ") + " ORDER BY " + orderBy(q.Sort)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Issue, 0)
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		out = append(out, is)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func orderBy(o SortOrder) string {
	switch o {
	case SortUpdatedAsc:
		return "updated_on ASC, id ASC"
	case SortCreatedDesc:
		return "created_on DESC, id DESC"
	case SortCreatedAsc:
		return "created_on ASC, id ASC"
	default:
		return "updated_on DESC, id DESC"
	}
}

func (s *sqlStore) InsertOne(ctx context.Context, is Issue) (Issue, error) {
	is.ID = NewID()

	p := s.d.placeholder
	q := `INSERT INTO issues (` + issueColumns + `)
VALUES (` + strings.Join([]string{p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10)}, ", ") + `)
RETURNING ` + issueColumns

	out, err := scanIssue(s.db.QueryRowContext(ctx, q,
		string(is.ID), is.Project, is.Title, is.Text, is.CreatedBy, is.AssignedTo, is.StatusText, s.d.boolArg(is.Open),
		s.d.timeArg(is.CreatedOn), s.d.timeArg(is.UpdatedOn),
	))
	if err != nil {
		return Issue{}, fmt.Errorf("insert issue: %w", err)
	}
	return out, nil
}

// FindOneAndUpdate never moves updated_on before created_on, even when the
// caller's clock has stepped backwards.
func (s *sqlStore) FindOneAndUpdate(ctx context.Context, project string, id ID, pt Patch, updatedOn time.Time) (Issue, error) {
	p := s.d.placeholder
	q := `UPDATE issues SET
  title = COALESCE(` + p(1) + `, title),
  text = COALESCE(` + p(2) + `, text),
  created_by = COALESCE(` + p(3) + `, created_by),
  assigned_to = COALESCE(` + p(4) + `, assigned_to),
  status_text = COALESCE(` + p(5) + `, status_text),
  open = COALESCE(` + p(6) + `, open),
  updated_on = ` + s.d.greatest + `(` + p(7) + `, created_on)
WHERE id = ` + p(8) + ` AND project = ` + p(9) + `
RETURNING ` + issueColumns

	out, err := scanIssue(s.db.QueryRowContext(ctx, q,
		nullString(pt.Title), nullString(pt.Text), nullString(pt.CreatedBy),
		nullString(pt.AssignedTo), nullString(pt.StatusText), s.nullBool(pt.Open),
		s.d.timeArg(updatedOn), string(id), project,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Issue{}, ErrNotFound
		}
		return Issue{}, fmt.Errorf("update issue: %w", err)
	}
	return out, nil
}

func (s *sqlStore) FindOneAndDelete(ctx context.Context, project string, id ID) (Issue, error) {
	p := s.d.placeholder
	q := `DELETE FROM issues WHERE id = ` + p(1) + ` AND project = ` + p(2) + ` RETURNING ` + issueColumns

	out, err := scanIssue(s.db.QueryRowContext(ctx, q, string(id), project))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Issue{}, ErrNotFound
		}
		return Issue{}, fmt.Errorf("delete issue: %w", err)
	}
	return out, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (s *sqlStore) nullBool(p *bool) any {
	if p == nil {
		return nil
	}
	return s.d.boolArg(*p)
}

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// sqliteTimeLayout is fixed width so stored timestamps sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

// timeScanner reads timestamps stored either natively or as text.
type timeScanner struct{ t *time.Time }

func (ts timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	case nil:
		*ts.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (ts timeScanner) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
