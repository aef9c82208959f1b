package issue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1networth/issuetracker-lite/internal/shared/events"
	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

// countingStore wraps a store and counts calls that reach it.
type countingStore struct {
	DocumentStore
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingStore) hit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingStore) Find(ctx context.Context, q Query) ([]Issue, error) {
	if err := c.hit(); err != nil {
		return nil, err
	}
	return c.DocumentStore.Find(ctx, q)
}

func (c *countingStore) InsertOne(ctx context.Context, is Issue) (Issue, error) {
	if err := c.hit(); err != nil {
		return Issue{}, err
	}
	return c.DocumentStore.InsertOne(ctx, is)
}

func (c *countingStore) FindOneAndUpdate(ctx context.Context, project string, id ID, p Patch, updatedOn time.Time) (Issue, error) {
	if err := c.hit(); err != nil {
		return Issue{}, err
	}
	return c.DocumentStore.FindOneAndUpdate(ctx, project, id, p, updatedOn)
}

func (c *countingStore) FindOneAndDelete(ctx context.Context, project string, id ID) (Issue, error) {
	if err := c.hit(); err != nil {
		return Issue{}, err
	}
	return c.DocumentStore.FindOneAndDelete(ctx, project, id)
}

type recordingSink struct {
	mu  sync.Mutex
	got []events.Envelope
	err error
}

func (r *recordingSink) Publish(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, env)
	return r.err
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.EventType)
	}
	return out
}

// stepClock advances by one second on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestService() (*Service, *countingStore) {
	store := &countingStore{DocumentStore: NewInMemoryStore()}
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return &Service{Store: store, Log: discardLogger(), Now: clock.Now}, store
}

func strp(s string) *string { return &s }

func validCreate() CreateRequest {
	return CreateRequest{
		Title:      "Title",
		Text:       "text",
		CreatedBy:  "Joe",
		AssignedTo: "Tom",
		StatusText: "In progress",
	}
}

func TestCreateReturnsStoredIssue(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	got, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)

	assert.Len(t, got.ID.String(), IDLen)
	assert.Equal(t, "apitest", got.Project)
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "text", got.Text)
	assert.Equal(t, "Joe", got.CreatedBy)
	assert.Equal(t, "Tom", got.AssignedTo)
	assert.Equal(t, "In progress", got.StatusText)
	assert.True(t, got.Open)
	assert.False(t, got.CreatedOn.IsZero())
	assert.True(t, got.CreatedOn.Equal(got.UpdatedOn))
}

func TestCreateDefaultsOptionalFields(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.Create(context.Background(), "apitest", CreateRequest{
		Title:     "Title",
		Text:      "text",
		CreatedBy: "Joe",
	})
	require.NoError(t, err)
	assert.Equal(t, "", got.AssignedTo)
	assert.Equal(t, "", got.StatusText)
	assert.True(t, got.Open)
}

func TestCreateTrimsFields(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.Create(context.Background(), "apitest", CreateRequest{
		Title:     "  Title  ",
		Text:      "\ttext\n",
		CreatedBy: " Joe ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "text", got.Text)
	assert.Equal(t, "Joe", got.CreatedBy)
}

func TestCreateEmptyReportsAllViolations(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.Create(context.Background(), "apitest", CreateRequest{})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.GreaterOrEqual(t, len(ve.Violations), 3)
	assert.Equal(t, 0, store.calls)
}

func TestCreateWhitespaceOnlyIsMissing(t *testing.T) {
	svc, _ := newTestService()

	req := validCreate()
	req.Title = "   "
	_, err := svc.Create(context.Background(), "apitest", req)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Violations, "issue_title is required")
}

func TestCreateThenListByID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)

	got, err := svc.List(ctx, "apitest", ListFilter{ID: strp(created.ID.String())})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created, got[0])
}

func TestListIsScopedToProject(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "alpha", validCreate())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "beta", validCreate())
	require.NoError(t, err)

	got, err := svc.List(ctx, "alpha", ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)

	got, err = svc.List(ctx, "gamma", ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListOrderIsStableAndNewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	var ids []ID
	for i := 0; i < 4; i++ {
		is, err := svc.Create(ctx, "apitest", validCreate())
		require.NoError(t, err)
		ids = append(ids, is.ID)
	}

	first, err := svc.List(ctx, "apitest", ListFilter{})
	require.NoError(t, err)
	second, err := svc.List(ctx, "apitest", ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first, 4)
	assert.Equal(t, ids[3], first[0].ID)
	assert.Equal(t, ids[0], first[3].ID)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].UpdatedOn.After(first[i-1].UpdatedOn))
	}
}

func TestListSortAscending(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)
	b, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)

	got, err := svc.List(ctx, "apitest", ListFilter{Sort: "created_on"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	joe, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)

	other := validCreate()
	other.CreatedBy = "Ann"
	other.AssignedTo = ""
	ann, err := svc.Create(ctx, "apitest", other)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "apitest", UpdateRequest{ID: ann.ID.String(), Open: &OpenValue{Raw: "false"}})
	require.NoError(t, err)

	got, err := svc.List(ctx, "apitest", ListFilter{CreatedBy: strp("Joe")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, joe.ID, got[0].ID)

	got, err = svc.List(ctx, "apitest", ListFilter{Open: strp("false")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ann.ID, got[0].ID)

	got, err = svc.List(ctx, "apitest", ListFilter{Open: strp("TRUE"), AssignedTo: strp("Tom")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, joe.ID, got[0].ID)

	got, err = svc.List(ctx, "apitest", ListFilter{AssignedTo: strp("")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ann.ID, got[0].ID)
}

func TestListRejectsMalformedID(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.List(context.Background(), "apitest", ListFilter{ID: strp("short")})
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Equal(t, 0, store.calls)
}

func TestUpdateChangesOnlySentFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)

	conf, err := svc.Update(ctx, "apitest", UpdateRequest{ID: created.ID.String(), StatusText: strp("Changed")})
	require.NoError(t, err)
	assert.Equal(t, Confirmation{Result: ResultUpdated, ID: created.ID}, conf)

	got, err := svc.List(ctx, "apitest", ListFilter{ID: strp(created.ID.String())})
	require.NoError(t, err)
	require.Len(t, got, 1)

	want := created
	want.StatusText = "Changed"
	want.UpdatedOn = got[0].UpdatedOn
	assert.Equal(t, want, got[0])
	assert.True(t, got[0].UpdatedOn.After(created.UpdatedOn))
}

func TestUpdateCloseAndReopen(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)
	id := created.ID.String()

	_, err = svc.Update(ctx, "apitest", UpdateRequest{ID: id, Open: &OpenValue{Raw: "false"}})
	require.NoError(t, err)
	got, err := svc.List(ctx, "apitest", ListFilter{ID: &id})
	require.NoError(t, err)
	assert.False(t, got[0].Open)

	_, err = svc.Update(ctx, "apitest", UpdateRequest{ID: id, Open: &OpenValue{Raw: "True"}})
	require.NoError(t, err)
	got, err = svc.List(ctx, "apitest", ListFilter{ID: &id})
	require.NoError(t, err)
	assert.True(t, got[0].Open)
}

func TestUpdateCheckOrder(t *testing.T) {
	cases := []struct {
		name string
		req  UpdateRequest
		want error
	}{
		{"missing id wins over everything", UpdateRequest{ID: "  "}, ErrMissingID},
		{"no fields with valid id", UpdateRequest{ID: "5f665eb46e296f6b9b6a504d"}, ErrNoUpdateFields},
		{"no fields wins over bad id", UpdateRequest{ID: "bad"}, ErrNoUpdateFields},
		{"empty strings are not fields", UpdateRequest{ID: "bad", Title: strp(" "), Open: &OpenValue{Raw: ""}}, ErrNoUpdateFields},
		{"bad id with a field", UpdateRequest{ID: "bad", StatusText: strp("x")}, ErrInvalidID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newTestService()
			_, err := svc.Update(context.Background(), "apitest", tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, store.calls)
		})
	}
}

func TestUpdateFieldTooLong(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.Update(context.Background(), "apitest", UpdateRequest{
		ID:         "bad",
		StatusText: strp(strings.Repeat("x", 17)),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"status_text must be at most 16 characters"}, ve.Violations)
	assert.Equal(t, 0, store.calls)
}

func TestUpdateUnknownIDIsNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), "apitest", UpdateRequest{
		ID:    "5f665eb46e296f6b9b6a504d",
		Title: strp("New"),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOtherProjectIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "alpha", validCreate())
	require.NoError(t, err)

	_, err = svc.Update(ctx, "beta", UpdateRequest{ID: created.ID.String(), Title: strp("New")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTwiceIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)

	conf, err := svc.Delete(ctx, "apitest", DeleteRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, Confirmation{Result: ResultDeleted, ID: created.ID}, conf)

	_, err = svc.Delete(ctx, "apitest", DeleteRequest{ID: created.ID.String()})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.List(ctx, "apitest", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteValidatesID(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.Delete(ctx, "apitest", DeleteRequest{})
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = svc.Delete(ctx, "apitest", DeleteRequest{ID: "0123456789"})
	assert.ErrorIs(t, err, ErrInvalidID)

	assert.Equal(t, 0, store.calls)
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	svc, store := newTestService()
	store.err = errors.New("connection reset")
	ctx := context.Background()

	_, err := svc.List(ctx, "apitest", ListFilter{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.Create(ctx, "apitest", validCreate())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.Update(ctx, "apitest", UpdateRequest{ID: "5f665eb46e296f6b9b6a504d", Title: strp("x")})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.Delete(ctx, "apitest", DeleteRequest{ID: "5f665eb46e296f6b9b6a504d"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestEventsPublishedAfterMutations(t *testing.T) {
	svc, _ := newTestService()
	sink := &recordingSink{}
	svc.Events = sink
	ctx := requestid.With(context.Background(), "req-1")

	created, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)
	_, err = svc.Update(ctx, "apitest", UpdateRequest{ID: created.ID.String(), Title: strp("New")})
	require.NoError(t, err)
	_, err = svc.Delete(ctx, "apitest", DeleteRequest{ID: created.ID.String()})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, "apitest", DeleteRequest{ID: created.ID.String()})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{events.IssueCreated, events.IssueUpdated, events.IssueDeleted}, sink.types())
	for _, e := range sink.got {
		assert.Equal(t, events.AggregateIssue, e.Aggregate)
		assert.Equal(t, created.ID.String(), e.AggregateID)
		assert.Equal(t, "req-1", e.RequestID)
	}
}

func TestEventSinkFailureDoesNotFailRequest(t *testing.T) {
	svc, _ := newTestService()
	svc.Events = &recordingSink{err: errors.New("outbox down")}

	_, err := svc.Create(context.Background(), "apitest", validCreate())
	assert.NoError(t, err)
}

func TestMetricsCountOutcomes(t *testing.T) {
	svc, _ := newTestService()
	reg := prometheus.NewRegistry()
	svc.Metrics = NewMetrics(reg)
	ctx := context.Background()

	_, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)
	_, _ = svc.Create(ctx, "apitest", CreateRequest{})
	_, _ = svc.Delete(ctx, "apitest", DeleteRequest{ID: "5f665eb46e296f6b9b6a504d"})

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.opsTotal.WithLabelValues(opCreate, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.opsTotal.WithLabelValues(opCreate, "validation_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.opsTotal.WithLabelValues(opDelete, "not_found")))
}

func TestUpdateAfterClockStepBackKeepsOrder(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{Store: NewInMemoryStore(), Log: discardLogger(), Now: func() time.Time { return now }}
	ctx := context.Background()

	created, err := svc.Create(ctx, "apitest", validCreate())
	require.NoError(t, err)

	now = now.Add(-time.Second)
	_, err = svc.Update(ctx, "apitest", UpdateRequest{ID: created.ID.String(), StatusText: strp("Changed")})
	require.NoError(t, err)

	got, err := svc.List(ctx, "apitest", ListFilter{ID: strp(created.ID.String())})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Changed", got[0].StatusText)
	assert.False(t, got[0].UpdatedOn.Before(got[0].CreatedOn),
		"updated_on %v before created_on %v", got[0].UpdatedOn, got[0].CreatedOn)
}

func TestCreateRejectsInvalidText(t *testing.T) {
	svc, store := newTestService()

	req := validCreate()
	req.Title = "\xff"
	req.Text = "te\x00xt"
	_, err := svc.Create(context.Background(), "apitest", req)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{
		"issue_title must be valid UTF-8 text",
		"issue_text must be valid UTF-8 text",
	}, ve.Violations)
	assert.Equal(t, 0, store.calls)
}

func TestUpdateRejectsInvalidText(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.Update(context.Background(), "apitest", UpdateRequest{
		ID:         "5f665eb46e296f6b9b6a504d",
		AssignedTo: strp("T\xc3om"),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"assigned_to must be valid UTF-8 text"}, ve.Violations)
	assert.Equal(t, 0, store.calls)
}
