package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/k1networth/issuetracker-lite/internal/shared/events"
	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

// EventSink receives an envelope after every successful mutation.
type EventSink interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Service implements the issue operations over a DocumentStore. It keeps no
// state between calls; Events and Metrics are optional.
type Service struct {
	Store   DocumentStore
	Log     *slog.Logger
	Events  EventSink
	Metrics *Metrics
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC().Truncate(time.Microsecond)
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *Service) List(ctx context.Context, project string, f ListFilter) ([]Issue, error) {
	q, err := BuildQuery(project, f)
	if err != nil {
		s.Metrics.observe(opList, err)
		return nil, err
	}

	out, err := s.Store.Find(ctx, q)
	if err != nil {
		err = s.storeErr(ctx, opList, err)
		s.Metrics.observe(opList, err)
		return nil, err
	}
	s.Metrics.observe(opList, nil)
	return out, nil
}

func (s *Service) Create(ctx context.Context, project string, req CreateRequest) (Issue, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		s.Metrics.observe(opCreate, err)
		return Issue{}, err
	}

	now := s.now()
	created, err := s.Store.InsertOne(ctx, Issue{
		Project:    project,
		Title:      req.Title,
		Text:       req.Text,
		CreatedBy:  req.CreatedBy,
		AssignedTo: req.AssignedTo,
		StatusText: req.StatusText,
		Open:       true,
		CreatedOn:  now,
		UpdatedOn:  now,
	})
	if err != nil {
		err = s.storeErr(ctx, opCreate, err)
		s.Metrics.observe(opCreate, err)
		return Issue{}, err
	}

	s.Metrics.observe(opCreate, nil)
	s.publish(ctx, events.IssueCreated, created)
	return created, nil
}

// Update applies the sent fields of req. Checks run in order: missing id,
// field validation and emptiness, then id width, all before the store is
// touched.
func (s *Service) Update(ctx context.Context, project string, req UpdateRequest) (Confirmation, error) {
	id, err := s.validateUpdate(req)
	if err != nil {
		s.Metrics.observe(opUpdate, err)
		return Confirmation{}, err
	}
	patch, _ := req.Patch()

	updated, err := s.Store.FindOneAndUpdate(ctx, project, id, patch, s.now())
	if err != nil {
		err = s.storeErr(ctx, opUpdate, err)
		s.Metrics.observe(opUpdate, err)
		return Confirmation{}, err
	}

	s.Metrics.observe(opUpdate, nil)
	s.publish(ctx, events.IssueUpdated, updated)
	return Confirmation{Result: ResultUpdated, ID: id}, nil
}

func (s *Service) validateUpdate(req UpdateRequest) (ID, error) {
	if _, err := ParseID(req.ID); errors.Is(err, ErrMissingID) {
		return "", err
	}
	if _, err := req.Patch(); err != nil {
		return "", err
	}
	return ParseID(req.ID)
}

func (s *Service) Delete(ctx context.Context, project string, req DeleteRequest) (Confirmation, error) {
	id, err := ParseID(req.ID)
	if err != nil {
		s.Metrics.observe(opDelete, err)
		return Confirmation{}, err
	}

	removed, err := s.Store.FindOneAndDelete(ctx, project, id)
	if err != nil {
		err = s.storeErr(ctx, opDelete, err)
		s.Metrics.observe(opDelete, err)
		return Confirmation{}, err
	}

	s.Metrics.observe(opDelete, nil)
	s.publish(ctx, events.IssueDeleted, removed)
	return Confirmation{Result: ResultDeleted, ID: id}, nil
}

// storeErr keeps ErrNotFound and folds everything else into
// ErrStoreUnavailable. The raw error only reaches the log.
func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	s.logger().Error("issue_store_failed",
		slog.String("op", op),
		slog.String("request_id", requestid.Get(ctx)),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
}

func (s *Service) publish(ctx context.Context, eventType string, is Issue) {
	if s.Events == nil {
		return
	}
	env, err := events.New(eventType, events.AggregateIssue, is.ID.String(), requestid.Get(ctx), is)
	if err == nil {
		err = s.Events.Publish(ctx, env)
	}
	if err != nil {
		s.logger().Warn("issue_event_publish_failed",
			slog.String("event_type", eventType),
			slog.String("issue_id", is.ID.String()),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
