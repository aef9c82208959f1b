package issue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DocumentStore persists issues. Implementations return ErrNotFound when no
// document matches (project, id); any other error is treated as the store
// being unavailable.
type DocumentStore interface {
	Find(ctx context.Context, q Query) ([]Issue, error)
	// InsertOne assigns the id and returns the stored document.
	InsertOne(ctx context.Context, is Issue) (Issue, error)
	// FindOneAndUpdate atomically applies p and sets updated_on, returning
	// the updated document.
	FindOneAndUpdate(ctx context.Context, project string, id ID, p Patch, updatedOn time.Time) (Issue, error)
	// FindOneAndDelete atomically removes and returns the document.
	FindOneAndDelete(ctx context.Context, project string, id ID) (Issue, error)
	Ping(ctx context.Context) error
	Close() error
}

type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[ID]Issue
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID: make(map[ID]Issue),
	}
}

func (s *InMemoryStore) Find(ctx context.Context, q Query) ([]Issue, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Issue, 0)
	for _, is := range s.byID {
		if q.Match(is) {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool { return q.Less(out[i], out[j]) })
	return out, nil
}

func (s *InMemoryStore) InsertOne(ctx context.Context, is Issue) (Issue, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	is.ID = NewID()
	for {
		if _, taken := s.byID[is.ID]; !taken {
			break
		}
		is.ID = NewID()
	}

	s.byID[is.ID] = is
	return is, nil
}

func (s *InMemoryStore) FindOneAndUpdate(ctx context.Context, project string, id ID, p Patch, updatedOn time.Time) (Issue, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.byID[id]
	if !ok || is.Project != project {
		return Issue{}, ErrNotFound
	}
	p.Apply(&is)
	if updatedOn.Before(is.CreatedOn) {
		updatedOn = is.CreatedOn
	}
	is.UpdatedOn = updatedOn
	s.byID[id] = is
	return is, nil
}

func (s *InMemoryStore) FindOneAndDelete(ctx context.Context, project string, id ID) (Issue, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.byID[id]
	if !ok || is.Project != project {
		return Issue{}, ErrNotFound
	}
	delete(s.byID, id)
	return is, nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
