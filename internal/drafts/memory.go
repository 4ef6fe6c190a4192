package drafts

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	m   map[string]Draft
}

// NewMemoryStore keeps drafts in process. A ttl of zero keeps them forever.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{ttl: ttl, now: time.Now, m: map[string]Draft{}}
}

func (s *memoryStore) expired(d Draft) bool {
	return s.ttl > 0 && s.now().Sub(d.UpdatedAt) > s.ttl
}

func (s *memoryStore) Save(_ context.Context, d Draft) error {
	if err := validDraft(d); err != nil {
		return err
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = s.now()
	}
	s.mu.Lock()
	s.m[d.Snapshot.SessionID] = d
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Load(_ context.Context, id string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.m[id]
	if !ok {
		return Draft{}, ErrNotFound
	}
	if s.expired(d) {
		delete(s.m, id)
		return Draft{}, ErrNotFound
	}
	return d, nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) List(_ context.Context, owner string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Summary{}
	for _, d := range s.m {
		if d.Owner != owner || s.expired(d) {
			continue
		}
		out = append(out, d.summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
