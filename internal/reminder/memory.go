package reminder

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore keeps records in a mutex-guarded map. The mutex gives the same
// per-record claim atomicity the sqlite driver gets from conditional UPDATEs.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]*Record
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() Store {
	return &memoryStore{nextID: 1, recs: map[int64]*Record{}}
}

func (s *memoryStore) Create(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++
	r.TriggerAt = r.TriggerAt.UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	} else {
		r.CreatedAt = r.CreatedAt.UTC()
	}
	cp := *r
	s.recs[r.ID] = &cp
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) Due(ctx context.Context, now time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.recs {
		if r.DueAt(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memoryStore) LeadDue(ctx context.Context, now time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.recs {
		if r.LeadDueAt(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memoryStore) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok || r.IsTriggered {
		return false, nil
	}
	at := now.UTC()
	r.IsTriggered = true
	r.TriggeredAt = &at
	return true, nil
}

func (s *memoryStore) ClaimLead(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok || r.LeadSent || r.IsTriggered {
		return false, nil
	}
	r.LeadSent = true
	return true, nil
}

func (s *memoryStore) ListPending(ctx context.Context, chatID int64, now time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.recs {
		if r.ChatID == chatID && !r.IsTriggered && r.TriggerAt.After(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, id, chatID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok || r.ChatID != chatID || r.IsTriggered {
		return false, nil
	}
	delete(s.recs, id)
	return true, nil
}

func (s *memoryStore) Close() error { return nil }
