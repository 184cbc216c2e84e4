package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
)

// InMemoryStore is a process-local event log for tests and database-free
// development runs. It keeps the same ordering and monotonicity guarantees
// as PostgresStore.
type InMemoryStore struct {
	clock clockwork.Clock

	mu     sync.Mutex
	nextID int64
	events []domain.Event
}

func NewInMemoryStore(clock clockwork.Clock) *InMemoryStore {
	return &InMemoryStore{clock: clock, nextID: 1}
}

func (s *InMemoryStore) Append(_ context.Context, typ domain.EventType, subjectID *int64, payload []byte) (domain.Event, error) {
	if !typ.Valid() {
		return domain.Event{}, domain.ErrInvalidEventType
	}
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := domain.Event{
		ID:        s.nextID,
		Type:      typ,
		SubjectID: subjectID,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: s.clock.Now(),
	}
	s.nextID++
	s.events = append(s.events, e)
	return e, nil
}

func (s *InMemoryStore) ListUnprocessed(_ context.Context, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Event
	for _, e := range s.events {
		if e.Processed {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if _, ok := set[s.events[i].ID]; ok {
			s.events[i].Processed = true
		}
	}
	return nil
}

func (s *InMemoryStore) ListSince(_ context.Context, afterID int64, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Event
	for _, e := range s.events {
		if e.ID <= afterID {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteProcessedOlderThan(_ context.Context, horizon time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		kept    []domain.Event
		deleted int64
	)
	for _, e := range s.events {
		if e.Processed && e.CreatedAt.Before(horizon) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}

func (s *InMemoryStore) List(_ context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		out     []domain.Event
		skipped int
	)
	for _, e := range s.events {
		if filter.Processed != nil && e.Processed != *filter.Processed {
			continue
		}
		if filter.SubjectID != nil && (e.SubjectID == nil || *e.SubjectID != *filter.SubjectID) {
			continue
		}
		if filter.Type != nil && e.Type != *filter.Type {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
