package store

import (
	"context"
	"iter"
	"slices"
	"sync"

	"clinic/internal/record/models"
	"clinic/pkg/platform/sentinel"
)

// InMemory keeps records in insertion order. Records are copied on the way in
// and out so callers cannot mutate stored state.
type InMemory struct {
	mu    sync.RWMutex
	byID  map[int64]*models.PatientRecord
	order []int64
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[int64]*models.PatientRecord)}
}

func (s *InMemory) Insert(_ context.Context, record *models.PatientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[record.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[record.ID] = clone(record)
	s.order = append(s.order, record.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

// ListAll snapshots the ids when iteration starts; each range sees the
// records present at that moment.
func (s *InMemory) ListAll(ctx context.Context) iter.Seq2[*models.PatientRecord, error] {
	return func(yield func(*models.PatientRecord, error) bool) {
		s.mu.RLock()
		ids := slices.Clone(s.order)
		s.mu.RUnlock()

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			s.mu.RLock()
			r := clone(s.byID[id])
			s.mu.RUnlock()
			if !yield(r, nil) {
				return
			}
		}
	}
}

func clone(r *models.PatientRecord) *models.PatientRecord {
	out := *r
	if r.Recommendation != nil {
		label := *r.Recommendation
		out.Recommendation = &label
	}
	return &out
}
