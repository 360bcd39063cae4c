package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinic/internal/record/models"
	"clinic/internal/record/rules"
	"clinic/pkg/platform/sentinel"
)

type InMemoryRecordStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryRecordStoreSuite))
}

func (s *InMemoryRecordStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newRecord(id int64, attrs models.Attributes) *models.PatientRecord {
	return models.NewPatientRecord(id, attrs, rules.Derive, time.Now())
}

func (s *InMemoryRecordStoreSuite) TestInsertAndFind() {
	s.Run("finds an inserted record", func() {
		r := newRecord(1, models.Attributes{Age: 30, Height: 1.8, Weight: 70, RecentSurgery: true})
		s.Require().NoError(s.store.Insert(s.ctx, r))

		found, err := s.store.FindByID(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(r, found)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate ids", func() {
		r := newRecord(2, models.Attributes{Age: 30, Height: 1.8, Weight: 70})
		s.Require().NoError(s.store.Insert(s.ctx, r))
		s.Require().ErrorIs(s.store.Insert(s.ctx, r), sentinel.ErrConflict)
	})

	s.Run("stored records cannot be mutated through returned values", func() {
		r := newRecord(3, models.Attributes{Age: 70, Height: 1.7, Weight: 60, ChronicPain: true})
		s.Require().NoError(s.store.Insert(s.ctx, r))

		found, err := s.store.FindByID(s.ctx, 3)
		s.Require().NoError(err)
		*found.Recommendation = "tampered"
		found.BMI = 0

		again, err := s.store.FindByID(s.ctx, 3)
		s.Require().NoError(err)
		s.Equal(rules.LabelPhysicalTherapy, *again.Recommendation)
		s.Equal(20.76, again.BMI)
	})
}

func (s *InMemoryRecordStoreSuite) TestListAll() {
	for i := int64(1); i <= 3; i++ {
		s.Require().NoError(s.store.Insert(s.ctx, newRecord(i, models.Attributes{Age: 40, Height: 1.7, Weight: 70})))
	}

	collect := func() []int64 {
		var ids []int64
		for r, err := range s.store.ListAll(s.ctx) {
			s.Require().NoError(err)
			ids = append(ids, r.ID)
		}
		return ids
	}

	s.Run("yields records in insertion order", func() {
		s.Equal([]int64{1, 2, 3}, collect())
	})

	s.Run("is restartable and sees later inserts", func() {
		s.Require().NoError(s.store.Insert(s.ctx, newRecord(4, models.Attributes{Age: 40, Height: 1.7, Weight: 70})))
		s.Equal([]int64{1, 2, 3, 4}, collect())
	})

	s.Run("stops early when the consumer breaks", func() {
		n := 0
		for range s.store.ListAll(s.ctx) {
			n++
			break
		}
		s.Equal(1, n)
	})

	s.Run("reports context cancellation", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		for r, err := range s.store.ListAll(ctx) {
			s.Nil(r)
			s.ErrorIs(err, context.Canceled)
		}
	})
}
