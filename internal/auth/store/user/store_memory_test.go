package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinic/internal/auth/models"
	"clinic/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = New()
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) TestLookupBehavior() {
	s.Run("returns user by username when exists", func() {
		user := &models.User{
			Username:     "jane.doe",
			PasswordHash: "$2a$10$hash",
			CreatedAt:    time.Now(),
		}
		s.Require().NoError(s.store.Create(context.Background(), user))

		found, err := s.store.FindByUsername(context.Background(), user.Username)
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("returns ErrNotFound when username does not exist", func() {
		_, err := s.store.FindByUsername(context.Background(), "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryUserStoreSuite) TestUniqueness() {
	s.Run("rejects duplicate username", func() {
		first := &models.User{Username: "dup", PasswordHash: "a"}
		second := &models.User{Username: "dup", PasswordHash: "b"}

		s.Require().NoError(s.store.Create(context.Background(), first))
		err := s.store.Create(context.Background(), second)
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		found, err := s.store.FindByUsername(context.Background(), "dup")
		s.Require().NoError(err)
		s.Equal("a", found.PasswordHash, "original user must be kept")
	})

	s.Run("returned users are copies", func() {
		s.Require().NoError(s.store.Create(context.Background(), &models.User{Username: "copy", PasswordHash: "x"}))
		found, err := s.store.FindByUsername(context.Background(), "copy")
		s.Require().NoError(err)
		found.PasswordHash = "mutated"

		again, err := s.store.FindByUsername(context.Background(), "copy")
		s.Require().NoError(err)
		s.Equal("x", again.PasswordHash)
	})
}
