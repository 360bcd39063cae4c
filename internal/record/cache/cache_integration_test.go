//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinic/internal/record/cache"
	"clinic/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Redis
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.NewRedis(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestSetGetWithTTL() {
	ctx := context.Background()
	key := cache.RecommendationKey(1)

	_, err := s.cache.Get(ctx, key)
	s.ErrorIs(err, cache.ErrMiss)

	s.Require().NoError(s.cache.SetWithTTL(ctx, key, []byte(`{"patient_id":1}`), time.Hour))
	got, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.JSONEq(`{"patient_id":1}`, string(got))

	ttl, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)
}

func (s *RedisCacheSuite) TestEntryExpires() {
	ctx := context.Background()
	key := cache.RecommendationKey(2)
	s.Require().NoError(s.cache.SetWithTTL(ctx, key, []byte("v"), time.Second))

	s.Eventually(func() bool {
		_, err := s.cache.Get(ctx, key)
		return err == cache.ErrMiss
	}, 5*time.Second, 100*time.Millisecond)
}
