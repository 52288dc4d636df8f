package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewMemory(WithClock(func() time.Time { return s.now }))
}

func (s *MemoryStoreSuite) TestAllow() {
	ctx := context.Background()

	s.Run("first request is allowed", func() {
		res, err := s.store.Allow(ctx, "first", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(3, res.Limit)
		s.Equal(2, res.Remaining)
		s.Equal(s.now.Add(time.Minute), res.ResetAt)
	})

	s.Run("requests up to the limit are allowed", func() {
		for i := range 3 {
			res, err := s.store.Allow(ctx, "upto", 3, time.Minute)
			s.Require().NoError(err)
			s.True(res.Allowed)
			s.Equal(2-i, res.Remaining)
		}
	})

	s.Run("request over the limit is refused with retry after", func() {
		for range 2 {
			_, err := s.store.Allow(ctx, "over", 2, time.Minute)
			s.Require().NoError(err)
		}
		res, err := s.store.Allow(ctx, "over", 2, time.Minute)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(0, res.Remaining)
		s.Equal(time.Minute, res.RetryAfter)
	})

	s.Run("keys are independent", func() {
		_, err := s.store.Allow(ctx, "a", 1, time.Minute)
		s.Require().NoError(err)
		res, err := s.store.Allow(ctx, "b", 1, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})
}

func (s *MemoryStoreSuite) TestWindowSlides() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "slide", 2, time.Minute)
	s.Require().NoError(err)
	s.now = s.now.Add(30 * time.Second)
	_, err = s.store.Allow(ctx, "slide", 2, time.Minute)
	s.Require().NoError(err)

	res, err := s.store.Allow(ctx, "slide", 2, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(30*time.Second, res.RetryAfter)

	s.now = s.now.Add(31 * time.Second)
	res, err = s.store.Allow(ctx, "slide", 2, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
}

func (s *MemoryStoreSuite) TestReset() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "reset", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "reset"))

	res, err := s.store.Allow(ctx, "reset", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *MemoryStoreSuite) TestConcurrentAllowNeverExceedsLimit() {
	ctx := context.Background()
	const limit = 10

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Go(func() {
			res, err := s.store.Allow(ctx, "concurrent", limit, time.Minute)
			if err != nil || !res.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		})
	}
	wg.Wait()
	s.Equal(limit, allowed)
}
