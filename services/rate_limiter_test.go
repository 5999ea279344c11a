package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tlord101/VanTutor-sub000/config"
	"github.com/tlord101/VanTutor-sub000/models"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests drive the limiter's view of time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestLimiter(maxRequests int, interval time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(maxRequests, interval)
	limiter.now = clock.now
	return limiter, clock
}

func TestRateLimiter_Check(t *testing.T) {
	t.Run("allows requests under capacity", func(t *testing.T) {
		limiter, _ := newTestLimiter(3, 30*time.Second)

		for i := 0; i < 3; i++ {
			res := limiter.Check()
			assert.True(t, res.Allowed)
			limiter.Record()
		}
	})

	t.Run("denies once capacity is consumed and reports wait seconds", func(t *testing.T) {
		limiter, clock := newTestLimiter(5, 30*time.Second)

		for i := 0; i < 5; i++ {
			limiter.Record()
		}

		res := limiter.Check()
		assert.False(t, res.Allowed)
		assert.Equal(t, 30, res.RetryAfterSeconds)
		assert.Contains(t, res.Message, "30 seconds")

		// Part way through the window the reported wait shrinks accordingly.
		clock.advance(12 * time.Second)
		res = limiter.Check()
		assert.False(t, res.Allowed)
		assert.Equal(t, 18, res.RetryAfterSeconds)
	})

	t.Run("wait seconds round up and stay positive", func(t *testing.T) {
		limiter, clock := newTestLimiter(1, 30*time.Second)
		limiter.Record()

		clock.advance(29*time.Second + 500*time.Millisecond)
		res := limiter.Check()
		assert.False(t, res.Allowed)
		assert.Equal(t, 1, res.RetryAfterSeconds)
	})

	t.Run("check alone never consumes quota", func(t *testing.T) {
		limiter, _ := newTestLimiter(2, 30*time.Second)

		// Many checks without a record leave the admission outcome unchanged.
		for i := 0; i < 10; i++ {
			res := limiter.Check()
			assert.True(t, res.Allowed)
		}
		limiter.Record()
		limiter.Record()
		assert.False(t, limiter.Check().Allowed)
	})

	t.Run("zero capacity denies with the full window instead of panicking", func(t *testing.T) {
		limiter, _ := newTestLimiter(0, 30*time.Second)

		res := limiter.Check()
		assert.False(t, res.Allowed)
		assert.Equal(t, 30, res.RetryAfterSeconds)
		assert.Contains(t, res.Message, "30 seconds")
	})

	t.Run("admits again after the oldest timestamp leaves the window", func(t *testing.T) {
		limiter, clock := newTestLimiter(2, 30*time.Second)
		limiter.Record()
		limiter.Record()
		assert.False(t, limiter.Check().Allowed)

		clock.advance(31 * time.Second)
		assert.True(t, limiter.Check().Allowed)
	})
}

func TestRateLimiter_UpdateConfig(t *testing.T) {
	t.Run("clears retained timestamps unconditionally", func(t *testing.T) {
		limiter, _ := newTestLimiter(2, 30*time.Second)
		limiter.Record()
		limiter.Record()
		assert.False(t, limiter.Check().Allowed)

		limiter.UpdateConfig(2, 30*time.Second)
		assert.True(t, limiter.Check().Allowed, "an immediate check after UpdateConfig must be allowed regardless of prior state")
	})

	t.Run("applies the new capacity", func(t *testing.T) {
		limiter, _ := newTestLimiter(5, 30*time.Second)
		limiter.UpdateConfig(1, 30*time.Second)

		limiter.Record()
		assert.False(t, limiter.Check().Allowed)
	})
}

func withTestPlanLimits(t *testing.T, limits map[string]config.PlanLimits) {
	t.Helper()
	previous := config.AppConfig.PlanLimits
	config.AppConfig.PlanLimits = limits
	t.Cleanup(func() { config.AppConfig.PlanLimits = previous })
}

func TestLimiterPool_AttemptAPICall(t *testing.T) {
	withTestPlanLimits(t, map[string]config.PlanLimits{
		"free": {MaxRequests: 2, IntervalMS: 60000, DelayMS: 0},
		"pro":  {MaxRequests: 5, IntervalMS: 60000, DelayMS: 0},
	})

	t.Run("runs the action and consumes quota on success", func(t *testing.T) {
		pool := NewLimiterPool()
		calls := 0
		action := func(ctx context.Context) error { calls++; return nil }

		res := pool.AttemptAPICall(context.Background(), "user-1", models.PlanTierFree, action)
		assert.True(t, res.Success)
		res = pool.AttemptAPICall(context.Background(), "user-1", models.PlanTierFree, action)
		assert.True(t, res.Success)
		assert.Equal(t, 2, calls)

		// Third call within the window is denied without running the action.
		res = pool.AttemptAPICall(context.Background(), "user-1", models.PlanTierFree, action)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "too quickly")
		assert.Equal(t, 2, calls)
	})

	t.Run("a failed action does not consume quota and yields a generic message", func(t *testing.T) {
		pool := NewLimiterPool()
		boom := errors.New("upstream 503: model overloaded")

		for i := 0; i < 4; i++ {
			res := pool.AttemptAPICall(context.Background(), "user-2", models.PlanTierFree, func(ctx context.Context) error { return boom })
			assert.False(t, res.Success)
			assert.Equal(t, GenericAIFailureMessage, res.Message)
			assert.NotContains(t, res.Message, "503", "original error detail must not leak to the caller")
		}

		// All failures left the window empty, so a succeeding call is admitted.
		res := pool.AttemptAPICall(context.Background(), "user-2", models.PlanTierFree, func(ctx context.Context) error { return nil })
		assert.True(t, res.Success)
	})

	t.Run("limiters are independent per user", func(t *testing.T) {
		pool := NewLimiterPool()
		ok := func(ctx context.Context) error { return nil }

		pool.AttemptAPICall(context.Background(), "user-a", models.PlanTierFree, ok)
		pool.AttemptAPICall(context.Background(), "user-a", models.PlanTierFree, ok)
		assert.False(t, pool.AttemptAPICall(context.Background(), "user-a", models.PlanTierFree, ok).Success)

		assert.True(t, pool.AttemptAPICall(context.Background(), "user-b", models.PlanTierFree, ok).Success)
	})

	t.Run("a tier configured without capacity denies every call", func(t *testing.T) {
		withTestPlanLimits(t, map[string]config.PlanLimits{
			"free": {MaxRequests: 0, IntervalMS: 60000, DelayMS: 0},
		})
		pool := NewLimiterPool()
		calls := 0

		res := pool.AttemptAPICall(context.Background(), "user-d", models.PlanTierFree, func(ctx context.Context) error { calls++; return nil })
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "60 seconds")
		assert.Equal(t, 0, calls)
	})

	t.Run("a tier change resets the user's window", func(t *testing.T) {
		pool := NewLimiterPool()
		ok := func(ctx context.Context) error { return nil }

		pool.AttemptAPICall(context.Background(), "user-c", models.PlanTierFree, ok)
		pool.AttemptAPICall(context.Background(), "user-c", models.PlanTierFree, ok)
		assert.False(t, pool.CheckOnly("user-c", models.PlanTierFree).Allowed)

		// Upgrading discards rate history rather than reconciling it.
		assert.True(t, pool.CheckOnly("user-c", models.PlanTierPro).Allowed)
	})
}
