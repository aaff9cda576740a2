package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

type stubSource struct {
	calls atomic.Int32
}

func (s *stubSource) LoadForecast(context.Context, domain.Variable, domain.Month, domain.Basis) (*domain.Field, error) {
	s.calls.Add(1)
	return &domain.Field{}, nil
}

func (s *stubSource) LoadObservations(context.Context, domain.Variable, []int, domain.Basis) (*domain.Field, error) {
	s.calls.Add(1)
	return &domain.Field{}, nil
}

func (s *stubSource) LoadThreshold(context.Context, domain.Variable, string) (*domain.Threshold, error) {
	s.calls.Add(1)
	return &domain.Threshold{}, nil
}

func TestSource_ForwardsWithinBurst(t *testing.T) {
	inner := &stubSource{}
	s := NewSource(inner, 1000, 3)
	ctx := context.Background()
	v := domain.Variable{Name: "t2m"}

	_, err := s.LoadForecast(ctx, v, domain.Month{Year: 2024, Month: 1}, domain.Anomaly)
	require.NoError(t, err)
	_, err = s.LoadObservations(ctx, v, []int{2024}, domain.Total)
	require.NoError(t, err)
	_, err = s.LoadThreshold(ctx, v, "1991_2020")
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestSource_WaitHonoursContext(t *testing.T) {
	inner := &stubSource{}
	// one token per minute: the second read has to wait far past the deadline
	s := NewSource(inner, 1.0/60, 1)
	v := domain.Variable{Name: "t2m"}

	_, err := s.LoadThreshold(context.Background(), v, "1991_2020")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.LoadThreshold(ctx, v, "1991_2020")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "rate limit wait canceled")
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestNewSource_ClampsBurst(t *testing.T) {
	s := NewSource(&stubSource{}, 5, 0)
	assert.Equal(t, 1, s.limiter.Burst())
}
