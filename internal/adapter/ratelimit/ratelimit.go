// Package ratelimit paces input reads against shared storage.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
	"github.com/couchcryptid/fcst-verif-service/internal/pipeline"
)

// Source wraps a pipeline.Source with a token bucket shared by every read.
type Source struct {
	inner   pipeline.Source
	limiter *rate.Limiter
}

var _ pipeline.Source = (*Source)(nil)

// NewSource creates a rate limited source. rps is the number of reads per
// second and may be fractional; burst is the largest instantaneous burst.
func NewSource(inner pipeline.Source, rps float64, burst int) *Source {
	if burst < 1 {
		burst = 1
	}
	return &Source{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// wait blocks for a token. A wait that would outlast the context deadline
// fails early and is reported as context.DeadlineExceeded.
func (s *Source) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return nil
}

func (s *Source) LoadForecast(ctx context.Context, v domain.Variable, init domain.Month, basis domain.Basis) (*domain.Field, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.LoadForecast(ctx, v, init, basis)
}

func (s *Source) LoadObservations(ctx context.Context, v domain.Variable, years []int, basis domain.Basis) (*domain.Field, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.LoadObservations(ctx, v, years, basis)
}

func (s *Source) LoadThreshold(ctx context.Context, v domain.Variable, period string) (*domain.Threshold, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.LoadThreshold(ctx, v, period)
}
