package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-verif-service/internal/config"
	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

var t2m = domain.Variable{Name: "t2m", Threshold: domain.Sigma}

// fakeSource serves the same fields for every basis unless totals are
// switched off.
type fakeSource struct {
	obs      *domain.Field
	clim     *domain.Threshold
	fcst     map[domain.Month]*domain.Field
	noTotals bool
}

func (f *fakeSource) LoadForecast(_ context.Context, v domain.Variable, init domain.Month, b domain.Basis) (*domain.Field, error) {
	if fc, ok := f.fcst[init]; ok && (b == domain.Anomaly || !f.noTotals) {
		return fc, nil
	}
	return nil, &domain.MissingInputError{Kind: "forecast", Variable: v.Name, Key: init.YYYYMM()}
}

func (f *fakeSource) LoadObservations(_ context.Context, v domain.Variable, _ []int, b domain.Basis) (*domain.Field, error) {
	if f.obs == nil || (b == domain.Total && f.noTotals) {
		return nil, &domain.MissingInputError{Kind: "observation", Variable: v.Name, Key: string(b)}
	}
	return f.obs, nil
}

func (f *fakeSource) LoadThreshold(_ context.Context, v domain.Variable, period string) (*domain.Threshold, error) {
	if period == "1991_2020" && f.clim != nil {
		return f.clim, nil
	}
	return nil, &domain.MissingInputError{Kind: "threshold", Variable: v.Name, Key: period}
}

func verification() config.Verification {
	v := config.DefaultVerification()
	v.StartYear, v.EndYear = 2024, 2024
	v.Variables = []domain.Variable{t2m}
	return v
}

func grid(t *testing.T, name string, dims []string, shape []int) *domain.Field {
	t.Helper()
	f, err := domain.NewField(name, dims, shape)
	require.NoError(t, err)
	f.Lat, f.Lon = []float64{0}, []float64{100}
	return f
}

func newFakeSource(t *testing.T) *fakeSource {
	obs := grid(t, "t2m", []string{domain.DimTime, domain.DimLat, domain.DimLon}, []int{24, 1, 1})
	for i := range 24 {
		obs.Time = append(obs.Time, domain.Month{Year: 2024, Month: 1}.AddMonths(i))
	}
	std := grid(t, "std", []string{domain.DimMonth, domain.DimLat, domain.DimLon}, []int{12, 1, 1})
	std.Fill(1)
	clim, err := domain.NewSigmaThreshold(std)
	require.NoError(t, err)

	fc := grid(t, "t2m", []string{domain.DimMember, domain.DimLead, domain.DimLat, domain.DimLon}, []int{2, 3, 1, 1})
	fc.Member, fc.Lead = []int{1, 2}, []int{1, 2, 3}
	return &fakeSource{
		obs:  obs,
		clim: clim,
		fcst: map[domain.Month]*domain.Field{{Year: 2024, Month: 3}: fc},
	}
}

func TestRun_Passes(t *testing.T) {
	var buf bytes.Buffer
	code := run(context.Background(), &buf, newFakeSource(t), verification())

	assert.Equal(t, 0, code, buf.String())
	assert.Contains(t, buf.String(), "All validations passed.")
	assert.Contains(t, buf.String(), "t2m: 11 of 12 init months have no forecast")
}

func TestRun_MissingObservationsFails(t *testing.T) {
	src := newFakeSource(t)
	src.obs = nil

	var buf bytes.Buffer
	code := run(context.Background(), &buf, src, verification())
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "t2m anom observations")
	assert.Contains(t, buf.String(), "Validation FAILED.")
}

func TestRun_ForecastGridMismatchFails(t *testing.T) {
	src := newFakeSource(t)
	src.fcst[domain.Month{Year: 2024, Month: 3}].Lat = []float64{45}

	var buf bytes.Buffer
	code := run(context.Background(), &buf, src, verification())
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "t2m 202403: anom forecast grid differs from observations")
}

func TestRun_NoObservedLeadFails(t *testing.T) {
	src := newFakeSource(t)
	src.obs.Time = nil
	for i := range 24 {
		src.obs.Time = append(src.obs.Time, domain.Month{Year: 2010, Month: 1}.AddMonths(i))
	}

	var buf bytes.Buffer
	code := run(context.Background(), &buf, src, verification())
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "no lead has an observed month")
}

func TestRun_QuantileVariableNeedsTotals(t *testing.T) {
	src := newFakeSource(t)
	src.clim.Kind = domain.EmpiricalQuantile
	v := verification()
	v.Variables = []domain.Variable{{Name: "prcp", Threshold: domain.EmpiricalQuantile}}

	var buf bytes.Buffer
	require.Equal(t, 0, run(context.Background(), &buf, src, v), buf.String())

	src.noTotals = true
	buf.Reset()
	assert.Equal(t, 1, run(context.Background(), &buf, src, v))
	assert.Contains(t, buf.String(), "prcp total observations")
}
