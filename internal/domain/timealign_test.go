package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTimes(t *testing.T) {
	got := ValidTimes(Month{2024, 9}, []int{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []Month{{2024, 10}, {2024, 11}, {2024, 12}, {2025, 1}, {2025, 2}, {2025, 3}}, got)
}

func TestAlign_MissingLastLead(t *testing.T) {
	valid := ValidTimes(testInit, []int{1, 2, 3, 4, 5, 6})
	obs := MonthRange(Month{2024, 1}, Month{2024, 8}) // ends before lead 6 (2024-09)

	a := Align(valid, obs)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, a.LeadIndex)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, a.ObsIndex)
	assert.Equal(t, []Month{{2024, 9}}, a.Missing)
	assert.False(t, a.Empty())

	err := a.Gap()
	require.ErrorIs(t, err, ErrTimeCoverageGap)
	var gap *TimeCoverageGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, []Month{{2024, 9}}, gap.Missing)
	assert.Contains(t, err.Error(), "2024-09")
}

func TestAlign_Empty(t *testing.T) {
	valid := ValidTimes(testInit, []int{1, 2})
	a := Align(valid, []Month{{2020, 1}})
	assert.True(t, a.Empty())
	assert.Len(t, a.Missing, 2)
}

func TestAlign_Complete(t *testing.T) {
	valid := ValidTimes(testInit, []int{1, 2})
	a := Align(valid, valid)
	assert.NoError(t, a.Gap())
}

func TestAlignPair(t *testing.T) {
	fc := mustField(t, "fcst", []string{DimMember, DimLead, DimLat, DimLon}, []int{1, 3, 2, 2}, []float64{
		1, 1, 1, 1,
		2, 2, 2, 2,
		3, 3, 3, 3,
	})
	fc.Lead = []int{1, 2, 3}
	fc.Lat, fc.Lon = testLat, testLon

	obs := obsField(t, []Month{{2024, 5}, {2024, 4}}, []float64{
		20, 20, 20, 20,
		10, 10, 10, 10,
	})
	a := Align(ValidTimes(testInit, fc.Lead), obs.Time)
	require.Equal(t, []Month{{2024, 6}}, a.Missing)

	f, o, err := AlignPair(fc, obs, testInit, a)
	require.NoError(t, err)
	assert.Equal(t, []string{DimMember, DimTime, DimLat, DimLon}, f.Dims())
	assert.Equal(t, []Month{{2024, 4}, {2024, 5}}, f.Time)
	assert.Equal(t, []int{1, 2}, f.Lead)
	assert.Equal(t, f.Time, o.Time)
	assert.Equal(t, []float64{10, 10, 10, 10, 20, 20, 20, 20}, o.Values())

	d, err := Combine(f, o, Sub)
	require.NoError(t, err)
	assert.Equal(t, -9.0, d.At(0, 0, 0, 0))
}
