package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testInit = Month{Year: 2024, Month: 3}
	testLat  = []float64{10, 20}
	testLon  = []float64{100, 110}
)

// mustField builds a field or fails the test.
func mustField(t *testing.T, name string, dims []string, shape []int, vals []float64) *Field {
	t.Helper()
	f, err := FieldFromValues(name, dims, shape, vals)
	require.NoError(t, err)
	return f
}

// obsField is (time, lat, lon) on the 2x2 test grid.
func obsField(t *testing.T, times []Month, vals []float64) *Field {
	t.Helper()
	f := mustField(t, "obs", []string{DimTime, DimLat, DimLon}, []int{len(times), 2, 2}, vals)
	f.Time = times
	f.Lat, f.Lon = testLat, testLon
	return f
}

// alignedEnsemble is (ens, time, lat, lon) on the 2x2 test grid with leads
// 1..len(times).
func alignedEnsemble(t *testing.T, members int, times []Month, vals []float64) *Field {
	t.Helper()
	f := mustField(t, "fcst", []string{DimMember, DimTime, DimLat, DimLon}, []int{members, len(times), 2, 2}, vals)
	f.Time = times
	f.Lat, f.Lon = testLat, testLon
	for i := range times {
		f.Lead = append(f.Lead, i+1)
	}
	for m := range members {
		f.Member = append(f.Member, m+1)
	}
	return f
}

// constantSigma builds a sigma threshold with the same std everywhere.
func constantSigma(t *testing.T, std float64) *Threshold {
	t.Helper()
	s, err := NewField("std", []string{DimMonth, DimLat, DimLon}, []int{12, 2, 2})
	require.NoError(t, err)
	s.Lat, s.Lon = testLat, testLon
	s.Fill(std)
	thr, err := NewSigmaThreshold(s)
	require.NoError(t, err)
	return thr
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var nan = math.NaN()
