package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexGrid covers both IOD boxes and the Nino3.4 box on a coarse grid.
func indexGrid(t *testing.T, dims []string, shape []int, fill func(lat, lon float64) float64) *Field {
	t.Helper()
	lat := []float64{-8, -2, 4}
	lon := []float64{60, 100, 200}
	f, err := NewField("sst", dims, shape)
	require.NoError(t, err)
	f.Lat, f.Lon = lat, lon
	f.forEach(func(off int, idx []int) {
		f.data[off] = fill(lat[idx[f.Axis(DimLat)]], lon[idx[f.Axis(DimLon)]])
	})
	return f
}

func TestNino34AndIOD(t *testing.T) {
	sst := func(lat, lon float64) float64 {
		switch lon {
		case 60:
			return 1
		case 100:
			return -1 + lat/10
		default:
			return 2
		}
	}
	f := indexGrid(t, []string{DimTime, DimLat, DimLon}, []int{1, 3, 3}, sst)
	f.Time = []Month{{2024, 4}}

	nino, err := Nino34(f)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, nino.At(0), 1e-12)

	iod, err := IOD(f)
	require.NoError(t, err)
	// east box holds lat -8 and -2 at lon 100: mean of -1.8 and -1.2
	assert.InDelta(t, 1-(-1.5), iod.At(0), 1e-12)
}

func TestComputePlume(t *testing.T) {
	ens := indexGrid(t, []string{DimMember, DimTime, DimLat, DimLon}, []int{2, 2, 3, 3},
		func(lat, lon float64) float64 { return 1 })
	ens.Time = twoMonths
	ens.Lead = []int{1, 2}
	for i := range ens.data[:18] {
		ens.data[i] = 3 // member 1
	}
	obs := indexGrid(t, []string{DimTime, DimLat, DimLon}, []int{2, 3, 3},
		func(lat, lon float64) float64 { return 0.5 })
	obs.Time = twoMonths

	p, err := ComputePlume("NINO34", testInit, ens, obs, Nino34)
	require.NoError(t, err)
	assert.Equal(t, twoMonths, p.Times)
	assert.Equal(t, [][]float64{{3, 3}, {1, 1}}, p.Members)
	assert.Equal(t, []float64{2, 2}, p.EnsembleMean)
	assert.Equal(t, []float64{0.5, 0.5}, p.Observed)
}

func TestComputeRegionSeries(t *testing.T) {
	ens := alignedEnsemble(t, 2, twoMonths, []float64{
		1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, nan,
	})
	obs := obsField(t, twoMonths, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	s, err := ComputeRegionSeries(Global, ens, obs)
	require.NoError(t, err)
	assert.Equal(t, "GL", s.Region)
	assert.Equal(t, []float64{2, 2.75}, s.Forecast)
	assert.Equal(t, []float64{0, 1}, s.Observed)

	none, err := ComputeRegionSeries(Region{Name: "S", LonMin: 0, LonMax: 10, LatMin: -60, LatMax: -50}, ens, obs)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(none.Forecast[0]))
}
