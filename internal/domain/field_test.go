package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewField(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f, err := NewField("x", []string{DimLat, DimLon}, []int{2, 3})
		require.NoError(t, err)
		assert.Equal(t, 6, f.Size())
		assert.Equal(t, 3, f.Len(DimLon))
		assert.Equal(t, 0, f.Len(DimTime))
	})

	t.Run("duplicate dimension", func(t *testing.T) {
		_, err := NewField("x", []string{DimLat, DimLat}, []int{2, 2})
		require.Error(t, err)
	})

	t.Run("dims and shape disagree", func(t *testing.T) {
		_, err := NewField("x", []string{DimLat}, []int{2, 2})
		require.Error(t, err)
	})

	t.Run("values length checked", func(t *testing.T) {
		_, err := FieldFromValues("x", []string{DimLat}, []int{2}, []float64{1})
		require.Error(t, err)
	})
}

func TestField_AtSet(t *testing.T) {
	f := mustField(t, "x", []string{DimLat, DimLon}, []int{2, 3}, []float64{0, 1, 2, 3, 4, 5})
	assert.Equal(t, 5.0, f.At(1, 2))
	f.Set(9, 0, 1)
	assert.Equal(t, 9.0, f.Values()[1])
}

func TestField_Take(t *testing.T) {
	f := obsField(t, []Month{{2024, 1}, {2024, 2}, {2024, 3}}, []float64{
		1, 1, 1, 1,
		2, 2, 2, 2,
		3, 3, 3, 3,
	})

	sub, err := f.Take(DimTime, []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []Month{{2024, 3}, {2024, 1}}, sub.Time)
	assert.Equal(t, []float64{3, 3, 3, 3, 1, 1, 1, 1}, sub.Values())

	_, err = f.Take(DimTime, []int{3})
	require.Error(t, err)

	_, err = f.Take(DimMember, []int{0})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestField_Select(t *testing.T) {
	f := obsField(t, []Month{{2024, 1}, {2024, 2}}, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	s, err := f.Select(DimTime, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{DimLat, DimLon}, s.Dims())
	assert.Equal(t, []float64{5, 6, 7, 8}, s.Values())
	assert.Nil(t, s.Time)
	assert.Equal(t, testLat, s.Lat)
}

func TestField_Mean(t *testing.T) {
	f := obsField(t, []Month{{2024, 1}, {2024, 2}}, []float64{
		1, 2, 3, nan,
		nan, nan, nan, nan,
	})

	m, err := f.Mean(DimLat, DimLon)
	require.NoError(t, err)
	assert.Equal(t, []string{DimTime}, m.Dims())
	assert.InDelta(t, 2.0, m.At(0), 1e-12)
	assert.True(t, math.IsNaN(m.At(1)), "all-NaN slice reduces to NaN")
	assert.Nil(t, m.Lat)

	_, err = f.Mean(DimMember)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCombine(t *testing.T) {
	times := []Month{{2024, 1}}

	t.Run("broadcasts by name", func(t *testing.T) {
		ens := alignedEnsemble(t, 2, times, []float64{1, 2, 3, 4, 5, 6, 7, 8})
		obs := obsField(t, times, []float64{1, 1, 1, 1})
		d, err := Combine(ens, obs, Sub)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7}, d.Values())
		assert.Equal(t, ens.Dims(), d.Dims())
	})

	t.Run("different grid is rejected", func(t *testing.T) {
		a := obsField(t, times, []float64{1, 1, 1, 1})
		b := obsField(t, times, []float64{1, 1, 1, 1})
		b.Lat = []float64{10, 21}
		_, err := Combine(a, b, Sub)
		var sme *ShapeMismatchError
		require.True(t, errors.As(err, &sme))
		assert.Contains(t, sme.Error(), "lat/lon")
	})

	t.Run("different time axis is rejected", func(t *testing.T) {
		a := obsField(t, times, []float64{1, 1, 1, 1})
		b := obsField(t, []Month{{2024, 2}}, []float64{1, 1, 1, 1})
		_, err := Combine(a, b, Sub)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("extra dimension on b is rejected", func(t *testing.T) {
		ens := alignedEnsemble(t, 1, times, []float64{1, 2, 3, 4})
		obs := obsField(t, times, []float64{1, 1, 1, 1})
		_, err := Combine(obs, ens, Sub)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestField_Rename(t *testing.T) {
	f := mustField(t, "x", []string{DimLead, DimLat}, []int{2, 1}, []float64{1, 2})
	r, err := f.Rename(DimLead, DimTime)
	require.NoError(t, err)
	assert.True(t, r.Has(DimTime))
	assert.False(t, r.Has(DimLead))
	assert.True(t, f.Has(DimLead), "original untouched")

	_, err = f.Rename(DimLead, DimLat)
	require.Error(t, err)
}

func TestField_Validate(t *testing.T) {
	f := obsField(t, []Month{{2024, 1}}, []float64{1, 2, 3, 4})
	require.NoError(t, f.Validate())

	f.Lon = []float64{100}
	require.ErrorIs(t, f.Validate(), ErrShapeMismatch)
}
