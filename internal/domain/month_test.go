package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYYYYMM(t *testing.T) {
	m, err := ParseYYYYMM("202403")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2024, Month: 3}, m)
	assert.Equal(t, "202403", m.YYYYMM())
	assert.Equal(t, "2024-03", m.String())

	for _, bad := range []string{"2024", "202413", "2024ab", "202400"} {
		_, err := ParseYYYYMM(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonth_AddMonths(t *testing.T) {
	tests := []struct {
		in   Month
		n    int
		want Month
	}{
		{Month{2024, 3}, 1, Month{2024, 4}},
		{Month{2024, 11}, 2, Month{2025, 1}},
		{Month{2024, 12}, 6, Month{2025, 6}},
		{Month{2024, 1}, -1, Month{2023, 12}},
		{Month{2024, 1}, 0, Month{2024, 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.AddMonths(tt.n), "%v + %d", tt.in, tt.n)
		assert.Equal(t, tt.n, tt.want.Since(tt.in))
	}
}

func TestMonth_Text(t *testing.T) {
	var m Month
	require.NoError(t, m.UnmarshalText([]byte("199912")))
	assert.Equal(t, Month{1999, 12}, m)
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "199912", string(b))
}

func TestInitMonths(t *testing.T) {
	ms := InitMonths(2022, 2023)
	require.Len(t, ms, 24)
	assert.Equal(t, Month{2022, 1}, ms[0])
	assert.Equal(t, Month{2023, 12}, ms[23])
	assert.Nil(t, InitMonths(2024, 2023))
}

func TestMonthRange(t *testing.T) {
	ms := MonthRange(Month{2023, 11}, Month{2024, 2})
	assert.Equal(t, []Month{{2023, 11}, {2023, 12}, {2024, 1}, {2024, 2}}, ms)
	assert.Nil(t, MonthRange(Month{2024, 2}, Month{2024, 1}))
}
