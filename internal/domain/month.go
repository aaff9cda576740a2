package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Month is a calendar month at monthly granularity. Forecast and observation
// time axes are compared as (year, month) pairs only.
type Month struct {
	Year  int
	Month int // 1..12
}

// MonthOf truncates t to its calendar month.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month())}
}

// ParseYYYYMM parses "202403" into a Month.
func ParseYYYYMM(s string) (Month, error) {
	if len(s) != 6 {
		return Month{}, fmt.Errorf("parse month %q: want YYYYMM", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthFromInt(n)
}

// MonthFromInt converts a YYYYMM integer.
func MonthFromInt(n int) (Month, error) {
	m := Month{Year: n / 100, Month: n % 100}
	if m.Month < 1 || m.Month > 12 {
		return Month{}, fmt.Errorf("parse month %d: month out of range", n)
	}
	return m, nil
}

// YYYYMM formats the month as used in file names.
func (m Month) YYYYMM() string { return fmt.Sprintf("%04d%02d", m.Year, m.Month) }

// Int returns the month as a YYYYMM integer.
func (m Month) Int() int { return m.Year*100 + m.Month }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, m.Month) }

// AddMonths shifts by n months, rolling the year.
func (m Month) AddMonths(n int) Month {
	idx := m.Year*12 + (m.Month - 1) + n
	return Month{Year: floorDiv(idx, 12), Month: idx - floorDiv(idx, 12)*12 + 1}
}

// Since returns the number of months from ref to m.
func (m Month) Since(ref Month) int {
	return (m.Year*12 + m.Month) - (ref.Year*12 + ref.Month)
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool { return m.Since(o) < 0 }

// Time returns the first instant of the month in UTC.
func (m Month) Time() time.Time {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) MarshalText() ([]byte, error) { return []byte(m.YYYYMM()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	p, err := ParseYYYYMM(string(b))
	if err != nil {
		return err
	}
	*m = p
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// InitMonths lists every initialization month January..December for the
// inclusive year range.
func InitMonths(startYear, endYear int) []Month {
	if endYear < startYear {
		return nil
	}
	out := make([]Month, 0, (endYear-startYear+1)*12)
	for y := startYear; y <= endYear; y++ {
		for mo := 1; mo <= 12; mo++ {
			out = append(out, Month{Year: y, Month: mo})
		}
	}
	return out
}

// MonthRange lists months from start to end inclusive.
func MonthRange(start, end Month) []Month {
	n := end.Since(start)
	if n < 0 {
		return nil
	}
	out := make([]Month, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, start.AddMonths(i))
	}
	return out
}
