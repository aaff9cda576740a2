package domain

import (
	"fmt"
	"math"
	"slices"
)

// ContingencyTable counts (observed, forecast) category pairs. Rows are
// observed categories and columns forecast categories.
type ContingencyTable [3][3]int

// Add records one pair.
func (t *ContingencyTable) Add(obs, fcst Category) { t[obs][fcst]++ }

// Merge adds the counts of o.
func (t *ContingencyTable) Merge(o ContingencyTable) {
	for i := range t {
		for j := range t[i] {
			t[i][j] += o[i][j]
		}
	}
}

// Total is the number of recorded pairs.
func (t ContingencyTable) Total() int {
	n := 0
	for i := range t {
		for j := range t[i] {
			n += t[i][j]
		}
	}
	return n
}

// Hits is the trace of the table.
func (t ContingencyTable) Hits() int { return t[0][0] + t[1][1] + t[2][2] }

// ExpectedHits is the trace of outer(row sums, column sums) / total.
func (t ContingencyTable) ExpectedHits() float64 {
	total := t.Total()
	if total == 0 {
		return math.NaN()
	}
	var e float64
	for k := range t {
		var row, col int
		for j := range t {
			row += t[k][j]
			col += t[j][k]
		}
		e += float64(row) * float64(col) / float64(total)
	}
	return e
}

// HitRate is hits / total, NaN for an empty table.
func (t ContingencyTable) HitRate() float64 {
	total := t.Total()
	if total == 0 {
		return math.NaN()
	}
	return float64(t.Hits()) / float64(total)
}

// HSS is the Heidke skill score, NaN for an empty table or when every pair
// is expected to hit by chance.
func (t ContingencyTable) HSS() float64 {
	total := t.Total()
	if total == 0 {
		return math.NaN()
	}
	e := t.ExpectedHits()
	denom := float64(total) - e
	if denom == 0 {
		return math.NaN()
	}
	return (float64(t.Hits()) - e) / denom
}

// BuildContingency tallies aligned observed and forecast label fields of
// identical layout. Pairs with a NaN side are ignored.
func BuildContingency(obs, fcst *Field) (ContingencyTable, error) {
	var t ContingencyTable
	if !slices.Equal(obs.dims, fcst.dims) || !slices.Equal(obs.shape, fcst.shape) {
		return t, &ShapeMismatchError{
			Op:     "contingency",
			Detail: fmt.Sprintf("obs %v%v vs fcst %v%v", obs.dims, obs.shape, fcst.dims, fcst.shape),
		}
	}
	if obs.Has(DimLat) && !obs.SameGrid(fcst) {
		return t, &ShapeMismatchError{Op: "contingency", Detail: "lat/lon coordinates differ"}
	}
	for i, o := range obs.data {
		f := fcst.data[i]
		if math.IsNaN(o) || math.IsNaN(f) {
			continue
		}
		oc, fc := Category(o), Category(f)
		if oc < BelowNormal || oc > AboveNormal || fc < BelowNormal || fc > AboveNormal {
			return t, fmt.Errorf("contingency: label out of range (obs %v, fcst %v)", o, f)
		}
		t.Add(oc, fc)
	}
	return t, nil
}

// CategoricalRow is the categorical verification of one lead.
type CategoricalRow struct {
	Lead    int
	Target  Month
	Table   ContingencyTable
	HitRate float64
	HSS     float64
}

// VerifyCategories clips aligned observed and forecast labels (time, lat,
// lon) to the region and builds one table per lead.
func VerifyCategories(region Region, obs, fcst *Field) ([]CategoricalRow, error) {
	oc, err := Clip(obs, region)
	if err != nil {
		return nil, err
	}
	fc, err := Clip(fcst, region)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(oc.Time, fc.Time) {
		return nil, &ShapeMismatchError{Op: "verify categories", Detail: "time coordinates differ"}
	}

	rows := make([]CategoricalRow, 0, oc.Len(DimTime))
	for i := range oc.Len(DimTime) {
		o, err := oc.Select(DimTime, i)
		if err != nil {
			return nil, err
		}
		f, err := fc.Select(DimTime, i)
		if err != nil {
			return nil, err
		}
		table, err := BuildContingency(o, f)
		if err != nil {
			return nil, err
		}
		rows = append(rows, CategoricalRow{
			Lead:    leadAt(fc, i),
			Target:  fc.Time[i],
			Table:   table,
			HitRate: table.HitRate(),
			HSS:     table.HSS(),
		})
	}
	return rows, nil
}

// TargetSummary is a contingency table aggregated over every
// initialization whose lead lands on Target.
type TargetSummary struct {
	Target  Month
	Inits   int
	Table   ContingencyTable
	HitRate float64
	HSS     float64
}

// AggregateByTarget merges rows sharing a target month, ordered by target.
func AggregateByTarget(rows []CategoricalRow) []TargetSummary {
	idx := make(map[Month]int)
	var out []TargetSummary
	for _, r := range rows {
		i, ok := idx[r.Target]
		if !ok {
			i = len(out)
			idx[r.Target] = i
			out = append(out, TargetSummary{Target: r.Target})
		}
		out[i].Inits++
		out[i].Table.Merge(r.Table)
	}
	for i := range out {
		out[i].HitRate = out[i].Table.HitRate()
		out[i].HSS = out[i].Table.HSS()
	}
	slices.SortFunc(out, func(a, b TargetSummary) int { return a.Target.Since(b.Target) })
	return out
}

// leadAt returns the forecast lead of time position i, or i+1 when the
// field carries no lead coordinate.
func leadAt(f *Field, i int) int {
	if i < len(f.Lead) {
		return f.Lead[i]
	}
	return i + 1
}
