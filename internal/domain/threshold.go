package domain

import (
	"fmt"
	"slices"
)

// SigmaScale approximates the 33rd/67th percentiles of a Gaussian anomaly.
const SigmaScale = 0.43

// ThresholdKind selects how a variable's category boundaries are defined.
type ThresholdKind int

const (
	// Sigma compares anomalies against +-SigmaScale monthly standard deviations.
	Sigma ThresholdKind = iota
	// EmpiricalQuantile compares totals against monthly lower/upper terciles.
	EmpiricalQuantile
)

func (k ThresholdKind) String() string {
	switch k {
	case Sigma:
		return "sigma"
	case EmpiricalQuantile:
		return "quantile"
	default:
		return fmt.Sprintf("ThresholdKind(%d)", int(k))
	}
}

// Basis is the field a kind is compared against.
func (k ThresholdKind) Basis() Basis {
	if k == EmpiricalQuantile {
		return Total
	}
	return Anomaly
}

func (k ThresholdKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ThresholdKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "sigma", "std":
		*k = Sigma
	case "quantile", "tercile":
		*k = EmpiricalQuantile
	default:
		return fmt.Errorf("%w: %q", ErrUnknownThreshold, string(b))
	}
	return nil
}

// Basis names the flavour of input field: anomalies or totals.
type Basis string

const (
	Anomaly Basis = "anom"
	Total   Basis = "total"
)

// Variable is a verified quantity and the threshold kind chosen for it.
type Variable struct {
	Name      string        `yaml:"name"`
	Threshold ThresholdKind `yaml:"threshold"`
	// Indices enables Nino3.4 and IOD plumes (sea surface temperature).
	Indices bool `yaml:"indices"`
}

// Basis is the input flavour the variable is categorised on.
func (v Variable) Basis() Basis { return v.Threshold.Basis() }

// Bases lists every input flavour a variable needs. Deterministic scores
// always use anomalies; total-basis variables also need totals to
// categorise.
func (v Variable) Bases() []Basis {
	if v.Basis() == Total {
		return []Basis{Anomaly, Total}
	}
	return []Basis{Anomaly}
}

// Threshold holds lower and upper category boundaries on a (month, lat, lon)
// climatology or, for per-initialization thresholds, a (lead, lat, lon) grid.
type Threshold struct {
	Kind  ThresholdKind
	Lower *Field
	Upper *Field
}

// NewSigmaThreshold scales a monthly standard deviation to +-SigmaScale.
func NewSigmaThreshold(std *Field) (*Threshold, error) {
	t := &Threshold{
		Kind:  Sigma,
		Lower: std.Apply(func(v float64) float64 { return -SigmaScale * v }),
		Upper: std.Apply(func(v float64) float64 { return SigmaScale * v }),
	}
	return t, t.Validate()
}

// NewQuantileThreshold pairs empirical lower/upper terciles.
func NewQuantileThreshold(lower, upper *Field) (*Threshold, error) {
	t := &Threshold{Kind: EmpiricalQuantile, Lower: lower.Clone(), Upper: upper.Clone()}
	return t, t.Validate()
}

// ByLead reports whether the threshold is indexed by forecast lead rather
// than calendar month.
func (t *Threshold) ByLead() bool { return t.Lower.Has(DimLead) }

func (t *Threshold) key() string {
	if t.ByLead() {
		return DimLead
	}
	return DimMonth
}

// Validate checks that both bounds share one layout and grid.
func (t *Threshold) Validate() error {
	if t.Lower == nil || t.Upper == nil {
		return &ShapeMismatchError{Op: "threshold", Detail: "missing bound"}
	}
	key := t.key()
	for _, f := range []*Field{t.Lower, t.Upper} {
		if len(f.dims) != 3 || !f.Has(key) || !f.Has(DimLat) || !f.Has(DimLon) {
			return &ShapeMismatchError{Op: "threshold", Detail: fmt.Sprintf("want (%s, lat, lon), have %v", key, f.dims)}
		}
		if err := f.Validate(); err != nil {
			return err
		}
	}
	if !slices.Equal(t.Lower.dims, t.Upper.dims) || !slices.Equal(t.Lower.shape, t.Upper.shape) || !t.Lower.SameGrid(t.Upper) {
		return &ShapeMismatchError{Op: "threshold", Detail: "lower and upper bounds differ in layout"}
	}
	if key == DimMonth && t.Lower.Len(DimMonth) != 12 {
		return &ShapeMismatchError{Op: "threshold", Detail: fmt.Sprintf("month axis has %d entries, want 12", t.Lower.Len(DimMonth))}
	}
	if key == DimLead && len(t.Lower.Lead) != t.Lower.Len(DimLead) {
		return &ShapeMismatchError{Op: "threshold", Detail: "lead axis without lead coordinate"}
	}
	return nil
}

// bounds builds a lookup from a multi-index of f to the threshold pair that
// applies there. f must carry time, lat and lon on the threshold's grid.
func (t *Threshold) bounds(f *Field) (func(idx []int) (lo, hi float64), error) {
	op := "categorize " + f.Name
	ta := f.Axis(DimTime)
	if ta < 0 || !f.Has(DimLat) || !f.Has(DimLon) {
		return nil, &ShapeMismatchError{Op: op, Detail: fmt.Sprintf("need time, lat, lon; have %v", f.dims)}
	}
	if !f.SameGrid(t.Lower) {
		return nil, &ShapeMismatchError{Op: op, Detail: "field and threshold grids differ"}
	}
	if len(f.Time) != f.shape[ta] {
		return nil, &ShapeMismatchError{Op: op, Detail: "time axis without time coordinate"}
	}

	// plane[i] is the position on the threshold's month/lead axis for time i.
	plane := make([]int, f.shape[ta])
	if t.ByLead() {
		if len(f.Lead) != f.shape[ta] {
			return nil, &ShapeMismatchError{Op: op, Detail: "per-lead threshold needs a forecast lead coordinate"}
		}
		for i, l := range f.Lead {
			p := slices.Index(t.Lower.Lead, l)
			if p < 0 {
				return nil, &ShapeMismatchError{Op: op, Detail: fmt.Sprintf("threshold has no lead %d", l)}
			}
			plane[i] = p
		}
	} else {
		for i, m := range f.Time {
			plane[i] = m.Month - 1
		}
	}

	ka := t.Lower.Axis(t.key())
	lat, lon := f.Axis(DimLat), f.Axis(DimLon)
	ks, ls, ns := t.Lower.stride[ka], t.Lower.stride[t.Lower.Axis(DimLat)], t.Lower.stride[t.Lower.Axis(DimLon)]
	lower, upper := t.Lower.data, t.Upper.data
	return func(idx []int) (float64, float64) {
		off := plane[idx[ta]]*ks + idx[lat]*ls + idx[lon]*ns
		return lower[off], upper[off]
	}, nil
}
