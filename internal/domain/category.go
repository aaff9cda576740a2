package domain

import (
	"fmt"
	"math"
	"slices"
)

// Category is a tercile class.
type Category int

const (
	BelowNormal Category = iota
	NearNormal
	AboveNormal
)

// Categories lists the classes in cumulative order.
var Categories = [...]Category{BelowNormal, NearNormal, AboveNormal}

func (c Category) String() string {
	switch c {
	case BelowNormal:
		return "BN"
	case NearNormal:
		return "NN"
	case AboveNormal:
		return "AN"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// classify labels one value. The default is NN; AN is tested first and BN
// second so BN overwrites. NaN stays NaN.
func classify(v, lower, upper float64) float64 {
	if math.IsNaN(v) || math.IsNaN(lower) || math.IsNaN(upper) {
		return math.NaN()
	}
	label := NearNormal
	if v > upper {
		label = AboveNormal
	}
	if v < lower {
		label = BelowNormal
	}
	return float64(label)
}

// Categorize labels every cell of f with the threshold of its calendar month
// (or lead, for per-initialization thresholds). f must carry a time axis;
// any extra axes such as members are labelled independently.
func Categorize(f *Field, t *Threshold) (*Field, error) {
	at, err := t.bounds(f)
	if err != nil {
		return nil, err
	}
	out := f.emptyLike(f.Name+"_cate", f.dims, f.shape)
	f.forEach(func(off int, idx []int) {
		lo, hi := at(idx)
		out.data[off] = classify(f.data[off], lo, hi)
	})
	return out, nil
}

// CategorizeEnsembleMean averages over members then labels the mean field.
func CategorizeEnsembleMean(ens *Field, t *Threshold) (*Field, error) {
	mean, err := ens.Mean(DimMember)
	if err != nil {
		return nil, err
	}
	return Categorize(mean, t)
}

// Probabilities labels each member and returns the fraction of members per
// category, with the category axis appended. Missing members count towards
// the denominator but not any class; a cell with every member missing is NaN.
func Probabilities(ens *Field, t *Threshold) (*Field, error) {
	labels, err := Categorize(ens, t)
	if err != nil {
		return nil, err
	}
	ma := labels.Axis(DimMember)
	if ma < 0 {
		return nil, &ShapeMismatchError{Op: "probabilities " + ens.Name, Detail: "no member dimension"}
	}
	members := labels.shape[ma]

	var dims []string
	var shape []int
	for i, d := range labels.dims {
		if i != ma {
			dims = append(dims, d)
			shape = append(shape, labels.shape[i])
		}
	}
	dims = append(dims, DimCategory)
	shape = append(shape, len(Categories))

	out := labels.emptyLike(ens.Name+"_prob", dims, shape)
	valid := make([]int, len(out.data)/len(Categories))
	m := projection(labels.dims, out)
	labels.forEach(func(off int, idx []int) {
		v := labels.data[off]
		base := project(m, idx)
		valid[base/len(Categories)]++
		if math.IsNaN(v) {
			valid[base/len(Categories)]--
			return
		}
		out.data[base+int(v)]++
	})
	for cell, n := range valid {
		for c := range Categories {
			o := cell*len(Categories) + c
			if n == 0 || members == 0 {
				out.data[o] = math.NaN()
				continue
			}
			out.data[o] /= float64(members)
		}
	}
	return out, nil
}

// OneHot expands a label field into indicator planes, inserting the category
// axis at position pos. NaN labels give NaN in every plane.
func OneHot(labels *Field, pos int) (*Field, error) {
	if pos < 0 || pos > len(labels.dims) {
		return nil, fmt.Errorf("one-hot %s: position %d out of range", labels.Name, pos)
	}
	if labels.Has(DimCategory) {
		return nil, &ShapeMismatchError{Op: "one-hot " + labels.Name, Detail: "already has a category dimension"}
	}
	dims := slices.Insert(slices.Clone(labels.dims), pos, DimCategory)
	shape := slices.Insert(slices.Clone(labels.shape), pos, len(Categories))
	out := labels.emptyLike(labels.Name+"_ohe", dims, shape)

	cs := out.stride[pos]
	m := projection(labels.dims, out)
	labels.forEach(func(off int, idx []int) {
		base := project(m, idx)
		v := labels.data[off]
		for c := range Categories {
			switch {
			case math.IsNaN(v):
				out.data[base+c*cs] = math.NaN()
			case int(v) == c:
				out.data[base+c*cs] = 1
			}
		}
	})
	return out, nil
}

// ArgMax collapses the category axis to the index of the largest value.
// Ties resolve to the lowest category. A cell with any NaN class is NaN.
func ArgMax(f *Field) (*Field, error) {
	ca := f.Axis(DimCategory)
	if ca < 0 {
		return nil, &ShapeMismatchError{Op: "argmax " + f.Name, Detail: "no category dimension"}
	}
	dims := slices.Delete(slices.Clone(f.dims), ca, ca+1)
	shape := slices.Delete(slices.Clone(f.shape), ca, ca+1)
	out := f.emptyLike(f.Name, dims, shape)
	out.Fill(math.NaN())

	best := make([]float64, len(out.data))
	for i := range best {
		best[i] = math.Inf(-1)
	}
	poisoned := make([]bool, len(out.data))
	m := projection(f.dims, out)
	f.forEach(func(off int, idx []int) {
		o := project(m, idx)
		v := f.data[off]
		if math.IsNaN(v) {
			poisoned[o] = true
			return
		}
		// Strict > keeps the lowest category on ties, as idx[ca] ascends.
		if v > best[o] {
			best[o] = v
			out.data[o] = float64(idx[ca])
		}
	})
	for i, p := range poisoned {
		if p {
			out.data[i] = math.NaN()
		}
	}
	return out, nil
}

// MostProbable returns the most likely category of a probability field.
func MostProbable(prob *Field) (*Field, error) { return ArgMax(prob) }

// CountCategories tallies labels, ignoring NaN.
func CountCategories(labels *Field) [3]int {
	var n [3]int
	for _, v := range labels.data {
		if math.IsNaN(v) {
			continue
		}
		if c := int(v); c >= 0 && c < len(n) {
			n[c]++
		}
	}
	return n
}
