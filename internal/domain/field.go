package domain

import (
	"fmt"
	"math"
	"slices"
)

// Dimension names shared by every gridded field.
const (
	DimMember   = "ens"
	DimLead     = "lead"
	DimTime     = "time"
	DimMonth    = "month"
	DimLat      = "lat"
	DimLon      = "lon"
	DimCategory = "category"
)

// Field is a labelled N-dimensional array of float64 values stored in
// row-major order. Axes are addressed by name, never by position, so two
// fields combine by matching dimension names and coordinates.
//
// Coordinates are carried for the axes that have them: Lat/Lon for the grid,
// Time for DimTime, Lead for DimLead (kept as an auxiliary coordinate after a
// lead axis is swapped to valid time) and Member for DimMember. DimMonth is
// implicitly 1..12 and DimCategory is implicitly BN, NN, AN.
type Field struct {
	Name string

	dims   []string
	shape  []int
	stride []int
	data   []float64

	Lat    []float64
	Lon    []float64
	Time   []Month
	Lead   []int
	Member []int
}

// NewField allocates a zero-filled field with the given dimensions.
func NewField(name string, dims []string, shape []int) (*Field, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("new field %s: %d dims but %d sizes", name, len(dims), len(shape))
	}
	for i, d := range dims {
		if d == "" {
			return nil, fmt.Errorf("new field %s: empty dimension name", name)
		}
		if slices.Index(dims, d) != i {
			return nil, fmt.Errorf("new field %s: duplicate dimension %q", name, d)
		}
		if shape[i] < 0 {
			return nil, fmt.Errorf("new field %s: negative size for %q", name, d)
		}
	}

	f := &Field{
		Name:  name,
		dims:  slices.Clone(dims),
		shape: slices.Clone(shape),
	}
	f.stride = strides(f.shape)
	f.data = make([]float64, product(f.shape))
	return f, nil
}

// FieldFromValues wraps values (row-major) in a field. The slice is not copied.
func FieldFromValues(name string, dims []string, shape []int, values []float64) (*Field, error) {
	f, err := NewField(name, dims, shape)
	if err != nil {
		return nil, err
	}
	if len(values) != len(f.data) {
		return nil, fmt.Errorf("new field %s: %d values for shape %v", name, len(values), shape)
	}
	f.data = values
	return f, nil
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Dims returns a copy of the dimension names in storage order.
func (f *Field) Dims() []string { return slices.Clone(f.dims) }

// Shape returns a copy of the axis lengths in storage order.
func (f *Field) Shape() []int { return slices.Clone(f.shape) }

// Size is the total number of cells.
func (f *Field) Size() int { return len(f.data) }

// Values exposes the backing slice. Callers must treat it as read-only unless
// they own the field.
func (f *Field) Values() []float64 { return f.data }

// Axis returns the position of dim, or -1.
func (f *Field) Axis(dim string) int { return slices.Index(f.dims, dim) }

// Has reports whether the field carries dim.
func (f *Field) Has(dim string) bool { return f.Axis(dim) >= 0 }

// Len returns the length of dim, or 0 when the field does not carry it.
func (f *Field) Len(dim string) int {
	if a := f.Axis(dim); a >= 0 {
		return f.shape[a]
	}
	return 0
}

func (f *Field) offset(idx []int) int {
	off := 0
	for i, v := range idx {
		off += v * f.stride[i]
	}
	return off
}

// At returns the value at the multi-index given in storage order.
func (f *Field) At(idx ...int) float64 { return f.data[f.offset(idx)] }

// Set stores v at the multi-index given in storage order.
func (f *Field) Set(v float64, idx ...int) { f.data[f.offset(idx)] = v }

// Fill sets every cell to v.
func (f *Field) Fill(v float64) {
	for i := range f.data {
		f.data[i] = v
	}
}

// Clone deep-copies the field including coordinates.
func (f *Field) Clone() *Field {
	out := f.emptyLike(f.Name, f.dims, f.shape)
	copy(out.data, f.data)
	return out
}

// emptyLike allocates a field with the given layout and copies over the
// coordinates of f that the new layout still needs.
func (f *Field) emptyLike(name string, dims []string, shape []int) *Field {
	out := &Field{
		Name:  name,
		dims:  slices.Clone(dims),
		shape: slices.Clone(shape),
	}
	out.stride = strides(out.shape)
	out.data = make([]float64, product(out.shape))
	out.Lat = slices.Clone(f.Lat)
	out.Lon = slices.Clone(f.Lon)
	out.Time = slices.Clone(f.Time)
	out.Lead = slices.Clone(f.Lead)
	out.Member = slices.Clone(f.Member)
	if !out.Has(DimLat) {
		out.Lat = nil
	}
	if !out.Has(DimLon) {
		out.Lon = nil
	}
	if !out.Has(DimTime) {
		out.Time = nil
	}
	if !out.Has(DimLead) && !out.Has(DimTime) {
		out.Lead = nil
	}
	if !out.Has(DimMember) {
		out.Member = nil
	}
	return out
}

// Validate checks that every coordinate slice matches its axis length.
func (f *Field) Validate() error {
	check := func(dim string, n int) error {
		if n == 0 {
			return nil
		}
		if !f.Has(dim) {
			return nil
		}
		if l := f.Len(dim); l != n {
			return &ShapeMismatchError{Op: "validate " + f.Name, Detail: fmt.Sprintf("%s coordinate has %d values, axis has %d", dim, n, l)}
		}
		return nil
	}
	if err := check(DimLat, len(f.Lat)); err != nil {
		return err
	}
	if err := check(DimLon, len(f.Lon)); err != nil {
		return err
	}
	if err := check(DimTime, len(f.Time)); err != nil {
		return err
	}
	if err := check(DimLead, len(f.Lead)); err != nil {
		return err
	}
	if err := check(DimMember, len(f.Member)); err != nil {
		return err
	}
	if f.Has(DimLat) && len(f.Lat) == 0 && f.Len(DimLat) > 0 {
		return &ShapeMismatchError{Op: "validate " + f.Name, Detail: "missing lat coordinate"}
	}
	if f.Has(DimLon) && len(f.Lon) == 0 && f.Len(DimLon) > 0 {
		return &ShapeMismatchError{Op: "validate " + f.Name, Detail: "missing lon coordinate"}
	}
	return nil
}

// SameGrid reports whether both fields sit on identical lat/lon axes.
func (f *Field) SameGrid(g *Field) bool {
	return slices.Equal(f.Lat, g.Lat) && slices.Equal(f.Lon, g.Lon)
}

// forEach visits every cell in storage order. idx is reused between calls.
func (f *Field) forEach(fn func(off int, idx []int)) {
	if len(f.data) == 0 {
		return
	}
	idx := make([]int, len(f.dims))
	for off := range f.data {
		fn(off, idx)
		for a := len(idx) - 1; a >= 0; a-- {
			idx[a]++
			if idx[a] < f.shape[a] {
				break
			}
			idx[a] = 0
		}
	}
}

// projection maps a multi-index of src onto offsets of dst by dimension
// name. Axes of src that dst lacks contribute nothing.
func projection(src []string, dst *Field) []int {
	m := make([]int, len(src))
	for i, d := range src {
		if a := dst.Axis(d); a >= 0 {
			m[i] = dst.stride[a]
		}
	}
	return m
}

func project(m, idx []int) int {
	off := 0
	for i, s := range m {
		off += idx[i] * s
	}
	return off
}

// Take returns the sub-field holding positions idx along dim, in that order.
func (f *Field) Take(dim string, idx []int) (*Field, error) {
	a := f.Axis(dim)
	if a < 0 {
		return nil, &ShapeMismatchError{Op: "take " + f.Name, Detail: fmt.Sprintf("no %s dimension", dim)}
	}
	for _, i := range idx {
		if i < 0 || i >= f.shape[a] {
			return nil, fmt.Errorf("take %s: index %d out of range for %s (len %d)", f.Name, i, dim, f.shape[a])
		}
	}

	shape := slices.Clone(f.shape)
	shape[a] = len(idx)
	out := f.emptyLike(f.Name, f.dims, shape)

	out.forEach(func(off int, oi []int) {
		src := 0
		for i, v := range oi {
			if i == a {
				v = idx[v]
			}
			src += v * f.stride[i]
		}
		out.data[off] = f.data[src]
	})

	switch dim {
	case DimLat:
		out.Lat = pick(f.Lat, idx)
	case DimLon:
		out.Lon = pick(f.Lon, idx)
	case DimTime:
		out.Time = pick(f.Time, idx)
		if len(f.Lead) == f.shape[a] {
			out.Lead = pick(f.Lead, idx)
		}
	case DimLead:
		out.Lead = pick(f.Lead, idx)
	case DimMember:
		out.Member = pick(f.Member, idx)
	}
	return out, nil
}

func pick[T any](src []T, idx []int) []T {
	if len(src) == 0 {
		return nil
	}
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

// Select takes position i along dim and drops the axis.
func (f *Field) Select(dim string, i int) (*Field, error) {
	sub, err := f.Take(dim, []int{i})
	if err != nil {
		return nil, err
	}
	a := sub.Axis(dim)
	dims := slices.Delete(slices.Clone(sub.dims), a, a+1)
	shape := slices.Delete(slices.Clone(sub.shape), a, a+1)
	out := sub.emptyLike(sub.Name, dims, shape)
	copy(out.data, sub.data)
	if dim == DimTime || dim == DimLead {
		out.Lead = nil
	}
	return out, nil
}

// Rename returns a shallow relabelling of axis old as new. Data is shared.
func (f *Field) Rename(old, new string) (*Field, error) {
	a := f.Axis(old)
	if a < 0 {
		return nil, &ShapeMismatchError{Op: "rename " + f.Name, Detail: fmt.Sprintf("no %s dimension", old)}
	}
	if f.Has(new) {
		return nil, &ShapeMismatchError{Op: "rename " + f.Name, Detail: fmt.Sprintf("%s dimension already present", new)}
	}
	out := *f
	out.dims = slices.Clone(f.dims)
	out.dims[a] = new
	return &out, nil
}

// Apply returns a new field with fn applied to every cell.
func (f *Field) Apply(fn func(float64) float64) *Field {
	out := f.emptyLike(f.Name, f.dims, f.shape)
	for i, v := range f.data {
		out.data[i] = fn(v)
	}
	return out
}

// Mean averages over the named dimensions, skipping NaN. A cell with no
// valid contributions (including an empty axis) is NaN.
func (f *Field) Mean(dims ...string) (*Field, error) {
	for _, d := range dims {
		if !f.Has(d) {
			return nil, &ShapeMismatchError{Op: "mean " + f.Name, Detail: fmt.Sprintf("no %s dimension", d)}
		}
	}
	var keepDims []string
	var keepShape []int
	for i, d := range f.dims {
		if !slices.Contains(dims, d) {
			keepDims = append(keepDims, d)
			keepShape = append(keepShape, f.shape[i])
		}
	}

	out := f.emptyLike(f.Name, keepDims, keepShape)
	counts := make([]int, len(out.data))
	m := projection(f.dims, out)
	f.forEach(func(off int, idx []int) {
		v := f.data[off]
		if math.IsNaN(v) {
			return
		}
		o := project(m, idx)
		out.data[o] += v
		counts[o]++
	})
	for i, n := range counts {
		if n == 0 {
			out.data[i] = math.NaN()
			continue
		}
		out.data[i] /= float64(n)
	}
	return out, nil
}

// Combine applies op cell-wise to a and b. Every dimension of b must also be
// a dimension of a with the same length; b is broadcast along the rest.
// Shared lat/lon/time coordinates must agree exactly. The result has a's
// layout and coordinates.
func Combine(a, b *Field, op func(x, y float64) float64) (*Field, error) {
	for i, d := range b.dims {
		if a.Len(d) != b.shape[i] || !a.Has(d) {
			return nil, &ShapeMismatchError{
				Op:     fmt.Sprintf("combine %s with %s", a.Name, b.Name),
				Detail: fmt.Sprintf("%s: %v%v vs %v%v", d, a.dims, a.shape, b.dims, b.shape),
			}
		}
	}
	if b.Has(DimLat) && b.Has(DimLon) && !a.SameGrid(b) {
		return nil, &ShapeMismatchError{
			Op:     fmt.Sprintf("combine %s with %s", a.Name, b.Name),
			Detail: "lat/lon coordinates differ",
		}
	}
	if b.Has(DimTime) && len(a.Time) > 0 && len(b.Time) > 0 && !slices.Equal(a.Time, b.Time) {
		return nil, &ShapeMismatchError{
			Op:     fmt.Sprintf("combine %s with %s", a.Name, b.Name),
			Detail: "time coordinates differ",
		}
	}

	out := a.emptyLike(a.Name, a.dims, a.shape)
	m := projection(a.dims, b)
	a.forEach(func(off int, idx []int) {
		out.data[off] = op(a.data[off], b.data[project(m, idx)])
	})
	return out, nil
}

// Binary operators for Combine.
func Sub(x, y float64) float64 { return x - y }
func Mul(x, y float64) float64 { return x * y }
func Div(x, y float64) float64 { return x / y }
func Add(x, y float64) float64 { return x + y }

// matrix extracts a 2-D view [row][col] of a field that carries exactly the
// two named dimensions.
func matrix(f *Field, row, col string) ([][]float64, error) {
	if len(f.dims) != 2 || !f.Has(row) || !f.Has(col) {
		return nil, &ShapeMismatchError{Op: "matrix " + f.Name, Detail: fmt.Sprintf("want (%s, %s), have %v", row, col, f.dims)}
	}
	ra, ca := f.Axis(row), f.Axis(col)
	out := make([][]float64, f.shape[ra])
	for r := range out {
		out[r] = make([]float64, f.shape[ca])
		for c := range out[r] {
			idx := make([]int, 2)
			idx[ra], idx[ca] = r, c
			out[r][c] = f.At(idx...)
		}
	}
	return out, nil
}

// vector extracts a 1-D field as a slice.
func vector(f *Field, dim string) ([]float64, error) {
	if len(f.dims) != 1 || f.dims[0] != dim {
		return nil, &ShapeMismatchError{Op: "vector " + f.Name, Detail: fmt.Sprintf("want (%s), have %v", dim, f.dims)}
	}
	return slices.Clone(f.data), nil
}
