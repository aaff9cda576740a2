package archive

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

// libnetcdf is not safe for concurrent use; every dataset access holds ncMu.
var ncMu sync.Mutex

// timeUnits is the calendar encoding written for time coordinates.
const timeUnits = "months since 1900-01-01"

var timeEpoch = domain.Month{Year: 1900, Month: 1}

// dimAliases maps file dimension names onto field dimensions.
var dimAliases = map[string]string{
	"ens":       domain.DimMember,
	"member":    domain.DimMember,
	"number":    domain.DimMember,
	"lead":      domain.DimLead,
	"leadtime":  domain.DimLead,
	"time":      domain.DimTime,
	"month":     domain.DimMonth,
	"lat":       domain.DimLat,
	"latitude":  domain.DimLat,
	"lon":       domain.DimLon,
	"longitude": domain.DimLon,
	"category":  domain.DimCategory,
}

// readField loads variable name of an open dataset with its coordinates.
// Fill values become NaN.
func readField(ds netcdf.Dataset, name string) (*domain.Field, error) {
	v, err := ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	ncDims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("variable %s dimensions: %w", name, err)
	}

	dims := make([]string, len(ncDims))
	fileDims := make([]string, len(ncDims))
	shape := make([]int, len(ncDims))
	for i, d := range ncDims {
		dn, err := d.Name()
		if err != nil {
			return nil, err
		}
		n, err := d.Len()
		if err != nil {
			return nil, err
		}
		alias, ok := dimAliases[strings.ToLower(dn)]
		if !ok {
			return nil, &domain.ShapeMismatchError{Op: "read " + name, Detail: fmt.Sprintf("unknown dimension %q", dn)}
		}
		dims[i], fileDims[i], shape[i] = alias, dn, int(n)
	}

	size := 1
	for _, n := range shape {
		size *= n
	}
	data, err := readFloat64s(v, size)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	if fv, ok := fillValue(v); ok {
		for i, x := range data {
			if x == fv {
				data[i] = math.NaN()
			}
		}
	}

	f, err := domain.FieldFromValues(name, dims, shape, data)
	if err != nil {
		return nil, err
	}
	for i, d := range dims {
		if err := readCoordinate(ds, f, d, fileDims[i], shape[i]); err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
	}
	return f, f.Validate()
}

// readCoordinate fills the field coordinate of dim from the variable of the
// same name, when the file has one.
func readCoordinate(ds netcdf.Dataset, f *domain.Field, dim, fileDim string, n int) error {
	cv, err := ds.Var(fileDim)
	if err != nil {
		return nil
	}
	vals, err := readFloat64s(cv, n)
	if err != nil {
		return fmt.Errorf("coordinate %s: %w", fileDim, err)
	}
	switch dim {
	case domain.DimLat:
		f.Lat = vals
	case domain.DimLon:
		f.Lon = vals
	case domain.DimLead:
		f.Lead = toInts(vals)
	case domain.DimMember:
		f.Member = toInts(vals)
	case domain.DimTime:
		months, err := decodeTime(vals, textAttr(cv, "units"))
		if err != nil {
			return fmt.Errorf("coordinate %s: %w", fileDim, err)
		}
		f.Time = months
	}
	return nil
}

// decodeTime converts a time coordinate to months. "months since" units
// are offsets from their base month; otherwise values are YYYYMM integers.
func decodeTime(vals []float64, units string) ([]domain.Month, error) {
	out := make([]domain.Month, len(vals))
	if rest, ok := strings.CutPrefix(strings.TrimSpace(units), "months since "); ok {
		base, err := parseBase(rest)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			out[i] = base.AddMonths(int(math.Round(v)))
		}
		return out, nil
	}
	for i, v := range vals {
		m, err := domain.MonthFromInt(int(math.Round(v)))
		if err != nil {
			return nil, fmt.Errorf("time value %v: %w", v, err)
		}
		out[i] = m
	}
	return out, nil
}

func parseBase(s string) (domain.Month, error) {
	var y, m int
	if _, err := fmt.Sscanf(s, "%d-%d", &y, &m); err != nil {
		return domain.Month{}, fmt.Errorf("time units base %q: %w", s, err)
	}
	return domain.Month{Year: y, Month: m}, nil
}

func readFloat64s(v netcdf.Var, n int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		out := make([]float64, n)
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
		return out, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.INT64:
		tmp := make([]int64, n)
		if err := v.ReadInt64s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

func widen[T float32 | int16 | int32 | int64](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func toInts(vals []float64) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(math.Round(v))
	}
	return out
}

// fillValue returns the _FillValue or missing_value attribute as float64.
func fillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if n, err := a.Len(); err != nil || n == 0 {
			continue
		}
		buf64 := make([]float64, 1)
		if err := a.ReadFloat64s(buf64); err == nil {
			return buf64[0], true
		}
		buf32 := make([]float32, 1)
		if err := a.ReadFloat32s(buf32); err == nil {
			return float64(buf32[0]), true
		}
	}
	return 0, false
}

func textAttr(v netcdf.Var, name string) string {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

// writeFields creates path holding every field plus coordinate variables
// for the dimensions they use. Fields sharing a dimension must agree on its
// length.
func writeFields(path string, fields ...*domain.Field) error {
	ncMu.Lock()
	defer ncMu.Unlock()

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := defineAndWrite(ds, fields); err != nil {
		_ = ds.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return ds.Close()
}

type coordWrite func() error

func defineAndWrite(ds netcdf.Dataset, fields []*domain.Field) error {
	dims := map[string]netcdf.Dim{}
	var pending []coordWrite

	for _, f := range fields {
		for i, d := range f.Dims() {
			n := f.Shape()[i]
			if have, ok := dims[d]; ok {
				l, err := have.Len()
				if err != nil {
					return err
				}
				if int(l) != n {
					return &domain.ShapeMismatchError{Op: "write " + f.Name, Detail: fmt.Sprintf("%s has %d entries, file has %d", d, n, l)}
				}
				continue
			}
			dim, err := ds.AddDim(d, uint64(n))
			if err != nil {
				return fmt.Errorf("dimension %s: %w", d, err)
			}
			dims[d] = dim
			w, err := defineCoordinate(ds, dim, d, f)
			if err != nil {
				return err
			}
			if w != nil {
				pending = append(pending, w)
			}
		}
	}

	vars := make([]netcdf.Var, len(fields))
	for i, f := range fields {
		fd := make([]netcdf.Dim, 0, len(f.Dims()))
		for _, d := range f.Dims() {
			fd = append(fd, dims[d])
		}
		v, err := ds.AddVar(f.Name, netcdf.DOUBLE, fd)
		if err != nil {
			return fmt.Errorf("variable %s: %w", f.Name, err)
		}
		vars[i] = v
	}

	if err := ds.EndDef(); err != nil {
		return err
	}
	for _, w := range pending {
		if err := w(); err != nil {
			return err
		}
	}
	for i, f := range fields {
		if err := vars[i].WriteFloat64s(f.Values()); err != nil {
			return fmt.Errorf("variable %s: %w", f.Name, err)
		}
	}
	return nil
}

// defineCoordinate adds the coordinate variable of dim and returns the
// deferred data write, or nil when the field has no coordinate for it.
func defineCoordinate(ds netcdf.Dataset, dim netcdf.Dim, name string, f *domain.Field) (coordWrite, error) {
	var ints []int32
	var floats []float64
	switch name {
	case domain.DimLat:
		floats = f.Lat
	case domain.DimLon:
		floats = f.Lon
	case domain.DimLead:
		ints = narrow(f.Lead)
	case domain.DimMember:
		ints = narrow(f.Member)
	case domain.DimTime:
		for _, m := range f.Time {
			ints = append(ints, int32(m.Since(timeEpoch)))
		}
	case domain.DimMonth:
		for m := 1; m <= f.Len(domain.DimMonth); m++ {
			ints = append(ints, int32(m))
		}
	case domain.DimCategory:
		for _, c := range domain.Categories {
			ints = append(ints, int32(c))
		}
	}

	dims := []netcdf.Dim{dim}
	switch {
	case len(floats) > 0:
		v, err := ds.AddVar(name, netcdf.DOUBLE, dims)
		if err != nil {
			return nil, fmt.Errorf("coordinate %s: %w", name, err)
		}
		return func() error { return v.WriteFloat64s(floats) }, nil
	case len(ints) > 0:
		v, err := ds.AddVar(name, netcdf.INT, dims)
		if err != nil {
			return nil, fmt.Errorf("coordinate %s: %w", name, err)
		}
		if name == domain.DimTime {
			if err := v.Attr("units").WriteBytes([]byte(timeUnits)); err != nil {
				return nil, err
			}
		}
		return func() error { return v.WriteInt32s(ints) }, nil
	}
	return nil, nil
}

func narrow(in []int) []int32 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
