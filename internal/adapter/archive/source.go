package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
	"github.com/couchcryptid/fcst-verif-service/internal/pipeline"
)

// Store reads verification inputs from NetCDF files.
// It implements pipeline.Source.
type Store struct {
	layout Layout
	logger *slog.Logger
}

var _ pipeline.Source = (*Store)(nil)

// NewStore creates a Store over the given directories.
func NewStore(layout Layout, logger *slog.Logger) *Store {
	return &Store{layout: layout, logger: logger}
}

// LoadForecast reads variable v (ens, lead, lat, lon) of the init month's
// ensemble file for one basis. Missing member or lead coordinates default
// to 1..n.
func (s *Store) LoadForecast(_ context.Context, v domain.Variable, init domain.Month, basis domain.Basis) (*domain.Field, error) {
	path := s.layout.ForecastPath(v, init, basis)
	var f *domain.Field
	err := withDataset(path, "forecast", v.Name, init.YYYYMM(), func(ds netcdf.Dataset) error {
		var err error
		f, err = readField(ds, v.Name)
		return err
	})
	if err != nil {
		return nil, err
	}
	want := []string{domain.DimMember, domain.DimLead, domain.DimLat, domain.DimLon}
	if !slices.Equal(f.Dims(), want) {
		return nil, &domain.ShapeMismatchError{Op: "forecast " + path, Detail: fmt.Sprintf("want %v, have %v", want, f.Dims())}
	}
	if len(f.Member) == 0 {
		f.Member = sequence(f.Len(domain.DimMember))
	}
	if len(f.Lead) == 0 {
		f.Lead = sequence(f.Len(domain.DimLead))
	}
	return f, nil
}

// LoadObservations concatenates the yearly files along time. Missing years
// are logged and skipped; if none exist the result is a MissingInputError.
// Every year must share one grid.
func (s *Store) LoadObservations(ctx context.Context, v domain.Variable, years []int, basis domain.Basis) (*domain.Field, error) {
	var parts []*domain.Field
	var missing []int
	for _, y := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.layout.ObservationPath(v, y, basis)
		var f *domain.Field
		err := withDataset(path, "observation", v.Name, fmt.Sprint(y), func(ds netcdf.Dataset) error {
			var err error
			f, err = readField(ds, v.Name)
			return err
		})
		if errors.Is(err, domain.ErrMissingInput) {
			missing = append(missing, y)
			continue
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	if len(parts) == 0 {
		return nil, &domain.MissingInputError{Kind: "observation", Variable: v.Name, Key: fmt.Sprint(years), Path: s.layout.ObsDir}
	}
	if len(missing) > 0 {
		s.logger.Warn("observation years missing", "variable", v.Name, "basis", string(basis), "years", missing)
	}
	return concatTime(v.Name, parts)
}

// LoadThreshold reads a climatological threshold (period "c0_c1") or a
// per-init threshold (period "YYYYMM"). Climatological sigma files hold the
// standard deviation as {var}; quantile and per-init files hold
// {var}_lower and {var}_upper.
func (s *Store) LoadThreshold(_ context.Context, v domain.Variable, period string) (*domain.Threshold, error) {
	path := s.layout.ThresholdPath(v, period)
	var thr *domain.Threshold
	err := withDataset(path, "threshold", v.Name, period, func(ds netcdf.Dataset) error {
		if !isInitKey(period) && v.Threshold == domain.Sigma {
			std, err := readField(ds, v.Name)
			if err != nil {
				return err
			}
			thr, err = domain.NewSigmaThreshold(std)
			return err
		}
		lower, err := readField(ds, v.Name+"_lower")
		if err != nil {
			return err
		}
		upper, err := readField(ds, v.Name+"_upper")
		if err != nil {
			return err
		}
		thr = &domain.Threshold{Kind: v.Threshold, Lower: lower, Upper: upper}
		return thr.Validate()
	})
	if err != nil {
		return nil, err
	}
	return thr, nil
}

// withDataset opens path read-only under the library lock. An absent file
// is reported as a MissingInputError.
func withDataset(path, kind, variable, key string, fn func(netcdf.Dataset) error) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.MissingInputError{Kind: kind, Variable: variable, Key: key, Path: path, Err: err}
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	ncMu.Lock()
	defer ncMu.Unlock()

	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	if err := fn(ds); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// concatTime joins (time, lat, lon) fields in order.
func concatTime(name string, parts []*domain.Field) (*domain.Field, error) {
	first := parts[0]
	want := []string{domain.DimTime, domain.DimLat, domain.DimLon}
	var times []domain.Month
	var vals []float64
	for _, p := range parts {
		if !slices.Equal(p.Dims(), want) {
			return nil, &domain.ShapeMismatchError{Op: "observations " + name, Detail: fmt.Sprintf("want %v, have %v", want, p.Dims())}
		}
		if !p.SameGrid(first) {
			return nil, &domain.ShapeMismatchError{Op: "observations " + name, Detail: "yearly files differ in grid"}
		}
		if len(p.Time) != p.Len(domain.DimTime) {
			return nil, &domain.ShapeMismatchError{Op: "observations " + name, Detail: "time coordinate missing"}
		}
		times = append(times, p.Time...)
		vals = append(vals, p.Values()...)
	}
	out, err := domain.FieldFromValues(name, want, []int{len(times), first.Len(domain.DimLat), first.Len(domain.DimLon)}, vals)
	if err != nil {
		return nil, err
	}
	out.Time = times
	out.Lat, out.Lon = first.Lat, first.Lon
	return out, nil
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
