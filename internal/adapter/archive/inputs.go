package archive

import (
	"fmt"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

// WriteForecast stores an (ens, lead, lat, lon) ensemble where LoadForecast
// expects it.
func (l Layout) WriteForecast(v domain.Variable, init domain.Month, basis domain.Basis, f *domain.Field) error {
	return writeNetCDF(l.ForecastPath(v, init, basis), named(f, v.Name))
}

// WriteObservations stores one year of (time, lat, lon) observations.
func (l Layout) WriteObservations(v domain.Variable, year int, basis domain.Basis, f *domain.Field) error {
	for _, m := range f.Time {
		if m.Year != year {
			return fmt.Errorf("observation month %s outside year %d", m.YYYYMM(), year)
		}
	}
	return writeNetCDF(l.ObservationPath(v, year, basis), named(f, v.Name))
}

// WriteThreshold stores a threshold for a climatology period or an init
// month. Sigma climatologies are stored as their standard deviation.
func (l Layout) WriteThreshold(v domain.Variable, period string, t *domain.Threshold) error {
	if err := t.Validate(); err != nil {
		return err
	}
	path := l.ThresholdPath(v, period)
	if !isInitKey(period) && v.Threshold == domain.Sigma {
		std := t.Upper.Apply(func(x float64) float64 { return x / domain.SigmaScale })
		return writeNetCDF(path, named(std, v.Name))
	}
	return writeNetCDF(path, named(t.Lower, v.Name+"_lower"), named(t.Upper, v.Name+"_upper"))
}

func named(f *domain.Field, name string) *domain.Field {
	c := f.Clone()
	c.Name = name
	return c
}
