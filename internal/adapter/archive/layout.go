// Package archive reads forecast, observation and threshold NetCDF files
// and writes verification outputs to a directory tree.
package archive

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

// Layout locates the archive directories.
type Layout struct {
	FcstDir      string
	ObsDir       string
	ThresholdDir string
	OutputDir    string
}

// ForecastPath is the ensemble file of an init month. Anomaly files carry
// an "_anom" infix; totals have none.
func (l Layout) ForecastPath(v domain.Variable, init domain.Month, basis domain.Basis) string {
	if basis == domain.Anomaly {
		return filepath.Join(l.FcstDir, fmt.Sprintf("ensMem_%s_anom_%s.nc", v.Name, init.YYYYMM()))
	}
	return filepath.Join(l.FcstDir, fmt.Sprintf("ensMem_%s_%s.nc", v.Name, init.YYYYMM()))
}

// ObservationPath is the yearly observation file of one basis.
func (l Layout) ObservationPath(v domain.Variable, year int, basis domain.Basis) string {
	return filepath.Join(l.ObsDir, fmt.Sprintf("%s_%s_%04d.nc", v.Name, basis, year))
}

// ThresholdPath is the threshold file of a climatology period ("1991_2020")
// or of one init month ("202403").
func (l Layout) ThresholdPath(v domain.Variable, period string) string {
	if isInitKey(period) {
		return filepath.Join(l.ThresholdDir, fmt.Sprintf("%s_thresh_%s.nc", v.Name, period))
	}
	if v.Threshold == domain.EmpiricalQuantile {
		return filepath.Join(l.ThresholdDir, fmt.Sprintf("%s_tercile_%s.nc", v.Name, period))
	}
	return filepath.Join(l.ThresholdDir, fmt.Sprintf("%s_std_%s.nc", v.Name, period))
}

// RegionDir holds the per-region outputs of a variable.
func (l Layout) RegionDir(region, variable string) string {
	return filepath.Join(l.OutputDir, region, variable)
}

// DeterministicPath is the NetCDF deterministic score file.
func (l Layout) DeterministicPath(region, variable string, init domain.Month) string {
	return filepath.Join(l.RegionDir(region, variable), fmt.Sprintf("ensScore_det_%s_%s.nc", variable, init.YYYYMM()))
}

// TablePath is a per-region CSV output; kind is cate, auc, roc or series.
func (l Layout) TablePath(kind, region, variable string, init domain.Month) string {
	return filepath.Join(l.RegionDir(region, variable), fmt.Sprintf("%s_%s_%s.csv", kind, variable, init.YYYYMM()))
}

// TargetSummaryPath is the categorical table aggregated over inits by
// target month.
func (l Layout) TargetSummaryPath(region, variable string) string {
	return filepath.Join(l.RegionDir(region, variable), fmt.Sprintf("cate_target_%s.csv", variable))
}

// RPSSPath is the region independent RPSS grid.
func (l Layout) RPSSPath(variable string, init domain.Month) string {
	return filepath.Join(l.OutputDir, "rpss", fmt.Sprintf("rpss_%s_%s.nc", variable, init.YYYYMM()))
}

// IndexPath is the plume CSV of a climate index.
func (l Layout) IndexPath(index, variable string, init domain.Month) string {
	return filepath.Join(l.OutputDir, "index", variable, fmt.Sprintf("%s_%s.csv", index, init.YYYYMM()))
}

func isInitKey(period string) bool {
	if len(period) != 6 {
		return false
	}
	_, err := strconv.Atoi(period)
	return err == nil
}
