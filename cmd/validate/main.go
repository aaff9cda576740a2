// Command validate checks an input archive before a verification run: every
// configured variable must have observations and a climatological threshold,
// and every forecast must sit on the observation grid and overlap the
// observed months. Problems are listed per phase; the exit code is non-zero
// when any phase fails.
//
// Usage:
//
//	FCST_DIR=data/forecast OBS_DIR=data/obs THRESHOLD_DIR=data/threshold \
//	  go run ./cmd/validate
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/fcst-verif-service/internal/adapter/archive"
	"github.com/couchcryptid/fcst-verif-service/internal/config"
	"github.com/couchcryptid/fcst-verif-service/internal/domain"
	"github.com/couchcryptid/fcst-verif-service/internal/pipeline"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	src := archive.NewStore(archive.Layout{
		FcstDir:      cfg.FcstDir,
		ObsDir:       cfg.ObsDir,
		ThresholdDir: cfg.ThresholdDir,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if code := run(context.Background(), os.Stdout, src, cfg.Verification); code != 0 {
		os.Exit(code)
	}
}

// variableInputs are the per-variable inputs shared by all inits.
type variableInputs struct {
	obs  map[domain.Basis]*domain.Field
	clim *domain.Threshold
}

func run(ctx context.Context, w io.Writer, src pipeline.Source, v config.Verification) int {
	fmt.Fprintln(w, "=== Verification Archive Validation ===")
	fmt.Fprintln(w)

	inputs := make(map[string]variableInputs)
	phases := []*phase{
		validateVariableInputs(ctx, src, v, inputs),
		validateForecasts(ctx, src, v, inputs),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() && len(p.warnings) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
		for _, s := range p.warnings {
			fmt.Fprintf(w, "  warning: %s\n", s)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// validateVariableInputs loads the observation series of every basis and
// the climatology of every variable and checks that all share one grid.
func validateVariableInputs(ctx context.Context, src pipeline.Source, v config.Verification, out map[string]variableInputs) *phase {
	p := &phase{name: "Observations and climatology"}
	for _, vr := range v.Variables {
		vi, ok := loadObservations(ctx, p, src, v, vr)
		if !ok {
			continue
		}
		obs := vi.obs[vr.Basis()]
		clim, err := src.LoadThreshold(ctx, vr, v.ClimatologyPeriod())
		if err != nil {
			p.errorf("%s climatology %s: %v", vr.Name, v.ClimatologyPeriod(), err)
			continue
		}
		if clim.ByLead() {
			p.errorf("%s climatology is indexed by lead, want month", vr.Name)
			continue
		}
		if !obs.SameGrid(clim.Lower) {
			p.errorf("%s observation and climatology grids differ", vr.Name)
			continue
		}
		vi.clim = clim
		out[vr.Name] = vi
	}
	return p
}

func loadObservations(ctx context.Context, p *phase, src pipeline.Source, v config.Verification, vr domain.Variable) (variableInputs, bool) {
	vi := variableInputs{obs: make(map[domain.Basis]*domain.Field)}
	var first *domain.Field
	for _, b := range vr.Bases() {
		obs, err := src.LoadObservations(ctx, vr, v.ObservationYears(), b)
		if err != nil {
			p.errorf("%s %s observations: %v", vr.Name, b, err)
			return vi, false
		}
		if first != nil && !obs.SameGrid(first) {
			p.errorf("%s %s observation grid differs from anomalies", vr.Name, b)
			return vi, false
		}
		if n := len(obs.Time); n < 12*len(v.ObservationYears()) {
			p.warnf("%s %s has %d observed months for %d years", vr.Name, b, n, len(v.ObservationYears()))
		}
		first = obs
		vi.obs[b] = obs
	}
	return vi, true
}

// validateForecasts checks each init's ensembles: grid, lead coverage and
// any per-init threshold. A missing forecast is a warning; the run skips it.
func validateForecasts(ctx context.Context, src pipeline.Source, v config.Verification, in map[string]variableInputs) *phase {
	p := &phase{name: "Forecast ensembles"}
	for _, vr := range v.Variables {
		vi, ok := in[vr.Name]
		if !ok {
			continue
		}
		missing := 0
		for _, init := range v.InitMonths() {
			unit := vr.Name + " " + init.YYYYMM()
			var fcst *domain.Field
			absent := false
			for _, b := range vr.Bases() {
				f, err := src.LoadForecast(ctx, vr, init, b)
				if errors.Is(err, domain.ErrMissingInput) {
					absent = true
					break
				}
				if err != nil {
					p.errorf("%s %s: %v", unit, b, err)
					fcst = nil
					break
				}
				if !checkForecast(p, unit, b, init, f, vi.obs[b]) {
					fcst = nil
					break
				}
				fcst = f
			}
			if absent {
				missing++
				continue
			}
			if fcst == nil {
				continue
			}

			thr, err := src.LoadThreshold(ctx, vr, init.YYYYMM())
			switch {
			case errors.Is(err, domain.ErrMissingInput):
			case err != nil:
				p.errorf("%s per-init threshold: %v", unit, err)
			case !thr.Lower.SameGrid(fcst):
				p.errorf("%s per-init threshold grid differs from forecast", unit)
			}
		}
		if missing > 0 {
			p.warnf("%s: %d of %d init months have no forecast", vr.Name, missing, len(v.InitMonths()))
		}
	}
	return p
}

// checkForecast compares one forecast with the observations of its basis.
func checkForecast(p *phase, unit string, b domain.Basis, init domain.Month, f, obs *domain.Field) bool {
	if !f.SameGrid(obs) {
		p.errorf("%s: %s forecast grid differs from observations", unit, b)
		return false
	}
	a := domain.Align(domain.ValidTimes(init, f.Lead), obs.Time)
	if a.Empty() {
		p.errorf("%s: no lead has an observed month", unit)
		return false
	}
	if a.Gap() != nil {
		p.warnf("%s %s: %v", unit, b, a.Gap())
	}
	return true
}
