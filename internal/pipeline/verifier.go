package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

// SkillVerifier implements Verifier with the domain scoring functions,
// evaluating every region of its table for each unit.
type SkillVerifier struct {
	regions domain.RegionTable
	logger  *slog.Logger
}

// NewVerifier creates a SkillVerifier over the given regions.
func NewVerifier(regions domain.RegionTable, logger *slog.Logger) *SkillVerifier {
	return &SkillVerifier{regions: regions, logger: logger}
}

var indexFuncs = []struct {
	name string
	fn   func(*domain.Field) (*domain.Field, error)
}{
	{"nino34", domain.Nino34},
	{"iod", domain.IOD},
}

// Verify aligns the forecast with the observations and computes every score
// of the unit. An empty time intersection returns a TimeCoverageGapError.
// Categories use the threshold basis; every other score uses anomalies.
func (v *SkillVerifier) Verify(ctx context.Context, u Unit, in Inputs) (*domain.Report, error) {
	catFcst, catObs := in.categoryFields()
	a, cf, co, err := alignInputs(u.Init, catFcst, catObs)
	if err != nil {
		return nil, err
	}
	fcst, obs := cf, co
	if catFcst != in.Forecast {
		if _, fcst, obs, err = alignInputs(u.Init, in.Forecast, in.Observations); err != nil {
			return nil, fmt.Errorf("anomalies: %w", err)
		}
	}

	obsCat, err := domain.Categorize(co, in.Climatology)
	if err != nil {
		return nil, fmt.Errorf("categorize observations: %w", err)
	}
	fcstCat, err := domain.CategorizeEnsembleMean(cf, in.ForecastThreshold)
	if err != nil {
		return nil, fmt.Errorf("categorize forecast: %w", err)
	}
	prob, err := domain.Probabilities(cf, in.ForecastThreshold)
	if err != nil {
		return nil, fmt.Errorf("forecast probabilities: %w", err)
	}
	mode, err := domain.MostProbable(prob)
	if err != nil {
		return nil, err
	}
	mode.Name = u.Variable.Name + "_fcst_mode"
	obsOHE, err := domain.OneHot(obsCat, len(obsCat.Dims()))
	if err != nil {
		return nil, err
	}
	rpss, err := domain.RPSS(prob, obsOHE)
	if err != nil {
		return nil, err
	}

	r := domain.NewReport(u.Variable.Name, u.Init, a)
	r.RPSS = rpss
	r.Mode = mode
	r.ObservedCounts = domain.CountCategories(obsCat)

	for _, region := range v.regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.Regions = append(r.Regions, verifyRegion(u, region, regionInputs{
			fcst: fcst, obs: obs, obsCat: obsCat, fcstCat: fcstCat, prob: prob, obsOHE: obsOHE, rpss: rpss,
		}))
	}

	if u.Variable.Indices {
		for _, idx := range indexFuncs {
			plume, err := domain.ComputePlume(idx.name, u.Init, fcst, obs, idx.fn)
			if err != nil {
				v.logger.Warn("index skipped",
					"variable", u.Variable.Name, "init", u.Init.YYYYMM(), "index", idx.name, "error", err)
				continue
			}
			r.Indices = append(r.Indices, plume)
		}
	}
	return r, nil
}

func alignInputs(init domain.Month, fcst, obs *domain.Field) (domain.Alignment, *domain.Field, *domain.Field, error) {
	a := domain.Align(domain.ValidTimes(init, fcst.Lead), obs.Time)
	if a.Empty() {
		return a, nil, nil, fmt.Errorf("no observed month for any lead: %w", &domain.TimeCoverageGapError{Missing: a.Missing})
	}
	f, o, err := domain.AlignPair(fcst, obs, init, a)
	return a, f, o, err
}

type regionInputs struct {
	fcst, obs       *domain.Field
	obsCat, fcstCat *domain.Field
	prob, obsOHE    *domain.Field
	rpss            *domain.Field
}

func verifyRegion(u Unit, region domain.Region, in regionInputs) domain.RegionReport {
	rr := domain.RegionReport{Region: region}
	fail := func(what string, err error) domain.RegionReport {
		rr.Err = fmt.Errorf("%s %s: %w", region.Name, what, err)
		return rr
	}

	var err error
	if rr.Deterministic, err = domain.ScoreDeterministic(u.Variable.Name, u.Init, region, in.fcst, in.obs); err != nil {
		return fail("deterministic", err)
	}
	if rr.Categorical, err = domain.VerifyCategories(region, in.obsCat, in.fcstCat); err != nil {
		return fail("categorical", err)
	}
	if rr.ROC, rr.Skips, err = domain.ROCByLeadCategory(region, in.prob, in.obsOHE); err != nil {
		return fail("roc", err)
	}
	mean, err := domain.RegionMean(in.rpss, region)
	if err != nil {
		return fail("rpss", err)
	}
	rr.RPSSMean = append([]float64(nil), mean.Values()...)
	if rr.Series, err = domain.ComputeRegionSeries(region, in.fcst, in.obs); err != nil {
		return fail("series", err)
	}
	return rr
}
