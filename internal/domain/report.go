package domain

import (
	"time"
)

// Report is the verification result of one (variable, init) unit.
type Report struct {
	Variable    string
	Init        Month
	GeneratedAt time.Time
	Alignment   Alignment

	// RPSS is the region-independent skill grid (time, lat, lon).
	RPSS *Field
	// Mode is the most probable forecast category (time, lat, lon).
	Mode *Field
	// ObservedCounts tallies observed BN, NN, AN labels over the aligned months.
	ObservedCounts [3]int

	Regions []RegionReport
	Indices []*IndexPlume
}

// RegionReport holds every regional statistic of a unit. Err is set when
// the region was skipped as a whole.
type RegionReport struct {
	Region        Region
	Deterministic *DeterministicScores
	Categorical   []CategoricalRow
	ROC           []ROCResult
	RPSSMean      []float64 // by aligned lead
	Series        *RegionSeries
	Skips         []error
	Err           error
}

// NewReport starts a report stamped with the package clock.
func NewReport(variable string, init Month, a Alignment) *Report {
	return &Report{
		Variable:    variable,
		Init:        init,
		GeneratedAt: clock.Now().UTC(),
		Alignment:   a,
	}
}

// Leads returns the matched forecast leads of the unit.
func (r *Report) Leads() []int {
	leads := make([]int, len(r.Alignment.Common))
	for i, m := range r.Alignment.Common {
		leads[i] = m.Since(r.Init)
	}
	return leads
}

// Records flattens every scalar score of the report.
func (r *Report) Records() []ScoreRecord {
	var out []ScoreRecord
	add := func(metric, region string, target Month, member *int, category string, v float64) {
		rec := NewScoreRecord(metric, r.Variable, region, r.Init, target, target.Since(r.Init), member, category, v)
		rec.GeneratedAt = r.GeneratedAt
		out = append(out, rec)
	}

	for _, rr := range r.Regions {
		if rr.Err != nil {
			continue
		}
		name := rr.Region.Name
		if d := rr.Deterministic; d != nil {
			for t, target := range d.Times {
				for m := range d.ACC {
					member := d.Members[m]
					add(MetricACC, name, target, &member, "", d.ACC[m][t])
					add(MetricRMSE, name, target, &member, "", d.RMSE[m][t])
					add(MetricBias, name, target, &member, "", d.Bias[m][t])
				}
				add(MetricACCMean, name, target, nil, "", d.ACCMean[t])
				add(MetricRMSEMean, name, target, nil, "", d.RMSEMean[t])
				add(MetricBiasMean, name, target, nil, "", d.BiasMean[t])
			}
		}
		for _, row := range rr.Categorical {
			add(MetricHitRate, name, row.Target, nil, "", row.HitRate)
			add(MetricHSS, name, row.Target, nil, "", row.HSS)
		}
		for _, roc := range rr.ROC {
			add(MetricAUC, name, roc.Target, nil, roc.Category.String(), roc.AUC)
		}
		for t, v := range rr.RPSSMean {
			if t < len(r.Alignment.Common) {
				add(MetricRPSS, name, r.Alignment.Common[t], nil, "", v)
			}
		}
	}
	return out
}
