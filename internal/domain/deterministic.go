package domain

import (
	"math"
	"slices"
)

// ACCEpsilon keeps the anomaly correlation finite for spatially uniform fields.
const ACCEpsilon = 1e-12

// DeterministicScores holds region-reduced ACC, RMSE and bias for one
// (variable, region, init). Per-member arrays are indexed [member][lead
// position]; Leads and Times give the matched leads and their valid months.
type DeterministicScores struct {
	Variable string
	Region   string
	Init     Month
	Leads    []int
	Times    []Month
	Members  []int

	ACC  [][]float64
	RMSE [][]float64
	Bias [][]float64

	// ACCMean is the correlation of the ensemble-mean field. RMSEMean and
	// BiasMean average the per-member scores.
	ACCMean  []float64
	RMSEMean []float64
	BiasMean []float64
}

// Bias is the region mean of fcst - obs over lat and lon.
func Bias(fcst, obs *Field) (*Field, error) {
	diff, err := Combine(fcst, obs, Sub)
	if err != nil {
		return nil, err
	}
	return diff.Mean(DimLat, DimLon)
}

// RMSE is the square root of the region mean squared error.
func RMSE(fcst, obs *Field) (*Field, error) {
	diff, err := Combine(fcst, obs, Sub)
	if err != nil {
		return nil, err
	}
	mse, err := diff.Apply(square).Mean(DimLat, DimLon)
	if err != nil {
		return nil, err
	}
	return mse.Apply(math.Sqrt), nil
}

// ACC is the centred anomaly correlation over lat and lon. Both fields are
// first masked to the cells where both are valid; deviations are then taken
// from each field's own region mean. ACCEpsilon guards the denominator.
func ACC(fcst, obs *Field) (*Field, error) {
	fm, err := Combine(fcst, obs, maskedBy)
	if err != nil {
		return nil, err
	}
	om, err := Combine(fcst, obs, func(x, y float64) float64 { return maskedBy(y, x) })
	if err != nil {
		return nil, err
	}
	fa, err := deviation(fm)
	if err != nil {
		return nil, err
	}
	oa, err := deviation(om)
	if err != nil {
		return nil, err
	}

	cross, err := Combine(fa, oa, Mul)
	if err != nil {
		return nil, err
	}
	num, err := cross.Mean(DimLat, DimLon)
	if err != nil {
		return nil, err
	}
	fv, err := fa.Apply(square).Mean(DimLat, DimLon)
	if err != nil {
		return nil, err
	}
	ov, err := oa.Apply(square).Mean(DimLat, DimLon)
	if err != nil {
		return nil, err
	}
	denom, err := Combine(fv.Apply(math.Sqrt), ov.Apply(math.Sqrt), Mul)
	if err != nil {
		return nil, err
	}
	denom = denom.Apply(func(v float64) float64 { return v + ACCEpsilon })
	return Combine(num, denom, Div)
}

func deviation(f *Field) (*Field, error) {
	m, err := f.Mean(DimLat, DimLon)
	if err != nil {
		return nil, err
	}
	return Combine(f, m, Sub)
}

func square(v float64) float64 { return v * v }

// maskedBy returns x, or NaN where y is missing.
func maskedBy(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	return x
}

// ScoreDeterministic clips an aligned forecast ensemble (ens, time, lat, lon)
// and observations (time, lat, lon) to the region and computes every
// deterministic score.
func ScoreDeterministic(variable string, init Month, region Region, fcst, obs *Field) (*DeterministicScores, error) {
	fc, err := Clip(fcst, region)
	if err != nil {
		return nil, err
	}
	oc, err := Clip(obs, region)
	if err != nil {
		return nil, err
	}

	acc, err := ACC(fc, oc)
	if err != nil {
		return nil, err
	}
	rmse, err := RMSE(fc, oc)
	if err != nil {
		return nil, err
	}
	bias, err := Bias(fc, oc)
	if err != nil {
		return nil, err
	}
	ensMean, err := fc.Mean(DimMember)
	if err != nil {
		return nil, err
	}
	accMean, err := ACC(ensMean, oc)
	if err != nil {
		return nil, err
	}
	rmseMean, err := rmse.Mean(DimMember)
	if err != nil {
		return nil, err
	}
	biasMean, err := bias.Mean(DimMember)
	if err != nil {
		return nil, err
	}

	s := &DeterministicScores{
		Variable: variable,
		Region:   region.Name,
		Init:     init,
		Leads:    slices.Clone(fcst.Lead),
		Times:    slices.Clone(fcst.Time),
		Members:  slices.Clone(fcst.Member),
	}
	if s.ACC, err = matrix(acc, DimMember, DimTime); err != nil {
		return nil, err
	}
	if s.RMSE, err = matrix(rmse, DimMember, DimTime); err != nil {
		return nil, err
	}
	if s.Bias, err = matrix(bias, DimMember, DimTime); err != nil {
		return nil, err
	}
	if s.ACCMean, err = vector(accMean, DimTime); err != nil {
		return nil, err
	}
	if s.RMSEMean, err = vector(rmseMean, DimTime); err != nil {
		return nil, err
	}
	if s.BiasMean, err = vector(biasMean, DimTime); err != nil {
		return nil, err
	}
	if len(s.Members) == 0 {
		for i := range s.ACC {
			s.Members = append(s.Members, i+1)
		}
	}
	return s, nil
}
