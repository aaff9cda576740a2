package domain

import "slices"

// Boxes for the sea surface temperature indices.
var (
	Nino34Box  = Region{Name: "NINO34", LonMin: 190, LonMax: 240, LatMin: -5, LatMax: 5}
	IODWestBox = Region{Name: "IOD_W", LonMin: 50, LonMax: 70, LatMin: -10, LatMax: 10}
	IODEastBox = Region{Name: "IOD_E", LonMin: 90, LonMax: 110, LatMin: -10, LatMax: 0}
)

// Nino34 is the Nino3.4 box mean of f.
func Nino34(f *Field) (*Field, error) {
	return RegionMean(f, Nino34Box)
}

// IOD is the dipole mode index: western box mean minus eastern box mean.
func IOD(f *Field) (*Field, error) {
	west, err := RegionMean(f, IODWestBox)
	if err != nil {
		return nil, err
	}
	east, err := RegionMean(f, IODEastBox)
	if err != nil {
		return nil, err
	}
	return Combine(west, east, Sub)
}

// IndexPlume is an index trajectory for one initialization: every member,
// the ensemble mean and the matching observations, by valid month.
type IndexPlume struct {
	Index        string
	Init         Month
	Times        []Month
	Members      [][]float64 // [member][time]
	EnsembleMean []float64
	Observed     []float64
}

// ComputePlume reduces an aligned forecast ensemble (ens, time, lat, lon) and
// observations (time, lat, lon) with the given index function.
func ComputePlume(name string, init Month, fcst, obs *Field, index func(*Field) (*Field, error)) (*IndexPlume, error) {
	fi, err := index(fcst)
	if err != nil {
		return nil, err
	}
	oi, err := index(obs)
	if err != nil {
		return nil, err
	}
	mean, err := fi.Mean(DimMember)
	if err != nil {
		return nil, err
	}

	p := &IndexPlume{Index: name, Init: init, Times: slices.Clone(fcst.Time)}
	if p.Members, err = matrix(fi, DimMember, DimTime); err != nil {
		return nil, err
	}
	if p.EnsembleMean, err = vector(mean, DimTime); err != nil {
		return nil, err
	}
	if p.Observed, err = vector(oi, DimTime); err != nil {
		return nil, err
	}
	return p, nil
}

// RegionSeries is the region-mean forecast (ensemble mean) and observation
// by valid month.
type RegionSeries struct {
	Region   string
	Times    []Month
	Forecast []float64
	Observed []float64
}

// ComputeRegionSeries reduces aligned forecast and observations to region
// means.
func ComputeRegionSeries(region Region, fcst, obs *Field) (*RegionSeries, error) {
	mean, err := fcst.Mean(DimMember)
	if err != nil {
		return nil, err
	}
	fm, err := RegionMean(mean, region)
	if err != nil {
		return nil, err
	}
	om, err := RegionMean(obs, region)
	if err != nil {
		return nil, err
	}
	s := &RegionSeries{Region: region.Name, Times: slices.Clone(fcst.Time)}
	if s.Forecast, err = vector(fm, DimTime); err != nil {
		return nil, err
	}
	if s.Observed, err = vector(om, DimTime); err != nil {
		return nil, err
	}
	return s, nil
}
