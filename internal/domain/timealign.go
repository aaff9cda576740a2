package domain

import "slices"

// ValidTimes maps each lead (months) to the valid month init + lead.
func ValidTimes(init Month, leads []int) []Month {
	out := make([]Month, len(leads))
	for i, l := range leads {
		out[i] = init.AddMonths(l)
	}
	return out
}

// Alignment pairs forecast lead positions with observation time positions.
// LeadIndex[i] and ObsIndex[i] refer to the same valid month Common[i].
type Alignment struct {
	LeadIndex []int
	ObsIndex  []int
	Common    []Month
	Missing   []Month
}

// Align intersects forecast valid times with the observation time axis at
// (year, month) equality. The forecast order is preserved.
func Align(valid, obs []Month) Alignment {
	pos := make(map[Month]int, len(obs))
	for i, m := range obs {
		if _, dup := pos[m]; !dup {
			pos[m] = i
		}
	}
	var a Alignment
	for i, m := range valid {
		j, ok := pos[m]
		if !ok {
			a.Missing = append(a.Missing, m)
			continue
		}
		a.LeadIndex = append(a.LeadIndex, i)
		a.ObsIndex = append(a.ObsIndex, j)
		a.Common = append(a.Common, m)
	}
	return a
}

// Empty reports whether no valid time matched.
func (a Alignment) Empty() bool { return len(a.Common) == 0 }

// Gap returns the informational gap error, or nil when coverage is complete.
func (a Alignment) Gap() error {
	if len(a.Missing) == 0 {
		return nil
	}
	return &TimeCoverageGapError{Missing: slices.Clone(a.Missing)}
}

// ToValidTime relabels a forecast's lead axis as valid time for the given
// init month. The lead values stay available in Field.Lead.
func ToValidTime(f *Field, init Month) (*Field, error) {
	out, err := f.Rename(DimLead, DimTime)
	if err != nil {
		return nil, err
	}
	out.Time = ValidTimes(init, f.Lead)
	out.Lead = slices.Clone(f.Lead)
	return out, nil
}

// AlignPair cuts forecast (lead axis) and observations (time axis) down to
// the matched valid months. The returned forecast has a time axis equal to
// the observations' so the two can be combined.
func AlignPair(fcst, obs *Field, init Month, a Alignment) (*Field, *Field, error) {
	f, err := fcst.Take(DimLead, a.LeadIndex)
	if err != nil {
		return nil, nil, err
	}
	f, err = ToValidTime(f, init)
	if err != nil {
		return nil, nil, err
	}
	o, err := obs.Take(DimTime, a.ObsIndex)
	if err != nil {
		return nil, nil, err
	}
	return f, o, nil
}
