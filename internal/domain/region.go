package domain

import "fmt"

// Region is a named lon/lat bounding box. Bounds are inclusive. Longitudes
// may be given on either the 0..360 or -180..180 convention.
type Region struct {
	Name   string  `yaml:"name" json:"name"`
	LonMin float64 `yaml:"lon_min" json:"lon_min"`
	LonMax float64 `yaml:"lon_max" json:"lon_max"`
	LatMin float64 `yaml:"lat_min" json:"lat_min"`
	LatMax float64 `yaml:"lat_max" json:"lat_max"`
}

// Validate rejects inverted boxes.
func (r Region) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("region: empty name")
	}
	if r.LatMin > r.LatMax {
		return fmt.Errorf("region %s: lat_min %.2f > lat_max %.2f", r.Name, r.LatMin, r.LatMax)
	}
	if r.LonMin > r.LonMax {
		return fmt.Errorf("region %s: lon_min %.2f > lon_max %.2f", r.Name, r.LonMin, r.LonMax)
	}
	return nil
}

// ContainsLat reports whether lat lies within the box.
func (r Region) ContainsLat(lat float64) bool {
	return lat >= r.LatMin && lat <= r.LatMax
}

// ContainsLon reports whether lon lies within the box on either longitude
// convention.
func (r Region) ContainsLon(lon float64) bool {
	for _, l := range [...]float64{lon, lon + 360, lon - 360} {
		if l >= r.LonMin && l <= r.LonMax {
			return true
		}
	}
	return false
}

// Global covers the whole sphere.
var Global = Region{Name: "GL", LonMin: 0, LonMax: 360, LatMin: -90, LatMax: 90}

// DefaultRegions is used when no region table is configured.
var DefaultRegions = RegionTable{
	Global,
	{Name: "EA", LonMin: 100, LonMax: 160, LatMin: 10, LatMax: 55},
}

// RegionTable is an ordered list of named regions.
type RegionTable []Region

// Lookup finds a region by name.
func (t RegionTable) Lookup(name string) (Region, error) {
	for _, r := range t {
		if r.Name == name {
			return r, nil
		}
	}
	return Region{}, fmt.Errorf("%w: %s", ErrUnknownRegion, name)
}

// Names lists region names in table order.
func (t RegionTable) Names() []string {
	out := make([]string, len(t))
	for i, r := range t {
		out[i] = r.Name
	}
	return out
}

// Subset keeps only the named regions, in the order given.
func (t RegionTable) Subset(names []string) (RegionTable, error) {
	out := make(RegionTable, 0, len(names))
	for _, n := range names {
		r, err := t.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Validate checks every region and rejects duplicate names.
func (t RegionTable) Validate() error {
	seen := make(map[string]bool, len(t))
	for _, r := range t {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.Name] {
			return fmt.Errorf("region %s: duplicate name", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// Clip keeps grid points inside the region. The result may have zero-length
// lat or lon axes.
func Clip(f *Field, r Region) (*Field, error) {
	if !f.Has(DimLat) || !f.Has(DimLon) {
		return nil, &ShapeMismatchError{Op: "clip " + f.Name, Detail: fmt.Sprintf("need lat and lon, have %v", f.dims)}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var lat, lon []int
	for i, v := range f.Lat {
		if r.ContainsLat(v) {
			lat = append(lat, i)
		}
	}
	for i, v := range f.Lon {
		if r.ContainsLon(v) {
			lon = append(lon, i)
		}
	}
	out, err := f.Take(DimLat, lat)
	if err != nil {
		return nil, err
	}
	return out.Take(DimLon, lon)
}

// RegionMean clips f to r and averages over lat and lon without area
// weighting. A region holding no grid points yields NaN.
func RegionMean(f *Field, r Region) (*Field, error) {
	c, err := Clip(f, r)
	if err != nil {
		return nil, err
	}
	return c.Mean(DimLat, DimLon)
}

