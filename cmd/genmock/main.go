// Command genmock writes a small synthetic NetCDF archive: ensemble
// forecasts, yearly observations and climatological thresholds for every
// configured variable. The data is reproducible for a given seed and has
// moderate skill, so every score of a verification run is populated.
//
// Usage:
//
//	go run ./cmd/genmock -out data -members 10 -leads 6
//
// The generated layout matches FCST_DIR=data/forecast, OBS_DIR=data/obs and
// THRESHOLD_DIR=data/threshold.
package main

import (
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"math/rand/v2"
	"path/filepath"

	"github.com/couchcryptid/fcst-verif-service/internal/adapter/archive"
	"github.com/couchcryptid/fcst-verif-service/internal/config"
	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

// Nino3.4 and both IOD boxes fall inside this grid.
var (
	lats = axis(-20, 50, 5)
	lons = axis(40, 250, 10)
)

type params struct {
	members int
	leads   int
	skill   float64
	seed    uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "root directory of the generated archive")
	verifPath := flag.String("config", "", "verification YAML (default: built-in verification)")
	members := flag.Int("members", 10, "ensemble members")
	leads := flag.Int("leads", 6, "forecast leads in months")
	skill := flag.Float64("skill", 0.7, "weight of the observed signal in each member, 0..1")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *members < 1 || *leads < 1 {
		flag.Usage()
		return fmt.Errorf("-members and -leads must be positive")
	}
	if *skill < 0 || *skill > 1 {
		return fmt.Errorf("-skill must be within 0..1")
	}

	v := config.DefaultVerification()
	if *verifPath != "" {
		var err error
		if v, err = config.LoadVerification(*verifPath); err != nil {
			return err
		}
	}

	layout := archive.Layout{
		FcstDir:      filepath.Join(*out, "forecast"),
		ObsDir:       filepath.Join(*out, "obs"),
		ThresholdDir: filepath.Join(*out, "threshold"),
	}
	p := params{members: *members, leads: *leads, skill: *skill, seed: *seed}

	for _, vr := range v.Variables {
		g := newGenerator(vr, p)
		if err := writeVariable(layout, v, vr, g); err != nil {
			return fmt.Errorf("%s: %w", vr.Name, err)
		}
		log.Printf("%s: %d inits, %d observation years", vr.Name, len(v.InitMonths()), len(v.ObservationYears()))
	}
	return nil
}

func writeVariable(l archive.Layout, v config.Verification, vr domain.Variable, g *generator) error {
	for _, b := range vr.Bases() {
		for _, y := range v.ObservationYears() {
			f, err := g.observations(y, b)
			if err != nil {
				return err
			}
			if err := l.WriteObservations(vr, y, b, f); err != nil {
				return err
			}
		}
		for _, init := range v.InitMonths() {
			f, err := g.forecast(init, b)
			if err != nil {
				return err
			}
			if err := l.WriteForecast(vr, init, b, f); err != nil {
				return err
			}
		}
	}
	thr, err := g.threshold()
	if err != nil {
		return err
	}
	return l.WriteThreshold(vr, v.ClimatologyPeriod(), thr)
}

// generator produces one variable's fields. Anomalies have unit variance;
// totals of total-basis variables are offset by a positive mean.
type generator struct {
	v     domain.Variable
	p     params
	mean  float64
	truth map[domain.Month][]float64
}

func newGenerator(v domain.Variable, p params) *generator {
	g := &generator{v: v, p: p, truth: make(map[domain.Month][]float64)}
	if v.Basis() == domain.Total {
		g.mean = 3
	}
	return g
}

// observed is the reproducible observed anomaly grid of month m: a slow
// large-scale wave plus noise.
func (g *generator) observed(m domain.Month) []float64 {
	if vals, ok := g.truth[m]; ok {
		return vals
	}
	rng := rand.New(rand.NewPCG(g.p.seed, uint64(m.Int())^hash(g.v.Name)))
	phase := 2 * math.Pi * float64(m.Since(domain.Month{Year: 1900, Month: 1})) / 37
	vals := make([]float64, 0, len(lats)*len(lons))
	for _, lat := range lats {
		for _, lon := range lons {
			wave := math.Sin(phase+lon/60) * math.Cos(lat*math.Pi/180)
			vals = append(vals, 0.8*wave+0.6*rng.NormFloat64())
		}
	}
	g.truth[m] = vals
	return vals
}

// offset is the climatological mean added to fields of basis b.
func (g *generator) offset(b domain.Basis) float64 {
	if b == domain.Total {
		return g.mean
	}
	return 0
}

func (g *generator) observations(year int, b domain.Basis) (*domain.Field, error) {
	var times []domain.Month
	var vals []float64
	for mon := 1; mon <= 12; mon++ {
		m := domain.Month{Year: year, Month: mon}
		times = append(times, m)
		for _, x := range g.observed(m) {
			vals = append(vals, g.offset(b)+x)
		}
	}
	f, err := domain.FieldFromValues(g.v.Name, []string{domain.DimTime, domain.DimLat, domain.DimLon},
		[]int{len(times), len(lats), len(lons)}, vals)
	if err != nil {
		return nil, err
	}
	f.Time, f.Lat, f.Lon = times, lats, lons
	return f, nil
}

// forecast blends the observed anomaly at each valid month with member
// noise according to the configured skill. Both bases draw the same noise,
// so totals are the anomalies plus the mean.
func (g *generator) forecast(init domain.Month, b domain.Basis) (*domain.Field, error) {
	rng := rand.New(rand.NewPCG(g.p.seed+1, uint64(init.Int())^hash(g.v.Name)))
	noise := math.Sqrt(1 - g.p.skill*g.p.skill)
	vals := make([]float64, 0, g.p.members*g.p.leads*len(lats)*len(lons))
	for range g.p.members {
		for l := 1; l <= g.p.leads; l++ {
			for _, x := range g.observed(init.AddMonths(l)) {
				vals = append(vals, g.offset(b)+g.p.skill*x+noise*rng.NormFloat64())
			}
		}
	}
	f, err := domain.FieldFromValues(g.v.Name, []string{domain.DimMember, domain.DimLead, domain.DimLat, domain.DimLon},
		[]int{g.p.members, g.p.leads, len(lats), len(lons)}, vals)
	if err != nil {
		return nil, err
	}
	f.Member, f.Lead = sequence(g.p.members), sequence(g.p.leads)
	f.Lat, f.Lon = lats, lons
	return f, nil
}

// threshold matches the generated climate: unit standard deviation, or
// terciles of a unit-variance normal around the mean.
func (g *generator) threshold() (*domain.Threshold, error) {
	monthly := func(v float64) (*domain.Field, error) {
		f, err := domain.NewField(g.v.Name, []string{domain.DimMonth, domain.DimLat, domain.DimLon}, []int{12, len(lats), len(lons)})
		if err != nil {
			return nil, err
		}
		f.Lat, f.Lon = lats, lons
		f.Fill(v)
		return f, nil
	}
	if g.v.Threshold == domain.Sigma {
		std, err := monthly(1)
		if err != nil {
			return nil, err
		}
		return domain.NewSigmaThreshold(std)
	}
	lower, err := monthly(g.mean - domain.SigmaScale)
	if err != nil {
		return nil, err
	}
	upper, err := monthly(g.mean + domain.SigmaScale)
	if err != nil {
		return nil, err
	}
	return domain.NewQuantileThreshold(lower, upper)
}

func axis(from, to, step float64) []float64 {
	var out []float64
	for x := from; x <= to; x += step {
		out = append(out, x)
	}
	return out
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// hash decorrelates variables sharing a seed.
func hash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
