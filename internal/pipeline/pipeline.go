package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
	"github.com/couchcryptid/fcst-verif-service/internal/observability"
)

// Source reads the gridded inputs of a verification unit. Forecasts and
// observations come in an anomaly and a total basis.
type Source interface {
	LoadForecast(ctx context.Context, v domain.Variable, init domain.Month, basis domain.Basis) (*domain.Field, error)
	LoadObservations(ctx context.Context, v domain.Variable, years []int, basis domain.Basis) (*domain.Field, error)
	// LoadThreshold loads the thresholds stored under period, either a
	// climatology key such as "1991_2020" or an init month "YYYYMM".
	LoadThreshold(ctx context.Context, v domain.Variable, period string) (*domain.Threshold, error)
}

// Verifier turns the loaded inputs of one unit into a report.
type Verifier interface {
	Verify(ctx context.Context, u Unit, in Inputs) (*domain.Report, error)
}

// Sink persists or publishes a finished report.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *domain.Report) error
}

// Finalizer is implemented by sinks that write run-level output once every
// unit has finished.
type Finalizer interface {
	Finalize(ctx context.Context) error
}

// Unit is one (variable, init month) piece of work.
type Unit struct {
	Variable domain.Variable
	Init     domain.Month
}

// Inputs are the fields a Verifier works on. Deterministic, series and
// index scores use the anomalies. Categories come from the totals when the
// variable's thresholds are on totals, from the anomalies otherwise.
type Inputs struct {
	Forecast          *domain.Field     // anomalies (ens, lead, lat, lon)
	Observations      *domain.Field     // anomalies (time, lat, lon)
	ForecastTotal     *domain.Field     // totals, total-basis variables only
	ObservationTotal  *domain.Field     // totals, total-basis variables only
	Climatology       *domain.Threshold // observation categories
	ForecastThreshold *domain.Threshold // the climatology unless an init override exists
}

// categoryFields returns the forecast and observations that thresholds
// apply to.
func (in Inputs) categoryFields() (fcst, obs *domain.Field) {
	if in.ForecastTotal != nil && in.ObservationTotal != nil {
		return in.ForecastTotal, in.ObservationTotal
	}
	return in.Forecast, in.Observations
}

// Units lists every (variable, init) pair, variable-major.
func Units(vars []domain.Variable, inits []domain.Month) []Unit {
	out := make([]Unit, 0, len(vars)*len(inits))
	for _, v := range vars {
		for _, m := range inits {
			out = append(out, Unit{Variable: v, Init: m})
		}
	}
	return out
}

// Status is the explicit outcome of a unit.
type Status int

const (
	Completed Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// UnitOutcome records what happened to one unit.
type UnitOutcome struct {
	Unit    Unit
	Status  Status
	Err     error
	Records int
}

// Summary collects the outcomes of a run in submission order.
type Summary struct {
	Outcomes []UnitOutcome
}

// Count returns how many units ended with status s.
func (s Summary) Count(st Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == st {
			n++
		}
	}
	return n
}

// Settings are the run-wide parameters of a Pipeline.
type Settings struct {
	Workers           int
	ObservationYears  []int
	ClimatologyPeriod string
}

// Pipeline loads, verifies and writes units on a bounded worker pool.
type Pipeline struct {
	source   Source
	verifier Verifier
	sinks    []Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
	settings Settings
	ready    atomic.Bool
	running  atomic.Bool
	counts   [3]atomic.Int64

	mu  sync.Mutex
	obs map[string]*obsEntry
}

type obsEntry struct {
	mu    sync.Mutex
	done  bool
	field *domain.Field
	err   error
}

// New creates a Pipeline with the given stages and observability.
func New(src Source, v Verifier, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics, s Settings) *Pipeline {
	if s.Workers < 1 {
		s.Workers = 1
	}
	return &Pipeline{
		source:   src,
		verifier: v,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
		settings: s,
		obs:      make(map[string]*obsEntry),
	}
}

// CheckReadiness returns nil once the pipeline has finished at least one unit.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any units yet")
	}
	return nil
}

// Progress is a snapshot of the unit outcomes seen so far.
type Progress struct {
	Running   bool  `json:"running"`
	Completed int64 `json:"completed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// Progress reports outcome counts across every Run of the pipeline.
func (p *Pipeline) Progress() Progress {
	return Progress{
		Running:   p.running.Load(),
		Completed: p.counts[Completed].Load(),
		Skipped:   p.counts[Skipped].Load(),
		Failed:    p.counts[Failed].Load(),
	}
}

// Run processes units until all are done or ctx is cancelled. Cancellation
// stops submitting new units; units already running finish. Finalizer sinks
// then write their run-level output for the units that did run. The
// returned error is the context error when the run was cut short, or the
// finalize error.
func (p *Pipeline) Run(ctx context.Context, units []Unit) (Summary, error) {
	p.logger.Info("pipeline started", "units", len(units), "workers", p.settings.Workers)
	p.metrics.PipelineRunning.Set(1)
	p.running.Store(true)
	defer func() {
		p.metrics.PipelineRunning.Set(0)
		p.running.Store(false)
	}()

	outcomes := make([]UnitOutcome, len(units))
	var g errgroup.Group
	g.SetLimit(p.settings.Workers)

	submitted := 0
	for i, u := range units {
		if ctx.Err() != nil {
			break
		}
		submitted++
		g.Go(func() error {
			outcomes[i] = p.process(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Outcomes: outcomes[:submitted]}
	p.logger.Info("pipeline finished",
		"completed", sum.Count(Completed),
		"skipped", sum.Count(Skipped),
		"failed", sum.Count(Failed),
		"not_started", len(units)-submitted,
	)
	finErr := p.finalize(context.WithoutCancel(ctx))
	if err := ctx.Err(); err != nil && submitted < len(units) {
		return sum, errors.Join(err, finErr)
	}
	return sum, finErr
}

func (p *Pipeline) finalize(ctx context.Context) error {
	var errs []error
	for _, s := range p.sinks {
		f, ok := s.(Finalizer)
		if !ok {
			continue
		}
		if err := f.Finalize(ctx); err != nil {
			p.logger.Error("sink finalize failed", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("finalize %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) process(ctx context.Context, u Unit) UnitOutcome {
	start := time.Now()
	out := p.runUnit(ctx, u)

	log := p.logger.With("variable", u.Variable.Name, "init", u.Init.YYYYMM())
	switch out.Status {
	case Completed:
		log.Info("unit completed", "records", out.Records, "duration", time.Since(start))
	case Skipped:
		log.Warn("unit skipped", "error", out.Err)
	default:
		log.Error("unit failed", "error", out.Err)
	}

	p.metrics.UnitsProcessed.WithLabelValues(u.Variable.Name, out.Status.String()).Inc()
	p.metrics.UnitDuration.Observe(time.Since(start).Seconds())
	p.counts[out.Status].Add(1)
	p.ready.Store(true)
	return out
}

func (p *Pipeline) runUnit(ctx context.Context, u Unit) UnitOutcome {
	in, err := p.load(ctx, u)
	if err != nil {
		return outcome(u, err)
	}

	report, err := p.verifier.Verify(ctx, u, in)
	if err != nil {
		return outcome(u, err)
	}
	p.logReport(report)

	n := len(report.Records())
	var errs []error
	for _, s := range p.sinks {
		if err := s.Write(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
			continue
		}
		p.metrics.RecordsEmitted.WithLabelValues(s.Name()).Add(float64(n))
	}
	if err := errors.Join(errs...); err != nil {
		return UnitOutcome{Unit: u, Status: Failed, Err: err}
	}
	return UnitOutcome{Unit: u, Status: Completed, Records: n}
}

// outcome classifies a unit error. Missing inputs and an empty time
// intersection skip the unit; anything else fails it.
func outcome(u Unit, err error) UnitOutcome {
	st := Failed
	if errors.Is(err, domain.ErrMissingInput) || errors.Is(err, domain.ErrTimeCoverageGap) {
		st = Skipped
	}
	return UnitOutcome{Unit: u, Status: st, Err: err}
}

func (p *Pipeline) load(ctx context.Context, u Unit) (Inputs, error) {
	var in Inputs
	var err error

	in.Forecast, err = p.source.LoadForecast(ctx, u.Variable, u.Init, domain.Anomaly)
	p.countRead("forecast", err)
	if err != nil {
		return in, err
	}
	in.Observations, err = p.observations(ctx, u.Variable, domain.Anomaly)
	if err != nil {
		return in, err
	}
	if u.Variable.Basis() == domain.Total {
		in.ForecastTotal, err = p.source.LoadForecast(ctx, u.Variable, u.Init, domain.Total)
		p.countRead("forecast", err)
		if err != nil {
			return in, err
		}
		in.ObservationTotal, err = p.observations(ctx, u.Variable, domain.Total)
		if err != nil {
			return in, err
		}
	}

	in.Climatology, err = p.source.LoadThreshold(ctx, u.Variable, p.settings.ClimatologyPeriod)
	p.countRead("threshold", err)
	if err != nil {
		return in, err
	}

	in.ForecastThreshold, err = p.source.LoadThreshold(ctx, u.Variable, u.Init.YYYYMM())
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		p.logger.Debug("no per-init threshold, using climatology",
			"variable", u.Variable.Name, "init", u.Init.YYYYMM())
		in.ForecastThreshold = in.Climatology
	case err != nil:
		p.countRead("threshold", err)
		return in, err
	default:
		p.countRead("threshold", nil)
	}
	return in, nil
}

// observations loads a variable's observation series once per basis. A load
// cut short by cancellation or a deadline is not remembered; the next unit
// retries it.
func (p *Pipeline) observations(ctx context.Context, v domain.Variable, basis domain.Basis) (*domain.Field, error) {
	key := v.Name + "|" + string(basis)
	p.mu.Lock()
	e, ok := p.obs[key]
	if !ok {
		e = &obsEntry{}
		p.obs[key] = e
	}
	p.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.field, e.err
	}
	field, err := p.source.LoadObservations(ctx, v, p.settings.ObservationYears, basis)
	p.countRead("observation", err)
	if err != nil && interrupted(ctx, err) {
		return nil, err
	}
	e.field, e.err, e.done = field, err, true
	return field, err
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Pipeline) countRead(kind string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		result = "missing"
	case err != nil:
		result = "error"
	}
	p.metrics.InputReads.WithLabelValues(kind, result).Inc()
}

func (p *Pipeline) logReport(r *domain.Report) {
	log := p.logger.With("variable", r.Variable, "init", r.Init.YYYYMM())
	if gap := r.Alignment.Gap(); gap != nil {
		log.Warn("partial time coverage", "error", gap, "matched", len(r.Alignment.Common))
	}
	log.Info("observed categories",
		"bn", r.ObservedCounts[domain.BelowNormal],
		"nn", r.ObservedCounts[domain.NearNormal],
		"an", r.ObservedCounts[domain.AboveNormal],
	)

	for _, rr := range r.Regions {
		if rr.Err != nil {
			log.Warn("region skipped", "region", rr.Region.Name, "error", rr.Err)
			p.metrics.RegionSkips.WithLabelValues(r.Variable, rr.Region.Name).Inc()
			continue
		}
		for _, err := range rr.Skips {
			var dce *domain.DegenerateClassError
			if errors.As(err, &dce) {
				log.Warn("roc skipped",
					"region", rr.Region.Name,
					"lead", dce.Lead,
					"category", dce.Category.String(),
					"error", err,
				)
				p.metrics.ROCDegenerate.WithLabelValues(r.Variable, dce.Category.String()).Inc()
				continue
			}
			log.Warn("statistic skipped", "region", rr.Region.Name, "error", err)
		}
	}
}
