package archive

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
	"github.com/couchcryptid/fcst-verif-service/internal/pipeline"
)

// TargetSummary collects categorical rows of every unit and, once the run
// is over, writes one table per (region, variable) aggregating all inits
// whose leads land on the same target month. It implements pipeline.Sink
// and pipeline.Finalizer.
type TargetSummary struct {
	layout Layout
	logger *slog.Logger

	mu   sync.Mutex
	rows map[summaryKey][]domain.CategoricalRow
}

var (
	_ pipeline.Sink      = (*TargetSummary)(nil)
	_ pipeline.Finalizer = (*TargetSummary)(nil)
)

type summaryKey struct {
	region   string
	variable string
}

// NewTargetSummary creates a summary sink rooted at layout.OutputDir.
func NewTargetSummary(layout Layout, logger *slog.Logger) *TargetSummary {
	return &TargetSummary{layout: layout, logger: logger, rows: make(map[summaryKey][]domain.CategoricalRow)}
}

func (s *TargetSummary) Name() string { return "target-summary" }

// Write records the categorical rows of every region that was not skipped.
func (s *TargetSummary) Write(_ context.Context, r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rr := range r.Regions {
		if rr.Err != nil || len(rr.Categorical) == 0 {
			continue
		}
		k := summaryKey{region: rr.Region.Name, variable: r.Variable}
		s.rows[k] = append(s.rows[k], rr.Categorical...)
	}
	return nil
}

// Finalize writes the aggregated tables.
func (s *TargetSummary) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]summaryKey, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b summaryKey) int {
		return cmp.Or(cmp.Compare(a.region, b.region), cmp.Compare(a.variable, b.variable))
	})

	var errs []error
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := s.layout.TargetSummaryPath(k.region, k.variable)
		if err := writeCSV(path, targetRows(domain.AggregateByTarget(s.rows[k]))); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", k.region, k.variable, err))
		}
	}
	s.logger.Debug("target summaries written", "tables", len(keys)-len(errs))
	return errors.Join(errs...)
}

func targetRows(sums []domain.TargetSummary) [][]string {
	out := [][]string{{"target", "inits", "hit_rate", "hss"}}
	for _, t := range sums {
		out = append(out, []string{t.Target.YYYYMM(), strconv.Itoa(t.Inits), formatFloat(t.HitRate), formatFloat(t.HSS)})
	}
	return out
}

