package archive

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

// Writer stores reports as NetCDF and CSV files under the output directory.
// Every file is written to a temporary name and renamed into place, so a
// reader never sees a partial output. It implements pipeline.Sink.
type Writer struct {
	layout Layout
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at layout.OutputDir.
func NewWriter(layout Layout, logger *slog.Logger) *Writer {
	return &Writer{layout: layout, logger: logger}
}

func (w *Writer) Name() string { return "archive" }

// Write stores the RPSS and forecast mode grids, every region that was not
// skipped and every index plume of the report.
func (w *Writer) Write(ctx context.Context, r *domain.Report) error {
	var files int
	if r.RPSS != nil {
		grids := []*domain.Field{r.RPSS}
		if r.Mode != nil {
			grids = append(grids, r.Mode)
		}
		if err := writeNetCDF(w.layout.RPSSPath(r.Variable, r.Init), grids...); err != nil {
			return err
		}
		files++
	}

	for _, rr := range r.Regions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rr.Err != nil {
			continue
		}
		n, err := w.writeRegion(r, rr)
		if err != nil {
			return fmt.Errorf("region %s: %w", rr.Region.Name, err)
		}
		files += n
	}

	for _, p := range r.Indices {
		if err := writeCSV(w.layout.IndexPath(p.Index, r.Variable, r.Init), plumeRows(p)); err != nil {
			return fmt.Errorf("index %s: %w", p.Index, err)
		}
		files++
	}

	w.logger.Debug("report archived", "variable", r.Variable, "init", r.Init.YYYYMM(), "files", files)
	return nil
}

func (w *Writer) writeRegion(r *domain.Report, rr domain.RegionReport) (int, error) {
	name := rr.Region.Name
	files := 0
	if d := rr.Deterministic; d != nil && len(d.Leads) > 0 {
		fields, err := deterministicFields(d)
		if err != nil {
			return files, err
		}
		if err := writeNetCDF(w.layout.DeterministicPath(name, r.Variable, r.Init), fields...); err != nil {
			return files, err
		}
		files++
	}

	tables := []struct {
		kind string
		rows [][]string
	}{
		{"cate", categoricalRows(rr.Categorical)},
		{"auc", aucRows(rr.ROC)},
		{"roc", rocRows(rr.ROC)},
	}
	if rr.Series != nil {
		tables = append(tables, struct {
			kind string
			rows [][]string
		}{"series", seriesRows(rr.Series)})
	}
	for _, t := range tables {
		if err := writeCSV(w.layout.TablePath(t.kind, name, r.Variable, r.Init), t.rows); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

// deterministicFields lays out per-member scores over (ens, lead) and the
// ensemble summaries over lead.
func deterministicFields(d *domain.DeterministicScores) ([]*domain.Field, error) {
	var out []*domain.Field
	perMember := []struct {
		name string
		vals [][]float64
	}{{"acc", d.ACC}, {"rmse", d.RMSE}, {"bias", d.Bias}}
	for _, s := range perMember {
		var flat []float64
		for _, row := range s.vals {
			flat = append(flat, row...)
		}
		f, err := domain.FieldFromValues(s.name, []string{domain.DimMember, domain.DimLead}, []int{len(s.vals), len(d.Leads)}, flat)
		if err != nil {
			return nil, err
		}
		f.Member, f.Lead = d.Members, d.Leads
		out = append(out, f)
	}

	means := []struct {
		name string
		vals []float64
	}{{"acc_mean", d.ACCMean}, {"rmse_mean", d.RMSEMean}, {"bias_mean", d.BiasMean}}
	for _, s := range means {
		f, err := domain.FieldFromValues(s.name, []string{domain.DimLead}, []int{len(s.vals)}, append([]float64(nil), s.vals...))
		if err != nil {
			return nil, err
		}
		f.Lead = d.Leads
		out = append(out, f)
	}
	return out, nil
}

func categoricalRows(rows []domain.CategoricalRow) [][]string {
	out := [][]string{{"lead", "target", "hit_rate", "hss"}}
	for _, r := range rows {
		out = append(out, []string{strconv.Itoa(r.Lead), r.Target.YYYYMM(), formatFloat(r.HitRate), formatFloat(r.HSS)})
	}
	return out
}

func aucRows(results []domain.ROCResult) [][]string {
	out := [][]string{{"lead", "target", "category", "auc"}}
	for _, r := range results {
		out = append(out, []string{strconv.Itoa(r.Lead), r.Target.YYYYMM(), r.Category.String(), formatFloat(r.AUC)})
	}
	return out
}

func rocRows(results []domain.ROCResult) [][]string {
	out := [][]string{{"lead", "target", "category", "threshold", "fpr", "tpr"}}
	for _, r := range results {
		for _, p := range r.Points {
			out = append(out, []string{
				strconv.Itoa(r.Lead), r.Target.YYYYMM(), r.Category.String(),
				formatFloat(p.Threshold), formatFloat(p.FPR), formatFloat(p.TPR),
			})
		}
	}
	return out
}

func seriesRows(s *domain.RegionSeries) [][]string {
	out := [][]string{{"time", "forecast", "observed"}}
	for i, t := range s.Times {
		out = append(out, []string{t.YYYYMM(), formatFloat(s.Forecast[i]), formatFloat(s.Observed[i])})
	}
	return out
}

// plumeRows writes one row per valid month: observed, ensemble mean, then
// each member.
func plumeRows(p *domain.IndexPlume) [][]string {
	header := []string{"time", "observed", "ens_mean"}
	for m := range p.Members {
		header = append(header, fmt.Sprintf("m%02d", m+1))
	}
	out := [][]string{header}
	for t, tm := range p.Times {
		row := []string{tm.YYYYMM(), formatFloat(p.Observed[t]), formatFloat(p.EnsembleMean[t])}
		for m := range p.Members {
			row = append(row, formatFloat(p.Members[m][t]))
		}
		out = append(out, row)
	}
	return out
}

// formatFloat renders NaN as "NaN" and everything else in shortest form.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeNetCDF(path string, fields ...*domain.Field) error {
	return atomically(path, func(tmp string) error {
		return writeFields(tmp, fields...)
	})
}

func writeCSV(path string, rows [][]string) error {
	return atomically(path, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		cw := csv.NewWriter(f)
		if err := cw.WriteAll(rows); err != nil {
			_ = f.Close()
			return fmt.Errorf("write csv: %w", err)
		}
		return f.Close()
	})
}

// atomically runs write against a temporary sibling of path and renames it
// over path once it succeeds.
func atomically(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		return errors.Join(err, os.Remove(name))
	}

	if err := write(name); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
