package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// ClimatologyProbabilities returns a field shaped like prob holding 1/3 in
// every category.
func ClimatologyProbabilities(prob *Field) *Field {
	out := prob.emptyLike("climatology", prob.dims, prob.shape)
	out.Fill(1.0 / float64(len(Categories)))
	return out
}

// RPS is the ranked probability score: the sum over categories of the
// squared difference between cumulative forecast probability and cumulative
// observed indicator. Both fields must share one layout with a category
// axis. Any NaN component makes the cell NaN.
func RPS(prob, obs *Field) (*Field, error) {
	ca := prob.Axis(DimCategory)
	if ca < 0 || !slices.Equal(prob.dims, obs.dims) || !slices.Equal(prob.shape, obs.shape) {
		return nil, &ShapeMismatchError{
			Op:     "rps",
			Detail: fmt.Sprintf("forecast %v%v vs observed %v%v", prob.dims, prob.shape, obs.dims, obs.shape),
		}
	}
	if prob.Has(DimLat) && !prob.SameGrid(obs) {
		return nil, &ShapeMismatchError{Op: "rps", Detail: "lat/lon coordinates differ"}
	}

	dims := slices.Delete(slices.Clone(prob.dims), ca, ca+1)
	shape := slices.Delete(slices.Clone(prob.shape), ca, ca+1)
	out := prob.emptyLike("rps", dims, shape)

	cs := prob.stride[ca]
	m := projection(prob.dims, out)
	prob.forEach(func(off int, idx []int) {
		if idx[ca] != 0 {
			return
		}
		var cf, co, sum float64
		for c := range prob.shape[ca] {
			cf += prob.data[off+c*cs]
			co += obs.data[off+c*cs]
			d := cf - co
			sum += d * d
		}
		out.data[project(m, idx)] = sum
	})
	return out, nil
}

// RPSS is 1 - RPS(forecast) / RPS(climatology) against uniform tercile
// probabilities. Cells where the climatological RPS is zero are NaN.
func RPSS(prob, obs *Field) (*Field, error) {
	rps, err := RPS(prob, obs)
	if err != nil {
		return nil, err
	}
	ref, err := RPS(ClimatologyProbabilities(prob), obs)
	if err != nil {
		return nil, err
	}
	out, err := Combine(rps, ref, func(f, c float64) float64 {
		if c == 0 || math.IsNaN(c) {
			return math.NaN()
		}
		return 1 - f/c
	})
	if err != nil {
		return nil, err
	}
	out.Name = "rpss"
	return out, nil
}

// ROCPoint is one operating point of a ROC curve.
type ROCPoint struct {
	Threshold float64
	FPR       float64
	TPR       float64
}

// ROCResult is the ROC curve and area for one (lead, category).
type ROCResult struct {
	Lead     int
	Target   Month
	Category Category
	AUC      float64
	Points   []ROCPoint
}

// ROCCurve computes false and true positive rates at every distinct score,
// in descending order, starting from (0, 0) at threshold +Inf. NaN pairs are
// dropped. Fewer than two observed classes yields DegenerateClassError.
func ROCCurve(scores, labels []float64) ([]ROCPoint, error) {
	type pair struct{ s, y float64 }
	ps := make([]pair, 0, len(scores))
	var pos, neg int
	for i, s := range scores {
		if i >= len(labels) {
			break
		}
		y := labels[i]
		if math.IsNaN(s) || math.IsNaN(y) {
			continue
		}
		ps = append(ps, pair{s, y})
		if y > 0 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		classes := 0
		if pos > 0 || neg > 0 {
			classes = 1
		}
		return nil, &DegenerateClassError{Classes: classes}
	}

	sort.SliceStable(ps, func(i, j int) bool { return ps[i].s > ps[j].s })
	points := []ROCPoint{{Threshold: math.Inf(1)}}
	var tp, fp int
	for i, p := range ps {
		if p.y > 0 {
			tp++
		} else {
			fp++
		}
		if i+1 < len(ps) && ps[i+1].s == p.s {
			continue
		}
		points = append(points, ROCPoint{
			Threshold: p.s,
			FPR:       float64(fp) / float64(neg),
			TPR:       float64(tp) / float64(pos),
		})
	}
	return points, nil
}

// AUC integrates a ROC curve with the trapezoidal rule.
func AUC(points []ROCPoint) float64 {
	var area float64
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		area += (b.FPR - a.FPR) * (a.TPR + b.TPR) / 2
	}
	return area
}

// ComputeROC builds the curve and its area for one score/label sample.
func ComputeROC(scores, labels []float64) ([]ROCPoint, float64, error) {
	pts, err := ROCCurve(scores, labels)
	if err != nil {
		return nil, math.NaN(), err
	}
	return pts, AUC(pts), nil
}

// ROCByLeadCategory clips aligned forecast probabilities and observed
// one-hot indicators (time, lat, lon, category) to the region and computes
// one ROC per (lead, category). Degenerate combinations are returned as
// skips and do not appear in the results.
func ROCByLeadCategory(region Region, prob, obs *Field) ([]ROCResult, []error, error) {
	pc, err := Clip(prob, region)
	if err != nil {
		return nil, nil, err
	}
	oc, err := Clip(obs, region)
	if err != nil {
		return nil, nil, err
	}
	if !slices.Equal(pc.dims, oc.dims) || !slices.Equal(pc.shape, oc.shape) || !slices.Equal(pc.Time, oc.Time) {
		return nil, nil, &ShapeMismatchError{
			Op:     "roc",
			Detail: fmt.Sprintf("forecast %v%v vs observed %v%v", pc.dims, pc.shape, oc.dims, oc.shape),
		}
	}

	var results []ROCResult
	var skips []error
	for t := range pc.Len(DimTime) {
		lead := leadAt(pc, t)
		pt, err := pc.Select(DimTime, t)
		if err != nil {
			return nil, nil, err
		}
		ot, err := oc.Select(DimTime, t)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range Categories {
			ps, err := pt.Select(DimCategory, int(c))
			if err != nil {
				return nil, nil, err
			}
			oi, err := ot.Select(DimCategory, int(c))
			if err != nil {
				return nil, nil, err
			}
			pts, auc, err := ComputeROC(ps.data, oi.data)
			if err != nil {
				var dce *DegenerateClassError
				if errors.As(err, &dce) {
					dce.Lead, dce.Category = lead, c
				}
				skips = append(skips, err)
				continue
			}
			results = append(results, ROCResult{
				Lead:     lead,
				Target:   pc.Time[t],
				Category: c,
				AUC:      auc,
				Points:   pts,
			})
		}
	}
	return results, skips, nil
}
