// Package domain implements seasonal forecast verification: tercile
// categorisation, deterministic and probabilistic skill scores, and the
// time and region handling they share.
//
// # Fields
//
// Every gridded quantity is a [Field]: a row-major float64 array whose axes
// are addressed by name ("ens", "lead", "time", "month", "lat", "lon",
// "category"). Binary operations go through [Combine], which matches axes by
// name and refuses to combine fields whose lat/lon coordinates differ.
// Upstream regridding is assumed; nothing here interpolates.
//
// Reductions skip NaN. A mean over zero valid values is NaN, so a region
// that holds no grid points reduces to NaN rather than failing.
//
// # Time
//
// A forecast initialised in month I carries leads 1..6 (months). The valid
// month of lead L is I+L at monthly granularity:
//
//	init 2024-03, lead 1  ->  2024-04
//	init 2024-03, lead 6  ->  2024-09
//
// [Align] intersects valid months with the observation time axis. Months
// absent from the observations are reported via [TimeCoverageGapError] and
// scoring proceeds on the intersection.
//
// # Categories
//
// Labels are BN=0, NN=1, AN=2. Each value starts as NN, becomes AN if it
// exceeds the upper bound, then BN if it falls below the lower bound. The
// bounds come from a [Threshold] of one of two kinds:
//
//	Sigma:             anomaly vs +-0.43 sigma of the calendar month
//	EmpiricalQuantile: total   vs lower/upper tercile of the calendar month
//
// # Scores
//
//	Bias = mean(f - o)
//	RMSE = sqrt(mean((f - o)^2))
//	ACC  = mean(f'o') / (sqrt(mean(f'^2)) sqrt(mean(o'^2)) + 1e-12)
//	HSS  = (hits - E) / (total - E),  E = trace(outer(rows, cols)) / total
//	RPS  = sum_k (cumF_k - cumO_k)^2
//	RPSS = 1 - RPS / RPS(1/3, 1/3, 1/3)
//
// Means are unweighted over grid points (no cos-latitude weighting). ACC of
// the ensemble mean is computed from the mean field, while the mean RMSE and
// bias average the per-member scores.
//
// # Record IDs
//
// Score record IDs are truncated SHA-256 hashes of
// metric|variable|region|init|lead|member|category, so republishing a run
// yields the same keys and downstream stores can insert idempotently.
package domain
