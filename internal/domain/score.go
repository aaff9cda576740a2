package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Metric names used in score records and output files.
const (
	MetricACC      = "acc"
	MetricRMSE     = "rmse"
	MetricBias     = "bias"
	MetricACCMean  = "acc_mean"
	MetricRMSEMean = "rmse_mean"
	MetricBiasMean = "bias_mean"
	MetricHitRate  = "hit_rate"
	MetricHSS      = "hss"
	MetricAUC      = "auc"
	MetricRPSS     = "rpss"
)

// Score is a scalar that encodes NaN and infinities as JSON null.
type Score float64

func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (s *Score) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Score(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = Score(f)
	return nil
}

// Valid reports whether the score is a finite number.
func (s Score) Valid() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ScoreRecord is one tagged scalar skill score. Records are value objects;
// the ID is derived from the identifying fields so republishing a run is
// idempotent downstream.
type ScoreRecord struct {
	ID          string    `json:"id"`
	Metric      string    `json:"metric"`
	Variable    string    `json:"variable"`
	Region      string    `json:"region"`
	Init        Month     `json:"init"`
	Target      Month     `json:"target"`
	Lead        int       `json:"lead"`
	Member      *int      `json:"member,omitempty"`
	Category    string    `json:"category,omitempty"`
	Value       Score     `json:"value"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewScoreRecord builds a record and derives its ID.
func NewScoreRecord(metric, variable, region string, init, target Month, lead int, member *int, category string, value float64) ScoreRecord {
	r := ScoreRecord{
		Metric:   metric,
		Variable: variable,
		Region:   region,
		Init:     init,
		Target:   target,
		Lead:     lead,
		Member:   member,
		Category: category,
		Value:    Score(value),
	}
	r.ID = generateRecordID(r)
	return r
}

// generateRecordID hashes metric|variable|region|init|lead|member|category.
func generateRecordID(r ScoreRecord) string {
	member := "-"
	if r.Member != nil {
		member = strconv.Itoa(*r.Member)
	}
	input := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s", r.Metric, r.Variable, r.Region, r.Init.YYYYMM(), r.Lead, member, r.Category)
	hash := sha256.Sum256([]byte(input))
	return r.Metric + "-" + hex.EncodeToString(hash[:8])
}
