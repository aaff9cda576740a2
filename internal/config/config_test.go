package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/forecast", cfg.FcstDir)
	assert.Equal(t, "data/obs", cfg.ObsDir)
	assert.Equal(t, "data/threshold", cfg.ThresholdDir)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 1, cfg.Workers)
	assert.Zero(t, cfg.ReadRateLimit)
	assert.Equal(t, 64, cfg.ThresholdCacheSize)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "verification-scores", cfg.KafkaScoreTopic)
	assert.Empty(t, cfg.DatabaseURL)

	v := cfg.Verification
	assert.Equal(t, 2022, v.StartYear)
	assert.Equal(t, 2024, v.EndYear)
	assert.Equal(t, "1991_2020", v.ClimatologyPeriod())
	assert.Equal(t, []string{"GL", "EA"}, v.Regions.Names())
	require.Len(t, v.Variables, 3)
	prcp, err := v.Variable("prcp")
	require.NoError(t, err)
	assert.Equal(t, domain.EmpiricalQuantile, prcp.Threshold)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FCST_DIR", "/data/fc")
	t.Setenv("OBS_DIR", "/data/obs")
	t.Setenv("THRESHOLD_DIR", "/data/thr")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("WORKERS", "4")
	t.Setenv("READ_RATE_LIMIT", "2.5")
	t.Setenv("THRESHOLD_CACHE_SIZE", "8")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SCORE_TOPIC", "scores")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/verif?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/fc", cfg.FcstDir)
	assert.Equal(t, "/data/obs", cfg.ObsDir)
	assert.Equal(t, "/data/thr", cfg.ThresholdDir)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.InDelta(t, 2.5, cfg.ReadRateLimit, 1e-12)
	assert.Equal(t, 8, cfg.ThresholdCacheSize)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "scores", cfg.KafkaScoreTopic)
	assert.Equal(t, "postgres://u:p@localhost/verif?sslmode=disable", cfg.DatabaseURL)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidWorkers(t *testing.T) {
	for _, v := range []string{"0", "-2", "many"} {
		t.Setenv("WORKERS", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "WORKERS")
	}
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	t.Setenv("READ_RATE_LIMIT", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READ_RATE_LIMIT")
}

func TestLoad_InvalidCacheSize(t *testing.T) {
	t.Setenv("THRESHOLD_CACHE_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "THRESHOLD_CACHE_SIZE")
}

func TestLoad_KafkaEnabledWithoutTopic(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_SCORE_TOPIC", "")
	_, err := Load()
	require.Error(t, err)
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verif.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_VerificationFile(t *testing.T) {
	t.Setenv("VERIF_CONFIG", writeYAML(t, `
start_year: 2010
end_year: 2011
regions:
  - {name: GL, lon_min: 0, lon_max: 360, lat_min: -90, lat_max: 90}
  - {name: TP, lon_min: 120, lon_max: 280, lat_min: -20, lat_max: 20}
variables:
  - {name: t2m, threshold: sigma}
  - {name: prcp, threshold: quantile}
`))

	cfg, err := Load()
	require.NoError(t, err)
	v := cfg.Verification
	assert.Equal(t, 2010, v.StartYear)
	assert.Equal(t, 1991, v.ClimStart, "unset keys keep defaults")
	assert.Equal(t, []string{"GL", "TP"}, v.Regions.Names())
	require.Len(t, v.Variables, 2)
	assert.Equal(t, domain.EmpiricalQuantile, v.Variables[1].Threshold)
	assert.Len(t, v.InitMonths(), 24)
	assert.Equal(t, []int{2010, 2011, 2012}, v.ObservationYears())
}

func TestLoad_VerificationFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "start_yr: 2010\n"},
		{name: "unknown threshold kind", body: "variables:\n  - {name: t2m, threshold: gamma}\n"},
		{name: "inverted years", body: "start_year: 2012\nend_year: 2010\n"},
		{name: "duplicate variable", body: "variables:\n  - {name: t2m}\n  - {name: t2m}\n"},
		{name: "inverted region", body: "regions:\n  - {name: X, lon_min: 10, lon_max: 0, lat_min: 0, lat_max: 1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VERIF_CONFIG", writeYAML(t, tt.body))
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingVerificationFile(t *testing.T) {
	t.Setenv("VERIF_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VERIF_CONFIG")
}
