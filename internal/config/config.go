package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

// Config holds all service settings, populated from environment variables
// and an optional YAML verification file. It is read-only after Load.
type Config struct {
	FcstDir      string
	ObsDir       string
	ThresholdDir string
	OutputDir    string

	Workers            int
	ReadRateLimit      float64 // input reads per second, 0 = unlimited
	ThresholdCacheSize int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Score publishing.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaScoreTopic string
	DatabaseURL     string

	Verification Verification
}

// Verification is the domain configuration: which inits, which climatology,
// which regions and which variables with their threshold kind.
type Verification struct {
	StartYear int                `yaml:"start_year"`
	EndYear   int                `yaml:"end_year"`
	ClimStart int                `yaml:"clim_start"`
	ClimEnd   int                `yaml:"clim_end"`
	Regions   domain.RegionTable `yaml:"regions"`
	Variables []domain.Variable  `yaml:"variables"`
}

// DefaultVerification mirrors the operational setup: recent inits verified
// against the 1991-2020 climatology.
func DefaultVerification() Verification {
	return Verification{
		StartYear: 2022,
		EndYear:   2024,
		ClimStart: 1991,
		ClimEnd:   2020,
		Regions:   append(domain.RegionTable(nil), domain.DefaultRegions...),
		Variables: []domain.Variable{
			{Name: "t2m", Threshold: domain.Sigma},
			{Name: "sst", Threshold: domain.Sigma, Indices: true},
			{Name: "prcp", Threshold: domain.EmpiricalQuantile},
		},
	}
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("WORKERS", 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("THRESHOLD_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parseRate("READ_RATE_LIMIT")
	if err != nil {
		return nil, err
	}

	verif := DefaultVerification()
	if path := os.Getenv("VERIF_CONFIG"); path != "" {
		verif, err = LoadVerification(path)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		FcstDir:      sharedcfg.EnvOrDefault("FCST_DIR", "data/forecast"),
		ObsDir:       sharedcfg.EnvOrDefault("OBS_DIR", "data/obs"),
		ThresholdDir: sharedcfg.EnvOrDefault("THRESHOLD_DIR", "data/threshold"),
		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),

		Workers:            workers,
		ReadRateLimit:      rateLimit,
		ThresholdCacheSize: cacheSize,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaScoreTopic: sharedcfg.EnvOrDefault("KAFKA_SCORE_TOPIC", "verification-scores"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),

		Verification: verif,
	}

	if cfg.FcstDir == "" || cfg.ObsDir == "" || cfg.ThresholdDir == "" {
		return nil, errors.New("FCST_DIR, OBS_DIR and THRESHOLD_DIR are required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaScoreTopic == "" {
		return nil, errors.New("KAFKA_SCORE_TOPIC is required when KAFKA_ENABLED is true")
	}
	if err := cfg.Verification.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadVerification reads a YAML verification file. Keys left out keep their
// defaults; unknown keys are rejected.
func LoadVerification(path string) (Verification, error) {
	v := DefaultVerification()
	f, err := os.Open(path)
	if err != nil {
		return v, fmt.Errorf("VERIF_CONFIG: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("VERIF_CONFIG %s: %w", path, err)
	}
	return v, v.Validate()
}

// Validate checks year ranges, regions and variables.
func (v Verification) Validate() error {
	if v.StartYear <= 0 || v.EndYear < v.StartYear {
		return fmt.Errorf("invalid verification years %d-%d", v.StartYear, v.EndYear)
	}
	if v.ClimStart <= 0 || v.ClimEnd < v.ClimStart {
		return fmt.Errorf("invalid climatology period %d-%d", v.ClimStart, v.ClimEnd)
	}
	if len(v.Regions) == 0 {
		return errors.New("at least one region is required")
	}
	if err := v.Regions.Validate(); err != nil {
		return err
	}
	if len(v.Variables) == 0 {
		return errors.New("at least one variable is required")
	}
	seen := make(map[string]bool, len(v.Variables))
	for _, vr := range v.Variables {
		if vr.Name == "" {
			return errors.New("variable with empty name")
		}
		if seen[vr.Name] {
			return fmt.Errorf("variable %s listed twice", vr.Name)
		}
		seen[vr.Name] = true
	}
	return nil
}

// ClimatologyPeriod is the key of the climatological threshold files,
// e.g. "1991_2020".
func (v Verification) ClimatologyPeriod() string {
	return fmt.Sprintf("%d_%d", v.ClimStart, v.ClimEnd)
}

// InitMonths lists every initialization month of the verification years.
func (v Verification) InitMonths() []domain.Month {
	return domain.InitMonths(v.StartYear, v.EndYear)
}

// ObservationYears covers the verification years plus the following year,
// which the longest leads of December inits reach into.
func (v Verification) ObservationYears() []int {
	var years []int
	for y := v.StartYear; y <= v.EndYear+1; y++ {
		years = append(years, y)
	}
	return years
}

// Variable finds a configured variable by name.
func (v Verification) Variable(name string) (domain.Variable, error) {
	for _, vr := range v.Variables {
		if vr.Name == name {
			return vr, nil
		}
	}
	return domain.Variable{}, fmt.Errorf("unknown variable %q", name)
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parseRate(key string) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return 0, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative number", key, s)
	}
	return r, nil
}
