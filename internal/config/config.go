// Package config loads the server configuration from the environment and an
// optional TOML file of detection parameters.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ironsheep/omr-grader/internal/omr"
)

// Environment variables read by Load.
const (
	EnvDataDir         = "OMR_DATA_DIR"
	EnvLogLevel        = "OMR_LOG_LEVEL"
	EnvLogFormat       = "OMR_LOG_FORMAT"
	EnvParamsFile      = "OMR_PARAMS_FILE"
	EnvFilledThreshold = "OMR_FILLED_THRESHOLD"
	EnvPassingScore    = "OMR_PASSING_SCORE"
)

// Config is the resolved server configuration.
type Config struct {
	DataDir      string
	LogLevel     string
	LogJSON      bool
	ParamsFile   string
	PassingScore float64

	Params  omr.Params
	Scoring omr.ScoringPolicy
}

// Load reads the configuration from the environment. Detection parameters
// start from omr.DefaultParams, are overridden by the params file when one is
// named, and finally by OMR_FILLED_THRESHOLD.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:    getEnv(EnvDataDir, "./data"),
		LogLevel:   getEnv(EnvLogLevel, "info"),
		LogJSON:    strings.EqualFold(getEnv(EnvLogFormat, "console"), "json"),
		ParamsFile: getEnv(EnvParamsFile, ""),
		Params:     omr.DefaultParams(),
		Scoring:    omr.DefaultScoringPolicy(),
	}

	if cfg.ParamsFile != "" {
		params, scoring, err := LoadParams(cfg.ParamsFile)
		if err != nil {
			return nil, err
		}
		cfg.Params, cfg.Scoring = params, scoring
	}

	threshold, err := getEnvFloat(EnvFilledThreshold, cfg.Params.FilledThreshold)
	if err != nil {
		return nil, err
	}
	cfg.Params.FilledThreshold = threshold

	cfg.PassingScore, err = getEnvFloat(EnvPassingScore, 75)
	if err != nil {
		return nil, err
	}
	if cfg.PassingScore < 0 || cfg.PassingScore > 100 {
		return nil, fmt.Errorf("%s must be within 0-100, got %v", EnvPassingScore, cfg.PassingScore)
	}

	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// paramsFile is the layout of the TOML parameters file.
type paramsFile struct {
	Detection omr.Params        `toml:"detection"`
	Scoring   omr.ScoringPolicy `toml:"scoring"`
}

// LoadParams decodes a TOML file with optional [detection] and [scoring]
// tables. Keys that are absent keep their defaults; unknown keys are an
// error.
func LoadParams(path string) (omr.Params, omr.ScoringPolicy, error) {
	file := paramsFile{
		Detection: omr.DefaultParams(),
		Scoring:   omr.DefaultScoringPolicy(),
	}

	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return omr.Params{}, omr.ScoringPolicy{}, fmt.Errorf("failed to read params file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return omr.Params{}, omr.ScoringPolicy{}, fmt.Errorf("unknown keys in params file: %s", strings.Join(keys, ", "))
	}

	if err := file.Detection.Validate(); err != nil {
		return omr.Params{}, omr.ScoringPolicy{}, err
	}
	if err := file.Scoring.Validate(); err != nil {
		return omr.Params{}, omr.ScoringPolicy{}, err
	}
	return file.Detection, file.Scoring, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return f, nil
}
