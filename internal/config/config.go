package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "caseline.yaml"

// GradeCuts are the minimum Verified+Sourced fractions for each letter grade.
// Anything below D is F.
type GradeCuts struct {
	A float64 `yaml:"a" json:"a"`
	B float64 `yaml:"b" json:"b"`
	C float64 `yaml:"c" json:"c"`
	D float64 `yaml:"d" json:"d"`
}

// Breakpoints are the inclusive upper bounds of the LOW, MEDIUM and HIGH
// risk bands. Scores above High are CRITICAL.
type Breakpoints struct {
	Low    int `yaml:"low" json:"low"`
	Medium int `yaml:"medium" json:"medium"`
	High   int `yaml:"high" json:"high"`
}

// Config holds all tunable policy for a screening run. Everything has a
// compiled default so a missing file is not an error.
type Config struct {
	DBPath    string `yaml:"db_path" json:"db_path"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// Investigation execution.
	Fanout     int `yaml:"fanout" json:"fanout"`
	RetryLimit int `yaml:"retry_limit" json:"retry_limit"`

	// Scoring and grading policy.
	Bands     Breakpoints `yaml:"band_breakpoints" json:"band_breakpoints"`
	GradeCuts GradeCuts   `yaml:"grade_cuts" json:"grade_cuts"`

	// A Verified sanctions match at or above this score is a hard decline.
	SanctionsDeclineThreshold float64 `yaml:"sanctions_decline_threshold" json:"sanctions_decline_threshold"`

	// Minimum similarity for a screening-list hit to be reported at all.
	ScreeningMatchThreshold float64 `yaml:"screening_match_threshold" json:"screening_match_threshold"`
}

// Default returns the compiled-in policy.
func Default() Config {
	return Config{
		DBPath:                    ".caseline/caseline.db",
		LogLevel:                  "info",
		LogFormat:                 "text",
		Fanout:                    4,
		RetryLimit:                3,
		Bands:                     Breakpoints{Low: 15, Medium: 35, High: 60},
		GradeCuts:                 GradeCuts{A: 0.60, B: 0.45, C: 0.30, D: 0.15},
		SanctionsDeclineThreshold: 0.85,
		ScreeningMatchThreshold:   0.70,
	}
}

// LoadFromPath reads a config file (YAML or JSON) over the defaults.
// Format is detected by extension or, failing that, by content.
func LoadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config from bytes over the defaults. ext is the file extension
// for format hint; empty = detect from content.
func Load(data []byte, ext string) (Config, error) {
	cfg := Default()

	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config json: %w", err)
		}
	default:
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "{") {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config json: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects policy values that would make the pipeline misbehave.
func (c Config) Validate() error {
	if c.Fanout < 1 {
		return fmt.Errorf("config: fanout must be >= 1, got %d", c.Fanout)
	}
	if c.RetryLimit < 0 {
		return fmt.Errorf("config: retry_limit must be >= 0, got %d", c.RetryLimit)
	}
	if !(c.Bands.Low < c.Bands.Medium && c.Bands.Medium < c.Bands.High) {
		return fmt.Errorf("config: band breakpoints must be strictly increasing, got %d/%d/%d",
			c.Bands.Low, c.Bands.Medium, c.Bands.High)
	}
	cuts := []float64{c.GradeCuts.D, c.GradeCuts.C, c.GradeCuts.B, c.GradeCuts.A}
	for i := 1; i < len(cuts); i++ {
		if cuts[i] <= cuts[i-1] {
			return fmt.Errorf("config: grade cuts must be strictly increasing D < C < B < A")
		}
	}
	if c.SanctionsDeclineThreshold <= 0 || c.SanctionsDeclineThreshold > 1 {
		return fmt.Errorf("config: sanctions_decline_threshold must be in (0, 1], got %v",
			c.SanctionsDeclineThreshold)
	}
	return nil
}
