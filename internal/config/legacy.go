package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"revtrack/internal/review"
)

const (
	legacyDefaultStopThreshold = 3
	legacyDefaultSortBy        = "relevance"
)

// legacyConfig mirrors the keys of the older YAML configuration format that
// still mean something to the review engine. Everything else is ignored.
type legacyConfig struct {
	ScrapeMode        string `yaml:"scrape_mode"`
	OverwriteExisting bool   `yaml:"overwrite_existing"`
	StopOnMatch       bool   `yaml:"stop_on_match"`
	StopThreshold     *int   `yaml:"stop_threshold"`
	SortBy            string `yaml:"sort_by"`
	MaxReviews        *int   `yaml:"max_reviews"`
	DBPath            string `yaml:"db_path"`
	BackupToJSON      *bool  `yaml:"backup_to_json"`
	JSONPath          string `yaml:"json_path"`
}

// ImportLegacyYAML reads a legacy YAML configuration and translates it onto
// the repository defaults. Deprecated aliases are resolved here:
// overwrite_existing maps to mode full unless a mode was set explicitly, and
// stop_on_match with a zero threshold maps to a threshold of 3. Each
// translation or fallback is reported as a warning.
func ImportLegacyYAML(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read legacy config: %w", err)
	}
	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return nil, nil, fmt.Errorf("parse legacy config: %w", err)
	}

	cfg := Default()
	warnings := legacy.apply(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, warnings, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, warnings, err
	}
	return &cfg, warnings, nil
}

func (l legacyConfig) apply(cfg *Config) []string {
	var warnings []string

	mode := strings.ToLower(strings.TrimSpace(l.ScrapeMode))
	explicitMode := mode != "" && mode != defaultMode
	if l.OverwriteExisting && !explicitMode {
		mode = string(review.ModeFull)
		warnings = append(warnings, "overwrite_existing: true mapped to mode full")
	}
	if mode != "" {
		if parsed, err := review.ParseMode(mode); err == nil {
			cfg.Collection.Mode = string(parsed)
		} else {
			cfg.Collection.Mode = defaultMode
			warnings = append(warnings, fmt.Sprintf("invalid scrape_mode %q, falling back to update", l.ScrapeMode))
		}
	}

	threshold := legacyDefaultStopThreshold
	if l.StopThreshold != nil {
		if *l.StopThreshold < 0 {
			warnings = append(warnings, fmt.Sprintf("invalid stop_threshold %d, using %d", *l.StopThreshold, legacyDefaultStopThreshold))
		} else {
			threshold = *l.StopThreshold
		}
	}
	if l.StopOnMatch && threshold == 0 {
		threshold = legacyDefaultStopThreshold
		warnings = append(warnings, "stop_on_match: true mapped to stop_threshold 3")
	}
	cfg.Collection.StopThreshold = threshold

	if l.MaxReviews != nil {
		if *l.MaxReviews < 0 {
			warnings = append(warnings, fmt.Sprintf("invalid max_reviews %d, using 0", *l.MaxReviews))
		} else {
			cfg.Collection.MaxReviews = *l.MaxReviews
		}
	}
	if sortBy := strings.TrimSpace(l.SortBy); sortBy != "" {
		cfg.Collection.SortBy = sortBy
	} else {
		cfg.Collection.SortBy = legacyDefaultSortBy
		warnings = append(warnings, "sort_by not set, using legacy default relevance (early stop stays disabled)")
	}
	if dbPath := strings.TrimSpace(l.DBPath); dbPath != "" {
		cfg.Paths.DataDir = filepath.Dir(dbPath)
		cfg.Store.Filename = filepath.Base(dbPath)
	}
	if l.BackupToJSON != nil && !*l.BackupToJSON {
		cfg.Sync.Targets = nil
	}
	if jsonPath := strings.TrimSpace(l.JSONPath); jsonPath != "" {
		cfg.Paths.SnapshotDir = filepath.Dir(jsonPath)
	}
	return warnings
}
