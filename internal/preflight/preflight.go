package preflight

import (
	"context"

	"revtrack/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckStoreFile(cfg))

	if cfg.Logging.ToFile {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	if cfg.TargetEnabled(config.TargetJSON) {
		results = append(results, CheckDirectoryAccess("Snapshot directory", cfg.Paths.SnapshotDir))
	}
	if cfg.TargetEnabled(config.TargetKafka) {
		results = append(results, CheckKafka(ctx, cfg.Sync.Kafka.Brokers))
	}
	if cfg.TargetEnabled(config.TargetRedis) {
		results = append(results, CheckRedis(ctx, cfg.Sync.Redis))
	}

	return results
}
