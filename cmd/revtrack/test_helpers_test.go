package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revtrack/internal/config"
	"revtrack/internal/review"
	"revtrack/internal/testsupport"
)

const testPlaceURL = "https://maps.google.com/?cid=4242"

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", needle, haystack)
	}
}

// ingestFixture feeds two batches for the test place through the CLI and
// returns the candidate file path.
func ingestFixture(t *testing.T, env *cliTestEnv, candidates ...review.Candidate) string {
	t.Helper()
	if len(candidates) == 0 {
		candidates = []review.Candidate{
			{ReviewID: "r1", Author: "Ana", Rating: 5, RawDate: "2 weeks ago", Text: "Great coffee", Language: "en"},
			{ReviewID: "r2", Author: "Ben", Rating: 3, RawDate: "a month ago", Text: "Slow service", Language: "en"},
			{ReviewID: "r3", Author: "Cleo", Rating: 4, RawDate: "a year ago", Text: "Buen sitio", Language: "es"},
		}
	}
	path := filepath.Join(env.baseDir, "candidates.jsonl")
	testsupport.WriteCandidateLines(t, path, func(i int) int { return i / 2 }, candidates...)

	out, _, err := runCLI(t, []string{"ingest", path, "--url", testPlaceURL}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v\n%s", err, out)
	}
	return path
}
