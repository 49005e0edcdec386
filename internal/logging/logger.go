package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"revtrack/internal/config"
)

const (
	dailyPrefix = "revtrack-"
	dailySuffix = ".log"
	dailyLayout = "2006-01-02"

	// DailyLogPattern matches the per-day files written when logging.to_file
	// is enabled.
	DailyLogPattern = dailyPrefix + "*" + dailySuffix
)

// Options describes logger construction parameters. Outputs accepts
// "stdout", "stderr" or file paths; it defaults to stderr.
type Options struct {
	Level   string
	Format  string
	Outputs []string
	// Source forces caller locations even above debug level.
	Source bool
	// Color enables ANSI level colours in the console format.
	Color bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Source || levelVar.Level() <= slog.LevelDebug

	var build func(io.Writer) slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		build = func(w io.Writer) slog.Handler {
			return newConsoleHandler(w, levelVar, addSource, opts.Color)
		}
	case "json":
		build = func(w io.Writer) slog.Handler {
			return newJSONHandler(w, levelVar, addSource)
		}
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	w, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	return slog.New(build(w)), nil
}

// OptionsFromConfig derives logger options from the application config at
// the given moment. File output goes to the day's DailyLogPath next to
// stderr, and colour is only used when stderr is an interactive terminal.
func OptionsFromConfig(cfg *config.Config, now time.Time) Options {
	if cfg == nil {
		return Options{Level: "info", Format: "console"}
	}
	opts := Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: []string{"stderr"},
	}
	if cfg.Logging.ToFile && cfg.Paths.LogDir != "" {
		opts.Outputs = append(opts.Outputs, DailyLogPath(cfg.Paths.LogDir, now))
	} else {
		opts.Color = isatty.IsTerminal(os.Stderr.Fd())
	}
	return opts
}

// NewFromConfig creates a logger for the CLI from application config.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	return New(OptionsFromConfig(cfg, time.Now()))
}

// DailyLogPath returns the log file used for the given day.
func DailyLogPath(dir string, day time.Time) string {
	return filepath.Join(dir, dailyPrefix+day.UTC().Format(dailyLayout)+dailySuffix)
}

// dailyLogDay recovers the day encoded in a DailyLogPath file name.
func dailyLogDay(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, dailyPrefix) || !strings.HasSuffix(name, dailySuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, dailyPrefix), dailySuffix)
	day, err := time.ParseInLocation(dailyLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutputs(outputs []string) (io.Writer, error) {
	if len(outputs) == 0 {
		return os.Stderr, nil
	}
	seen := make(map[string]bool, len(outputs))
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		out = strings.TrimSpace(out)
		if out == "" || seen[out] {
			continue
		}
		seen[out] = true
		switch out {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("ensure log directory: %w", err)
				}
			}
			file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", out, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stderr, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
