package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"revtrack/internal/config"
	"revtrack/internal/identity"
	"revtrack/internal/logging"
	"revtrack/internal/reviewstore"
	"revtrack/internal/syncer"
)

type commandContext struct {
	configFlag *string
	logLevel   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	storeOnce sync.Once
	store     *reviewstore.Store
	storeErr  error

	runID string
}

func newCommandContext(configFlag, logLevel *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
		runID:      uuid.NewString(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevel)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg := c.configValue()
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger.With(logging.String(logging.FieldRunID, c.runID))
		if cfg != nil && cfg.Logging.ToFile {
			logging.CleanupOldLogs(c.logger, cfg.Logging.RetentionDays, logging.RetentionTarget{Dir: cfg.Paths.LogDir})
		}
	})
	return c.logger
}

// commandCtx tags the command context with this invocation's run id.
func (c *commandContext) commandCtx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithRunID(ctx, c.runID)
}

func (c *commandContext) openStore() (*reviewstore.Store, error) {
	c.storeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.storeErr = err
			return
		}
		c.store, c.storeErr = reviewstore.Open(cfg, c.ensureLogger())
	})
	return c.store, c.storeErr
}

func (c *commandContext) withStore(fn func(*reviewstore.Store) error) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	return fn(store)
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func (c *commandContext) resolver(store *reviewstore.Store) *identity.Resolver {
	cfg := c.configValue()
	var redirector identity.Redirector
	if cfg.Identity.FollowRedirects {
		redirector = identity.NewHTTPRedirector(cfg.RedirectTimeout(), cfg.Identity.MaxRedirects, cfg.Identity.UserAgent)
	}
	return identity.NewResolver(store, redirector, c.ensureLogger())
}

func (c *commandContext) syncRunner(store *reviewstore.Store) (*syncer.Runner, error) {
	targets, err := syncer.NewTargets(c.configValue(), c.ensureLogger())
	if err != nil {
		return nil, err
	}
	return syncer.NewRunner(store, targets, c.ensureLogger()), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
