package config

import (
	"errors"
	"fmt"
	"slices"
)

var validSortCriteria = []string{"newest", "relevance", "highest", "lowest"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateCollection(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	if c.Store.WriteAttempts > 10 {
		return errors.New("store.write_attempts must be at most 10")
	}
	if c.Store.LockRetryAttempts > 20 {
		return errors.New("store.lock_retry_attempts must be at most 20")
	}
	return nil
}

func (c *Config) validateCollection() error {
	if _, err := c.Mode(); err != nil {
		return fmt.Errorf("collection.mode: %w", err)
	}
	if c.Collection.StopThreshold < 0 {
		return errors.New("collection.stop_threshold must be >= 0 (0 disables early stop)")
	}
	if c.Collection.MinBatchSize < 1 {
		return errors.New("collection.min_batch_size must be >= 1")
	}
	if c.Collection.MaxReviews < 0 {
		return errors.New("collection.max_reviews must be >= 0 (0 means unlimited)")
	}
	if !slices.Contains(validSortCriteria, c.Collection.SortBy) {
		return fmt.Errorf("collection.sort_by must be one of %v", validSortCriteria)
	}
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	if !c.Identity.FollowRedirects {
		return nil
	}
	if c.Identity.RedirectTimeoutSeconds <= 0 {
		return errors.New("identity.redirect_timeout_seconds must be positive")
	}
	if c.Identity.MaxRedirects <= 0 {
		return errors.New("identity.max_redirects must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	for _, target := range c.Sync.Targets {
		switch target {
		case TargetJSON, TargetKafka, TargetRedis:
		default:
			return fmt.Errorf("sync.targets: unknown target %q (want json, kafka or redis)", target)
		}
	}
	if c.TargetEnabled(TargetKafka) {
		if len(c.Sync.Kafka.Brokers) == 0 {
			return errors.New("sync.kafka.brokers must be set when the kafka target is enabled")
		}
		if c.Sync.Kafka.Topic == "" {
			return errors.New("sync.kafka.topic must be set when the kafka target is enabled")
		}
	}
	if c.TargetEnabled(TargetRedis) && c.Sync.Redis.Addr == "" {
		return errors.New("sync.redis.addr must be set when the redis target is enabled")
	}
	if c.Sync.Redis.DB < 0 {
		return errors.New("sync.redis.db must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported level %q", c.Logging.Level)
	}
}
