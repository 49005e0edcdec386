package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeCollection()
	c.normalizeIdentity()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SnapshotDir) == "" {
		c.Paths.SnapshotDir = defaultSnapshotDir
	}
	if c.Paths.SnapshotDir, err = expandPath(c.Paths.SnapshotDir); err != nil {
		return fmt.Errorf("paths.snapshot_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Filename = strings.TrimSpace(c.Store.Filename)
	if c.Store.Filename == "" {
		c.Store.Filename = defaultStoreFilename
	}
	if c.Store.BusyTimeoutMS <= 0 {
		c.Store.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.Store.BusyRetryAttempts <= 0 {
		c.Store.BusyRetryAttempts = defaultBusyRetryAttempts
	}
	if c.Store.WriteAttempts <= 0 {
		c.Store.WriteAttempts = defaultWriteAttempts
	}
	if c.Store.LockRetryAttempts <= 0 {
		c.Store.LockRetryAttempts = defaultLockRetryAttempts
	}
	if c.Store.LockBackoffMS <= 0 {
		c.Store.LockBackoffMS = defaultLockBackoffMS
	}
	if c.Store.LockMaxBackoffMS < c.Store.LockBackoffMS {
		c.Store.LockMaxBackoffMS = max(defaultLockMaxBackoffMS, c.Store.LockBackoffMS)
	}
}

func (c *Config) normalizeCollection() {
	c.Collection.Mode = strings.ToLower(strings.TrimSpace(c.Collection.Mode))
	if c.Collection.Mode == "" {
		c.Collection.Mode = defaultMode
	}
	c.Collection.SortBy = strings.ToLower(strings.TrimSpace(c.Collection.SortBy))
	if c.Collection.SortBy == "" {
		c.Collection.SortBy = defaultSortBy
	}
}

func (c *Config) normalizeIdentity() {
	c.Identity.UserAgent = strings.TrimSpace(c.Identity.UserAgent)
	if c.Identity.UserAgent == "" {
		c.Identity.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeSync() {
	targets := make([]string, 0, len(c.Sync.Targets))
	for _, target := range c.Sync.Targets {
		target = strings.ToLower(strings.TrimSpace(target))
		if target == "" || slices.Contains(targets, target) {
			continue
		}
		targets = append(targets, target)
	}
	c.Sync.Targets = targets

	brokers := make([]string, 0, len(c.Sync.Kafka.Brokers))
	for _, broker := range c.Sync.Kafka.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	c.Sync.Kafka.Brokers = brokers
	c.Sync.Kafka.Topic = strings.TrimSpace(c.Sync.Kafka.Topic)
	if c.Sync.Kafka.WriteTimeoutSeconds <= 0 {
		c.Sync.Kafka.WriteTimeoutSeconds = defaultKafkaWriteTimeout
	}

	c.Sync.Redis.Addr = strings.TrimSpace(c.Sync.Redis.Addr)
	if c.Sync.Redis.Password == "" {
		if value, ok := os.LookupEnv("REVTRACK_REDIS_PASSWORD"); ok {
			c.Sync.Redis.Password = value
		}
	}
	c.Sync.Redis.KeyPrefix = strings.Trim(strings.TrimSpace(c.Sync.Redis.KeyPrefix), ":")
	if c.Sync.Redis.KeyPrefix == "" {
		c.Sync.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
