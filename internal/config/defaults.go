package config

const (
	defaultDataDir              = "~/.local/share/revtrack"
	defaultLogDir               = "~/.local/share/revtrack/logs"
	defaultSnapshotDir          = "~/.local/share/revtrack/snapshots"
	defaultStoreFilename        = "reviews.db"
	defaultBusyTimeoutMS        = 5000
	defaultBusyRetryAttempts    = 5
	defaultWriteAttempts        = 3
	defaultLockRetryAttempts    = 8
	defaultLockBackoffMS        = 10
	defaultLockMaxBackoffMS     = 500
	defaultMode                 = "update"
	defaultStopThreshold        = 3
	defaultMinBatchSize         = 3
	defaultSortBy               = "newest"
	defaultRedirectTimeout      = 10
	defaultMaxRedirects         = 10
	defaultUserAgent            = "revtrack/dev"
	defaultHistoryRetentionDays = 90
	defaultKafkaTopic           = "revtrack.reviews"
	defaultKafkaWriteTimeout    = 10
	defaultRedisAddr            = "127.0.0.1:6379"
	defaultRedisKeyPrefix       = "revtrack"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Sync target names.
const (
	TargetJSON  = "json"
	TargetKafka = "kafka"
	TargetRedis = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			SnapshotDir: defaultSnapshotDir,
		},
		Store: Store{
			Filename:          defaultStoreFilename,
			BusyTimeoutMS:     defaultBusyTimeoutMS,
			BusyRetryAttempts: defaultBusyRetryAttempts,
			WriteAttempts:     defaultWriteAttempts,
			LockRetryAttempts: defaultLockRetryAttempts,
			LockBackoffMS:     defaultLockBackoffMS,
			LockMaxBackoffMS:  defaultLockMaxBackoffMS,
		},
		Collection: Collection{
			Mode:              defaultMode,
			StopThreshold:     defaultStopThreshold,
			MinBatchSize:      defaultMinBatchSize,
			SortBy:            defaultSortBy,
			MarkMissingOnFull: true,
		},
		Identity: Identity{
			FollowRedirects:        true,
			RedirectTimeoutSeconds: defaultRedirectTimeout,
			MaxRedirects:           defaultMaxRedirects,
			UserAgent:              defaultUserAgent,
		},
		History: History{
			RetentionDays: defaultHistoryRetentionDays,
		},
		Sync: Sync{
			Targets: []string{TargetJSON},
			Kafka: Kafka{
				Topic:               defaultKafkaTopic,
				WriteTimeoutSeconds: defaultKafkaWriteTimeout,
			},
			Redis: Redis{
				Addr:      defaultRedisAddr,
				KeyPrefix: defaultRedisKeyPrefix,
			},
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
