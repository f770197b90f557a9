package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	RPC       RPCConfig       `yaml:"rpc" mapstructure:"rpc"`
	Market    MarketConfig    `yaml:"market" mapstructure:"market"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Tuning    TuningConfig    `yaml:"tuning" mapstructure:"tuning"`
	Cleanup   CleanupConfig   `yaml:"cleanup" mapstructure:"cleanup"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RPCConfig configures the Sui fullnode client.
type RPCConfig struct {
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	MaxRPS         float64 `yaml:"max_rps" mapstructure:"max_rps"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
	BreakerEnabled bool    `yaml:"breaker_enabled" mapstructure:"breaker_enabled"`
}

// MarketConfig identifies the lending market and its data service.
type MarketConfig struct {
	DataURL    string `yaml:"data_url" mapstructure:"data_url"`
	MarketID   string `yaml:"market_id" mapstructure:"market_id"`
	MarketType string `yaml:"market_type" mapstructure:"market_type"`
}

// DiscoveryConfig configures event-log pagination.
type DiscoveryConfig struct {
	// EventType is the Move event emitted when a capability is created.
	EventType string `yaml:"event_type" mapstructure:"event_type"`
	// PayloadField is the parsed-JSON field carrying the capability object ID.
	PayloadField string `yaml:"payload_field" mapstructure:"payload_field"`
	PageSize     int    `yaml:"page_size" mapstructure:"page_size"`
	// MaxPages bounds worst-case work against a huge history. Soft cap: the
	// paginator stops and logs, it does not error.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	// Dedupe collapses duplicate candidate IDs before resolution.
	Dedupe bool `yaml:"dedupe" mapstructure:"dedupe"`
}

// ResolveConfig configures object resolution.
type ResolveConfig struct {
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
	// TypeSuffix is the Move type suffix a resolved object must carry to be
	// treated as a capability (empty disables the check).
	TypeSuffix string `yaml:"type_suffix" mapstructure:"type_suffix"`
}

// TuningConfig holds the adaptive batch controller parameters. The
// thresholds and step sizes are empirically chosen and have no derivation;
// they are configuration, not invariants, so they can be tuned against real
// rate-limit behavior without a code change.
type TuningConfig struct {
	InitialBatchSize int `yaml:"initial_batch_size" mapstructure:"initial_batch_size"`
	MinBatchSize     int `yaml:"min_batch_size" mapstructure:"min_batch_size"`
	MaxBatchSize     int `yaml:"max_batch_size" mapstructure:"max_batch_size"`

	InitialDelayMS int `yaml:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	MinDelayMS     int `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`

	// Aggressive slowdown triggers when a batch has failures and either the
	// failure fraction exceeds AggressiveFailureFraction or the success rate
	// falls below AggressiveSuccessRate.
	AggressiveFailureFraction float64 `yaml:"aggressive_failure_fraction" mapstructure:"aggressive_failure_fraction"`
	AggressiveSuccessRate     float64 `yaml:"aggressive_success_rate" mapstructure:"aggressive_success_rate"`
	AggressiveSizeStep        int     `yaml:"aggressive_size_step" mapstructure:"aggressive_size_step"`
	AggressiveDelayStepMS     int     `yaml:"aggressive_delay_step_ms" mapstructure:"aggressive_delay_step_ms"`

	// Moderate slowdown applies to any other batch with failures. Its size
	// floor is distinct from MinBatchSize.
	ModerateSizeStep    int `yaml:"moderate_size_step" mapstructure:"moderate_size_step"`
	ModerateSizeFloor   int `yaml:"moderate_size_floor" mapstructure:"moderate_size_floor"`
	ModerateDelayStepMS int `yaml:"moderate_delay_step_ms" mapstructure:"moderate_delay_step_ms"`

	// Speed-up requires zero failures, success rate at or above
	// SpeedUpSuccessRate, and the consecutive-clean-batch quota.
	SpeedUpSuccessRate   float64 `yaml:"speed_up_success_rate" mapstructure:"speed_up_success_rate"`
	StabilitySuccessRate float64 `yaml:"stability_success_rate" mapstructure:"stability_success_rate"`
	SpeedUpSizeStep      int     `yaml:"speed_up_size_step" mapstructure:"speed_up_size_step"`
	SpeedUpDelayStepMS   int     `yaml:"speed_up_delay_step_ms" mapstructure:"speed_up_delay_step_ms"`

	// Hysteresis: clean batches required to speed up outside recovery mode,
	// and to exit recovery mode once entered.
	SpeedUpAfter      int `yaml:"speed_up_after" mapstructure:"speed_up_after"`
	RecoveryExitAfter int `yaml:"recovery_exit_after" mapstructure:"recovery_exit_after"`

	// Main-pass per-record retry schedule.
	FetchAttempts      int `yaml:"fetch_attempts" mapstructure:"fetch_attempts"`
	FetchBackoffStepMS int `yaml:"fetch_backoff_step_ms" mapstructure:"fetch_backoff_step_ms"`
}

// CleanupConfig holds the fixed conservative schedule of the cleanup pass.
type CleanupConfig struct {
	Attempts      int `yaml:"attempts" mapstructure:"attempts"`
	BackoffStepMS int `yaml:"backoff_step_ms" mapstructure:"backoff_step_ms"`
	RecordPauseMS int `yaml:"record_pause_ms" mapstructure:"record_pause_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchBackoffStep returns the main-pass backoff step as a duration.
func (t TuningConfig) FetchBackoffStep() time.Duration {
	return time.Duration(t.FetchBackoffStepMS) * time.Millisecond
}

// BackoffStep returns the cleanup backoff step as a duration.
func (c CleanupConfig) BackoffStep() time.Duration {
	return time.Duration(c.BackoffStepMS) * time.Millisecond
}

// RecordPause returns the inter-record pause as a duration.
func (c CleanupConfig) RecordPause() time.Duration {
	return time.Duration(c.RecordPauseMS) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TVLSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("rpc.endpoint", "https://fullnode.mainnet.sui.io:443")
	v.SetDefault("rpc.max_rps", 25.0)
	v.SetDefault("rpc.burst", 25)
	v.SetDefault("rpc.breaker_enabled", true)
	v.SetDefault("market.data_url", "https://api.lumenlend.io/v1")
	v.SetDefault("market.market_id", "")
	v.SetDefault("market.market_type", "main")
	v.SetDefault("discovery.event_type", "0x2a7e9d::obligation::ObligationKeyCreated")
	v.SetDefault("discovery.payload_field", "cap_id")
	v.SetDefault("discovery.page_size", 50)
	v.SetDefault("discovery.max_pages", 20)
	v.SetDefault("discovery.dedupe", true)
	v.SetDefault("resolve.chunk_size", 10)
	v.SetDefault("resolve.type_suffix", "::obligation::ObligationKey")
	v.SetDefault("tuning.initial_batch_size", 15)
	v.SetDefault("tuning.min_batch_size", 3)
	v.SetDefault("tuning.max_batch_size", 20)
	v.SetDefault("tuning.initial_delay_ms", 300)
	v.SetDefault("tuning.min_delay_ms", 100)
	v.SetDefault("tuning.max_delay_ms", 2000)
	v.SetDefault("tuning.aggressive_failure_fraction", 0.20)
	v.SetDefault("tuning.aggressive_success_rate", 0.70)
	v.SetDefault("tuning.aggressive_size_step", 5)
	v.SetDefault("tuning.aggressive_delay_step_ms", 400)
	v.SetDefault("tuning.moderate_size_step", 2)
	v.SetDefault("tuning.moderate_size_floor", 5)
	v.SetDefault("tuning.moderate_delay_step_ms", 200)
	v.SetDefault("tuning.speed_up_success_rate", 0.95)
	v.SetDefault("tuning.stability_success_rate", 0.90)
	v.SetDefault("tuning.speed_up_size_step", 3)
	v.SetDefault("tuning.speed_up_delay_step_ms", 100)
	v.SetDefault("tuning.speed_up_after", 2)
	v.SetDefault("tuning.recovery_exit_after", 3)
	v.SetDefault("tuning.fetch_attempts", 3)
	v.SetDefault("tuning.fetch_backoff_step_ms", 1000)
	v.SetDefault("cleanup.attempts", 5)
	v.SetDefault("cleanup.backoff_step_ms", 2000)
	v.SetDefault("cleanup.record_pause_ms", 1500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
