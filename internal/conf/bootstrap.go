// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with REVIEWCORE_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or REVIEWCORE_DATA_DATABASE_SOURCE: MySQL connection string
//
// Parameters:
//   - configPath: Path to the configuration file or directory
//
// Returns:
//   - *Bootstrap: Loaded configuration
//   - error: Configuration loading or validation error
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with REVIEWCORE_ prefix
	v.SetEnvPrefix("REVIEWCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without REVIEWCORE_ prefix) for compatibility
	// Bind specific environment variables for required fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "REVIEWCORE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "REVIEWCORE_DATA_REDIS_ADDR")
	_ = v.BindEnv("data.redis.password", "REDIS_PASSWORD", "REVIEWCORE_DATA_REDIS_PASSWORD")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				Db:           v.GetInt("data.redis.db"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			OutputFile: v.GetString("log.output_file"),
			Env:        v.GetString("log.env"),
		},
		Review: &Review{
			ObservationWindow: v.GetDuration("review.observation_window"),
			EscalateAfter: &SLALadder{
				Critical: v.GetDuration("review.escalate_after.critical"),
				High:     v.GetDuration("review.escalate_after.high"),
				Normal:   v.GetDuration("review.escalate_after.normal"),
				Low:      v.GetDuration("review.escalate_after.low"),
			},
			ResponseTarget: &SLALadder{
				Critical: v.GetDuration("review.response_target.critical"),
				High:     v.GetDuration("review.response_target.high"),
				Normal:   v.GetDuration("review.response_target.normal"),
				Low:      v.GetDuration("review.response_target.low"),
			},
			Triggers: &Triggers{
				TradeGuardBlockFor:    v.GetDuration("review.triggers.trade_guard_block_for"),
				DrawdownDailyPct:      v.GetFloat64("review.triggers.drawdown_daily_pct"),
				DrawdownWeeklyPct:     v.GetFloat64("review.triggers.drawdown_weekly_pct"),
				ConsecutiveLosses:     v.GetInt("review.triggers.consecutive_losses"),
				RiskOscillationPoints: v.GetFloat64("review.triggers.risk_oscillation_points"),
				DataSourceErrorRate:   v.GetFloat64("review.triggers.data_source_error_rate"),
				SignalContradictions:  v.GetInt("review.triggers.signal_contradictions"),
				BacktestDivergencePct: v.GetFloat64("review.triggers.backtest_divergence_pct"),
			},
			KnownDataSources:  v.GetStringSlice("review.known_data_sources"),
			NotificationQueue: v.GetString("review.notification_queue"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.db", 0)
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Review defaults
	v.SetDefault("review.observation_window", 48*time.Hour)

	// Escalate-after ladder: exceeding this forces an escalation
	v.SetDefault("review.escalate_after.critical", 30*time.Minute)
	v.SetDefault("review.escalate_after.high", 4*time.Hour)
	v.SetDefault("review.escalate_after.normal", 24*time.Hour)
	v.SetDefault("review.escalate_after.low", 72*time.Hour)

	// Response targets: reporting-only SLA, never forces a transition
	v.SetDefault("review.response_target.critical", 15*time.Minute)
	v.SetDefault("review.response_target.high", time.Hour)
	v.SetDefault("review.response_target.normal", 4*time.Hour)
	v.SetDefault("review.response_target.low", 24*time.Hour)

	// Trigger rule thresholds
	v.SetDefault("review.triggers.trade_guard_block_for", 2*time.Hour)
	v.SetDefault("review.triggers.drawdown_daily_pct", 0.05)
	v.SetDefault("review.triggers.drawdown_weekly_pct", 0.10)
	v.SetDefault("review.triggers.consecutive_losses", 5)
	v.SetDefault("review.triggers.risk_oscillation_points", 30.0)
	v.SetDefault("review.triggers.data_source_error_rate", 0.50)
	v.SetDefault("review.triggers.signal_contradictions", 3)
	v.SetDefault("review.triggers.backtest_divergence_pct", 0.20)

	v.SetDefault("review.known_data_sources", []string{"binance", "coinbase", "kraken", "news_feed"})
	v.SetDefault("review.notification_queue", "review:notifications")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	// Check required database configuration
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if bc.Review == nil || len(bc.Review.KnownDataSources) == 0 {
		missingFields = append(missingFields, "review.known_data_sources")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	return nil
}
