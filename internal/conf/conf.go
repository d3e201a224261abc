package conf

import "time"

// Bootstrap is the top-level configuration for the review governance service.
type Bootstrap struct {
	Server *Server
	Data   *Data
	Log    *Log
	Review *Review
}

// Server holds transport configuration.
type Server struct {
	Http *ServerHTTP
}

// ServerHTTP holds HTTP server configuration.
type ServerHTTP struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds persistence configuration.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database holds the MySQL connection configuration.
type Database struct {
	Driver string
	Source string
}

// Redis holds the Redis connection configuration.
type Redis struct {
	Network      string
	Addr         string
	Password     string
	Db           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	OutputFile string
	Env        string
}

// Review holds the governance engine tunables: trigger rule thresholds,
// SLA ladders and the outcome observation window.
type Review struct {
	// ObservationWindow is how long a resolved decision must age before
	// an outcome verdict may be recorded.
	ObservationWindow time.Duration

	// EscalateAfter is the hard "escalate-after" ladder keyed by priority.
	// ResponseTarget is the softer reporting-only SLA ladder.
	EscalateAfter  *SLALadder
	ResponseTarget *SLALadder

	Triggers *Triggers

	// KnownDataSources is the closed set of source identifiers that
	// enable_data_source / disable_data_source may target.
	KnownDataSources []string

	// NotificationQueue is the Redis list notification intents are pushed to.
	NotificationQueue string
}

// SLALadder maps event priority to a duration budget.
type SLALadder struct {
	Critical time.Duration
	High     time.Duration
	Normal   time.Duration
	Low      time.Duration
}

// ByPriority returns the budget for the given priority string.
// Unknown priorities fall back to the Normal budget.
func (l *SLALadder) ByPriority(priority string) time.Duration {
	switch priority {
	case "critical":
		return l.Critical
	case "high":
		return l.High
	case "low":
		return l.Low
	default:
		return l.Normal
	}
}

// Triggers holds the rule table thresholds for the trigger detector.
type Triggers struct {
	TradeGuardBlockFor    time.Duration // trade_guard_block: blocked longer than this
	DrawdownDailyPct      float64       // drawdown_threshold: daily, fraction (0.05 = 5%)
	DrawdownWeeklyPct     float64       // drawdown_threshold: weekly, fraction
	ConsecutiveLosses     int           // consecutive_losses: losing streak length
	RiskOscillationPoints float64       // risk_oscillation: score delta per hour
	DataSourceErrorRate   float64       // data_source_degraded: error fraction
	SignalContradictions  int           // signal_contradiction: disagreeing sources
	BacktestDivergencePct float64       // backtest_divergence: live vs backtest delta
}
