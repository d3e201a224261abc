package model

import "time"

// SignalSnapshot is a read-only view of the operational signals the
// trigger detector evaluates on each sweep. Producers (risk scorer,
// trade guard, data pipeline health, execution engine) fill in the
// sections they own; absent sections are skipped by the rules.
type SignalSnapshot struct {
	TakenAt time.Time

	TradeGuard    *TradeGuardSignal
	Drawdown      *DrawdownSignal
	LossStreak    *LossStreakSignal
	RiskScore     *RiskScoreSignal
	DataSources   []DataSourceSignal
	SignalSources []SourceOpinion
	Backtest      *BacktestSignal
}

// TradeGuardSignal reports how long the trade guard has been blocking.
type TradeGuardSignal struct {
	Blocked     bool
	BlockedFor  time.Duration
	BlockReason string
}

// DrawdownSignal reports account drawdown as fractions (0.05 = 5%).
type DrawdownSignal struct {
	Daily  float64
	Weekly float64
}

// LossStreakSignal reports the current consecutive-loss count.
type LossStreakSignal struct {
	ConsecutiveLosses int
}

// RiskScoreSignal reports risk score movement over the last hour.
type RiskScoreSignal struct {
	Current       float64
	DeltaLastHour float64
}

// DataSourceSignal reports per-source health.
type DataSourceSignal struct {
	Source    string
	ErrorRate float64
}

// SourceOpinion is one independent source's directional read,
// used for cross-source contradiction detection.
type SourceOpinion struct {
	Source    string
	Direction string // "long", "short" or "neutral"
}

// BacktestSignal reports live-vs-backtest performance deviation as a fraction.
type BacktestSignal struct {
	Deviation float64
}

// RiskSnapshot captures the risk/decision state at trigger time. It is
// embedded into the notification intent and stored with the event so a
// reviewer sees what the system saw.
type RiskSnapshot struct {
	Price        float64 `json:"price,omitempty"`
	RiskScore    float64 `json:"risk_score,omitempty"`
	GuardBlocked bool    `json:"guard_blocked"`
	TakenAt      string  `json:"taken_at,omitempty"`
}
