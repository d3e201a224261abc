package model

import "time"

// Status is the review event state machine position.
// Transitions are monotonic: PENDING -> IN_PROGRESS -> RESOLVED, with
// any non-terminal state able to move to ESCALATED. ESCALATED re-enters
// IN_PROGRESS once claimed at the new priority. RESOLVED is terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusEscalated  Status = "escalated"
	StatusResolved   Status = "resolved"
)

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool { return s == StatusResolved }

// Open reports whether an event in s still counts against trigger
// deduplication and SLA sweeps.
func (s Status) Open() bool { return !s.Terminal() }

// Priority is the review urgency tier.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Escalate returns the priority one level up. Critical is the cap.
func (p Priority) Escalate() Priority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	case PriorityHigh, PriorityCritical:
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// TriggerKind identifies which rule produced an event.
type TriggerKind string

const (
	TriggerTradeGuardBlock     TriggerKind = "trade_guard_block"
	TriggerDrawdownThreshold   TriggerKind = "drawdown_threshold"
	TriggerConsecutiveLosses   TriggerKind = "consecutive_losses"
	TriggerRiskOscillation     TriggerKind = "risk_oscillation"
	TriggerDataSourceDegraded  TriggerKind = "data_source_degraded"
	TriggerSignalContradiction TriggerKind = "signal_contradiction"
	TriggerBacktestDivergence  TriggerKind = "backtest_divergence"
	TriggerManualRequest       TriggerKind = "manual_request"
)

// Role is a reviewer seniority tier. Permissions are strictly cumulative:
// each tier inherits everything below it. The permission matrix lives in
// the biz layer.
type Role string

const (
	RoleJuniorAnalyst Role = "junior_analyst"
	RoleAnalyst       Role = "analyst"
	RoleSeniorAnalyst Role = "senior_analyst"
	RoleRiskManager   Role = "risk_manager"
	RoleAdministrator Role = "administrator"
)

// Action is a reviewer action submitted through the decision authorizer.
type Action string

const (
	ActionAcknowledgeOnly     Action = "acknowledge_only"
	ActionRequestEscalation   Action = "request_escalation"
	ActionMarkAnomaly         Action = "mark_anomaly"
	ActionAnnotate            Action = "annotate"
	ActionAdjustRiskThreshold Action = "adjust_risk_threshold"
	ActionReducePositionLimit Action = "reduce_position_limit"
	ActionPauseStrategy       Action = "pause_strategy"
	ActionResumeStrategy      Action = "resume_strategy"
	ActionEnableDataSource    Action = "enable_data_source"
	ActionDisableDataSource   Action = "disable_data_source"
)

// ReviewEvent is a durable record of a detected condition requiring human
// judgment. Events are never deleted; only status and claim fields mutate,
// and every mutation writes an audit ledger entry in the same transaction.
type ReviewEvent struct {
	ID               string
	CorrelationID    string
	TriggerKind      TriggerKind
	TriggerReason    string
	TriggerValue     float64
	TriggerThreshold float64
	Priority         Priority
	Status           Status
	Evidence         map[string]interface{}
	Snapshot         *RiskSnapshot
	AssignedTo       string
	EscalationCount  int
	CreatedAt        time.Time
	ClaimedAt        *time.Time
	ResolvedAt       *time.Time
	LastTransitionAt time.Time
}

// HumanDecision is an immutable record of one terminal reviewer action on
// one event. Non-terminal actions (claim, annotate, escalate) never
// produce a decision.
type HumanDecision struct {
	ID          string
	EventID     string
	UserID      string
	Role        Role
	Action      Action
	ReasonCode  string
	Reason      string
	ParamBefore map[string]interface{}
	ParamAfter  map[string]interface{}
	Confidence  string // low / medium / high
	CreatedAt   time.Time
}

// ParameterChange is the effect of an allowed decision on one live
// configuration value. Created if and only if the decision's action
// mutates live configuration.
type ParameterChange struct {
	ID          string
	DecisionID  string
	ParamKey    string
	BeforeValue string
	AfterValue  string
	EffectiveAt time.Time
	ExpiresAt   *time.Time // set for time-bounded actions such as a pause
}

// Annotation is a non-actionable note on an event. It never changes status.
type Annotation struct {
	ID        string
	EventID   string
	Author    string
	Text      string
	Tag       string
	CreatedAt time.Time
}

// OutcomeEvaluation is a deferred verdict on a resolved decision.
type OutcomeEvaluation struct {
	ID         string
	DecisionID string
	Evaluator  string
	Verdict    string // correct / incorrect / neutral / insufficient_data
	ImpactUSD  float64
	Narrative  string
	CreatedAt  time.Time
}

// AuditEntry is one row of the append-only audit ledger.
type AuditEntry struct {
	ID        int64
	Category  string // AuditCategory* constants
	EventID   string
	Actor     string
	Action    string
	Details   map[string]interface{}
	CreatedAt time.Time
}

// EventHistory bundles everything attached to a single event.
type EventHistory struct {
	Event       *ReviewEvent
	Decisions   []*HumanDecision
	Annotations []*Annotation
	Outcomes    []*OutcomeEvaluation
}

// QueueFilter narrows event listings.
type QueueFilter struct {
	Statuses    []Status
	Priority    Priority
	TriggerKind TriggerKind
	Limit       int
	OnlyOpen    bool
}

// AuditFilter narrows ledger queries. Results are always in creation order.
type AuditFilter struct {
	Category string
	EventID  string
	Actor    string
	Limit    int
}

// QueueStats is the reporting view of the queue.
type QueueStats struct {
	CountsByStatus        map[string]int64
	CountsByPriority      map[string]int64
	OpenCount             int64
	MeanResolutionSeconds float64
	SLAComplianceRate     float64 // fraction of resolved events claimed within the response target
}
