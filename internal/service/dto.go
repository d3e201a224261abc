package service

import (
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/biz"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
)

// Request payloads for the review HTTP surface.

// ManualEventRequest creates a review event from an explicit reviewer call.
type ManualEventRequest struct {
	Reason   string                 `json:"reason"`
	Evidence map[string]interface{} `json:"evidence,omitempty"`
}

// DecisionRequest submits a terminal decision on an event.
// PauseFor is a Go duration string such as "48h".
type DecisionRequest struct {
	Action              string   `json:"action"`
	MaxDrawdownPct      *float64 `json:"max_drawdown_pct,omitempty"`
	PositionSizePct     *float64 `json:"position_size_pct,omitempty"`
	NewPositionLimitPct *float64 `json:"new_position_limit_pct,omitempty"`
	PauseFor            string   `json:"pause_for,omitempty"`
	DataSource          string   `json:"data_source,omitempty"`
	ReasonCode          string   `json:"reason_code,omitempty"`
	Reason              string   `json:"reason"`
	Confidence          string   `json:"confidence,omitempty"`
}

// EscalateRequest requests a manual priority escalation.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// AnnotateRequest attaches a note to an event.
type AnnotateRequest struct {
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"`
}

// EvaluateRequest records an outcome verdict on a decision.
type EvaluateRequest struct {
	Verdict   string  `json:"verdict"`
	ImpactUSD float64 `json:"impact_usd,omitempty"`
	Narrative string  `json:"narrative,omitempty"`
}

// Response payloads.

// ReviewEventReply is the JSON view of a review event.
type ReviewEventReply struct {
	ID               string                 `json:"id"`
	CorrelationID    string                 `json:"correlation_id"`
	TriggerKind      string                 `json:"trigger_kind"`
	TriggerReason    string                 `json:"trigger_reason"`
	TriggerValue     float64                `json:"trigger_value"`
	TriggerThreshold float64                `json:"trigger_threshold"`
	Priority         string                 `json:"priority"`
	Status           string                 `json:"status"`
	Evidence         map[string]interface{} `json:"evidence,omitempty"`
	Snapshot         *model.RiskSnapshot    `json:"snapshot,omitempty"`
	AssignedTo       string                 `json:"assigned_to,omitempty"`
	EscalationCount  int                    `json:"escalation_count"`
	CreatedAt        string                 `json:"created_at"`
	ClaimedAt        string                 `json:"claimed_at,omitempty"`
	ResolvedAt       string                 `json:"resolved_at,omitempty"`
	LastTransitionAt string                 `json:"last_transition_at"`
}

// DecisionReply is the JSON view of a human decision.
type DecisionReply struct {
	ID          string                 `json:"id"`
	EventID     string                 `json:"event_id"`
	UserID      string                 `json:"user_id"`
	Role        string                 `json:"role"`
	Action      string                 `json:"action"`
	ReasonCode  string                 `json:"reason_code,omitempty"`
	Reason      string                 `json:"reason"`
	ParamBefore map[string]interface{} `json:"param_before,omitempty"`
	ParamAfter  map[string]interface{} `json:"param_after,omitempty"`
	Confidence  string                 `json:"confidence"`
	CreatedAt   string                 `json:"created_at"`
}

// AnnotationReply is the JSON view of an annotation.
type AnnotationReply struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Tag       string `json:"tag,omitempty"`
	CreatedAt string `json:"created_at"`
}

// OutcomeReply is the JSON view of an outcome evaluation.
type OutcomeReply struct {
	ID         string  `json:"id"`
	DecisionID string  `json:"decision_id"`
	Evaluator  string  `json:"evaluator"`
	Verdict    string  `json:"verdict"`
	ImpactUSD  float64 `json:"impact_usd"`
	Narrative  string  `json:"narrative,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// AuditEntryReply is the JSON view of one audit ledger entry.
type AuditEntryReply struct {
	ID        int64                  `json:"id"`
	Category  string                 `json:"category"`
	EventID   string                 `json:"event_id,omitempty"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// QueueReply lists events with their count.
type QueueReply struct {
	Events []*ReviewEventReply `json:"events"`
	Total  int                 `json:"total"`
}

// HistoryReply bundles an event with everything attached to it.
type HistoryReply struct {
	Event       *ReviewEventReply  `json:"event"`
	Decisions   []*DecisionReply   `json:"decisions"`
	Annotations []*AnnotationReply `json:"annotations"`
	Outcomes    []*OutcomeReply    `json:"outcomes"`
}

// IngestReply reports the events created by a signal ingest.
type IngestReply struct {
	Created []*ReviewEventReply `json:"created"`
}

// CatalogReply exposes the static action catalogue.
type CatalogReply struct {
	Allowed   []biz.ActionBound `json:"allowed"`
	Forbidden []string          `json:"forbidden"`
}

// ViolationsReply reports the forbidden-attempt count for one reviewer.
type ViolationsReply struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

func toEventReply(ev *model.ReviewEvent) *ReviewEventReply {
	if ev == nil {
		return nil
	}
	return &ReviewEventReply{
		ID:               ev.ID,
		CorrelationID:    ev.CorrelationID,
		TriggerKind:      string(ev.TriggerKind),
		TriggerReason:    ev.TriggerReason,
		TriggerValue:     ev.TriggerValue,
		TriggerThreshold: ev.TriggerThreshold,
		Priority:         string(ev.Priority),
		Status:           string(ev.Status),
		Evidence:         ev.Evidence,
		Snapshot:         ev.Snapshot,
		AssignedTo:       ev.AssignedTo,
		EscalationCount:  ev.EscalationCount,
		CreatedAt:        formatTime(ev.CreatedAt),
		ClaimedAt:        formatTimePtr(ev.ClaimedAt),
		ResolvedAt:       formatTimePtr(ev.ResolvedAt),
		LastTransitionAt: formatTime(ev.LastTransitionAt),
	}
}

func toEventReplies(events []*model.ReviewEvent) []*ReviewEventReply {
	out := make([]*ReviewEventReply, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventReply(ev))
	}
	return out
}

func toDecisionReply(d *model.HumanDecision) *DecisionReply {
	if d == nil {
		return nil
	}
	return &DecisionReply{
		ID:          d.ID,
		EventID:     d.EventID,
		UserID:      d.UserID,
		Role:        string(d.Role),
		Action:      string(d.Action),
		ReasonCode:  d.ReasonCode,
		Reason:      d.Reason,
		ParamBefore: d.ParamBefore,
		ParamAfter:  d.ParamAfter,
		Confidence:  d.Confidence,
		CreatedAt:   formatTime(d.CreatedAt),
	}
}

func toAnnotationReply(a *model.Annotation) *AnnotationReply {
	if a == nil {
		return nil
	}
	return &AnnotationReply{
		ID:        a.ID,
		EventID:   a.EventID,
		Author:    a.Author,
		Text:      a.Text,
		Tag:       a.Tag,
		CreatedAt: formatTime(a.CreatedAt),
	}
}

func toOutcomeReply(o *model.OutcomeEvaluation) *OutcomeReply {
	if o == nil {
		return nil
	}
	return &OutcomeReply{
		ID:         o.ID,
		DecisionID: o.DecisionID,
		Evaluator:  o.Evaluator,
		Verdict:    o.Verdict,
		ImpactUSD:  o.ImpactUSD,
		Narrative:  o.Narrative,
		CreatedAt:  formatTime(o.CreatedAt),
	}
}

func toHistoryReply(h *model.EventHistory) *HistoryReply {
	reply := &HistoryReply{
		Event:       toEventReply(h.Event),
		Decisions:   []*DecisionReply{},
		Annotations: []*AnnotationReply{},
		Outcomes:    []*OutcomeReply{},
	}
	for _, d := range h.Decisions {
		reply.Decisions = append(reply.Decisions, toDecisionReply(d))
	}
	for _, a := range h.Annotations {
		reply.Annotations = append(reply.Annotations, toAnnotationReply(a))
	}
	for _, o := range h.Outcomes {
		reply.Outcomes = append(reply.Outcomes, toOutcomeReply(o))
	}
	return reply
}

func toAuditReplies(entries []*model.AuditEntry) []*AuditEntryReply {
	out := make([]*AuditEntryReply, 0, len(entries))
	for _, e := range entries {
		out = append(out, &AuditEntryReply{
			ID:        e.ID,
			Category:  e.Category,
			EventID:   e.EventID,
			Actor:     e.Actor,
			Action:    e.Action,
			Details:   e.Details,
			CreatedAt: formatTime(e.CreatedAt),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
