package model

import "time"

// NotificationIntent is emitted when a review event is created. Delivery
// is external: the intent is pushed onto a Redis list consumed by the
// notifier process (Telegram, dashboard), fire-and-forget from the
// transaction that created the event.
type NotificationIntent struct {
	EventID         string        `json:"event_id"`
	TriggerKind     string        `json:"trigger_kind"`
	Priority        string        `json:"priority"`
	CreatedAt       time.Time     `json:"created_at"`
	EvidenceSummary string        `json:"evidence_summary"`
	Snapshot        *RiskSnapshot `json:"snapshot,omitempty"`
}
