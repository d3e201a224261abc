package model

// Audit entry category constants
const (
	AuditCategoryTransition      = "TRANSITION"
	AuditCategoryDecision        = "DECISION"
	AuditCategoryParameterChange = "PARAMETER_CHANGE"
	AuditCategorySecurity        = "SECURITY"
	AuditCategoryEscalation      = "ESCALATION"
)
