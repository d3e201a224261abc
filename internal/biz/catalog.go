package biz

import (
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/model"
)

// Numeric bounds enforced by the authorizer. These are hard limits, not
// advisory; a payload outside them fails with OUT_OF_BOUNDS.
const (
	DrawdownTargetFloor   = 0.05 // adjust_risk_threshold: drawdown target >= 5%
	DrawdownTargetCeiling = 0.20 // adjust_risk_threshold: drawdown target <= 20%
	PositionSizeFloor     = 0.01 // adjust_risk_threshold: position-size target >= 1%
	PositionSizeCeiling   = 0.10 // adjust_risk_threshold: position-size target <= 10%
	MaxPauseDuration      = 168 * time.Hour
)

// Live parameter keys mutated by decisions.
const (
	ParamMaxDrawdownPct   = "max_drawdown_pct"
	ParamPositionSizePct  = "position_size_pct"
	ParamPositionLimitPct = "position_limit_pct"
	ParamStrategyPaused   = "strategy_paused"
	ParamDataSourcePrefix = "data_source_enabled:" // + source identifier
)

// roleRank orders roles by seniority for the cumulative permission check.
var roleRank = map[model.Role]int{
	model.RoleJuniorAnalyst: 1,
	model.RoleAnalyst:       2,
	model.RoleSeniorAnalyst: 3,
	model.RoleRiskManager:   4,
	model.RoleAdministrator: 5,
}

// actionTier is the minimum role rank required for each action.
var actionTier = map[model.Action]int{
	model.ActionAcknowledgeOnly:     1,
	model.ActionRequestEscalation:   1,
	model.ActionMarkAnomaly:         2,
	model.ActionAnnotate:            2,
	model.ActionAdjustRiskThreshold: 3,
	model.ActionReducePositionLimit: 3,
	model.ActionPauseStrategy:       4,
	model.ActionResumeStrategy:      4,
	model.ActionEnableDataSource:    5,
	model.ActionDisableDataSource:   5,
}

// forbiddenActions are always rejected regardless of role. An attempt is a
// security event: it is audited, counted against the user, and never
// reaches the execution engine.
var forbiddenActions = map[string]struct{}{
	"place_trade":                 {},
	"force_trade":                 {},
	"override_trade_guard":        {},
	"modify_history":              {},
	"disable_all_data_sources":    {},
	"set_unbounded_position_size": {},
}

// mutatingActions create a ParameterChange when authorized.
var mutatingActions = map[model.Action]struct{}{
	model.ActionAdjustRiskThreshold: {},
	model.ActionReducePositionLimit: {},
	model.ActionPauseStrategy:       {},
	model.ActionResumeStrategy:      {},
	model.ActionEnableDataSource:    {},
	model.ActionDisableDataSource:   {},
}

// ValidRole reports whether r is a known role.
func ValidRole(r model.Role) bool {
	_, ok := roleRank[r]
	return ok
}

// KnownAction reports whether a is in the allowed action catalogue.
func KnownAction(a model.Action) bool {
	_, ok := actionTier[a]
	return ok
}

// RoleAllows reports whether role's tier covers action.
// Unknown roles and unknown actions are never allowed.
func RoleAllows(role model.Role, action model.Action) bool {
	rank, ok := roleRank[role]
	if !ok {
		return false
	}
	tier, ok := actionTier[action]
	if !ok {
		return false
	}
	return rank >= tier
}

// PermittedActions returns the cumulative action set for role,
// in catalogue order.
func PermittedActions(role model.Role) []model.Action {
	rank, ok := roleRank[role]
	if !ok {
		return nil
	}
	ordered := []model.Action{
		model.ActionAcknowledgeOnly,
		model.ActionRequestEscalation,
		model.ActionMarkAnomaly,
		model.ActionAnnotate,
		model.ActionAdjustRiskThreshold,
		model.ActionReducePositionLimit,
		model.ActionPauseStrategy,
		model.ActionResumeStrategy,
		model.ActionEnableDataSource,
		model.ActionDisableDataSource,
	}
	var out []model.Action
	for _, a := range ordered {
		if actionTier[a] <= rank {
			out = append(out, a)
		}
	}
	return out
}

// IsForbidden reports whether the raw action string is hard-blocked.
func IsForbidden(action string) bool {
	_, ok := forbiddenActions[action]
	return ok
}

// IsMutating reports whether action produces a ParameterChange.
func IsMutating(action model.Action) bool {
	_, ok := mutatingActions[action]
	return ok
}

// ActionBound describes one allowed action for the catalogue endpoint.
type ActionBound struct {
	Action      model.Action `json:"action"`
	MinimumRole model.Role   `json:"minimum_role"`
	Bound       string       `json:"bound"`
	Mutating    bool         `json:"mutating"`
}

// ActionCatalog returns the static allowed and forbidden action catalogues
// exposed on the query surface.
func ActionCatalog() (allowed []ActionBound, forbidden []string) {
	allowed = []ActionBound{
		{model.ActionAcknowledgeOnly, model.RoleJuniorAnalyst, "no live-configuration effect", false},
		{model.ActionRequestEscalation, model.RoleJuniorAnalyst, "no live-configuration effect", false},
		{model.ActionMarkAnomaly, model.RoleAnalyst, "no live-configuration effect", false},
		{model.ActionAnnotate, model.RoleAnalyst, "no live-configuration effect", false},
		{model.ActionAdjustRiskThreshold, model.RoleSeniorAnalyst, "drawdown target within 5-20%; position-size target within 1-10%", true},
		{model.ActionReducePositionLimit, model.RoleSeniorAnalyst, "new limit within 0-100% of current limit, may only shrink", true},
		{model.ActionPauseStrategy, model.RoleRiskManager, "duration <= 168 hours", true},
		{model.ActionResumeStrategy, model.RoleRiskManager, "no bound", true},
		{model.ActionEnableDataSource, model.RoleAdministrator, "target must be a known source identifier", true},
		{model.ActionDisableDataSource, model.RoleAdministrator, "target must be a known source identifier; may not disable the last enabled source", true},
	}
	forbidden = []string{
		"place_trade",
		"force_trade",
		"override_trade_guard",
		"modify_history",
		"disable_all_data_sources",
		"set_unbounded_position_size",
	}
	return allowed, forbidden
}
