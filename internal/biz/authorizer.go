package biz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
	reverr "github.com/cuongccna/ProjectBotTrading/pkg/errors"
	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// DecisionPayload carries the action-specific arguments of a decision
// submission. Only the fields relevant to the action are read.
type DecisionPayload struct {
	// adjust_risk_threshold targets, as fractions (0.15 = 15%).
	MaxDrawdownPct  *float64
	PositionSizePct *float64

	// reduce_position_limit target, as a fraction of equity.
	NewPositionLimitPct *float64

	// pause_strategy duration.
	PauseFor time.Duration

	// enable_data_source / disable_data_source target.
	DataSource string

	ReasonCode string
	Reason     string
	Confidence string // low / medium / high, defaults to medium
}

// DecisionAuthorizer is the single gate through which a human action can
// affect live configuration. It validates role and bounds, then commits
// the decision, the parameter change and the RESOLVED transition in one
// transaction through the repo.
type DecisionAuthorizer struct {
	repo       ReviewRepo
	audit      AuditRepo
	params     ParamStore
	violations ViolationCounter
	review     *ReviewUsecase
	cfg        *conf.Review
	logger     *pkglog.LogHelper
}

// NewDecisionAuthorizer creates the authorizer.
func NewDecisionAuthorizer(
	repo ReviewRepo,
	audit AuditRepo,
	params ParamStore,
	violations ViolationCounter,
	review *ReviewUsecase,
	cfg *conf.Review,
	logger log.Logger,
) *DecisionAuthorizer {
	return &DecisionAuthorizer{
		repo:       repo,
		audit:      audit,
		params:     params,
		violations: violations,
		review:     review,
		cfg:        cfg,
		logger:     pkglog.NewLogHelper(logger),
	}
}

// AuthorizeAndApply validates and commits a terminal decision on eventID.
//
// Order of checks: forbidden catalogue, role permission, numeric bounds.
// On success the event is RESOLVED atomically with its HumanDecision and
// any derived ParameterChange; live-configuration propagation happens
// after commit and never rolls the decision back. On any failure the
// event keeps its current state.
func (a *DecisionAuthorizer) AuthorizeAndApply(ctx context.Context, eventID, userID string, role model.Role, action string, payload *DecisionPayload) (*model.HumanDecision, error) {
	start := time.Now()
	if payload == nil {
		payload = &DecisionPayload{}
	}

	// Forbidden actions are rejected before anything else, for every role.
	if IsForbidden(action) {
		return nil, a.rejectForbidden(ctx, eventID, userID, role, action, "forbidden action catalogue")
	}

	act := model.Action(action)
	if !KnownAction(act) {
		return nil, reverr.NewOutOfBoundsError("unknown action %q", action)
	}
	if act == model.ActionRequestEscalation || act == model.ActionAnnotate {
		// Non-terminal actions go through Escalate / Annotate, never here.
		return nil, reverr.NewInvalidStateError(eventID, "n/a", action)
	}
	if !RoleAllows(role, act) {
		a.logger.SecurityWithContext(ctx, "action rejected: insufficient role",
			"event_id", eventID, "reviewer_id", userID, "role", string(role), "action", action)
		return nil, reverr.NewInsufficientRoleError(string(role), string(act))
	}

	change, before, after, err := a.buildChange(ctx, eventID, userID, role, act, payload)
	if err != nil {
		return nil, err
	}

	confidence := payload.Confidence
	if confidence == "" {
		confidence = "medium"
	}
	decision := &model.HumanDecision{
		ID:          uuid.NewString(),
		EventID:     eventID,
		UserID:      userID,
		Role:        role,
		Action:      act,
		ReasonCode:  payload.ReasonCode,
		Reason:      payload.Reason,
		ParamBefore: before,
		ParamAfter:  after,
		Confidence:  confidence,
		CreatedAt:   time.Now().UTC(),
	}
	if change != nil {
		change.DecisionID = decision.ID
	}

	if err := a.repo.ResolveEvent(ctx, eventID, userID, decision, change); err != nil {
		return nil, err
	}

	// Downstream propagation is fire-and-forget: the decision is durable,
	// the configuration store catches up with its own retry cadence.
	if change != nil {
		if err := a.params.Apply(ctx, change); err != nil {
			a.logger.Errorw("msg", "live parameter propagation failed, will converge on next read",
				"param_key", change.ParamKey, "decision_id", decision.ID, "error", err)
		}
	}

	a.logger.DecisionRecorded(eventID, userID, action, time.Since(start).Milliseconds())
	return decision, nil
}

// AuthorizeEscalation performs a manual reviewer escalation after
// checking the request_escalation permission.
func (a *DecisionAuthorizer) AuthorizeEscalation(ctx context.Context, eventID, userID string, role model.Role, reason string) (*model.ReviewEvent, error) {
	if !RoleAllows(role, model.ActionRequestEscalation) {
		return nil, reverr.NewInsufficientRoleError(string(role), string(model.ActionRequestEscalation))
	}
	if reason == "" {
		reason = "manual escalation request"
	}
	return a.review.Escalate(ctx, eventID, reason, userID)
}

// AuthorizeAnnotation checks the annotate permission and attaches a note.
func (a *DecisionAuthorizer) AuthorizeAnnotation(ctx context.Context, eventID, userID string, role model.Role, text, tag string) (*model.Annotation, error) {
	if !RoleAllows(role, model.ActionAnnotate) {
		return nil, reverr.NewInsufficientRoleError(string(role), string(model.ActionAnnotate))
	}
	return a.review.Annotate(ctx, eventID, userID, text, tag)
}

// Violations returns the forbidden-attempt count for a user.
func (a *DecisionAuthorizer) Violations(ctx context.Context, userID string) (int64, error) {
	return a.violations.Count(ctx, userID)
}

// rejectForbidden handles the mandatory side effects of a forbidden
// attempt: a security audit entry and a violation counter increment.
// Both must happen even though the request is rejected; a ledger write
// failure escalates to StorageUnavailable.
func (a *DecisionAuthorizer) rejectForbidden(ctx context.Context, eventID, userID string, role model.Role, action, why string) error {
	entry := &model.AuditEntry{
		Category: model.AuditCategorySecurity,
		EventID:  eventID,
		Actor:    userID,
		Action:   action,
		Details: map[string]interface{}{
			"role":   string(role),
			"reason": why,
		},
	}
	if err := a.audit.Append(ctx, entry); err != nil {
		return reverr.NewStorageUnavailableError(err)
	}

	count, err := a.violations.Increment(ctx, userID)
	if err != nil {
		// The counter lives in Redis; degrade to a log, the audit entry
		// is already durable.
		a.logger.Warnw("msg", "violation counter increment failed",
			"reviewer_id", userID, "error", err)
	}

	a.logger.SecurityWithContext(ctx, fmt.Sprintf("forbidden action %s rejected", action),
		"event_id", eventID, "reviewer_id", userID, "role", string(role),
		"violation_count", count)
	return reverr.NewForbiddenActionError(action)
}

// buildChange validates the bound contract for act and computes the
// resulting ParameterChange plus before/after snapshots. Actions without
// live-configuration effect return a nil change.
func (a *DecisionAuthorizer) buildChange(ctx context.Context, eventID, userID string, role model.Role, act model.Action, p *DecisionPayload) (*model.ParameterChange, map[string]interface{}, map[string]interface{}, error) {
	before := map[string]interface{}{}
	after := map[string]interface{}{}
	now := time.Now().UTC()

	if !IsMutating(act) {
		return nil, before, after, nil
	}

	switch act {
	case model.ActionAdjustRiskThreshold:
		if p.MaxDrawdownPct == nil && p.PositionSizePct == nil {
			return nil, nil, nil, reverr.NewOutOfBoundsError("adjust_risk_threshold requires a drawdown or position-size target")
		}
		if p.MaxDrawdownPct != nil {
			v := *p.MaxDrawdownPct
			if v < DrawdownTargetFloor || v > DrawdownTargetCeiling {
				return nil, nil, nil, reverr.NewOutOfBoundsError(
					"max drawdown target %.2f%% outside allowed range %.0f%%-%.0f%%",
					v*100, DrawdownTargetFloor*100, DrawdownTargetCeiling*100)
			}
			cur, _ := a.params.Get(ctx, ParamMaxDrawdownPct)
			before[ParamMaxDrawdownPct] = cur
			after[ParamMaxDrawdownPct] = formatFloat(v)
			return &model.ParameterChange{
				ID:          uuid.NewString(),
				ParamKey:    ParamMaxDrawdownPct,
				BeforeValue: cur,
				AfterValue:  formatFloat(v),
				EffectiveAt: now,
			}, before, after, nil
		}
		v := *p.PositionSizePct
		if v < PositionSizeFloor || v > PositionSizeCeiling {
			return nil, nil, nil, reverr.NewOutOfBoundsError(
				"position-size target %.2f%% outside allowed range %.0f%%-%.0f%%",
				v*100, PositionSizeFloor*100, PositionSizeCeiling*100)
		}
		cur, _ := a.params.Get(ctx, ParamPositionSizePct)
		before[ParamPositionSizePct] = cur
		after[ParamPositionSizePct] = formatFloat(v)
		return &model.ParameterChange{
			ID:          uuid.NewString(),
			ParamKey:    ParamPositionSizePct,
			BeforeValue: cur,
			AfterValue:  formatFloat(v),
			EffectiveAt: now,
		}, before, after, nil

	case model.ActionReducePositionLimit:
		if p.NewPositionLimitPct == nil {
			return nil, nil, nil, reverr.NewOutOfBoundsError("reduce_position_limit requires a new limit")
		}
		cur, err := a.params.Get(ctx, ParamPositionLimitPct)
		if err != nil {
			return nil, nil, nil, reverr.NewStorageUnavailableError(err)
		}
		current, _ := strconv.ParseFloat(cur, 64)
		v := *p.NewPositionLimitPct
		if v <= 0 || v > current {
			return nil, nil, nil, reverr.NewOutOfBoundsError(
				"new position limit %.4f must be within (0, %.4f] and may only shrink", v, current)
		}
		before[ParamPositionLimitPct] = cur
		after[ParamPositionLimitPct] = formatFloat(v)
		return &model.ParameterChange{
			ID:          uuid.NewString(),
			ParamKey:    ParamPositionLimitPct,
			BeforeValue: cur,
			AfterValue:  formatFloat(v),
			EffectiveAt: now,
		}, before, after, nil

	case model.ActionPauseStrategy:
		if p.PauseFor <= 0 || p.PauseFor > MaxPauseDuration {
			return nil, nil, nil, reverr.NewOutOfBoundsError(
				"pause duration %s outside allowed range (0, %s]", p.PauseFor, MaxPauseDuration)
		}
		cur, _ := a.params.Get(ctx, ParamStrategyPaused)
		expires := now.Add(p.PauseFor)
		before[ParamStrategyPaused] = cur
		after[ParamStrategyPaused] = "true"
		return &model.ParameterChange{
			ID:          uuid.NewString(),
			ParamKey:    ParamStrategyPaused,
			BeforeValue: cur,
			AfterValue:  "true",
			EffectiveAt: now,
			ExpiresAt:   &expires,
		}, before, after, nil

	case model.ActionResumeStrategy:
		cur, _ := a.params.Get(ctx, ParamStrategyPaused)
		before[ParamStrategyPaused] = cur
		after[ParamStrategyPaused] = "false"
		return &model.ParameterChange{
			ID:          uuid.NewString(),
			ParamKey:    ParamStrategyPaused,
			BeforeValue: cur,
			AfterValue:  "false",
			EffectiveAt: now,
		}, before, after, nil

	case model.ActionEnableDataSource, model.ActionDisableDataSource:
		if !a.knownSource(p.DataSource) {
			return nil, nil, nil, reverr.NewOutOfBoundsError("unknown data source %q", p.DataSource)
		}
		enabled := act == model.ActionEnableDataSource
		if !enabled {
			// Disabling the last enabled source is equivalent to disabling
			// all sources at once, which sits in the forbidden catalogue.
			remaining, err := a.params.EnabledDataSources(ctx, a.cfg.KnownDataSources)
			if err != nil {
				return nil, nil, nil, reverr.NewStorageUnavailableError(err)
			}
			if len(remaining) == 1 && remaining[0] == p.DataSource {
				return nil, nil, nil, a.rejectForbidden(ctx, eventID, userID, role,
					"disable_all_data_sources", "disabling the last enabled data source")
			}
		}
		key := ParamDataSourcePrefix + p.DataSource
		cur, _ := a.params.Get(ctx, key)
		before[key] = cur
		after[key] = strconv.FormatBool(enabled)
		return &model.ParameterChange{
			ID:          uuid.NewString(),
			ParamKey:    key,
			BeforeValue: cur,
			AfterValue:  strconv.FormatBool(enabled),
			EffectiveAt: now,
		}, before, after, nil
	}

	return nil, before, after, nil
}

func (a *DecisionAuthorizer) knownSource(source string) bool {
	for _, s := range a.cfg.KnownDataSources {
		if s == source {
			return true
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
