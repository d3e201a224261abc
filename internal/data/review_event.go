package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
	reverr "github.com/cuongccna/ProjectBotTrading/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// openStatuses are the non-terminal event states. Deduplication, the SLA
// sweep and the claim CAS all key off this set.
var openStatuses = []string{
	string(model.StatusPending),
	string(model.StatusInProgress),
	string(model.StatusEscalated),
}

// ReviewEventModel is the GORM model for the review_events table.
type ReviewEventModel struct {
	ID               string     `gorm:"primaryKey;column:id;size:36"`
	CorrelationID    string     `gorm:"column:correlation_id;size:36;index"`
	TriggerKind      string     `gorm:"column:trigger_kind;size:50;not null;index"`
	TriggerReason    string     `gorm:"column:trigger_reason;type:text"`
	TriggerValue     float64    `gorm:"column:trigger_value"`
	TriggerThreshold float64    `gorm:"column:trigger_threshold"`
	Priority         string     `gorm:"column:priority;size:20;not null;index"`
	Status           string     `gorm:"column:status;size:20;not null;index"`
	Evidence         string     `gorm:"column:evidence;type:json"` // JSON string
	Snapshot         string     `gorm:"column:snapshot;type:json"` // JSON string
	AssignedTo       string     `gorm:"column:assigned_to;size:100;default:''"`
	EscalationCount  int        `gorm:"column:escalation_count;default:0;not null"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	ClaimedAt        *time.Time `gorm:"column:claimed_at"`
	ResolvedAt       *time.Time `gorm:"column:resolved_at"`
	LastTransitionAt time.Time  `gorm:"column:last_transition_at;index"`
}

// TableName specifies the table name for GORM.
func (ReviewEventModel) TableName() string {
	return "review_events"
}

// DecisionModel is the GORM model for the review_decisions table.
type DecisionModel struct {
	ID          string    `gorm:"primaryKey;column:id;size:36"`
	EventID     string    `gorm:"column:event_id;size:36;not null;index"`
	UserID      string    `gorm:"column:user_id;size:100;not null;index"`
	Role        string    `gorm:"column:role;size:30;not null"`
	Action      string    `gorm:"column:action;size:50;not null"`
	ReasonCode  string    `gorm:"column:reason_code;size:50"`
	Reason      string    `gorm:"column:reason;type:text"`
	ParamBefore string    `gorm:"column:param_before;type:json"` // JSON string
	ParamAfter  string    `gorm:"column:param_after;type:json"`  // JSON string
	Confidence  string    `gorm:"column:confidence;size:10;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
}

// TableName specifies the table name for GORM.
func (DecisionModel) TableName() string {
	return "review_decisions"
}

// ParameterChangeModel is the GORM model for the review_parameter_changes table.
type ParameterChangeModel struct {
	ID          string     `gorm:"primaryKey;column:id;size:36"`
	DecisionID  string     `gorm:"column:decision_id;size:36;not null;index"`
	ParamKey    string     `gorm:"column:param_key;size:100;not null;index"`
	BeforeValue string     `gorm:"column:before_value;size:255"`
	AfterValue  string     `gorm:"column:after_value;size:255"`
	EffectiveAt time.Time  `gorm:"column:effective_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
}

// TableName specifies the table name for GORM.
func (ParameterChangeModel) TableName() string {
	return "review_parameter_changes"
}

// AnnotationModel is the GORM model for the review_annotations table.
type AnnotationModel struct {
	ID        string    `gorm:"primaryKey;column:id;size:36"`
	EventID   string    `gorm:"column:event_id;size:36;not null;index"`
	Author    string    `gorm:"column:author;size:100;not null"`
	Text      string    `gorm:"column:text;type:text"`
	Tag       string    `gorm:"column:tag;size:50"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM.
func (AnnotationModel) TableName() string {
	return "review_annotations"
}

// OutcomeModel is the GORM model for the review_outcome_evaluations table.
type OutcomeModel struct {
	ID         string    `gorm:"primaryKey;column:id;size:36"`
	DecisionID string    `gorm:"column:decision_id;size:36;not null;index"`
	Evaluator  string    `gorm:"column:evaluator;size:100;not null"`
	Verdict    string    `gorm:"column:verdict;size:30;not null"`
	ImpactUSD  float64   `gorm:"column:impact_usd"`
	Narrative  string    `gorm:"column:narrative;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM.
func (OutcomeModel) TableName() string {
	return "review_outcome_evaluations"
}

// ReviewRepo implements biz.ReviewRepo on MySQL with a Redis read cache.
// Every event mutation writes its audit ledger entry in the same
// transaction, so the ledger never disagrees with the event table.
type ReviewRepo struct {
	db     *gorm.DB
	cache  CacheClient
	cfg    *conf.Review
	logger *log.Helper
}

// NewReviewRepo creates the event repository.
func NewReviewRepo(db *gorm.DB, cache CacheClient, cfg *conf.Review, logger log.Logger) *ReviewRepo {
	return &ReviewRepo{
		db:     db,
		cache:  cache,
		cfg:    cfg,
		logger: log.NewHelper(logger),
	}
}

// CreateIfNoOpen persists ev unless an open event of the same trigger kind
// exists. The check and the insert run inside one locking transaction so
// two concurrent detector sweeps cannot both create the event. Manual
// requests bypass deduplication entirely.
func (r *ReviewRepo) CreateIfNoOpen(ctx context.Context, ev *model.ReviewEvent) (bool, error) {
	row, err := eventToModel(ev)
	if err != nil {
		return false, err
	}

	createErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ev.TriggerKind != model.TriggerManualRequest {
			var existing ReviewEventModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("trigger_kind = ? AND status IN ?", string(ev.TriggerKind), openStatuses).
				First(&existing).Error
			if err == nil {
				return errDuplicateOpen
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return appendAuditTx(tx, &model.AuditEntry{
			Category: model.AuditCategoryTransition,
			EventID:  ev.ID,
			Actor:    "trigger_detector",
			Action:   "created",
			Details: map[string]interface{}{
				"trigger_kind": string(ev.TriggerKind),
				"priority":     string(ev.Priority),
				"reason":       ev.TriggerReason,
			},
		})
	})
	if errors.Is(createErr, errDuplicateOpen) {
		return false, nil
	}
	if createErr != nil {
		return false, wrapDBError("create review event", createErr)
	}
	return true, nil
}

// errDuplicateOpen is an internal sentinel for the dedup rollback path.
var errDuplicateOpen = errors.New("open event of same kind exists")

// wrapDBError classifies a raw driver error before wrapping it. Connection
// failures and deadlocks surface as STORAGE_UNAVAILABLE so the caller can
// retry; everything else keeps the classified message for diagnostics.
func wrapDBError(op string, err error) error {
	dbErr := reverr.ClassifyDBError(err)
	switch dbErr.Type {
	case reverr.ErrorTypeConnectionError, reverr.ErrorTypeDeadlock:
		return reverr.NewStorageUnavailableError(fmt.Errorf("%s: %w", op, err))
	default:
		return fmt.Errorf("%s: %s: %w", op, dbErr.Message, err)
	}
}

// GetEvent fetches one event, serving repeat reads from the cache.
func (r *ReviewRepo) GetEvent(ctx context.Context, id string) (*model.ReviewEvent, error) {
	cacheKey := BuildCacheKey(CacheKeyEvent, id)
	var cached ReviewEventModel
	if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
		return modelToEvent(&cached)
	}

	var row ReviewEventModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reverr.NewNotFoundError("event", id)
		}
		return nil, wrapDBError(fmt.Sprintf("get review event %s", id), err)
	}

	if err := r.cache.Set(ctx, cacheKey, &row, TTLEvent); err != nil {
		r.logger.Debugw("msg", "event cache set failed", "event_id", id, "error", err)
	}
	return modelToEvent(&row)
}

// ListEvents returns events ordered by priority then age.
func (r *ReviewRepo) ListEvents(ctx context.Context, f model.QueueFilter) ([]*model.ReviewEvent, error) {
	q := r.db.WithContext(ctx).Model(&ReviewEventModel{})

	if f.OnlyOpen {
		q = q.Where("status IN ?", openStatuses)
	} else if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", string(f.Priority))
	}
	if f.TriggerKind != "" {
		q = q.Where("trigger_kind = ?", string(f.TriggerKind))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []ReviewEventModel
	err := q.Order("FIELD(priority, 'critical', 'high', 'normal', 'low'), created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapDBError("list review events", err)
	}

	out := make([]*model.ReviewEvent, 0, len(rows))
	for i := range rows {
		ev, err := modelToEvent(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// GetHistory loads an event together with its decisions, annotations and
// outcome evaluations.
func (r *ReviewRepo) GetHistory(ctx context.Context, id string) (*model.EventHistory, error) {
	ev, err := r.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	var decisionRows []DecisionModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", id).Order("created_at ASC").
		Find(&decisionRows).Error; err != nil {
		return nil, fmt.Errorf("load decisions for event %s: %w", id, err)
	}

	var annotationRows []AnnotationModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", id).Order("created_at ASC").
		Find(&annotationRows).Error; err != nil {
		return nil, fmt.Errorf("load annotations for event %s: %w", id, err)
	}

	history := &model.EventHistory{Event: ev}
	decisionIDs := make([]string, 0, len(decisionRows))
	for i := range decisionRows {
		d, err := modelToDecision(&decisionRows[i])
		if err != nil {
			return nil, err
		}
		history.Decisions = append(history.Decisions, d)
		decisionIDs = append(decisionIDs, d.ID)
	}
	for i := range annotationRows {
		history.Annotations = append(history.Annotations, modelToAnnotation(&annotationRows[i]))
	}

	if len(decisionIDs) > 0 {
		var outcomeRows []OutcomeModel
		if err := r.db.WithContext(ctx).
			Where("decision_id IN ?", decisionIDs).Order("created_at ASC").
			Find(&outcomeRows).Error; err != nil {
			return nil, fmt.Errorf("load outcomes for event %s: %w", id, err)
		}
		for i := range outcomeRows {
			history.Outcomes = append(history.Outcomes, modelToOutcome(&outcomeRows[i]))
		}
	}
	return history, nil
}

// ClaimEvent performs the atomic claim: a single guarded UPDATE decides the
// race, then the loser's failure is classified from a fresh read. The
// winner's audit entry commits with the status change.
func (r *ReviewRepo) ClaimEvent(ctx context.Context, id, userID string) (*model.ReviewEvent, error) {
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReviewEventModel{}).
			Where("id = ? AND status IN ? AND assigned_to = ''",
				id, []string{string(model.StatusPending), string(model.StatusEscalated)}).
			Updates(map[string]interface{}{
				"status":             string(model.StatusInProgress),
				"assigned_to":        userID,
				"claimed_at":         now,
				"last_transition_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.classifyClaimFailure(tx, id, "claim")
		}

		return appendAuditTx(tx, &model.AuditEntry{
			Category: model.AuditCategoryTransition,
			EventID:  id,
			Actor:    userID,
			Action:   "claimed",
			Details:  map[string]interface{}{"claimed_at": now.Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}

	r.invalidateEvent(ctx, id)
	return r.GetEvent(ctx, id)
}

// classifyClaimFailure turns a zero-row claim UPDATE into the precise
// typed error.
func (r *ReviewRepo) classifyClaimFailure(tx *gorm.DB, id, op string) error {
	var row ReviewEventModel
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reverr.NewNotFoundError("event", id)
		}
		return err
	}
	if row.AssignedTo != "" && row.Status == string(model.StatusInProgress) {
		return reverr.NewAlreadyClaimedError(id, row.AssignedTo)
	}
	return reverr.NewInvalidStateError(id, row.Status, op)
}

// EscalateEvent raises priority one level (capped at critical), clears the
// claimant and returns the event to the unclaimed pool.
func (r *ReviewRepo) EscalateEvent(ctx context.Context, id, reason, actor string) (*model.ReviewEvent, error) {
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ReviewEventModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return reverr.NewNotFoundError("event", id)
			}
			return err
		}
		if model.Status(row.Status).Terminal() {
			return reverr.NewInvalidStateError(id, row.Status, "escalate")
		}

		newPriority := model.Priority(row.Priority).Escalate()
		res := tx.Model(&ReviewEventModel{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":             string(model.StatusEscalated),
				"priority":           string(newPriority),
				"assigned_to":        "",
				"escalation_count":   gorm.Expr("escalation_count + 1"),
				"last_transition_at": now,
			})
		if res.Error != nil {
			return res.Error
		}

		return appendAuditTx(tx, &model.AuditEntry{
			Category: model.AuditCategoryEscalation,
			EventID:  id,
			Actor:    actor,
			Action:   "escalated",
			Details: map[string]interface{}{
				"from_priority": row.Priority,
				"to_priority":   string(newPriority),
				"reason":        reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	r.invalidateEvent(ctx, id)
	return r.GetEvent(ctx, id)
}

// ResolveEvent commits the terminal transition with its decision and
// optional parameter change in one transaction. Only the current claimant
// may resolve.
func (r *ReviewRepo) ResolveEvent(ctx context.Context, id, userID string, d *model.HumanDecision, pc *model.ParameterChange) error {
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReviewEventModel{}).
			Where("id = ? AND status = ? AND assigned_to = ?",
				id, string(model.StatusInProgress), userID).
			Updates(map[string]interface{}{
				"status":             string(model.StatusResolved),
				"resolved_at":        now,
				"last_transition_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.classifyResolveFailure(tx, id, userID)
		}

		decisionRow, err := decisionToModel(d)
		if err != nil {
			return err
		}
		if err := tx.Create(decisionRow).Error; err != nil {
			return fmt.Errorf("create decision: %w", err)
		}

		if err := appendAuditTx(tx, &model.AuditEntry{
			Category: model.AuditCategoryDecision,
			EventID:  id,
			Actor:    userID,
			Action:   string(d.Action),
			Details: map[string]interface{}{
				"decision_id": d.ID,
				"role":        string(d.Role),
				"reason_code": d.ReasonCode,
				"confidence":  d.Confidence,
			},
		}); err != nil {
			return err
		}

		if pc == nil {
			return nil
		}
		if err := tx.Create(paramChangeToModel(pc)).Error; err != nil {
			return fmt.Errorf("create parameter change: %w", err)
		}
		return appendAuditTx(tx, &model.AuditEntry{
			Category: model.AuditCategoryParameterChange,
			EventID:  id,
			Actor:    userID,
			Action:   string(d.Action),
			Details: map[string]interface{}{
				"decision_id":  d.ID,
				"param_key":    pc.ParamKey,
				"before_value": pc.BeforeValue,
				"after_value":  pc.AfterValue,
			},
		})
	})
	if err != nil {
		return err
	}

	r.invalidateEvent(ctx, id)
	return nil
}

// classifyResolveFailure turns a zero-row resolve UPDATE into the precise
// typed error.
func (r *ReviewRepo) classifyResolveFailure(tx *gorm.DB, id, userID string) error {
	var row ReviewEventModel
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reverr.NewNotFoundError("event", id)
		}
		return err
	}
	if row.Status == string(model.StatusInProgress) && row.AssignedTo != userID {
		return reverr.NewAlreadyClaimedError(id, row.AssignedTo)
	}
	return reverr.NewInvalidStateError(id, row.Status, "resolve")
}

// AddAnnotation attaches a note without touching event state.
func (r *ReviewRepo) AddAnnotation(ctx context.Context, a *model.Annotation) error {
	row := &AnnotationModel{
		ID:        a.ID,
		EventID:   a.EventID,
		Author:    a.Author,
		Text:      a.Text,
		Tag:       a.Tag,
		CreatedAt: a.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create annotation: %w", err)
	}
	return nil
}

// GetDecision fetches one decision.
func (r *ReviewRepo) GetDecision(ctx context.Context, decisionID string) (*model.HumanDecision, error) {
	var row DecisionModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", decisionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reverr.NewNotFoundError("decision", decisionID)
		}
		return nil, fmt.Errorf("get decision %s: %w", decisionID, err)
	}
	return modelToDecision(&row)
}

// ListDecisionsAwaitingOutcome returns decisions older than cutoff with no
// terminal verdict. A decision whose only verdict is insufficient_data
// still counts as awaiting.
func (r *ReviewRepo) ListDecisionsAwaitingOutcome(ctx context.Context, cutoff time.Time) ([]*model.HumanDecision, error) {
	sub := r.db.Model(&OutcomeModel{}).
		Select("decision_id").
		Where("verdict <> ?", "insufficient_data")

	var rows []DecisionModel
	err := r.db.WithContext(ctx).
		Where("created_at <= ? AND id NOT IN (?)", cutoff, sub).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapDBError("list decisions awaiting outcome", err)
	}

	out := make([]*model.HumanDecision, 0, len(rows))
	for i := range rows {
		d, err := modelToDecision(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// CreateOutcome records a verdict. At most one terminal verdict may exist
// per decision; a new evaluation may supersede insufficient_data.
func (r *ReviewRepo) CreateOutcome(ctx context.Context, o *model.OutcomeEvaluation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing OutcomeModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("decision_id = ? AND verdict <> ?", o.DecisionID, "insufficient_data").
			First(&existing).Error
		if err == nil {
			return reverr.NewAlreadyEvaluatedError(o.DecisionID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := &OutcomeModel{
			ID:         o.ID,
			DecisionID: o.DecisionID,
			Evaluator:  o.Evaluator,
			Verdict:    o.Verdict,
			ImpactUSD:  o.ImpactUSD,
			Narrative:  o.Narrative,
			CreatedAt:  o.CreatedAt,
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("create outcome: %w", err)
		}
		return nil
	})
}

// Stats aggregates the queue reporting view. SLA compliance is the share
// of claimed events picked up within the response target for their
// priority at claim time.
func (r *ReviewRepo) Stats(ctx context.Context) (*model.QueueStats, error) {
	stats := &model.QueueStats{
		CountsByStatus:   map[string]int64{},
		CountsByPriority: map[string]int64{},
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var byStatus []statusCount
	if err := r.db.WithContext(ctx).Model(&ReviewEventModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("stats by status: %w", err)
	}
	for _, sc := range byStatus {
		stats.CountsByStatus[sc.Status] = sc.Count
		if model.Status(sc.Status).Open() {
			stats.OpenCount += sc.Count
		}
	}

	type priorityCount struct {
		Priority string
		Count    int64
	}
	var byPriority []priorityCount
	if err := r.db.WithContext(ctx).Model(&ReviewEventModel{}).
		Select("priority, COUNT(*) AS count").
		Where("status IN ?", openStatuses).
		Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, fmt.Errorf("stats by priority: %w", err)
	}
	for _, pc := range byPriority {
		stats.CountsByPriority[pc.Priority] = pc.Count
	}

	var meanSeconds *float64
	if err := r.db.WithContext(ctx).Model(&ReviewEventModel{}).
		Select("AVG(TIMESTAMPDIFF(SECOND, created_at, resolved_at))").
		Where("status = ?", string(model.StatusResolved)).
		Scan(&meanSeconds).Error; err != nil {
		return nil, fmt.Errorf("stats mean resolution: %w", err)
	}
	if meanSeconds != nil {
		stats.MeanResolutionSeconds = *meanSeconds
	}

	type claimRow struct {
		Priority  string
		CreatedAt time.Time
		ClaimedAt time.Time
	}
	var claims []claimRow
	if err := r.db.WithContext(ctx).Model(&ReviewEventModel{}).
		Select("priority, created_at, claimed_at").
		Where("claimed_at IS NOT NULL").
		Scan(&claims).Error; err != nil {
		return nil, fmt.Errorf("stats sla compliance: %w", err)
	}
	if len(claims) > 0 {
		within := 0
		for _, c := range claims {
			target := r.cfg.ResponseTarget.ByPriority(c.Priority)
			if c.ClaimedAt.Sub(c.CreatedAt) <= target {
				within++
			}
		}
		stats.SLAComplianceRate = float64(within) / float64(len(claims))
	}

	return stats, nil
}

// invalidateEvent drops the cached copy after a mutation. Cache failures
// only shorten the staleness window, so they are logged and ignored.
func (r *ReviewRepo) invalidateEvent(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, BuildCacheKey(CacheKeyEvent, id)); err != nil {
		r.logger.Debugw("msg", "event cache invalidation failed", "event_id", id, "error", err)
	}
}

func eventToModel(ev *model.ReviewEvent) (*ReviewEventModel, error) {
	evidence, err := marshalJSONField(ev.Evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	snapshot := ""
	if ev.Snapshot != nil {
		b, err := json.Marshal(ev.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot: %w", err)
		}
		snapshot = string(b)
	}
	return &ReviewEventModel{
		ID:               ev.ID,
		CorrelationID:    ev.CorrelationID,
		TriggerKind:      string(ev.TriggerKind),
		TriggerReason:    ev.TriggerReason,
		TriggerValue:     ev.TriggerValue,
		TriggerThreshold: ev.TriggerThreshold,
		Priority:         string(ev.Priority),
		Status:           string(ev.Status),
		Evidence:         evidence,
		Snapshot:         snapshot,
		AssignedTo:       ev.AssignedTo,
		EscalationCount:  ev.EscalationCount,
		CreatedAt:        ev.CreatedAt,
		ClaimedAt:        ev.ClaimedAt,
		ResolvedAt:       ev.ResolvedAt,
		LastTransitionAt: ev.LastTransitionAt,
	}, nil
}

func modelToEvent(row *ReviewEventModel) (*model.ReviewEvent, error) {
	evidence, err := unmarshalJSONField(row.Evidence)
	if err != nil {
		return nil, fmt.Errorf("unmarshal evidence for event %s: %w", row.ID, err)
	}
	var snapshot *model.RiskSnapshot
	if row.Snapshot != "" {
		snapshot = &model.RiskSnapshot{}
		if err := json.Unmarshal([]byte(row.Snapshot), snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot for event %s: %w", row.ID, err)
		}
	}
	return &model.ReviewEvent{
		ID:               row.ID,
		CorrelationID:    row.CorrelationID,
		TriggerKind:      model.TriggerKind(row.TriggerKind),
		TriggerReason:    row.TriggerReason,
		TriggerValue:     row.TriggerValue,
		TriggerThreshold: row.TriggerThreshold,
		Priority:         model.Priority(row.Priority),
		Status:           model.Status(row.Status),
		Evidence:         evidence,
		Snapshot:         snapshot,
		AssignedTo:       row.AssignedTo,
		EscalationCount:  row.EscalationCount,
		CreatedAt:        row.CreatedAt,
		ClaimedAt:        row.ClaimedAt,
		ResolvedAt:       row.ResolvedAt,
		LastTransitionAt: row.LastTransitionAt,
	}, nil
}

func decisionToModel(d *model.HumanDecision) (*DecisionModel, error) {
	before, err := marshalJSONField(d.ParamBefore)
	if err != nil {
		return nil, fmt.Errorf("marshal param_before: %w", err)
	}
	after, err := marshalJSONField(d.ParamAfter)
	if err != nil {
		return nil, fmt.Errorf("marshal param_after: %w", err)
	}
	return &DecisionModel{
		ID:          d.ID,
		EventID:     d.EventID,
		UserID:      d.UserID,
		Role:        string(d.Role),
		Action:      string(d.Action),
		ReasonCode:  d.ReasonCode,
		Reason:      d.Reason,
		ParamBefore: before,
		ParamAfter:  after,
		Confidence:  d.Confidence,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func modelToDecision(row *DecisionModel) (*model.HumanDecision, error) {
	before, err := unmarshalJSONField(row.ParamBefore)
	if err != nil {
		return nil, fmt.Errorf("unmarshal param_before for decision %s: %w", row.ID, err)
	}
	after, err := unmarshalJSONField(row.ParamAfter)
	if err != nil {
		return nil, fmt.Errorf("unmarshal param_after for decision %s: %w", row.ID, err)
	}
	return &model.HumanDecision{
		ID:          row.ID,
		EventID:     row.EventID,
		UserID:      row.UserID,
		Role:        model.Role(row.Role),
		Action:      model.Action(row.Action),
		ReasonCode:  row.ReasonCode,
		Reason:      row.Reason,
		ParamBefore: before,
		ParamAfter:  after,
		Confidence:  row.Confidence,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func paramChangeToModel(pc *model.ParameterChange) *ParameterChangeModel {
	return &ParameterChangeModel{
		ID:          pc.ID,
		DecisionID:  pc.DecisionID,
		ParamKey:    pc.ParamKey,
		BeforeValue: pc.BeforeValue,
		AfterValue:  pc.AfterValue,
		EffectiveAt: pc.EffectiveAt,
		ExpiresAt:   pc.ExpiresAt,
	}
}

func modelToAnnotation(row *AnnotationModel) *model.Annotation {
	return &model.Annotation{
		ID:        row.ID,
		EventID:   row.EventID,
		Author:    row.Author,
		Text:      row.Text,
		Tag:       row.Tag,
		CreatedAt: row.CreatedAt,
	}
}

func modelToOutcome(row *OutcomeModel) *model.OutcomeEvaluation {
	return &model.OutcomeEvaluation{
		ID:         row.ID,
		DecisionID: row.DecisionID,
		Evaluator:  row.Evaluator,
		Verdict:    row.Verdict,
		ImpactUSD:  row.ImpactUSD,
		Narrative:  row.Narrative,
		CreatedAt:  row.CreatedAt,
	}
}

// marshalJSONField serializes a details map for a JSON column. Empty maps
// store as an empty string so the column stays NULL-ish and cheap.
func marshalJSONField(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSONField(s string) (map[string]interface{}, error) {
	if s == "" {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
