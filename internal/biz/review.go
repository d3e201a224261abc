package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/model"
	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// ReviewRepo is the persistence contract for events and their attachments.
// Implementations must make claim/escalate/resolve mutually exclusive per
// event identifier and must write the matching audit entry in the same
// transaction as every event mutation.
type ReviewRepo interface {
	// CreateIfNoOpen persists ev unless an event of the same trigger kind
	// is already PENDING, IN_PROGRESS or ESCALATED. Returns false when
	// deduplicated. Manual requests bypass deduplication.
	CreateIfNoOpen(ctx context.Context, ev *model.ReviewEvent) (bool, error)

	GetEvent(ctx context.Context, id string) (*model.ReviewEvent, error)
	ListEvents(ctx context.Context, f model.QueueFilter) ([]*model.ReviewEvent, error)
	GetHistory(ctx context.Context, id string) (*model.EventHistory, error)

	// ClaimEvent performs the atomic compare-and-set claim. Exactly one of
	// several racing claims wins; losers observe AlreadyClaimed.
	ClaimEvent(ctx context.Context, id, userID string) (*model.ReviewEvent, error)

	// EscalateEvent bumps priority one level, clears the claimant and
	// moves the event to ESCALATED, atomically with its audit entry.
	EscalateEvent(ctx context.Context, id, reason, actor string) (*model.ReviewEvent, error)

	// ResolveEvent transitions IN_PROGRESS -> RESOLVED and writes the
	// decision, the optional parameter change and the audit entries in one
	// transaction. userID must be the current claimant.
	ResolveEvent(ctx context.Context, id, userID string, d *model.HumanDecision, pc *model.ParameterChange) error

	AddAnnotation(ctx context.Context, a *model.Annotation) error

	GetDecision(ctx context.Context, decisionID string) (*model.HumanDecision, error)
	// ListDecisionsAwaitingOutcome returns resolved decisions created
	// before cutoff that lack a terminal outcome evaluation.
	ListDecisionsAwaitingOutcome(ctx context.Context, cutoff time.Time) ([]*model.HumanDecision, error)
	// CreateOutcome records a verdict, enforcing at-most-one terminal
	// evaluation per decision (re-issue allowed over insufficient_data).
	CreateOutcome(ctx context.Context, o *model.OutcomeEvaluation) error

	Stats(ctx context.Context) (*model.QueueStats, error)
}

// AuditRepo is the append-only ledger contract. Append is synchronous and
// must surface storage failures to the caller.
type AuditRepo interface {
	Append(ctx context.Context, e *model.AuditEntry) error
	Query(ctx context.Context, f model.AuditFilter) ([]*model.AuditEntry, error)
}

// Notifier pushes notification intents to the external sink.
// Delivery is fire-and-forget; failures are logged, never propagated.
type Notifier interface {
	PushIntent(ctx context.Context, intent *model.NotificationIntent)
}

// ViolationCounter tracks forbidden-action attempts per user.
type ViolationCounter interface {
	Increment(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context, userID string) (int64, error)
}

// ParamStore reads and writes the live configuration values that
// decisions mutate. Apply is called after the owning transaction commits;
// propagation failures are retried by the caller's cadence, not rolled
// back into the decision.
type ParamStore interface {
	Get(ctx context.Context, key string) (string, error)
	Apply(ctx context.Context, pc *model.ParameterChange) error
	// EnabledDataSources returns the currently enabled source identifiers.
	EnabledDataSources(ctx context.Context, known []string) ([]string, error)
}

// ReviewUsecase drives the event lifecycle state machine.
type ReviewUsecase struct {
	repo     ReviewRepo
	notifier Notifier
	logger   *pkglog.LogHelper
}

// NewReviewUsecase creates the lifecycle manager.
func NewReviewUsecase(repo ReviewRepo, notifier Notifier, logger log.Logger) *ReviewUsecase {
	return &ReviewUsecase{
		repo:     repo,
		notifier: notifier,
		logger:   pkglog.NewLogHelper(logger),
	}
}

// CreateEvent persists a new PENDING event and emits a notification
// intent. Returns (event, false, nil) when deduplicated against an
// existing open event of the same trigger kind.
func (uc *ReviewUsecase) CreateEvent(ctx context.Context, ev *model.ReviewEvent) (*model.ReviewEvent, bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.NewString()
	}
	if ev.Priority == "" {
		ev.Priority = model.PriorityNormal
	}
	now := time.Now().UTC()
	ev.Status = model.StatusPending
	ev.CreatedAt = now
	ev.LastTransitionAt = now

	created, err := uc.repo.CreateIfNoOpen(ctx, ev)
	if err != nil {
		return nil, false, err
	}
	if !created {
		uc.logger.Debugw("msg", "review event deduplicated",
			"trigger_kind", string(ev.TriggerKind))
		return ev, false, nil
	}

	// Notification is fire-and-forget: the event is already durable.
	uc.notifier.PushIntent(ctx, &model.NotificationIntent{
		EventID:         ev.ID,
		TriggerKind:     string(ev.TriggerKind),
		Priority:        string(ev.Priority),
		CreatedAt:       ev.CreatedAt,
		EvidenceSummary: ev.TriggerReason,
		Snapshot:        ev.Snapshot,
	})

	uc.logger.TriggerFired(string(ev.TriggerKind), string(ev.Priority), ev.ID,
		ev.TriggerValue, ev.TriggerThreshold)
	return ev, true, nil
}

// CreateManualRequest creates an event from an explicit user call.
// Manual requests are never deduplicated and default to normal priority.
func (uc *ReviewUsecase) CreateManualRequest(ctx context.Context, requester, reason string, evidence map[string]interface{}) (*model.ReviewEvent, error) {
	ev := &model.ReviewEvent{
		TriggerKind:   model.TriggerManualRequest,
		TriggerReason: reason,
		Priority:      model.PriorityNormal,
		Evidence:      evidence,
		CorrelationID: uuid.NewString(),
	}
	if ev.Evidence == nil {
		ev.Evidence = map[string]interface{}{}
	}
	ev.Evidence["requested_by"] = requester

	created, _, err := uc.CreateEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetEvent fetches a single event.
func (uc *ReviewUsecase) GetEvent(ctx context.Context, id string) (*model.ReviewEvent, error) {
	return uc.repo.GetEvent(ctx, id)
}

// GetHistory fetches an event with its decisions, annotations and outcomes.
func (uc *ReviewUsecase) GetHistory(ctx context.Context, id string) (*model.EventHistory, error) {
	return uc.repo.GetHistory(ctx, id)
}

// Queue lists events ordered by priority then age.
func (uc *ReviewUsecase) Queue(ctx context.Context, f model.QueueFilter) ([]*model.ReviewEvent, error) {
	return uc.repo.ListEvents(ctx, f)
}

// Claim moves a PENDING or ESCALATED event to IN_PROGRESS for userID.
// Exactly one of several racing claims wins.
func (uc *ReviewUsecase) Claim(ctx context.Context, id, userID string) (*model.ReviewEvent, error) {
	ev, err := uc.repo.ClaimEvent(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	uc.logger.Success(fmt.Sprintf("event %s claimed by %s", id, userID),
		"event_id", id, "reviewer_id", userID, "priority", string(ev.Priority))
	return ev, nil
}

// Escalate raises priority one level, clears the claimant and returns the
// event to the unclaimed pool. Usable by the scheduler or by a reviewer
// holding the request_escalation permission (checked by the caller).
func (uc *ReviewUsecase) Escalate(ctx context.Context, id, reason, actor string) (*model.ReviewEvent, error) {
	ev, err := uc.repo.EscalateEvent(ctx, id, reason, actor)
	if err != nil {
		return nil, err
	}
	uc.logger.Escalation(fmt.Sprintf("event %s escalated to %s", id, ev.Priority),
		"event_id", id, "new_priority", string(ev.Priority), "reason", reason, "actor", actor)
	return ev, nil
}

// Annotate attaches a note to an event in any state.
func (uc *ReviewUsecase) Annotate(ctx context.Context, eventID, author, text, tag string) (*model.Annotation, error) {
	if _, err := uc.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	a := &model.Annotation{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Author:    author,
		Text:      text,
		Tag:       tag,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.AddAnnotation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Stats returns queue statistics for the dashboard.
func (uc *ReviewUsecase) Stats(ctx context.Context) (*model.QueueStats, error) {
	return uc.repo.Stats(ctx)
}
