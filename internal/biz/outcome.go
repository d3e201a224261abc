package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
	reverr "github.com/cuongccna/ProjectBotTrading/pkg/errors"
	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Outcome verdicts. insufficient_data is non-terminal: a later
// evaluation may supersede it.
const (
	VerdictCorrect          = "correct"
	VerdictIncorrect        = "incorrect"
	VerdictNeutral          = "neutral"
	VerdictInsufficientData = "insufficient_data"
)

// ValidVerdict reports whether v is a known verdict.
func ValidVerdict(v string) bool {
	switch v {
	case VerdictCorrect, VerdictIncorrect, VerdictNeutral, VerdictInsufficientData:
		return true
	}
	return false
}

// OutcomeUsecase records deferred verdicts on resolved decisions, closing
// the feedback loop after the observation window.
type OutcomeUsecase struct {
	repo   ReviewRepo
	cfg    *conf.Review
	logger *pkglog.LogHelper
}

// NewOutcomeUsecase creates the outcome evaluator.
func NewOutcomeUsecase(repo ReviewRepo, cfg *conf.Review, logger log.Logger) *OutcomeUsecase {
	return &OutcomeUsecase{
		repo:   repo,
		cfg:    cfg,
		logger: pkglog.NewLogHelper(logger),
	}
}

// Evaluate records a verdict for decisionID. Fails with NotYetEligible
// before the observation window elapses, NotFound for an unknown
// decision, and AlreadyEvaluated when a terminal verdict exists.
func (uc *OutcomeUsecase) Evaluate(ctx context.Context, decisionID, evaluator, verdict string, impactUSD float64, narrative string) (*model.OutcomeEvaluation, error) {
	if !ValidVerdict(verdict) {
		return nil, reverr.NewOutOfBoundsError("unknown verdict %q", verdict)
	}

	decision, err := uc.repo.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}

	eligibleAt := decision.CreatedAt.Add(uc.cfg.ObservationWindow)
	if now := time.Now().UTC(); now.Before(eligibleAt) {
		return nil, reverr.NewNotYetEligibleError(decisionID, eligibleAt.Sub(now).Round(time.Minute).String())
	}

	o := &model.OutcomeEvaluation{
		ID:         uuid.NewString(),
		DecisionID: decisionID,
		Evaluator:  evaluator,
		Verdict:    verdict,
		ImpactUSD:  impactUSD,
		Narrative:  narrative,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.repo.CreateOutcome(ctx, o); err != nil {
		return nil, err
	}

	uc.logger.Outcome(fmt.Sprintf("verdict %s recorded for decision %s", verdict, decisionID),
		"decision_id", decisionID, "verdict", verdict, "impact_usd", impactUSD,
		"evaluator", evaluator)
	return o, nil
}

// ListAwaiting returns resolved decisions past the observation window
// that still lack a terminal verdict.
func (uc *OutcomeUsecase) ListAwaiting(ctx context.Context) ([]*model.HumanDecision, error) {
	cutoff := time.Now().UTC().Add(-uc.cfg.ObservationWindow)
	return uc.repo.ListDecisionsAwaitingOutcome(ctx, cutoff)
}

// RemindAwaiting logs how many decisions are waiting on an outcome
// verdict. Run from the cron scheduler.
func (uc *OutcomeUsecase) RemindAwaiting(ctx context.Context) error {
	awaiting, err := uc.ListAwaiting(ctx)
	if err != nil {
		return err
	}
	if len(awaiting) > 0 {
		uc.logger.Scheduler(fmt.Sprintf("%d decisions awaiting outcome evaluation", len(awaiting)),
			"awaiting", len(awaiting))
	}
	return nil
}
