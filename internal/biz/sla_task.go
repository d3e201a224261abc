package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

// SLAEscalationTask sweeps all non-terminal events on a fixed cadence
// and escalates those whose age since the last state change exceeds the
// escalate-after budget for their current priority.
//
// Escalation resets the last-transition timestamp, so an event already
// escalated at this age bracket is not escalated again until it overstays
// the budget of its new priority.
type SLAEscalationTask struct {
	repo   ReviewRepo
	review *ReviewUsecase
	cfg    *conf.Review
	logger *pkglog.LogHelper
}

// NewSLAEscalationTask creates the scheduler task.
func NewSLAEscalationTask(repo ReviewRepo, review *ReviewUsecase, cfg *conf.Review, logger log.Logger) *SLAEscalationTask {
	return &SLAEscalationTask{
		repo:   repo,
		review: review,
		cfg:    cfg,
		logger: pkglog.NewLogHelper(logger),
	}
}

// Sweep runs one scheduler pass. Per-event failures are logged and the
// sweep continues; the next cadence tick retries. Only a listing failure
// is returned, so the cron wrapper can report storage trouble.
func (t *SLAEscalationTask) Sweep(ctx context.Context) error {
	open, err := t.repo.ListEvents(ctx, model.QueueFilter{OnlyOpen: true})
	if err != nil {
		return fmt.Errorf("sla sweep: listing open events: %w", err)
	}

	now := time.Now().UTC()
	escalated := 0
	for _, ev := range open {
		budget := t.cfg.EscalateAfter.ByPriority(string(ev.Priority))
		age := now.Sub(ev.LastTransitionAt)
		if age <= budget {
			continue
		}

		reason := fmt.Sprintf("sla timeout: %s old at priority %s (budget %s)",
			age.Round(time.Second), ev.Priority, budget)
		if _, err := t.review.Escalate(ctx, ev.ID, reason, "sla_scheduler"); err != nil {
			// Lost a race against a concurrent claim/resolve or storage
			// hiccup; the next tick re-inspects.
			t.logger.Warnw("msg", "auto-escalation failed, will retry next tick",
				"event_id", ev.ID, "error", err)
			continue
		}
		escalated++
	}

	if escalated > 0 {
		t.logger.Scheduler(fmt.Sprintf("sla sweep escalated %d of %d open events", escalated, len(open)),
			"escalated", escalated, "open", len(open))
	}
	return nil
}
