package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ruleHit is one matched rule on a detector sweep.
type ruleHit struct {
	kind      model.TriggerKind
	priority  model.Priority
	reason    string
	value     float64
	threshold float64
	evidence  map[string]interface{}
}

// SignalStore keeps the most recent signal snapshot so the scheduler can
// re-run the trigger rules between ingest calls.
type SignalStore interface {
	SaveLatest(ctx context.Context, snap *model.SignalSnapshot) error
	// Latest returns the stored snapshot, or nil when none is present.
	Latest(ctx context.Context) (*model.SignalSnapshot, error)
}

// TriggerDetector evaluates the fixed rule catalogue against signal
// snapshots and emits at most one open event per trigger kind at a time.
//
// Deduplication is enforced at the database (check-then-create inside a
// locking transaction); the LRU here is only a fast path that skips the
// round trip while a known event is still open.
type TriggerDetector struct {
	review  *ReviewUsecase
	repo    ReviewRepo
	signals SignalStore
	cfg     *conf.Review
	open    *lru.Cache[model.TriggerKind, string] // kind -> open event id
	logger  *pkglog.LogHelper
}

// NewTriggerDetector creates the detector.
func NewTriggerDetector(review *ReviewUsecase, repo ReviewRepo, signals SignalStore, cfg *conf.Review, logger log.Logger) *TriggerDetector {
	cache, _ := lru.New[model.TriggerKind, string](32)
	return &TriggerDetector{
		review:  review,
		repo:    repo,
		signals: signals,
		cfg:     cfg,
		open:    cache,
		logger:  pkglog.NewLogHelper(logger),
	}
}

// IngestSnapshot stores snap as the latest observation and evaluates the
// rule catalogue against it. The snapshot save is best-effort; trigger
// evaluation proceeds even when the store is unavailable.
func (d *TriggerDetector) IngestSnapshot(ctx context.Context, snap *model.SignalSnapshot) ([]*model.ReviewEvent, error) {
	if snap == nil {
		return nil, nil
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	if err := d.signals.SaveLatest(ctx, snap); err != nil {
		d.logger.Warnw("msg", "latest signal snapshot not saved", "error", err)
	}
	return d.CheckAllTriggers(ctx, snap)
}

// SweepLatest re-evaluates the most recent snapshot. Run from the cron
// scheduler to catch conditions that outlast a resolved event.
func (d *TriggerDetector) SweepLatest(ctx context.Context) ([]*model.ReviewEvent, error) {
	snap, err := d.signals.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return d.CheckAllTriggers(ctx, snap)
}

// CheckAllTriggers evaluates every rule against snap and creates events
// for the rules that fire. Returns only the newly created events;
// deduplicated hits are dropped silently.
func (d *TriggerDetector) CheckAllTriggers(ctx context.Context, snap *model.SignalSnapshot) ([]*model.ReviewEvent, error) {
	if snap == nil {
		return nil, nil
	}

	var created []*model.ReviewEvent
	for _, hit := range d.evaluate(snap) {
		if d.stillOpen(ctx, hit.kind) {
			continue
		}

		ev := &model.ReviewEvent{
			TriggerKind:      hit.kind,
			TriggerReason:    hit.reason,
			TriggerValue:     hit.value,
			TriggerThreshold: hit.threshold,
			Priority:         hit.priority,
			Evidence:         hit.evidence,
			Snapshot:         snapshotOf(snap),
		}
		ev, wasCreated, err := d.review.CreateEvent(ctx, ev)
		if err != nil {
			return created, err
		}
		if !wasCreated {
			// Lost the race against a concurrent sweep; remember the
			// condition as open anyway.
			d.open.Add(hit.kind, "")
			continue
		}
		d.open.Add(hit.kind, ev.ID)
		created = append(created, ev)
	}
	return created, nil
}

// stillOpen consults the LRU and verifies the cached event against
// storage. A resolved or vanished event evicts the entry so the rule may
// re-trigger.
func (d *TriggerDetector) stillOpen(ctx context.Context, kind model.TriggerKind) bool {
	id, ok := d.open.Get(kind)
	if !ok {
		return false
	}
	if id == "" {
		// Open marker without a known id; let the database decide.
		d.open.Remove(kind)
		return false
	}
	ev, err := d.repo.GetEvent(ctx, id)
	if err != nil || ev.Status.Terminal() {
		d.open.Remove(kind)
		return false
	}
	return true
}

// evaluate runs the rule table against a snapshot.
func (d *TriggerDetector) evaluate(snap *model.SignalSnapshot) []ruleHit {
	t := d.cfg.Triggers
	var hits []ruleHit

	if g := snap.TradeGuard; g != nil && g.Blocked && g.BlockedFor > t.TradeGuardBlockFor {
		hits = append(hits, ruleHit{
			kind:      model.TriggerTradeGuardBlock,
			priority:  model.PriorityHigh,
			reason:    fmt.Sprintf("trade guard blocking for %s (limit %s)", g.BlockedFor, t.TradeGuardBlockFor),
			value:     g.BlockedFor.Hours(),
			threshold: t.TradeGuardBlockFor.Hours(),
			evidence: map[string]interface{}{
				"blocked_for":  g.BlockedFor.String(),
				"block_reason": g.BlockReason,
			},
		})
	}

	if dd := snap.Drawdown; dd != nil {
		// Weekly breach outranks daily; emit the single most severe
		// drawdown hit per sweep.
		if dd.Weekly > t.DrawdownWeeklyPct {
			hits = append(hits, ruleHit{
				kind:      model.TriggerDrawdownThreshold,
				priority:  model.PriorityCritical,
				reason:    fmt.Sprintf("weekly drawdown %.2f%% exceeds %.2f%%", dd.Weekly*100, t.DrawdownWeeklyPct*100),
				value:     dd.Weekly,
				threshold: t.DrawdownWeeklyPct,
				evidence: map[string]interface{}{
					"window":         "weekly",
					"daily_drawdown": dd.Daily,
				},
			})
		} else if dd.Daily > t.DrawdownDailyPct {
			hits = append(hits, ruleHit{
				kind:      model.TriggerDrawdownThreshold,
				priority:  model.PriorityHigh,
				reason:    fmt.Sprintf("daily drawdown %.2f%% exceeds %.2f%%", dd.Daily*100, t.DrawdownDailyPct*100),
				value:     dd.Daily,
				threshold: t.DrawdownDailyPct,
				evidence: map[string]interface{}{
					"window":          "daily",
					"weekly_drawdown": dd.Weekly,
				},
			})
		}
	}

	if ls := snap.LossStreak; ls != nil && ls.ConsecutiveLosses >= t.ConsecutiveLosses {
		hits = append(hits, ruleHit{
			kind:      model.TriggerConsecutiveLosses,
			priority:  model.PriorityNormal,
			reason:    fmt.Sprintf("losing streak of %d trades (limit %d)", ls.ConsecutiveLosses, t.ConsecutiveLosses),
			value:     float64(ls.ConsecutiveLosses),
			threshold: float64(t.ConsecutiveLosses),
			evidence:  map[string]interface{}{"consecutive_losses": ls.ConsecutiveLosses},
		})
	}

	if rs := snap.RiskScore; rs != nil && abs(rs.DeltaLastHour) > t.RiskOscillationPoints {
		hits = append(hits, ruleHit{
			kind:      model.TriggerRiskOscillation,
			priority:  model.PriorityNormal,
			reason:    fmt.Sprintf("risk score moved %.1f points in the last hour (limit %.1f)", rs.DeltaLastHour, t.RiskOscillationPoints),
			value:     abs(rs.DeltaLastHour),
			threshold: t.RiskOscillationPoints,
			evidence: map[string]interface{}{
				"current_score": rs.Current,
				"delta_1h":      rs.DeltaLastHour,
			},
		})
	}

	for _, src := range snap.DataSources {
		if src.ErrorRate > t.DataSourceErrorRate {
			hits = append(hits, ruleHit{
				kind:      model.TriggerDataSourceDegraded,
				priority:  model.PriorityNormal,
				reason:    fmt.Sprintf("data source %s error rate %.0f%% exceeds %.0f%%", src.Source, src.ErrorRate*100, t.DataSourceErrorRate*100),
				value:     src.ErrorRate,
				threshold: t.DataSourceErrorRate,
				evidence:  map[string]interface{}{"source": src.Source, "error_rate": src.ErrorRate},
			})
			break // one open data_source_degraded event at a time
		}
	}

	if n := disagreeingSources(snap.SignalSources); n >= t.SignalContradictions && t.SignalContradictions > 0 {
		hits = append(hits, ruleHit{
			kind:      model.TriggerSignalContradiction,
			priority:  model.PriorityLow,
			reason:    fmt.Sprintf("%d independent sources disagree on direction", n),
			value:     float64(n),
			threshold: float64(t.SignalContradictions),
			evidence:  map[string]interface{}{"disagreeing_sources": n},
		})
	}

	if bt := snap.Backtest; bt != nil && abs(bt.Deviation) > t.BacktestDivergencePct {
		hits = append(hits, ruleHit{
			kind:      model.TriggerBacktestDivergence,
			priority:  model.PriorityNormal,
			reason:    fmt.Sprintf("live performance deviates %.1f%% from backtest (limit %.1f%%)", bt.Deviation*100, t.BacktestDivergencePct*100),
			value:     abs(bt.Deviation),
			threshold: t.BacktestDivergencePct,
			evidence:  map[string]interface{}{"deviation": bt.Deviation},
		})
	}

	return hits
}

// disagreeingSources returns the number of sources caught in a
// directional disagreement, or zero when all sources agree. The
// contradiction rule fires when at least the configured number of
// independent sources cannot reach a unanimous direction.
func disagreeingSources(opinions []model.SourceOpinion) int {
	if len(opinions) < 2 {
		return 0
	}
	counts := map[string]int{}
	for _, o := range opinions {
		counts[o.Direction]++
	}
	if len(counts) < 2 {
		return 0
	}
	return len(opinions)
}

func snapshotOf(snap *model.SignalSnapshot) *model.RiskSnapshot {
	rs := &model.RiskSnapshot{TakenAt: snap.TakenAt.UTC().Format(time.RFC3339)}
	if snap.RiskScore != nil {
		rs.RiskScore = snap.RiskScore.Current
	}
	if snap.TradeGuard != nil {
		rs.GuardBlocked = snap.TradeGuard.Blocked
	}
	return rs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
