package main

import (
	"context"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// StartReviewCrons 启动审核调度任务
// SLA 巡检：每分钟执行一次，超时事件自动升级
// 触发器复查：每分钟执行一次（偏移 30 秒），复查最近的信号快照
// 结果评估提醒：每小时执行一次
func StartReviewCrons(
	sla *biz.SLAEscalationTask,
	detector *biz.TriggerDetector,
	outcomes *biz.OutcomeUsecase,
	logger log.Logger,
) (*cron.Cron, func(), error) {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())

	// 每分钟整点执行 SLA 巡检
	// Cron 表达式：0 * * * * * （秒 分 时 日 月 周）
	if _, err := c.AddFunc("0 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()

		if err := sla.Sweep(ctx); err != nil {
			helper.Errorw("msg", "sla sweep failed", "error", err)
		}
	}); err != nil {
		return nil, nil, err
	}

	// 每分钟第 30 秒复查最近的信号快照
	// 已解决事件之后条件仍然存在时会重新触发
	if _, err := c.AddFunc("30 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()

		if _, err := detector.SweepLatest(ctx); err != nil {
			helper.Errorw("msg", "trigger re-sweep failed", "error", err)
		}
	}); err != nil {
		return nil, nil, err
	}

	// 每小时整点提醒待评估的决策
	if _, err := c.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := outcomes.RemindAwaiting(ctx); err != nil {
			helper.Errorw("msg", "outcome reminder failed", "error", err)
		}
	}); err != nil {
		return nil, nil, err
	}

	c.Start()
	helper.Info("review cron jobs started: sla sweep and trigger re-sweep every minute, outcome reminder hourly")

	cleanup := func() {
		helper.Info("stopping review cron jobs")
		<-c.Stop().Done()
	}

	return c, cleanup, nil
}
