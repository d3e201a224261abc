//go:build ignore
// +build ignore

package main

import (
	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"
)

func main() {
	// 创建日志配置
	logConf := &conf.Log{
		Level:  "debug",
		Format: "console", // 使用 console 格式以启用 Emoji Encoder
		Env:    "development",
	}

	// 创建 Zap logger
	zapLogger, err := pkglog.NewZapLogger(logConf)
	if err != nil {
		panic(err)
	}

	// 创建 Kratos adapter
	kratosLogger := pkglog.NewKratosAdapter(zapLogger)

	// 创建 LogHelper
	helper := pkglog.NewLogHelper(kratosLogger)

	// 测试各种日志类型
	println("=== 测试日志输出格式 ===\n")

	helper.Startup("reviewcore service starting", "version", "1.0.0", "port", 8000)
	helper.API("Processing API request", "endpoint", "/v1/review/queue", "method", "GET")
	helper.Request("POST", "/v1/review/events/ev-123/claim", 200, 42, "ip", "192.168.1.100", "user_agent", "review-console/1.4.0")
	helper.Database("Query executed successfully", "table", "review_events", "duration_ms", 5)
	helper.Redis("Cache hit", "key", "review:event:ev-123", "ttl", 30)
	helper.Scheduler("SLA sweep completed", "open_events", 7, "escalated", 1)
	helper.Audit("Ledger entry appended", "category", "DECISION", "event_id", "ev-123")
	helper.Security("Forbidden action rejected", "reviewer_id", "alice", "action", "place_trade")
	helper.Trigger("Drawdown threshold breached", "trigger_kind", "drawdown_threshold", "value", 0.07)
	helper.Escalation("Event escalated", "event_id", "ev-123", "new_priority", "critical")
	helper.Decision("Decision authorized", "event_id", "ev-123", "action", "pause_strategy")
	helper.Notify("Notification intent queued", "event_id", "ev-123", "priority", "high")
	helper.Outcome("Verdict recorded", "decision_id", "dec-456", "verdict", "correct")
	helper.Success("Request completed successfully", "request_id", "req-789")

	// 测试便捷方法
	helper.TriggerFired("drawdown_threshold", "high", "ev-123", 0.07, 0.05)
	helper.DecisionRecorded("ev-123", "alice", "pause_strategy", 38)

	println("\n=== 日志输出完成 ===")
}
