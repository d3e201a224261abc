package log

import (
	"bytes"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// createTestLogger 创建用于测试的日志记录器
func createTestLogger() (*LogHelper, *bytes.Buffer) {
	// 创建内存缓冲区捕获日志输出
	buf := &bytes.Buffer{}

	// 创建简单的编码器配置
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		TimeKey:     "time",
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
	}

	// 创建 Core
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)

	// 创建 Zap logger
	zapLogger := zap.New(core)

	// 创建 Kratos adapter
	kratosLogger := NewKratosAdapter(zapLogger)

	// 创建 LogHelper
	helper := NewLogHelper(kratosLogger)

	return helper, buf
}

func TestNewLogHelper(t *testing.T) {
	zapLogger := zap.NewNop()
	kratosLogger := NewKratosAdapter(zapLogger)
	helper := NewLogHelper(kratosLogger)

	if helper == nil {
		t.Fatal("NewLogHelper returned nil")
	}
}

func TestLogHelper_API(t *testing.T) {
	helper, buf := createTestLogger()

	helper.API("test API call", "endpoint", "/v1/review/queue")

	output := buf.String()
	if output == "" {
		t.Error("API log produced no output")
	}

	// 验证输出包含 type:api 字段
	if !contains(output, "api") {
		t.Error("API log missing 'api' type field")
	}
}

func TestLogHelper_Request(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Request("POST", "/v1/review/events/abc/claim", 200, 150)

	output := buf.String()
	if output == "" {
		t.Error("Request log produced no output")
	}

	// 验证输出包含关键字段
	if !contains(output, "POST") {
		t.Error("Request log missing method")
	}
	if !contains(output, "200") {
		t.Error("Request log missing status code")
	}
}

func TestLogHelper_Trigger(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Trigger("drawdown threshold breached", "trigger_type", "drawdown_critical")

	output := buf.String()
	if output == "" {
		t.Error("Trigger log produced no output")
	}

	if !contains(output, "trigger") {
		t.Error("Trigger log missing 'trigger' type field")
	}
}

func TestLogHelper_Escalation(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Escalation("review escalated", "event_id", "ev-123", "new_priority", "critical")

	output := buf.String()
	if output == "" {
		t.Error("Escalation log produced no output")
	}

	if !contains(output, "escalation") {
		t.Error("Escalation log missing 'escalation' type field")
	}
}

func TestLogHelper_Security(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Security("forbidden action rejected", "action", "place_trade", "reviewer_id", "alice")

	output := buf.String()
	if output == "" {
		t.Error("Security log produced no output")
	}

	if !contains(output, "security") {
		t.Error("Security log missing 'security' type field")
	}
	if !contains(output, "place_trade") {
		t.Error("Security log missing action field")
	}
}

func TestLogHelper_Database(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Database("query executed", "table", "review_events")

	output := buf.String()
	if output == "" {
		t.Error("Database log produced no output")
	}

	if !contains(output, "database") {
		t.Error("Database log missing 'database' type field")
	}
}

func TestLogHelper_Redis(t *testing.T) {
	helper, buf := createTestLogger()

	helper.Redis("notification queued", "queue", "review:notifications")

	output := buf.String()
	if output == "" {
		t.Error("Redis log produced no output")
	}

	if !contains(output, "redis") {
		t.Error("Redis log missing 'redis' type field")
	}
}

func TestLogHelper_TriggerFired(t *testing.T) {
	helper, buf := createTestLogger()

	helper.TriggerFired("daily_loss_warning", "high", "ev-456", 0.0612, 0.05)

	output := buf.String()
	if output == "" {
		t.Error("TriggerFired log produced no output")
	}

	// 验证包含关键信息
	if !contains(output, "daily_loss_warning") {
		t.Error("TriggerFired log missing trigger type")
	}
	if !contains(output, "ev-456") {
		t.Error("TriggerFired log missing event ID")
	}
}

func TestLogHelper_DecisionRecorded(t *testing.T) {
	helper, buf := createTestLogger()

	helper.DecisionRecorded("ev-789", "bob", "pause_strategy", 42)

	output := buf.String()
	if output == "" {
		t.Error("DecisionRecorded log produced no output")
	}

	// 验证包含关键信息
	if !contains(output, "ev-789") {
		t.Error("DecisionRecorded log missing event ID")
	}
	if !contains(output, "bob") {
		t.Error("DecisionRecorded log missing reviewer ID")
	}
	if !contains(output, "pause_strategy") {
		t.Error("DecisionRecorded log missing action")
	}
}

func TestLogHelper_AllTypes(t *testing.T) {
	// 测试所有日志类型方法都能正常调用
	helper, _ := createTestLogger()

	// 不应该 panic
	helper.Success("review resolved")
	helper.Scheduler("sla sweep started")
	helper.Startup("service started")
	helper.Audit("decision appended to ledger")
	helper.Decision("risk threshold adjusted")
	helper.Notify("notification pushed")
	helper.Outcome("verdict recorded")
}

// contains 检查字符串是否包含子串
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > len(substr) && containsSubstring(s, substr))
}

func containsSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// TestMain 设置测试环境
func TestMain(m *testing.M) {
	// 运行测试
	code := m.Run()
	os.Exit(code)
}
