package data

import (
	"context"
	"testing"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
	reverr "github.com/cuongccna/ProjectBotTrading/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupTestDB creates a test database connection with sqlmock
func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	cleanup := func() {
		sqlDB.Close()
	}

	return gormDB, mock, cleanup
}

// setupReviewRepo creates a ReviewRepo backed by sqlmock and miniredis
func setupReviewRepo(t *testing.T) (*ReviewRepo, sqlmock.Sqlmock, *miniredis.Miniredis, func()) {
	gormDB, mock, dbCleanup := setupTestDB(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCacheClient(rdb)

	cfg := &conf.Review{
		ResponseTarget: &conf.SLALadder{
			Critical: 15 * time.Minute,
			High:     1 * time.Hour,
			Normal:   4 * time.Hour,
			Low:      12 * time.Hour,
		},
	}
	repo := NewReviewRepo(gormDB, cache, cfg, log.DefaultLogger)

	cleanup := func() {
		rdb.Close()
		mr.Close()
		dbCleanup()
	}
	return repo, mock, mr, cleanup
}

var eventColumns = []string{
	"id", "correlation_id", "trigger_kind", "trigger_reason", "trigger_value",
	"trigger_threshold", "priority", "status", "evidence", "snapshot",
	"assigned_to", "escalation_count", "created_at", "claimed_at",
	"resolved_at", "last_transition_at",
}

func eventRow(id, kind, priority, status, assignedTo string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(eventColumns).AddRow(
		id, "corr-1", kind, "reason", 0.07, 0.05, priority, status, "", "",
		assignedTo, 0, now, nil, nil, now,
	)
}

func testEvent(id string) *model.ReviewEvent {
	now := time.Now().UTC()
	return &model.ReviewEvent{
		ID:               id,
		CorrelationID:    "corr-1",
		TriggerKind:      model.TriggerDrawdownThreshold,
		TriggerReason:    "daily drawdown 7.00% exceeds 5.00%",
		TriggerValue:     0.07,
		TriggerThreshold: 0.05,
		Priority:         model.PriorityHigh,
		Status:           model.StatusPending,
		Evidence:         map[string]interface{}{"window": "daily"},
		CreatedAt:        now,
		LastTransitionAt: now,
	}
}

func TestCreateIfNoOpen_CreatesWhenNoOpenEvent(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	// Locking dedup check finds nothing open
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(sqlmock.NewRows(eventColumns))
	mock.ExpectExec("INSERT INTO `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Audit entry commits in the same transaction
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.CreateIfNoOpen(context.Background(), testEvent("ev-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfNoOpen_DeduplicatesAgainstOpenEvent(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	// An open event of the same kind already exists
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-open", "drawdown_threshold", "high", "pending", ""))
	mock.ExpectRollback()

	created, err := repo.CreateIfNoOpen(context.Background(), testEvent("ev-2"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfNoOpen_ManualRequestBypassesDedup(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	ev := testEvent("ev-3")
	ev.TriggerKind = model.TriggerManualRequest

	// No dedup SELECT for manual requests
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.CreateIfNoOpen(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEvent_NotFound(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(sqlmock.NewRows(eventColumns))

	_, err := repo.GetEvent(context.Background(), "missing")
	assert.True(t, reverr.IsNotFound(err))
}

func TestGetEvent_CachesAfterRead(t *testing.T) {
	repo, mock, mr, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "pending", ""))

	ev, err := repo.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, ev.Priority)
	assert.True(t, mr.Exists(BuildCacheKey(CacheKeyEvent, "ev-1")))

	// Second read is served from the cache, no further SQL expected
	again, err := repo.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, ev.ID, again.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimEvent_Success(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	// Post-commit re-read
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "in_progress", "alice"))

	ev, err := repo.ClaimEvent(context.Background(), "ev-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, ev.Status)
	assert.Equal(t, "alice", ev.AssignedTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimEvent_AlreadyClaimed(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Classification re-read sees the winner
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "in_progress", "alice"))
	mock.ExpectRollback()

	_, err := repo.ClaimEvent(context.Background(), "ev-1", "bob")
	assert.True(t, reverr.IsAlreadyClaimed(err))
}

func TestClaimEvent_NotFound(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(sqlmock.NewRows(eventColumns))
	mock.ExpectRollback()

	_, err := repo.ClaimEvent(context.Background(), "missing", "alice")
	assert.True(t, reverr.IsNotFound(err))
}

func TestClaimEvent_ResolvedEventInvalidState(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "resolved", ""))
	mock.ExpectRollback()

	_, err := repo.ClaimEvent(context.Background(), "ev-1", "alice")
	assert.True(t, reverr.IsInvalidState(err))
}

func TestEscalateEvent_Success(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	// Locking read of the current row
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "in_progress", "alice"))
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	// Post-commit re-read
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "critical", "escalated", ""))

	ev, err := repo.EscalateEvent(context.Background(), "ev-1", "sla timeout", "sla_scheduler")
	require.NoError(t, err)
	assert.Equal(t, model.StatusEscalated, ev.Status)
	assert.Equal(t, model.PriorityCritical, ev.Priority)
	assert.Empty(t, ev.AssignedTo)
}

func TestEscalateEvent_TerminalInvalidState(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "resolved", ""))
	mock.ExpectRollback()

	_, err := repo.EscalateEvent(context.Background(), "ev-1", "too old", "sla_scheduler")
	assert.True(t, reverr.IsInvalidState(err))
}

func TestResolveEvent_WithParameterChange(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_decisions`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `review_parameter_changes`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	d := &model.HumanDecision{
		ID:        "dec-1",
		EventID:   "ev-1",
		UserID:    "carol",
		Role:      model.RoleSeniorAnalyst,
		Action:    model.ActionAdjustRiskThreshold,
		CreatedAt: time.Now().UTC(),
	}
	pc := &model.ParameterChange{
		ID:          "pc-1",
		DecisionID:  "dec-1",
		ParamKey:    "max_drawdown_pct",
		BeforeValue: "0.1",
		AfterValue:  "0.15",
		EffectiveAt: time.Now().UTC(),
	}

	err := repo.ResolveEvent(context.Background(), "ev-1", "carol", d, pc)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveEvent_WithoutParameterChange(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_decisions`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	d := &model.HumanDecision{
		ID:        "dec-2",
		EventID:   "ev-1",
		UserID:    "junior",
		Role:      model.RoleJuniorAnalyst,
		Action:    model.ActionAcknowledgeOnly,
		CreatedAt: time.Now().UTC(),
	}

	err := repo.ResolveEvent(context.Background(), "ev-1", "junior", d, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveEvent_WrongClaimant(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "in_progress", "alice"))
	mock.ExpectRollback()

	d := &model.HumanDecision{ID: "dec-3", EventID: "ev-1", UserID: "bob", Action: model.ActionMarkAnomaly}
	err := repo.ResolveEvent(context.Background(), "ev-1", "bob", d, nil)
	assert.True(t, reverr.IsAlreadyClaimed(err))
}

func TestResolveEvent_UnclaimedInvalidState(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `review_events`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "pending", ""))
	mock.ExpectRollback()

	d := &model.HumanDecision{ID: "dec-4", EventID: "ev-1", UserID: "alice", Action: model.ActionMarkAnomaly}
	err := repo.ResolveEvent(context.Background(), "ev-1", "alice", d, nil)
	assert.True(t, reverr.IsInvalidState(err))
}

func TestCreateOutcome_Success(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	// No terminal verdict yet
	mock.ExpectQuery("SELECT (.+) FROM `review_outcome_evaluations`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "decision_id", "evaluator", "verdict", "impact_usd", "narrative", "created_at"}))
	mock.ExpectExec("INSERT INTO `review_outcome_evaluations`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateOutcome(context.Background(), &model.OutcomeEvaluation{
		ID:         "out-1",
		DecisionID: "dec-1",
		Evaluator:  "dave",
		Verdict:    "correct",
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOutcome_AlreadyEvaluated(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `review_outcome_evaluations`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "decision_id", "evaluator", "verdict", "impact_usd", "narrative", "created_at"}).
			AddRow("out-0", "dec-1", "dave", "correct", 100.0, "", time.Now().UTC()))
	mock.ExpectRollback()

	err := repo.CreateOutcome(context.Background(), &model.OutcomeEvaluation{
		ID:         "out-2",
		DecisionID: "dec-1",
		Verdict:    "incorrect",
	})
	assert.True(t, reverr.IsAlreadyEvaluated(err))
}

func TestListEvents_FilterTranslation(t *testing.T) {
	repo, mock, _, cleanup := setupReviewRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM `review_events`").
		WillReturnRows(eventRow("ev-1", "drawdown_threshold", "high", "pending", ""))

	events, err := repo.ListEvents(context.Background(), model.QueueFilter{
		OnlyOpen: true,
		Priority: model.PriorityHigh,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.PriorityHigh, events[0].Priority)
}

func TestEventModelRoundTrip(t *testing.T) {
	ev := testEvent("ev-rt")
	ev.Snapshot = &model.RiskSnapshot{RiskScore: 42.5, GuardBlocked: true}

	row, err := eventToModel(ev)
	require.NoError(t, err)
	back, err := modelToEvent(row)
	require.NoError(t, err)

	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.TriggerKind, back.TriggerKind)
	assert.Equal(t, ev.Priority, back.Priority)
	assert.Equal(t, ev.Evidence["window"], back.Evidence["window"])
	require.NotNil(t, back.Snapshot)
	assert.Equal(t, 42.5, back.Snapshot.RiskScore)
	assert.True(t, back.Snapshot.GuardBlocked)
}
