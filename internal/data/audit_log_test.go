package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/model"
	reverr "github.com/cuongccna/ProjectBotTrading/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuditRepo(t *testing.T) (*AuditRepo, sqlmock.Sqlmock, func()) {
	gormDB, mock, cleanup := setupTestDB(t)
	return NewAuditRepo(gormDB, log.DefaultLogger), mock, cleanup
}

var auditColumns = []string{"id", "category", "event_id", "actor", "action", "details", "created_at"}

func TestAuditAppend_AssignsLedgerID(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	entry := &model.AuditEntry{
		Category: model.AuditCategorySecurity,
		EventID:  "ev-1",
		Actor:    "mallory",
		Action:   "place_trade",
		Details:  map[string]interface{}{"rejected": true},
	}
	err := repo.Append(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditAppend_StorageFailure(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	err := repo.Append(context.Background(), &model.AuditEntry{
		Category: model.AuditCategoryTransition,
		EventID:  "ev-1",
		Actor:    "alice",
		Action:   "claimed",
	})
	assert.True(t, reverr.IsStorageUnavailable(err))
}

func TestAuditQuery_CreationOrderWithDetails(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM `review_audit_logs`").
		WillReturnRows(sqlmock.NewRows(auditColumns).
			AddRow(1, "transition", "ev-1", "trigger_detector", "created", `{"priority":"high"}`, now).
			AddRow(2, "transition", "ev-1", "alice", "claimed", "", now.Add(time.Minute)))

	entries, err := repo.Query(context.Background(), model.AuditFilter{EventID: "ev-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, "created", entries[0].Action)
	assert.Equal(t, "high", entries[0].Details["priority"])
	assert.Equal(t, int64(2), entries[1].ID)
	assert.Empty(t, entries[1].Details)
}

func TestAuditQuery_Empty(t *testing.T) {
	repo, mock, cleanup := setupAuditRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM `review_audit_logs`").
		WillReturnRows(sqlmock.NewRows(auditColumns))

	entries, err := repo.Query(context.Background(), model.AuditFilter{Actor: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppendAuditTx_CommitsWithTransaction(t *testing.T) {
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `review_audit_logs`").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	entry := &model.AuditEntry{
		Category: model.AuditCategoryDecision,
		EventID:  "ev-1",
		Actor:    "carol",
		Action:   "pause_strategy",
	}
	err := gormDB.Transaction(func(tx *gorm.DB) error {
		return appendAuditTx(tx, entry)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.ID)
}
