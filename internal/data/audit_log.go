package data

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/model"
	reverr "github.com/cuongccna/ProjectBotTrading/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// AuditLogModel is the GORM model for the review_audit_logs table.
// The table is append-only: rows are never updated or deleted, and the
// auto-increment id preserves creation order for replay.
type AuditLogModel struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Category  string    `gorm:"column:category;size:30;not null;index"`
	EventID   string    `gorm:"column:event_id;size:36;index"`
	Actor     string    `gorm:"column:actor;size:100;not null;index"`
	Action    string    `gorm:"column:action;size:50;not null"`
	Details   string    `gorm:"column:details;type:json"` // JSON string
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName specifies the table name for GORM.
func (AuditLogModel) TableName() string {
	return "review_audit_logs"
}

// AuditRepo implements biz.AuditRepo. Writes are synchronous: the ledger
// is the compliance record, so a failed append must fail the operation
// that produced it instead of being dropped from a queue.
type AuditRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewAuditRepo creates the audit ledger repository.
func NewAuditRepo(db *gorm.DB, logger log.Logger) *AuditRepo {
	return &AuditRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// Append writes one ledger entry. Storage failures surface as
// StorageUnavailable so callers never report success over a missing entry.
func (a *AuditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	if err := appendAuditTx(a.db.WithContext(ctx), e); err != nil {
		a.logger.Errorw("msg", "audit ledger append failed",
			"category", e.Category, "event_id", e.EventID, "error", err)
		return reverr.NewStorageUnavailableError(err)
	}
	return nil
}

// Query returns ledger entries in creation order.
func (a *AuditRepo) Query(ctx context.Context, f model.AuditFilter) ([]*model.AuditEntry, error) {
	q := a.db.WithContext(ctx).Model(&AuditLogModel{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.EventID != "" {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.Actor != "" {
		q = q.Where("actor = ?", f.Actor)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []AuditLogModel
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit ledger: %w", err)
	}

	out := make([]*model.AuditEntry, 0, len(rows))
	for i := range rows {
		details, err := unmarshalJSONField(rows[i].Details)
		if err != nil {
			return nil, fmt.Errorf("unmarshal audit details for entry %d: %w", rows[i].ID, err)
		}
		out = append(out, &model.AuditEntry{
			ID:        rows[i].ID,
			Category:  rows[i].Category,
			EventID:   rows[i].EventID,
			Actor:     rows[i].Actor,
			Action:    rows[i].Action,
			Details:   details,
			CreatedAt: rows[i].CreatedAt,
		})
	}
	return out, nil
}

// appendAuditTx writes a ledger entry on the given handle. Event mutations
// call it inside their own transaction so the entry commits or rolls back
// with the state change it records.
func appendAuditTx(tx *gorm.DB, e *model.AuditEntry) error {
	details, err := marshalJSONField(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	row := &AuditLogModel{
		Category: e.Category,
		EventID:  e.EventID,
		Actor:    e.Actor,
		Action:   e.Action,
		Details:  details,
	}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	e.ID = row.ID
	return nil
}
