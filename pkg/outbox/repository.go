package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const (
	maxLastErrorLen  = 1024
	defaultBatchSize = 50
)

// Repository owns outbox_events. A row is pending while published_at is NULL;
// dead-lettered rows also get published_at so they leave the queue.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish locks up to limit pending rows, oldest first. SKIP LOCKED
// lets concurrent dispatchers take disjoint batches.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	if limit <= 0 {
		limit = defaultBatchSize
	}
	q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).Scopes(pending)
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, map[string]any{"published_at": at, "last_error": nil})
}

// MarkFailedTx records a retryable failure and leaves the row pending.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    failureText(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminalTx takes a dead-lettered row out of the pending queue.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, at time.Time, cause error) error {
	return r.update(tx, id, map[string]any{
		"published_at":  at,
		"last_error":    failureText(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// RequeueTx puts a dead-lettered row back in the pending queue with a fresh attempt budget.
// It reports false when the row no longer exists.
func (r *Repository) RequeueTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	res := tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(map[string]any{
		"published_at":  nil,
		"last_error":    nil,
		"attempt_count": 0,
	})
	return res.RowsAffected > 0, res.Error
}

// CountUnpublished is the pending backlog the dispatcher reports as a gauge.
func (r *Repository) CountUnpublished(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Scopes(pending).Count(&n).Error
	return n, err
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func pending(q *gorm.DB) *gorm.DB {
	return q.Where("published_at IS NULL")
}

func failureText(err error) string {
	if err == nil {
		return ""
	}
	return clip(err.Error())
}

func clip(message string) string {
	if len(message) <= maxLastErrorLen {
		return message
	}
	return message[:maxLastErrorLen]
}
