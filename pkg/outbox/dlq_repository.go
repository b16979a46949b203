package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const defaultDLQPage = 50

var errTxRequired = errors.New("transaction required")

// DLQRepository stores rows the dispatcher gave up on until an operator requeues them.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errTxRequired
	}
	if entry.ErrorMessage != nil {
		clipped := clip(*entry.ErrorMessage)
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

// List returns the newest failures first, optionally for one reason only.
func (r *DLQRepository) List(ctx context.Context, reason *enums.OutboxDLQErrorReason, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQPage
	}
	q := r.db.WithContext(ctx)
	if reason != nil {
		q = q.Where("error_reason = ?", *reason)
	}
	var rows []models.OutboxDLQ
	err := q.Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// FindByEventIDTx locks the entry for eventID; a missing entry yields (nil, nil).
func (r *DLQRepository) FindByEventIDTx(tx *gorm.DB, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	var entry models.OutboxDLQ
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("event_id = ?", eventID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *DLQRepository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Delete(&models.OutboxDLQ{}, "id = ?", id).Error
}
