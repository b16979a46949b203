package product

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists catalog products and their stock column.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a products repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID returns the product or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// FindByIDsForUpdate loads products keyed by id, row-locking them on Postgres.
func (r *Repository) FindByIDsForUpdate(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	return r.findByIDs(ctx, ids, true)
}

// FindByIDs loads products keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	return r.findByIDs(ctx, ids, false)
}

func (r *Repository) findByIDs(ctx context.Context, ids []int64, lock bool) (map[int64]models.Product, error) {
	out := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.Product
	if err := q.Where("id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// DecrementStock subtracts qty only while enough stock remains. It reports whether the row changed.
func (r *Repository) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, errors.New("quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementStock returns qty units to the product.
func (r *Repository) IncrementStock(ctx context.Context, id int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListActive returns active products newest first.
func (r *Repository) ListActive(ctx context.Context, params pagination.Params) ([]models.Product, string, error) {
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	return pagination.Fetch(q, params, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
}
