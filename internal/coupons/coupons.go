package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Repository loads coupon codes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode looks a coupon up case-insensitively. Missing codes return nil.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, nil
	}
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("UPPER(code) = ?", normalized).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount computes the discount in cents the coupon grants on subtotal.
// The discount never exceeds the subtotal.
func Discount(coupon *models.Coupon, subtotalCents int64, now time.Time) (int64, error) {
	if coupon == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "coupon not found")
	}
	if !coupon.IsActive {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active")
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	}
	if subtotalCents < coupon.MinSubtotalCents {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order subtotal below coupon minimum").
			WithDetails(map[string]any{"min_subtotal_cents": coupon.MinSubtotalCents})
	}

	var discount int64
	switch {
	case coupon.PercentOff != nil:
		pct := int64(*coupon.PercentOff)
		if pct <= 0 || pct > 100 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "coupon percent is invalid")
		}
		discount = subtotalCents * pct / 100
	case coupon.AmountOffCents != nil:
		discount = *coupon.AmountOffCents
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "coupon has no discount configured")
	}

	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}
