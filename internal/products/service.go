package product

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads.
type Service interface {
	GetProduct(ctx context.Context, id int64) (*Summary, error)
	ListProducts(ctx context.Context, params pagination.Params) (*ListResult, error)
}

type service struct {
	repo *Repository
}

// NewService builds the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (*Summary, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if p == nil || !p.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	summary := ToSummary(*p)
	return &summary, nil
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params) (*ListResult, error) {
	rows, next, err := s.repo.ListActive(ctx, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := &ListResult{Products: make([]Summary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		out.Products = append(out.Products, ToSummary(row))
	}
	return out, nil
}
