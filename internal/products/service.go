package products

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListInput combines filters and pagination for the browse endpoint.
type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// Page is one cursor-paginated slice of the catalog.
type Page struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Service covers catalog reads plus the admin stock adjustment.
type Service interface {
	List(ctx context.Context, input ListInput) (*Page, error)
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	GetVariant(ctx context.Context, variantID uuid.UUID) (*VariantDTO, error)
	Brands(ctx context.Context) ([]BrandDTO, error)
	Categories(ctx context.Context) ([]CategoryDTO, error)
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (*VariantDTO, error)
}

// BrandDTO is a catalog facet entry.
type BrandDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CategoryDTO is a catalog facet entry.
type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type stockAdjuster interface {
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (int, error)
}

type service struct {
	repo      Repository
	inventory stockAdjuster
}

// NewService wires the catalog service.
func NewService(repo Repository, inventory stockAdjuster) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{repo: repo, inventory: inventory}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*Page, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	rows, err := s.repo.ListProducts(ctx, input.Filters, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page := &Page{Products: make([]ProductDTO, 0, len(rows))}
	for _, row := range rows {
		page.Products = append(page.Products, *NewProductDTO(&row))
	}
	if len(page.Products) > limit {
		page.Products = page.Products[:limit]
		last := page.Products[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return NewProductDTO(product), nil
}

func (s *service) GetVariant(ctx context.Context, variantID uuid.UUID) (*VariantDTO, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	variant, err := s.repo.FindVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	dto := NewVariantDTO(variant)
	return &dto, nil
}

func (s *service) Brands(ctx context.Context) ([]BrandDTO, error) {
	rows, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list brands")
	}
	brands := make([]BrandDTO, 0, len(rows))
	for _, row := range rows {
		brands = append(brands, BrandDTO{ID: row.ID, Name: row.Name})
	}
	return brands, nil
}

func (s *service) Categories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	categories := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, CategoryDTO{ID: row.ID, Name: row.Name})
	}
	return categories, nil
}

// AdjustStock applies an admin stock delta through the inventory ledger
// and returns the refreshed variant.
func (s *service) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (*VariantDTO, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if _, err := s.inventory.AdjustStock(ctx, variantID, delta); err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, variantID)
}
