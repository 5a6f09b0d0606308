package products

import (
	"strings"
	"time"

	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	Brand       *string      `json:"brand,omitempty"`
	Category    *string      `json:"category,omitempty"`
	IsActive    bool         `json:"is_active"`
	Variants    []VariantDTO `json:"variants"`
	CreatedAt   time.Time    `json:"created_at"`
}

// VariantDTO is the sellable-unit payload.
type VariantDTO struct {
	ID                  uuid.UUID `json:"id"`
	ProductID           uuid.UUID `json:"product_id"`
	Name                string    `json:"name"`
	SKU                 string    `json:"sku"`
	PriceCents          int       `json:"price_cents"`
	SalePriceCents      int       `json:"sale_price_cents,omitempty"`
	EffectivePriceCents int       `json:"effective_price_cents"`
	StockQuantity       int       `json:"stock_quantity"`
	InStock             bool      `json:"in_stock"`
	IsActive            bool      `json:"is_active"`
}

// NewProductDTO maps the persisted model, resolving brand and category
// names from the preloaded associations.
func NewProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		IsActive:    product.IsActive,
		Variants:    make([]VariantDTO, 0, len(product.Variants)),
		CreatedAt:   product.CreatedAt,
	}
	if product.Brand != nil {
		name := product.Brand.Name
		dto.Brand = &name
	}
	if product.Category != nil {
		name := product.Category.Name
		dto.Category = &name
	}
	for _, variant := range product.Variants {
		dto.Variants = append(dto.Variants, NewVariantDTO(&variant))
	}
	return dto
}

// NewVariantDTO maps a variant row.
func NewVariantDTO(variant *models.ProductVariant) VariantDTO {
	return VariantDTO{
		ID:                  variant.ID,
		ProductID:           variant.ProductID,
		Name:                variant.Name,
		SKU:                 variant.SKU,
		PriceCents:          variant.PriceCents,
		SalePriceCents:      variant.SalePriceCents,
		EffectivePriceCents: variant.EffectivePriceCents(),
		StockQuantity:       variant.StockQuantity,
		InStock:             variant.StockQuantity > 0,
		IsActive:            variant.IsActive,
	}
}

func lowered(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
