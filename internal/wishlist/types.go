package wishlist

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ProductSummary is the catalog snapshot shown next to a wishlist entry.
type ProductSummary struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	Image     *string          `json:"image,omitempty"`
	InStock   bool             `json:"in_stock"`
	IsActive  bool             `json:"is_active"`
}

// WishlistItemDTO wraps the product summary included in a wishlist row.
type WishlistItemDTO struct {
	ID        uuid.UUID      `json:"id"`
	Product   ProductSummary `json:"product"`
	CreatedAt time.Time      `json:"created_at"`
}

// WishlistPageDTO returns a cursor-paginated wishlist view.
type WishlistPageDTO struct {
	Items      []WishlistItemDTO `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func newProductSummary(p *models.Product) ProductSummary {
	summary := ProductSummary{
		ID:       p.ID,
		Name:     p.Name,
		Slug:     p.Slug,
		Price:    p.Price,
		Image:    p.PrimaryImage(),
		InStock:  p.Stock > 0,
		IsActive: p.IsActive,
	}
	if p.SalePrice.Valid {
		sale := p.SalePrice.Decimal
		summary.SalePrice = &sale
	}
	return summary
}
