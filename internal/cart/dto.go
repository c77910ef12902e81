package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ItemDTO is a cart line as returned to clients.
type ItemDTO struct {
	ID        uuid.UUID           `json:"id"`
	ProductID uuid.UUID           `json:"product_id"`
	VariantID *uuid.UUID          `json:"variant_id,omitempty"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.Decimal     `json:"price"`
	SalePrice decimal.NullDecimal `json:"sale_price"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	LineTotal decimal.Decimal     `json:"line_total"`
}

// CartDTO is the cart payload. ID is nil for an owner with no cart yet.
type CartDTO struct {
	ID             *uuid.UUID      `json:"id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	Items          []ItemDTO       `json:"items"`
	TotalItems     int             `json:"total_items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	LastActivityAt *time.Time      `json:"last_activity_at,omitempty"`
}

// SummaryDTO is the header badge payload.
type SummaryDTO struct {
	ItemCount   int             `json:"item_count"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

// NewCartDTO maps a cart model. A nil cart yields the empty shape.
func NewCartDTO(cart *models.Cart, currency string) *CartDTO {
	if cart == nil {
		return &CartDTO{Items: []ItemDTO{}, TotalAmount: decimal.Zero, Currency: currency}
	}
	id := cart.ID
	activity := cart.LastActivityAt
	dto := &CartDTO{
		ID:             &id,
		UserID:         cart.UserID,
		Items:          make([]ItemDTO, 0, len(cart.Items)),
		TotalItems:     cart.TotalItems,
		TotalAmount:    cart.TotalAmount,
		Currency:       cart.Currency,
		LastActivityAt: &activity,
	}
	for _, item := range cart.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			SalePrice: item.SalePrice,
			UnitPrice: item.UnitPrice(),
			LineTotal: lineTotal(item),
		})
	}
	return dto
}
