package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem captures the product price at add time; checkout re-validates it.
type CartItem struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	VariantID *uuid.UUID          `gorm:"column:variant_id;type:uuid"`
	Quantity  int                 `gorm:"column:quantity;not null"`
	Price     decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice decimal.NullDecimal `gorm:"column:sale_price;type:numeric(12,2)"`
	Position  int                 `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// UnitPrice returns the sale price when present, otherwise the captured price.
func (i CartItem) UnitPrice() decimal.Decimal {
	if i.SalePrice.Valid {
		return i.SalePrice.Decimal
	}
	return i.Price
}

// SameLine reports whether other refers to the same product and variant.
func (i CartItem) SameLine(productID uuid.UUID, variantID *uuid.UUID) bool {
	if i.ProductID != productID {
		return false
	}
	if i.VariantID == nil || variantID == nil {
		return i.VariantID == nil && variantID == nil
	}
	return *i.VariantID == *variantID
}
