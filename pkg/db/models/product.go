package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable catalog entry. Stock is tracked here unless the
// product has variants, in which case each variant carries its own stock.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name        string              `gorm:"column:name;not null"`
	Slug        string              `gorm:"column:slug;not null;uniqueIndex"`
	SKU         string              `gorm:"column:sku;not null;uniqueIndex"`
	Description *string             `gorm:"column:description"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice   decimal.NullDecimal `gorm:"column:sale_price;type:numeric(12,2)"`
	Stock       int                 `gorm:"column:stock;not null;default:0"`
	Images      pq.StringArray      `gorm:"column:images;type:text[]"`
	CategoryID  *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	IsActive    bool                `gorm:"column:is_active;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// EffectivePrice returns the sale price when present, otherwise the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// PrimaryImage returns the first image, if any.
func (p Product) PrimaryImage() *string {
	if len(p.Images) == 0 {
		return nil
	}
	img := p.Images[0]
	return &img
}

// ProductVariant is a purchasable option of a product (size, colour, ...).
type ProductVariant struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        string              `gorm:"column:sku;not null;uniqueIndex"`
	Name       string              `gorm:"column:name;not null"`
	Price      decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice  decimal.NullDecimal `gorm:"column:sale_price;type:numeric(12,2)"`
	Stock      int                 `gorm:"column:stock;not null;default:0"`
	Attributes map[string]string   `gorm:"column:attributes;type:jsonb;serializer:json"`
	IsActive   bool                `gorm:"column:is_active;not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// EffectivePrice returns the sale price when present, otherwise the list price.
func (v ProductVariant) EffectivePrice() decimal.Decimal {
	if v.SalePrice.Valid {
		return v.SalePrice.Decimal
	}
	return v.Price
}
