package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ProductDTO is the API representation of a product.
type ProductDTO struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	SKU         string           `json:"sku"`
	Description *string          `json:"description,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"sale_price,omitempty"`
	Stock       int              `json:"stock"`
	InStock     bool             `json:"in_stock"`
	Images      []string         `json:"images"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	IsActive    bool             `json:"is_active"`
	Variants    []VariantDTO     `json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// VariantDTO is the API representation of a product variant.
type VariantDTO struct {
	ID         uuid.UUID         `json:"id"`
	ProductID  uuid.UUID         `json:"product_id"`
	SKU        string            `json:"sku"`
	Name       string            `json:"name"`
	Price      decimal.Decimal   `json:"price"`
	SalePrice  *decimal.Decimal  `json:"sale_price,omitempty"`
	Stock      int               `json:"stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
	IsActive   bool              `json:"is_active"`
}

// CategoryDTO is the API representation of a category.
type CategoryDTO struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// ProductListResult is one page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func nullDecimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

// NewProductDTO maps a product and its optional variants.
func NewProductDTO(product *models.Product, variants []models.ProductVariant) *ProductDTO {
	if product == nil {
		return nil
	}
	images := []string(product.Images)
	if images == nil {
		images = []string{}
	}
	dto := &ProductDTO{
		ID:          product.ID,
		Name:        product.Name,
		Slug:        product.Slug,
		SKU:         product.SKU,
		Description: product.Description,
		Price:       product.Price,
		SalePrice:   nullDecimalPtr(product.SalePrice),
		Stock:       product.Stock,
		InStock:     product.Stock > 0,
		Images:      images,
		CategoryID:  product.CategoryID,
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	for i := range variants {
		dto.Variants = append(dto.Variants, NewVariantDTO(&variants[i]))
		if variants[i].Stock > 0 {
			dto.InStock = true
		}
	}
	return dto
}

func NewVariantDTO(v *models.ProductVariant) VariantDTO {
	return VariantDTO{
		ID:         v.ID,
		ProductID:  v.ProductID,
		SKU:        v.SKU,
		Name:       v.Name,
		Price:      v.Price,
		SalePrice:  nullDecimalPtr(v.SalePrice),
		Stock:      v.Stock,
		Attributes: v.Attributes,
		IsActive:   v.IsActive,
	}
}

func NewCategoryDTO(c *models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug, ParentID: c.ParentID}
}
