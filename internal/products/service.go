package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads and admin writes.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
	CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*VariantDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
}

// ListProductsInput captures browse filters.
type ListProductsInput struct {
	CategoryID      *uuid.UUID
	Query           string
	IncludeInactive bool
	Pagination      pagination.Params
}

type CreateProductInput struct {
	Name        string              `json:"name" validate:"required,min=1,max=200"`
	Slug        string              `json:"slug" validate:"required,min=1,max=200"`
	SKU         string              `json:"sku" validate:"required,min=1,max=100"`
	Description *string             `json:"description,omitempty"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
	Stock       int                 `json:"stock" validate:"gte=0"`
	Images      []string            `json:"images,omitempty" validate:"omitempty,dive,url"`
	CategoryID  *uuid.UUID          `json:"category_id,omitempty"`
	IsActive    *bool               `json:"is_active,omitempty"`
}

type UpdateProductInput struct {
	Name        *string             `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string             `json:"description,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	SalePrice   *decimal.Decimal    `json:"sale_price,omitempty"`
	ClearSale   bool                `json:"clear_sale_price,omitempty"`
	Stock       *int                `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Images      []string            `json:"images,omitempty" validate:"omitempty,dive,url"`
	CategoryID  *uuid.UUID          `json:"category_id,omitempty"`
	IsActive    *bool               `json:"is_active,omitempty"`
}

type CreateVariantInput struct {
	SKU        string              `json:"sku" validate:"required,min=1,max=100"`
	Name       string              `json:"name" validate:"required,min=1,max=200"`
	Price      decimal.Decimal     `json:"price"`
	SalePrice  decimal.NullDecimal `json:"sale_price"`
	Stock      int                 `json:"stock" validate:"gte=0"`
	Attributes map[string]string   `json:"attributes,omitempty"`
}

type CreateCategoryInput struct {
	Name     string     `json:"name" validate:"required,min=1,max=100"`
	Slug     string     `json:"slug" validate:"required,min=1,max=100"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

type service struct {
	repo     *Repository
	dbClient *db.Client
}

// NewService builds the catalog service.
func NewService(repo *Repository, dbClient *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	result, err := s.repo.List(ctx, productListQuery{
		Pagination:      input.Pagination,
		CategoryID:      input.CategoryID,
		Query:           input.Query,
		IncludeInactive: input.IncludeInactive,
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	variants, err := s.repo.ListVariants(ctx, id, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}
	return NewProductDTO(product, variants), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validatePrices(input.Price, input.SalePrice); err != nil {
		return nil, err
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Slug:        strings.ToLower(strings.TrimSpace(input.Slug)),
		SKU:         strings.ToUpper(strings.TrimSpace(input.SKU)),
		Description: input.Description,
		Price:       input.Price.Round(2),
		SalePrice:   roundNull(input.SalePrice),
		Stock:       input.Stock,
		Images:      pq.StringArray(input.Images),
		CategoryID:  input.CategoryID,
		IsActive:    isActive,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product with this SKU or slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert product")
	}
	return NewProductDTO(created, nil), nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	var updated *models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		applyUpdateToProduct(product, input)
		if err := validatePrices(product.Price, product.SalePrice); err != nil {
			return err
		}
		saved, err := txRepo.UpdateProduct(ctx, product)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: update product")
		}
		updated = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewProductDTO(updated, nil), nil
}

func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*VariantDTO, error) {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if err := validatePrices(input.Price, input.SalePrice); err != nil {
		return nil, err
	}
	variant := &models.ProductVariant{
		ProductID:  productID,
		SKU:        strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:       strings.TrimSpace(input.Name),
		Price:      input.Price.Round(2),
		SalePrice:  roundNull(input.SalePrice),
		Stock:      input.Stock,
		Attributes: input.Attributes,
		IsActive:   true,
	}
	created, err := s.repo.CreateVariant(ctx, variant)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "variant with this SKU already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert variant")
	}
	dto := NewVariantDTO(created)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewCategoryDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	category := &models.Category{
		Name:     strings.TrimSpace(input.Name),
		Slug:     strings.ToLower(strings.TrimSpace(input.Slug)),
		ParentID: input.ParentID,
		IsActive: true,
	}
	created, err := s.repo.CreateCategory(ctx, category)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert category")
	}
	dto := NewCategoryDTO(created)
	return &dto, nil
}

func validatePrices(price decimal.Decimal, sale decimal.NullDecimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if sale.Valid {
		if sale.Decimal.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale_price must be non-negative")
		}
		if sale.Decimal.GreaterThan(price) {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale_price cannot exceed price")
		}
	}
	return nil
}

func roundNull(v decimal.NullDecimal) decimal.NullDecimal {
	if !v.Valid {
		return v
	}
	return decimal.NewNullDecimal(v.Decimal.Round(2))
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Price.Valid {
		product.Price = input.Price.Decimal.Round(2)
	}
	if input.ClearSale {
		product.SalePrice = decimal.NullDecimal{}
	} else if input.SalePrice != nil {
		product.SalePrice = decimal.NewNullDecimal(input.SalePrice.Round(2))
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
	if input.Images != nil {
		product.Images = pq.StringArray(input.Images)
	}
	if input.CategoryID != nil {
		product.CategoryID = input.CategoryID
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}
