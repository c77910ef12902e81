package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Line is one requested product/variant quantity.
type Line struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// ValidatedLine carries the catalog snapshot of a line at validation time.
type ValidatedLine struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Name      string
	SKU       string
	Image     *string
	Quantity  int
	Price     decimal.Decimal
	SalePrice decimal.NullDecimal
}

// UnitPrice returns the sale price when present, otherwise the list price.
func (l ValidatedLine) UnitPrice() decimal.Decimal {
	if l.SalePrice.Valid {
		return l.SalePrice.Decimal
	}
	return l.Price
}

// LineTotal is the unit price times quantity, rounded to cents.
func (l ValidatedLine) LineTotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// Validator re-reads catalog state for cart lines and moves stock.
type Validator struct {
	repo *Repository
}

// NewValidator builds a validator on top of the product repository.
func NewValidator(repo *Repository) (*Validator, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &Validator{repo: repo}, nil
}

// ValidateLines reloads each product (and variant) and fails on the first
// line that is inactive, missing, or short on stock. tx may be nil.
func (v *Validator) ValidateLines(ctx context.Context, tx *gorm.DB, lines []Line) ([]ValidatedLine, error) {
	repo := v.repo.WithTx(tx)
	out := make([]ValidatedLine, 0, len(lines))
	for _, line := range lines {
		validated, err := validateLine(ctx, repo, line)
		if err != nil {
			return nil, err
		}
		out = append(out, *validated)
	}
	return out, nil
}

// ValidateLine checks a single line outside of any transaction.
func (v *Validator) ValidateLine(ctx context.Context, line Line) (*ValidatedLine, error) {
	return validateLine(ctx, v.repo, line)
}

func validateLine(ctx context.Context, repo *Repository, line Line) (*ValidatedLine, error) {
	if line.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := repo.FindByID(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "product is no longer available").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, unavailable(product.Name, product.ID)
	}

	out := &ValidatedLine{
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		Image:     product.PrimaryImage(),
		Quantity:  line.Quantity,
		Price:     product.Price,
		SalePrice: product.SalePrice,
	}
	stock := product.Stock

	if line.VariantID != nil {
		variant, err := repo.FindVariant(ctx, product.ID, *line.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, unavailable(product.Name, product.ID)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
		}
		if !variant.IsActive {
			return nil, unavailable(product.Name, product.ID)
		}
		variantID := variant.ID
		out.VariantID = &variantID
		out.Name = fmt.Sprintf("%s - %s", product.Name, variant.Name)
		out.SKU = variant.SKU
		out.Price = variant.Price
		out.SalePrice = variant.SalePrice
		stock = variant.Stock
	}

	if stock < line.Quantity {
		return nil, insufficientStock(out.Name, product.ID, stock)
	}
	return out, nil
}

// DecrementStock subtracts the line quantity inside tx. A concurrent
// checkout that drained the stock first makes this fail.
func (v *Validator) DecrementStock(ctx context.Context, tx *gorm.DB, line ValidatedLine) error {
	ok, err := v.repo.WithTx(tx).DecrementStock(ctx, line.ProductID, line.VariantID, line.Quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
	}
	if !ok {
		return insufficientStock(line.Name, line.ProductID, -1)
	}
	return nil
}

// RestoreStock returns qty units to the product or variant.
func (v *Validator) RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	if err := v.repo.WithTx(tx).RestoreStock(ctx, productID, variantID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
	}
	return nil
}

func unavailable(name string, id uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "product %s is no longer available", name).
		WithDetails(map[string]any{"product_id": id})
}

func insufficientStock(name string, id uuid.UUID, available int) error {
	details := map[string]any{"product_id": id}
	if available >= 0 {
		details["available"] = available
	}
	return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "insufficient stock for %s", name).WithDetails(details)
}
