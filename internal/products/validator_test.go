package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func seedProduct(t *testing.T, conn *gorm.DB, name string, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Slug:     "slug-" + uuid.NewString(),
		SKU:      "SKU-" + uuid.NewString(),
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Images:   []string{"https://cdn.example.com/" + name + ".png"},
		IsActive: true,
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func newTestValidator(t *testing.T) (*Validator, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	v, err := NewValidator(NewRepository(conn))
	require.NoError(t, err)
	return v, conn
}

func TestValidateLinesSnapshotsCatalog(t *testing.T) {
	t.Parallel()
	v, conn := newTestValidator(t)
	p := seedProduct(t, conn, "mug", "20.00", 5)
	require.NoError(t, conn.Model(p).Update("sale_price", decimal.RequireFromString("15.00")).Error)

	lines, err := v.ValidateLines(context.Background(), nil, []Line{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "mug", lines[0].Name)
	require.Equal(t, p.SKU, lines[0].SKU)
	require.NotNil(t, lines[0].Image)
	require.True(t, lines[0].UnitPrice().Equal(decimal.RequireFromString("15")))
	require.True(t, lines[0].LineTotal().Equal(decimal.RequireFromString("30")))
}

func TestValidateLinesRejectsInactiveProduct(t *testing.T) {
	t.Parallel()
	v, conn := newTestValidator(t)
	p := seedProduct(t, conn, "lamp", "10.00", 5)
	require.NoError(t, conn.Model(p).Update("is_active", false).Error)

	_, err := v.ValidateLines(context.Background(), nil, []Line{{ProductID: p.ID, Quantity: 1}})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))
	require.Contains(t, err.Error(), "no longer available")
}

func TestValidateLinesRejectsShortStock(t *testing.T) {
	t.Parallel()
	v, conn := newTestValidator(t)
	p := seedProduct(t, conn, "chair", "10.00", 1)

	_, err := v.ValidateLines(context.Background(), nil, []Line{{ProductID: p.ID, Quantity: 2}})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))
	require.Contains(t, err.Error(), "insufficient stock for chair")
}

func TestValidateLinesUsesVariantPriceAndStock(t *testing.T) {
	t.Parallel()
	v, conn := newTestValidator(t)
	p := seedProduct(t, conn, "shirt", "10.00", 0)
	variant := &models.ProductVariant{
		ProductID: p.ID,
		SKU:       "SHIRT-L",
		Name:      "Large",
		Price:     decimal.RequireFromString("12.00"),
		Stock:     3,
		IsActive:  true,
	}
	require.NoError(t, conn.Create(variant).Error)

	lines, err := v.ValidateLines(context.Background(), nil, []Line{{ProductID: p.ID, VariantID: &variant.ID, Quantity: 3}})
	require.NoError(t, err)
	require.Equal(t, "shirt - Large", lines[0].Name)
	require.Equal(t, "SHIRT-L", lines[0].SKU)
	require.True(t, lines[0].UnitPrice().Equal(decimal.RequireFromString("12")))
}

func TestDecrementStockGuardsAgainstOversell(t *testing.T) {
	t.Parallel()
	v, conn := newTestValidator(t)
	p := seedProduct(t, conn, "desk", "99.00", 2)
	ctx := context.Background()

	line := ValidatedLine{ProductID: p.ID, Name: p.Name, Quantity: 2}
	require.NoError(t, v.DecrementStock(ctx, conn, line))

	err := v.DecrementStock(ctx, conn, ValidatedLine{ProductID: p.ID, Name: p.Name, Quantity: 1})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 0, reloaded.Stock)

	require.NoError(t, v.RestoreStock(ctx, conn, p.ID, nil, 2))
	require.NoError(t, conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 2, reloaded.Stock)
}
