package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// SeedUser inserts an active customer.
func SeedUser(t testing.TB, conn *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		Email:        "user-" + uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	mustCreate(t, conn, u)
	return u
}

// SeedProduct inserts an active product with the given price and stock.
func SeedProduct(t testing.TB, conn *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Slug:     "slug-" + uuid.NewString(),
		SKU:      "SKU-" + uuid.NewString()[:8],
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Images:   []string{"https://cdn.example.com/" + name + ".png"},
		IsActive: true,
	}
	mustCreate(t, conn, p)
	return p
}

// SeedVariant inserts an active variant under productID.
func SeedVariant(t testing.TB, conn *gorm.DB, productID uuid.UUID, name, price string, stock int) *models.ProductVariant {
	t.Helper()
	v := &models.ProductVariant{
		ProductID: productID,
		SKU:       "VAR-" + uuid.NewString()[:8],
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		IsActive:  true,
	}
	mustCreate(t, conn, v)
	return v
}

// SeedAddress inserts a default address for userID.
func SeedAddress(t testing.TB, conn *gorm.DB, userID uuid.UUID) *models.Address {
	t.Helper()
	a := &models.Address{
		UserID:     userID,
		FirstName:  "Test",
		LastName:   "User",
		Line1:      "1 Main St",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
		IsDefault:  true,
	}
	mustCreate(t, conn, a)
	return a
}

// SeedShippingMethod inserts an active flat-rate method.
func SeedShippingMethod(t testing.TB, conn *gorm.DB, name, price string) *models.ShippingMethod {
	t.Helper()
	m := &models.ShippingMethod{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	mustCreate(t, conn, m)
	return m
}

// SeedCoupon inserts an active coupon with no date window or usage limit.
func SeedCoupon(t testing.TB, conn *gorm.DB, code string, kind enums.CouponType, value string) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:     code,
		Name:     code,
		Type:     kind,
		Value:    decimal.RequireFromString(value),
		IsActive: true,
	}
	mustCreate(t, conn, c)
	return c
}

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
