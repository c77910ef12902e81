package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	validator, err := product.NewValidator(product.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), client, validator, "usd")
	require.NoError(t, err)
	return svc, conn
}

func guest() Owner {
	return Owner{SessionID: uuid.NewString()}
}

func requireTotalsConsistent(t *testing.T, cart *CartDTO) {
	t.Helper()
	qty := 0
	sum := decimal.Zero
	for _, item := range cart.Items {
		qty += item.Quantity
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	require.Equal(t, qty, cart.TotalItems)
	require.True(t, sum.Round(2).Equal(cart.TotalAmount), "total %s != %s", cart.TotalAmount, sum)
}

func TestGetWithoutCartReturnsEmptyShape(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	cart, err := svc.Get(context.Background(), guest())
	require.NoError(t, err)
	require.Nil(t, cart.ID)
	require.Empty(t, cart.Items)
	require.Equal(t, "USD", cart.Currency)

	_, err = svc.Resolve(context.Background(), nil, guest())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResolvePrefersUserCart(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	owner := guest()

	guestCart, err := svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	userCart, err := svc.GetOrCreate(ctx, Owner{UserID: &user.ID})
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, nil, Owner{UserID: &user.ID, SessionID: owner.SessionID})
	require.NoError(t, err)
	require.Equal(t, *userCart.ID, resolved.ID)
	require.NotEqual(t, *guestCart.ID, resolved.ID)
}

func TestAddItemCapturesPriceAndMergesLines(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, conn, "mug", "12.50", 10)
	owner := guest()

	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.True(t, cart.Items[0].Price.Equal(decimal.RequireFromString("12.50")))

	// later catalog price changes do not touch the captured line price
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("price", decimal.NewFromInt(99)).Error)

	cart, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 5, cart.Items[0].Quantity)
	require.True(t, cart.TotalAmount.Equal(decimal.RequireFromString("62.50")))
	requireTotalsConsistent(t, cart)
}

func TestAddItemSeparatesVariants(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, conn, "shirt", "20", 10)
	small := dbtest.SeedVariant(t, conn, p.ID, "S", "18", 4)
	owner := guest()

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: p.ID, VariantID: &small.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	require.Equal(t, 3, cart.TotalItems)
	require.True(t, cart.TotalAmount.Equal(decimal.NewFromInt(56)))
	requireTotalsConsistent(t, cart)
}

func TestAddItemRejectsStockShortfall(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, conn, "lamp", "10", 3)
	owner := guest()

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	cart, err := svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 2, cart.TotalItems)
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	p := dbtest.SeedProduct(t, conn, "desk", "100", 3)
	require.NoError(t, conn.Model(p).Update("is_active", false).Error)

	_, err := svc.AddItem(context.Background(), guest(), AddItemInput{ProductID: p.ID, Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))
}

func TestUpdateItemEnforcesOwnershipAndRemovesAtZero(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	a := dbtest.SeedProduct(t, conn, "a", "5", 10)
	b := dbtest.SeedProduct(t, conn, "b", "7", 10)
	owner := guest()

	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: a.ID, Quantity: 1})
	require.NoError(t, err)
	cart, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)
	itemA := cart.Items[0].ID

	_, err = svc.UpdateItem(ctx, guest(), itemA, UpdateItemInput{Quantity: 2})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	other, err := svc.GetOrCreate(ctx, guest())
	require.NoError(t, err)
	require.Empty(t, other.Items)

	_, err = svc.UpdateItem(ctx, owner, itemA, UpdateItemInput{Quantity: 11})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	cart, err = svc.UpdateItem(ctx, owner, itemA, UpdateItemInput{Quantity: 4})
	require.NoError(t, err)
	require.True(t, cart.TotalAmount.Equal(decimal.NewFromInt(27)))
	requireTotalsConsistent(t, cart)

	cart, err = svc.UpdateItem(ctx, owner, itemA, UpdateItemInput{Quantity: 0})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, b.ID, cart.Items[0].ProductID)
	requireTotalsConsistent(t, cart)
}

func TestClearKeepsCart(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	p := dbtest.SeedProduct(t, conn, "pen", "2", 10)
	owner := guest()

	added, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)

	cleared, err := svc.Clear(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, *added.ID, *cleared.ID)
	require.Empty(t, cleared.Items)
	require.Zero(t, cleared.TotalItems)
	require.True(t, cleared.TotalAmount.IsZero())

	summary, err := svc.Summary(ctx, owner)
	require.NoError(t, err)
	require.Zero(t, summary.ItemCount)
}

func TestSummary(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	a := dbtest.SeedProduct(t, conn, "a", "1.10", 10)
	b := dbtest.SeedProduct(t, conn, "b", "2.20", 10)
	owner := guest()

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 2, summary.ItemCount)
	require.Equal(t, 3, summary.TotalItems)
	require.True(t, summary.TotalAmount.Equal(decimal.RequireFromString("4.40")))

	empty, err := svc.Summary(ctx, guest())
	require.NoError(t, err)
	require.Zero(t, empty.TotalItems)
}

func TestMergeSumsEquivalentLinesAndDeletesGuestCart(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	a := dbtest.SeedProduct(t, conn, "a", "10", 5)
	b := dbtest.SeedProduct(t, conn, "b", "4", 5)
	userOwner := Owner{UserID: &user.ID}
	guestOwner := guest()

	_, err := svc.AddItem(ctx, userOwner, AddItemInput{ProductID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userOwner, AddItemInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)
	guestCart, err := svc.AddItem(ctx, guestOwner, AddItemInput{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, user.ID, guestOwner.SessionID)
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	byProduct := map[uuid.UUID]int{}
	for _, item := range merged.Items {
		byProduct[item.ProductID] = item.Quantity
	}
	require.Equal(t, 3, byProduct[a.ID])
	require.Equal(t, 1, byProduct[b.ID])
	require.True(t, merged.TotalAmount.Equal(decimal.NewFromInt(34)))
	requireTotalsConsistent(t, merged)

	var remaining int64
	require.NoError(t, conn.Model(&models.Cart{}).Where("id = ?", *guestCart.ID).Count(&remaining).Error)
	require.Zero(t, remaining)
	require.NoError(t, conn.Model(&models.CartItem{}).Where("cart_id = ?", *guestCart.ID).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestMergeSkipsStockCheck(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "rare", "10", 2)
	guestOwner := guest()

	_, err := svc.AddItem(ctx, Owner{UserID: &user.ID}, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guestOwner, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, user.ID, guestOwner.SessionID)
	require.NoError(t, err)
	require.Equal(t, 4, merged.TotalItems)
}

func TestMergeReownsGuestCartWhenUserHasNone(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "a", "3", 5)
	guestOwner := guest()

	guestCart, err := svc.AddItem(ctx, guestOwner, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, user.ID, guestOwner.SessionID)
	require.NoError(t, err)
	require.Equal(t, *guestCart.ID, *merged.ID)
	require.Equal(t, user.ID, *merged.UserID)

	_, err = svc.Resolve(ctx, nil, guestOwner)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	resolved, err := svc.Resolve(ctx, nil, Owner{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, resolved.Items, 1)
}

func TestMergeWithoutGuestCartIsNoop(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn)

	merged, err := svc.Merge(context.Background(), user.ID, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, merged.ID)
}

func TestCleanupInactiveGuestCarts(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "a", "3", 50)

	stale, err := svc.AddItem(ctx, guest(), AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	fresh, err := svc.AddItem(ctx, guest(), AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	owned, err := svc.AddItem(ctx, Owner{UserID: &user.ID}, AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	old := time.Now().UTC().AddDate(0, 0, -40)
	for _, id := range []uuid.UUID{*stale.ID, *owned.ID} {
		require.NoError(t, conn.Model(&models.Cart{}).Where("id = ?", id).Update("last_activity_at", old).Error)
	}

	deleted, err := svc.CleanupInactiveGuestCarts(ctx, time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.Cart{}).Order("id").Pluck("id", &ids).Error)
	require.ElementsMatch(t, []uuid.UUID{*fresh.ID, *owned.ID}, ids)
}
