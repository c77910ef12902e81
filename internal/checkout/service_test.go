package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type harness struct {
	conn    *gorm.DB
	carts   cart.Service
	numbers orderNumberer
	params  ServiceParams
	reg     *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.OpenClient(t)

	validator, err := product.NewValidator(product.NewRepository(conn))
	require.NoError(t, err)
	carts, err := cart.NewService(cart.NewRepository(conn), client, validator, "USD")
	require.NoError(t, err)
	addresses, err := address.NewService(address.NewRepository(conn), client)
	require.NoError(t, err)
	shipper, err := shipping.NewService(shipping.NewRepository(conn))
	require.NoError(t, err)
	evaluator, err := coupons.NewEvaluator(coupons.NewRepository(conn), func() time.Time { return fixedNow })
	require.NoError(t, err)
	numbers, err := NewNumberAllocator(AllocatorParams{DB: conn, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	recorder := metrics.NewCheckoutMetrics(reg)

	return &harness{
		conn:    conn,
		carts:   carts,
		numbers: numbers,
		reg:     reg,
		params: ServiceParams{
			Tx:       client,
			Carts:    carts,
			Address:  addresses,
			Catalog:  validator,
			Shipping: shipper,
			Coupons:  evaluator,
			Orders:   orders.NewRepository(conn),
			Numbers:  numbers,
			Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
			Metrics:  recorder,
		},
	}
}

func (h *harness) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(h.params)
	require.NoError(t, err)
	return svc
}

type fixture struct {
	user    *models.User
	product *models.Product
	address *models.Address
	method  *models.ShippingMethod
}

// seedCheckout fills a user cart with two units of a product priced at 20.
func (h *harness) seedCheckout(t *testing.T) fixture {
	t.Helper()
	user := dbtest.SeedUser(t, h.conn)
	p := dbtest.SeedProduct(t, h.conn, "widget", "20.00", 10)
	_, err := h.carts.AddItem(context.Background(), cart.Owner{UserID: &user.ID}, cart.AddItemInput{
		ProductID: p.ID,
		Quantity:  2,
	})
	require.NoError(t, err)
	return fixture{
		user:    user,
		product: p,
		address: dbtest.SeedAddress(t, h.conn, user.ID),
		method:  dbtest.SeedShippingMethod(t, h.conn, "Standard", "5.00"),
	}
}

func (f fixture) input() CreateOrderInput {
	return CreateOrderInput{
		UserID:            f.user.ID,
		ShippingAddressID: f.address.ID,
		ShippingMethodID:  f.method.ID,
		PaymentMethod:     enums.PaymentMethodCashOnDelivery,
	}
}

func stockOf(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, conn.First(&p, "id = ?", id).Error)
	return p.Stock
}

func TestCreateOrderWritesEverythingTogether(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	f := h.seedCheckout(t)
	coupon := dbtest.SeedCoupon(t, h.conn, "SAVE10", enums.CouponTypePercentage, "10")
	ctx := context.Background()

	in := f.input()
	code := "save10"
	in.CouponCode = &code
	order, err := h.service(t).CreateOrder(ctx, in)
	require.NoError(t, err)

	require.Equal(t, "ORD2603150001", order.OrderNumber)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.True(t, decimal.NewFromInt(40).Equal(order.Subtotal), order.Subtotal.String())
	require.True(t, decimal.NewFromInt(4).Equal(order.DiscountAmount), order.DiscountAmount.String())
	require.True(t, decimal.NewFromInt(5).Equal(order.ShippingAmount), order.ShippingAmount.String())
	require.True(t, decimal.NewFromInt(41).Equal(order.Total), order.Total.String())
	require.NotNil(t, order.CouponCode)
	require.Equal(t, "SAVE10", *order.CouponCode)
	require.Len(t, order.Items, 1)
	require.Equal(t, "widget", order.Items[0].Name)
	require.Equal(t, f.address.Line1, order.ShippingAddress.Line1)

	require.Equal(t, 8, stockOf(t, h.conn, f.product.ID))

	var reloaded models.Coupon
	require.NoError(t, h.conn.First(&reloaded, "id = ?", coupon.ID).Error)
	require.Equal(t, 1, reloaded.UsedCount)

	shopperCart, err := h.carts.Get(ctx, cart.Owner{UserID: &f.user.ID})
	require.NoError(t, err)
	require.Empty(t, shopperCart.Items)
	require.Equal(t, 0, shopperCart.TotalItems)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderCreated, events[0].EventType)
	require.Equal(t, order.ID, events[0].AggregateID)

	series, err := testutil.GatherAndCount(h.reg, "checkout_orders_created_total")
	require.NoError(t, err)
	require.Equal(t, 1, series)
}

func TestCreateOrderRejectsGuest(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	f := h.seedCheckout(t)

	in := f.input()
	in.UserID = uuid.Nil
	_, err := h.service(t).CreateOrder(context.Background(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	require.Equal(t, "Please log in to complete your order", pkgerrors.As(err).Message())
}

func TestCreateOrderRejectsEmptyCart(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.conn)
	addr := dbtest.SeedAddress(t, h.conn, user.ID)
	method := dbtest.SeedShippingMethod(t, h.conn, "Standard", "5.00")

	_, err := h.service(t).CreateOrder(context.Background(), CreateOrderInput{
		UserID:            user.ID,
		ShippingAddressID: addr.ID,
		ShippingMethodID:  method.ID,
		PaymentMethod:     enums.PaymentMethodCashOnDelivery,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "Cart is empty", pkgerrors.As(err).Message())
}

func TestCreateOrderReportsEmptyCartBeforeAddress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	f := h.seedCheckout(t)
	_, err := h.carts.Clear(context.Background(), cart.Owner{UserID: &f.user.ID})
	require.NoError(t, err)

	in := f.input()
	in.ShippingAddressID = uuid.New()
	_, err = h.service(t).CreateOrder(context.Background(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	require.Equal(t, "Cart is empty", pkgerrors.As(err).Message())
}

func TestCreateOrderRejectsForeignAddress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	f := h.seedCheckout(t)
	stranger := dbtest.SeedUser(t, h.conn)
	foreign := dbtest.SeedAddress(t, h.conn, stranger.ID)

	in := f.input()
	in.ShippingAddressID = foreign.ID
	_, err := h.service(t).CreateOrder(context.Background(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))
	require.Equal(t, 10, stockOf(t, h.conn, f.product.ID))
}

func TestCreateOrderRollsBackOnStockShortfall(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	f := h.seedCheckout(t)
	require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", f.product.ID).Update("stock", 1).Error)
	coupon := dbtest.SeedCoupon(t, h.conn, "SAVE10", enums.CouponTypePercentage, "10")

	in := f.input()
	code := coupon.Code
	in.CouponCode = &code
	_, err := h.service(t).CreateOrder(context.Background(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
	require.Equal(t, 1, stockOf(t, h.conn, f.product.ID))

	var reloaded models.Coupon
	require.NoError(t, h.conn.First(&reloaded, "id = ?", coupon.ID).Error)
	require.Zero(t, reloaded.UsedCount)

	shopperCart, err := h.carts.Get(context.Background(), cart.Owner{UserID: &f.user.ID})
	require.NoError(t, err)
	require.Len(t, shopperCart.Items, 1)
}

type scriptedNumbers struct {
	numbers []string
	calls   int
}

func (s *scriptedNumbers) Next(context.Context) (string, error) {
	if s.calls >= len(s.numbers) {
		return "", errors.New("script exhausted")
	}
	n := s.numbers[s.calls]
	s.calls++
	return n, nil
}

func TestCreateOrderRetriesDuplicateNumber(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	first := h.seedCheckout(t)
	existing, err := h.service(t).CreateOrder(context.Background(), first.input())
	require.NoError(t, err)

	second := h.seedCheckout(t)
	script := &scriptedNumbers{numbers: []string{existing.OrderNumber, "ORD2603150099"}}
	h.params.Numbers = script

	order, err := h.service(t).CreateOrder(context.Background(), second.input())
	require.NoError(t, err)
	require.Equal(t, "ORD2603150099", order.OrderNumber)
	require.Equal(t, 2, script.calls)
	require.Equal(t, 8, stockOf(t, h.conn, second.product.ID))
}

func TestCreateOrderGivesUpAfterRepeatedCollisions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	first := h.seedCheckout(t)
	existing, err := h.service(t).CreateOrder(context.Background(), first.input())
	require.NoError(t, err)

	second := h.seedCheckout(t)
	n := existing.OrderNumber
	h.params.Numbers = &scriptedNumbers{numbers: []string{n, n, n}}

	_, err = h.service(t).CreateOrder(context.Background(), second.input())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 10, stockOf(t, h.conn, second.product.ID))
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
