package orders

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// orderSeq keeps seeded order numbers unique and all digits.
var orderSeq atomic.Int64

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	validator, err := product.NewValidator(product.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), client, validator, outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)
	return svc, conn
}

// seedOrder writes an order for two units of p straight to the table; stock
// is taken as already decremented.
func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, p *models.Product, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:      fmt.Sprintf("ORD260315%04d", orderSeq.Add(1)),
		UserID:           userID,
		Status:           status,
		PaymentStatus:    enums.PaymentStatusPending,
		PaymentMethod:    enums.PaymentMethodCashOnDelivery,
		ShippingAddress:  types.AddressSnapshot{FirstName: "Test", LastName: "User", Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US"},
		BillingAddress:   types.AddressSnapshot{FirstName: "Test", LastName: "User", Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US"},
		ShippingMethodID: uuid.New(),
		Subtotal:         decimal.NewFromInt(40),
		ShippingAmount:   decimal.NewFromInt(5),
		TaxAmount:        decimal.Zero,
		DiscountAmount:   decimal.Zero,
		Total:            decimal.NewFromInt(45),
		Currency:         "USD",
		Items: []models.OrderItem{{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			Quantity:  2,
			Price:     p.Price,
			LineTotal: p.Price.Mul(decimal.NewFromInt(2)),
		}},
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func eventsOf(t *testing.T, conn *gorm.DB, kind enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", kind).Find(&rows).Error)
	return rows
}

func TestGetHidesOtherUsersOrders(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn)
	stranger := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "widget", "20.00", 8)
	order := seedOrder(t, conn, owner.ID, p, enums.OrderStatusPending)

	got, err := svc.Get(ctx, Viewer{UserID: owner.ID}, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.OrderNumber, got.OrderNumber)
	require.Len(t, got.Items, 1)

	_, err = svc.Get(ctx, Viewer{UserID: stranger.ID}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, "Order not found", pkgerrors.As(err).Message())

	_, err = svc.Get(ctx, Viewer{UserID: stranger.ID, Admin: true}, order.ID)
	require.NoError(t, err)

	byNumber, err := svc.GetByNumber(ctx, Viewer{UserID: owner.ID}, order.OrderNumber)
	require.NoError(t, err)
	require.Equal(t, order.ID, byNumber.ID)
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "widget", "20.00", 8)
	order := seedOrder(t, conn, user.ID, p, enums.OrderStatusPending)

	cancelled, err := svc.Cancel(ctx, Viewer{UserID: user.ID}, order.ID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, "changed my mind", *cancelled.CancellationReason)

	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 10, reloaded.Stock)
	require.Len(t, eventsOf(t, conn, enums.EventOrderStatusChanged), 1)
}

func TestCancelRejectsShippedOrder(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "widget", "20.00", 8)
	order := seedOrder(t, conn, user.ID, p, enums.OrderStatusShipped)

	_, err := svc.Cancel(context.Background(), Viewer{UserID: user.ID}, order.ID, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 8, reloaded.Stock)
	require.Empty(t, eventsOf(t, conn, enums.EventOrderStatusChanged))
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	admin := Viewer{UserID: uuid.New(), Admin: true}
	p := dbtest.SeedProduct(t, conn, "widget", "20.00", 8)
	order := seedOrder(t, conn, user.ID, p, enums.OrderStatusPending)

	_, err := svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusShipped})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusProcessing} {
		_, err = svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: next})
		require.NoError(t, err)
	}

	tracking := " 1Z999 "
	shipped, err := svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusShipped, TrackingNumber: &tracking})
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)
	require.Equal(t, "1Z999", *shipped.TrackingNumber)

	delivered, err := svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)

	require.Len(t, eventsOf(t, conn, enums.EventOrderStatusChanged), 4)
}

func TestUpdateStatusRejectsRefunded(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	user := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "widget", "20.00", 8)
	order := seedOrder(t, conn, user.ID, p, enums.OrderStatusConfirmed)

	_, err := svc.UpdateStatus(context.Background(), Viewer{Admin: true}, order.ID, UpdateStatusInput{Status: enums.OrderStatusRefunded})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))
}

func TestMarkPaymentConfirmsPendingOrder(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "widget", "20.00", 8)
	order := seedOrder(t, conn, user.ID, p, enums.OrderStatusPending)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.MarkPayment(ctx, tx, order.ID, enums.PaymentStatusCompleted)
	}))

	got, err := svc.Get(ctx, Viewer{UserID: user.ID}, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, got.Status)
	require.Equal(t, enums.PaymentStatusCompleted, got.PaymentStatus)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.MarkPayment(ctx, tx, order.ID, enums.PaymentStatusRefunded)
	}))
	got, err = svc.Get(ctx, Viewer{UserID: user.ID}, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusRefunded, got.Status)
	require.Len(t, eventsOf(t, conn, enums.EventOrderStatusChanged), 2)
}

func TestListScopesToUser(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	other := dbtest.SeedUser(t, conn)
	p := dbtest.SeedProduct(t, conn, "widget", "20.00", 8)
	seedOrder(t, conn, user.ID, p, enums.OrderStatusPending)
	seedOrder(t, conn, user.ID, p, enums.OrderStatusDelivered)
	seedOrder(t, conn, other.ID, p, enums.OrderStatusPending)

	mine, err := svc.List(ctx, user.ID, ListInput{Pagination: pagination.Params{Limit: 10}})
	require.NoError(t, err)
	require.Len(t, mine.Orders, 2)
	for _, row := range mine.Orders {
		require.Equal(t, user.ID, row.UserID)
		require.Equal(t, 2, row.ItemCount)
	}

	pending := enums.OrderStatusPending
	all, err := svc.ListAll(ctx, ListInput{Status: &pending, Pagination: pagination.Params{Limit: 10}})
	require.NoError(t, err)
	require.Len(t, all.Orders, 2)

	_, err = svc.List(ctx, uuid.Nil, ListInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestListSeparatesBadCursorFromStoreFailure(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)

	_, err := svc.List(ctx, user.ID, ListInput{Pagination: pagination.Params{Limit: 10, Cursor: "not-a-cursor"}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.ListAll(ctx, ListInput{Pagination: pagination.Params{Limit: 10}})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	require.False(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
