package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository manages persistence for payment ledger rows. Rows are never
// updated; every attempt or refund is a new insert.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	LatestByOrder(ctx context.Context, orderID uuid.UUID, paymentType enums.PaymentType, status enums.PaymentStatus) (*models.Payment, error)
	RefundedTotal(ctx context.Context, originalID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var row models.Payment
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByGatewayID returns the newest row carrying the gateway identifier.
func (r *repository) FindByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	var row models.Payment
	if err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Order("created_at DESC").
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByOrderID returns the history of an order, newest first.
func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) LatestByOrder(ctx context.Context, orderID uuid.UUID, paymentType enums.PaymentType, status enums.PaymentStatus) (*models.Payment, error) {
	var row models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND status = ?", orderID, paymentType, status).
		Order("created_at DESC").
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// RefundedTotal sums the refunds issued against a payment that have not
// failed at the gateway.
func (r *repository) RefundedTotal(ctx context.Context, originalID uuid.UUID) (decimal.Decimal, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Select("amount").
		Where("original_payment_id = ? AND status IN ?", originalID, []enums.PaymentStatus{enums.PaymentStatusCompleted, enums.PaymentStatusPending}).
		Where("type IN ?", []enums.PaymentType{enums.PaymentTypeRefund, enums.PaymentTypePartialRefund}).
		Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}
