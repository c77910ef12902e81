package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ErrNotFound is returned when no ledger row matches.
var ErrNotFound = errors.New("payment not found")

// Service defines operations that record and read payment ledger rows.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordPaymentInput) (*models.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	LatestCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Payment, error)
	Refundable(ctx context.Context, tx *gorm.DB, payment *models.Payment) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// RecordPaymentInput captures the immutable data a ledger row requires.
type RecordPaymentInput struct {
	OrderID           uuid.UUID
	UserID            uuid.UUID
	Method            enums.PaymentMethod
	Type              enums.PaymentType
	Status            enums.PaymentStatus
	Amount            decimal.Decimal
	Currency          string
	GatewayPaymentID  string
	TransactionID     string
	GatewayResponse   types.GatewayResponse
	FailureReason     string
	OriginalPaymentID *uuid.UUID
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordPaymentInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Method.IsValid() {
		return nil, fmt.Errorf("invalid payment method %q", input.Method)
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid payment status %q", input.Status)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	if input.Type == "" {
		input.Type = enums.PaymentTypePayment
	}
	if input.Type.IsRefund() && input.OriginalPaymentID == nil {
		return nil, fmt.Errorf("refund rows require the original payment")
	}

	row := &models.Payment{
		OrderID:           input.OrderID,
		UserID:            input.UserID,
		Method:            input.Method,
		Type:              input.Type,
		Status:            input.Status,
		Amount:            input.Amount.Round(2),
		Currency:          strings.ToUpper(strings.TrimSpace(input.Currency)),
		GatewayPaymentID:  optional(input.GatewayPaymentID),
		TransactionID:     optional(input.TransactionID),
		GatewayResponse:   input.GatewayResponse,
		FailureReason:     optional(input.FailureReason),
		OriginalPaymentID: input.OriginalPaymentID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	row, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return row, err
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) ByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return nil, ErrNotFound
	}
	row, err := s.repo.FindByGatewayID(ctx, gatewayPaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return row, err
}

func (s *service) LatestCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Payment, error) {
	row, err := s.repo.WithTx(tx).LatestByOrder(ctx, orderID, enums.PaymentTypePayment, enums.PaymentStatusCompleted)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return row, err
}

// Refundable is the payment amount minus completed refunds against it.
func (s *service) Refundable(ctx context.Context, tx *gorm.DB, payment *models.Payment) (decimal.Decimal, error) {
	if payment == nil {
		return decimal.Zero, ErrNotFound
	}
	refunded, err := s.repo.WithTx(tx).RefundedTotal(ctx, payment.ID)
	if err != nil {
		return decimal.Zero, err
	}
	remaining := payment.Amount.Sub(refunded)
	if remaining.IsNegative() {
		return decimal.Zero, nil
	}
	return remaining, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
