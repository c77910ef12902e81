package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockRestorer interface {
	RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Viewer is the caller reading or acting on an order. Admins see every order.
type Viewer struct {
	UserID uuid.UUID
	Admin  bool
}

func (v Viewer) role() string {
	if v.Admin {
		return string(enums.UserRoleAdmin)
	}
	return string(enums.UserRoleCustomer)
}

// ListInput filters a listing.
type ListInput struct {
	UserID        *uuid.UUID
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Pagination    pagination.Params
}

// UpdateStatusInput is the admin transition request.
type UpdateStatusInput struct {
	Status         enums.OrderStatus `json:"status" validate:"required"`
	TrackingNumber *string           `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
	Reason         *string           `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// Service exposes order reads and lifecycle transitions.
type Service interface {
	Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error)
	GetByNumber(ctx context.Context, viewer Viewer, number string) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, input ListInput) (*OrderListResult, error)
	ListAll(ctx context.Context, input ListInput) (*OrderListResult, error)
	Cancel(ctx context.Context, viewer Viewer, orderID uuid.UUID, reason string) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, viewer Viewer, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
	SetTracking(ctx context.Context, orderID uuid.UUID, tracking string) (*OrderDTO, error)
	MarkPayment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.PaymentStatus) error
}

type service struct {
	repo   Repository
	tx     txRunner
	stock  stockRestorer
	outbox outboxPublisher
	now    func() time.Time
}

// NewService wires the orders service.
func NewService(repo Repository, tx txRunner, stock stockRestorer, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		stock:  stock,
		outbox: publisher,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, viewer, orderID)
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

func (s *service) GetByNumber(ctx context.Context, viewer Viewer, number string) (*OrderDTO, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !viewer.Admin && order.UserID != viewer.UserID {
		return nil, orderNotFound()
	}
	return NewOrderDTO(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, input ListInput) (*OrderListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	input.UserID = &userID
	return s.list(ctx, input)
}

func (s *service) ListAll(ctx context.Context, input ListInput) (*OrderListResult, error) {
	return s.list(ctx, input)
}

func (s *service) list(ctx context.Context, input ListInput) (*OrderListResult, error) {
	rows, next, err := s.repo.List(ctx, ListQuery{
		UserID:        input.UserID,
		Status:        input.Status,
		PaymentStatus: input.PaymentStatus,
		Pagination:    input.Pagination,
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderSummaryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newOrderSummary(row))
	}
	return &OrderListResult{Orders: out, NextCursor: next}, nil
}

// Cancel restores stock for every line and marks the order cancelled in one
// transaction. Only pending and confirmed orders can be cancelled.
func (s *service) Cancel(ctx context.Context, viewer Viewer, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, viewer, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "Order cannot be cancelled in %s status", order.Status).
				WithDetails(map[string]any{"status": order.Status})
		}

		now := s.now()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		var reasonPtr *string
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			reasonPtr = &trimmed
			updates["cancellation_reason"] = trimmed
		}
		ok, err := repo.UpdateIfStatus(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		for _, item := range order.Items {
			if err := s.stock.RestoreStock(ctx, tx, item.ProductID, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}

		from := order.Status
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancellationReason = reasonPtr
		if err := s.emitStatusChanged(ctx, tx, viewer, order, from, reason); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(result), nil
}

func (s *service) UpdateStatus(ctx context.Context, viewer Viewer, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	switch input.Status {
	case enums.OrderStatusCancelled:
		reason := ""
		if input.Reason != nil {
			reason = *input.Reason
		}
		return s.Cancel(ctx, viewer, orderID, reason)
	case enums.OrderStatusRefunded:
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Orders are marked refunded by issuing a refund")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, viewer, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "Cannot transition order from %s to %s", order.Status, input.Status).
				WithDetails(map[string]any{"from": order.Status, "to": input.Status})
		}

		now := s.now()
		updates := map[string]any{"status": input.Status}
		switch input.Status {
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
			order.ShippedAt = &now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
		if input.TrackingNumber != nil {
			tracking := strings.TrimSpace(*input.TrackingNumber)
			updates["tracking_number"] = tracking
			order.TrackingNumber = &tracking
		}

		ok, err := repo.UpdateIfStatus(ctx, order.ID, []enums.OrderStatus{order.Status}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		from := order.Status
		order.Status = input.Status
		if err := s.emitStatusChanged(ctx, tx, viewer, order, from, ""); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(result), nil
}

func (s *service) SetTracking(ctx context.Context, orderID uuid.UUID, tracking string) (*OrderDTO, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if order.Status.IsTerminal() && order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.Newf(pkgerrors.CodeBusinessRule, "Cannot set tracking on a %s order", order.Status)
	}
	if err := s.repo.Update(ctx, order.ID, map[string]any{"tracking_number": tracking}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set tracking number")
	}
	order.TrackingNumber = &tracking
	return NewOrderDTO(order), nil
}

// MarkPayment projects a payment status onto the order inside the payment
// transaction. A completed payment confirms a pending order; a full refund
// moves the order to refunded when the state machine allows it.
func (s *service) MarkPayment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.PaymentStatus) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return mapLoadError(err)
	}

	updates := map[string]any{"payment_status": status}
	next := order.Status
	switch {
	case status == enums.PaymentStatusCompleted && order.Status == enums.OrderStatusPending:
		next = enums.OrderStatusConfirmed
	case status == enums.PaymentStatusRefunded && order.Status.CanTransitionTo(enums.OrderStatusRefunded):
		next = enums.OrderStatusRefunded
	}
	if next != order.Status {
		updates["status"] = next
	}
	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order payment status")
	}
	if next == order.Status {
		return nil
	}

	from := order.Status
	order.Status = next
	return s.emitStatusChanged(ctx, tx, Viewer{UserID: order.UserID}, order, from, "payment "+string(status))
}

func (s *service) load(ctx context.Context, repo Repository, viewer Viewer, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !viewer.Admin && order.UserID != viewer.UserID {
		return nil, orderNotFound()
	}
	return order, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, viewer Viewer, order *models.Order, from enums.OrderStatus, reason string) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: viewer.UserID, Role: viewer.role()},
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			UserID:         order.UserID,
			From:           from,
			To:             order.Status,
			Reason:         strings.TrimSpace(reason),
			TrackingNumber: order.TrackingNumber,
			ChangedAt:      s.now(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order status event")
	}
	return nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return orderNotFound()
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
}
