package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/ledger"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderProjector interface {
	MarkPayment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.PaymentStatus) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentRecorder interface {
	Observe(method, operation, status string, seconds float64)
}

// Service orchestrates payments across the registered gateways.
type Service interface {
	ListMethods(currency string) []MethodDTO
	CreateIntent(ctx context.Context, userID uuid.UUID, input IntentInput) (*Result, error)
	Process(ctx context.Context, userID uuid.UUID, input ProcessInput) (*Result, error)
	Refund(ctx context.Context, actor orders.Viewer, input RefundInput) (*RefundDTO, error)
	Status(ctx context.Context, viewer orders.Viewer, paymentID uuid.UUID) (*StatusDTO, error)
	History(ctx context.Context, viewer orders.Viewer, orderID uuid.UUID) ([]PaymentDTO, error)
}

// ServiceParams groups the orchestrator's collaborators.
type ServiceParams struct {
	Tx       txRunner
	Orders   orders.Repository
	Projects orderProjector
	Ledger   ledger.Service
	Gateways *Registry
	Outbox   outboxPublisher
	Metrics  paymentRecorder
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	orders   orders.Repository
	projects orderProjector
	ledger   ledger.Service
	gateways *Registry
	outbox   outboxPublisher
	metrics  paymentRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Projects == nil:
		return nil, fmt.Errorf("order projector required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case params.Gateways == nil:
		return nil, fmt.Errorf("gateway registry required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       params.Tx,
		orders:   params.Orders,
		projects: params.Projects,
		ledger:   params.Ledger,
		gateways: params.Gateways,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// ListMethods returns the usable methods, narrowed to those accepting
// currency when one is given.
func (s *service) ListMethods(currency string) []MethodDTO {
	currency = normalizeCurrency(currency)
	out := make([]MethodDTO, 0)
	for _, method := range s.gateways.Methods() {
		if currency != "" && !Supports(method, currency) {
			continue
		}
		out = append(out, MethodDTO{Method: method, Currencies: SupportedCurrencies(method)})
	}
	return out
}

func (s *service) CreateIntent(ctx context.Context, userID uuid.UUID, input IntentInput) (*Result, error) {
	order, err := s.payableOrder(ctx, userID, input.OrderID, input.Method)
	if err != nil {
		return nil, err
	}
	if input.Method == enums.PaymentMethodCashOnDelivery {
		// Settled at Process; nothing to prepare.
		return &Result{
			Success:  true,
			Status:   enums.PaymentStatusPending,
			Amount:   order.Total,
			Currency: order.Currency,
		}, nil
	}
	gw, err := s.gateway(input.Method)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := gw.CreateIntent(ctx, IntentRequest{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Amount:         order.Total,
		Currency:       order.Currency,
		IdempotencyKey: fmt.Sprintf("intent-%s-%s", order.ID, input.Method),
	})
	if err != nil {
		s.observe(input.Method, "intent", enums.PaymentStatusFailed, started)
		return nil, err
	}
	s.observe(input.Method, "intent", res.Status, started)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.ledger.Record(ctx, tx, ledger.RecordPaymentInput{
			OrderID:          order.ID,
			UserID:           order.UserID,
			Method:           input.Method,
			Status:           enums.PaymentStatusPending,
			Amount:           order.Total,
			Currency:         order.Currency,
			GatewayPaymentID: res.PaymentID,
			GatewayResponse:  res.Gateway,
		})
		return err
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment intent")
	}
	return &res, nil
}

// Process settles a payment. Gateway declines and errors are written to the
// ledger as failed rows and reported through the result, not as errors.
func (s *service) Process(ctx context.Context, userID uuid.UUID, input ProcessInput) (*Result, error) {
	order, err := s.payableOrder(ctx, userID, input.OrderID, input.Method)
	if err != nil {
		return nil, err
	}
	if input.Method == enums.PaymentMethodCashOnDelivery {
		return s.processCashOnDelivery(ctx, order)
	}
	gw, err := s.gateway(input.Method)
	if err != nil {
		return nil, err
	}
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_id is required")
	}

	intent, err := s.intentFor(ctx, order, input.Method, paymentID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := gw.Confirm(ctx, paymentID, input.MethodID)
	if err != nil {
		res = Result{
			PaymentID:    paymentID,
			ErrorMessage: failureMessage(err),
		}
	}
	if res.Success {
		if reason := captureMismatch(order, res); reason != "" {
			res.Success = false
			res.ErrorMessage = reason
		}
	}
	if !res.Success {
		res.Status = enums.PaymentStatusFailed
		if res.ErrorMessage == "" {
			res.ErrorMessage = "payment was declined"
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"method":   string(input.Method),
				"reason":   res.ErrorMessage,
			}), "payment failed")
		}
	}
	if res.PaymentID == "" {
		res.PaymentID = paymentID
	}
	if res.Currency == "" {
		res.Amount = intent.Amount
		res.Currency = intent.Currency
	}
	res.Currency = normalizeCurrency(res.Currency)
	s.observe(input.Method, "process", res.Status, started)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.ledger.Record(ctx, tx, ledger.RecordPaymentInput{
			OrderID:          order.ID,
			UserID:           order.UserID,
			Method:           input.Method,
			Status:           res.Status,
			Amount:           res.Amount,
			Currency:         res.Currency,
			GatewayPaymentID: res.PaymentID,
			TransactionID:    res.TransactionID,
			GatewayResponse:  res.Gateway,
			FailureReason:    res.ErrorMessage,
		})
		if err != nil {
			return err
		}
		return s.settle(ctx, tx, order, row)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}
	return &res, nil
}

// intentFor loads the ledger row created for paymentID and checks it was
// opened for this order and method.
func (s *service) intentFor(ctx context.Context, order *models.Order, method enums.PaymentMethod, paymentID string) (*models.Payment, error) {
	row, err := s.ledger.ByGatewayID(ctx, paymentID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "No payment intent found for this order")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment intent")
	}
	if row.OrderID != order.ID || row.Method != method {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "No payment intent found for this order")
	}
	return row, nil
}

// captureMismatch reports why a confirmed amount cannot settle order, or ""
// when it matches the order total.
func captureMismatch(order *models.Order, res Result) string {
	if !strings.EqualFold(strings.TrimSpace(res.Currency), order.Currency) ||
		!res.Amount.Round(2).Equal(order.Total.Round(2)) {
		return fmt.Sprintf("confirmed amount %s %s does not match order total %s %s",
			res.Amount.StringFixed(2), normalizeCurrency(res.Currency), order.Total.StringFixed(2), order.Currency)
	}
	return ""
}

func (s *service) processCashOnDelivery(ctx context.Context, order *models.Order) (*Result, error) {
	started := time.Now()
	reference := fmt.Sprintf("cod_%d", s.now().UnixMilli())
	gateway := types.NewCashOnDeliveryResponse(types.CashOnDeliveryResponse{
		Reference:         reference,
		CollectOnDelivery: true,
	})
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.ledger.Record(ctx, tx, ledger.RecordPaymentInput{
			OrderID:          order.ID,
			UserID:           order.UserID,
			Method:           enums.PaymentMethodCashOnDelivery,
			Status:           enums.PaymentStatusCompleted,
			Amount:           order.Total,
			Currency:         order.Currency,
			GatewayPaymentID: reference,
			GatewayResponse:  gateway,
		})
		if err != nil {
			return err
		}
		return s.settle(ctx, tx, order, row)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record cash on delivery payment")
	}
	s.observe(enums.PaymentMethodCashOnDelivery, "process", enums.PaymentStatusCompleted, started)

	return &Result{
		Success:   true,
		PaymentID: reference,
		Status:    enums.PaymentStatusCompleted,
		Amount:    order.Total,
		Currency:  order.Currency,
		Gateway:   gateway,
	}, nil
}

// settle projects a completed or failed payment row onto the order and
// queues the matching event. Pending rows change nothing else.
func (s *service) settle(ctx context.Context, tx *gorm.DB, order *models.Order, row *models.Payment) error {
	var event enums.OutboxEventType
	switch row.Status {
	case enums.PaymentStatusCompleted:
		event = enums.EventPaymentCompleted
	case enums.PaymentStatusFailed:
		event = enums.EventPaymentFailed
	default:
		return nil
	}
	if err := s.projects.MarkPayment(ctx, tx, order.ID, row.Status); err != nil {
		return err
	}
	return s.emit(ctx, tx, event, order, row, orders.Viewer{UserID: order.UserID})
}

func (s *service) Refund(ctx context.Context, actor orders.Viewer, input RefundInput) (*RefundDTO, error) {
	if !actor.Admin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Admin access required")
	}
	order, err := s.loadOrder(ctx, actor, input.OrderID)
	if err != nil {
		return nil, err
	}
	original, err := s.ledger.LatestCompleted(ctx, nil, order.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Order has no completed payment to refund")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	switch original.Method {
	case enums.PaymentMethodCashOnDelivery:
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Cannot refund Cash on Delivery payments through system")
	case enums.PaymentMethodCrypto:
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Crypto payments cannot be automatically refunded")
	}

	refundable, err := s.ledger.Refundable(ctx, nil, original)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute refundable balance")
	}
	if !refundable.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Payment has already been fully refunded")
	}
	amount := refundable
	if input.Amount != nil {
		amount = input.Amount.Round(2)
		if !amount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Refund amount must be greater than zero")
		}
		if amount.GreaterThan(refundable) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Refund amount exceeds refundable balance").
				WithDetails(map[string]any{"refundable": refundable.StringFixed(2)})
		}
	}
	gw, err := s.gateway(original.Method)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		key = fmt.Sprintf("refund-%s-%s-%s", original.ID, refundable.StringFixed(2), amount.StringFixed(2))
	}
	started := time.Now()
	res, err := gw.Refund(ctx, RefundRequest{
		PaymentID:      deref(original.GatewayPaymentID),
		TransactionID:  deref(original.TransactionID),
		Amount:         &amount,
		Currency:       original.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		s.observe(original.Method, "refund", enums.PaymentStatusFailed, started)
		return nil, err
	}
	if !res.Success {
		res.Status = enums.PaymentStatusFailed
		if res.ErrorMessage == "" {
			res.ErrorMessage = "refund was declined"
		}
	}
	s.observe(original.Method, "refund", res.Status, started)

	refundType := enums.PaymentTypeRefund
	if amount.LessThan(original.Amount) {
		refundType = enums.PaymentTypePartialRefund
	}
	projected := order.PaymentStatus
	if res.Status != enums.PaymentStatusFailed {
		projected = enums.PaymentStatusPartiallyRefunded
		if amount.Equal(refundable) {
			projected = enums.PaymentStatusRefunded
		}
	}
	reason := res.ErrorMessage
	if reason == "" {
		reason = strings.TrimSpace(input.Reason)
	}

	var row *models.Payment
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, err = s.ledger.Record(ctx, tx, ledger.RecordPaymentInput{
			OrderID:           order.ID,
			UserID:            order.UserID,
			Method:            original.Method,
			Type:              refundType,
			Status:            res.Status,
			Amount:            amount,
			Currency:          original.Currency,
			GatewayPaymentID:  res.RefundID,
			TransactionID:     deref(original.TransactionID),
			GatewayResponse:   res.Gateway,
			FailureReason:     reason,
			OriginalPaymentID: &original.ID,
		})
		if err != nil {
			return err
		}
		if res.Status == enums.PaymentStatusFailed {
			return nil
		}
		if err := s.projects.MarkPayment(ctx, tx, order.ID, projected); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventPaymentRefunded, order, row, actor)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record refund")
	}

	remaining := refundable
	if res.Status != enums.PaymentStatusFailed {
		remaining = refundable.Sub(amount)
	}
	return &RefundDTO{
		Success:      res.Success,
		Refund:       NewPaymentDTO(row),
		OrderStatus:  projected,
		Refundable:   remaining,
		ErrorMessage: res.ErrorMessage,
	}, nil
}

func (s *service) Status(ctx context.Context, viewer orders.Viewer, paymentID uuid.UUID) (*StatusDTO, error) {
	row, err := s.ledger.Get(ctx, paymentID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, paymentNotFound()
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if !viewer.Admin && row.UserID != viewer.UserID {
		return nil, paymentNotFound()
	}

	out := &StatusDTO{Payment: NewPaymentDTO(row)}
	if row.Status != enums.PaymentStatusPending || row.GatewayPaymentID == nil {
		return out, nil
	}
	gw, ok := s.gateways.Get(row.Method)
	if !ok {
		return out, nil
	}
	live, err := gw.Status(ctx, *row.GatewayPaymentID)
	if err != nil {
		// The ledger row is still authoritative.
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payment_id", row.ID.String()), "gateway status lookup failed")
		}
		return out, nil
	}
	out.Live = &live
	return out, nil
}

func (s *service) History(ctx context.Context, viewer orders.Viewer, orderID uuid.UUID) ([]PaymentDTO, error) {
	order, err := s.loadOrder(ctx, viewer, orderID)
	if err != nil {
		return nil, err
	}
	rows, err := s.ledger.History(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	out := make([]PaymentDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewPaymentDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) payableOrder(ctx context.Context, userID, orderID uuid.UUID, method enums.PaymentMethod) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	if !method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Unsupported payment method: %s", method)
	}
	order, err := s.loadOrder(ctx, orders.Viewer{UserID: userID}, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusRefunded {
		return nil, pkgerrors.Newf(pkgerrors.CodeBusinessRule, "Order is %s and cannot be paid", order.Status)
	}
	if order.PaymentStatus != enums.PaymentStatusPending && order.PaymentStatus != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "Order is not awaiting payment")
	}
	if !Supports(method, order.Currency) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Payment method %s does not support %s", method, order.Currency)
	}
	return order, nil
}

func (s *service) loadOrder(ctx context.Context, viewer orders.Viewer, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !viewer.Admin && order.UserID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	return order, nil
}

func (s *service) gateway(method enums.PaymentMethod) (Gateway, error) {
	gw, ok := s.gateways.Get(method)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Unsupported payment method: %s", method)
	}
	return gw, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, row *models.Payment, actor orders.Viewer) error {
	role := string(enums.UserRoleCustomer)
	if actor.Admin {
		role = string(enums.UserRoleAdmin)
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   row.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: role},
		Data: payloads.PaymentEvent{
			PaymentID:     row.ID,
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			Method:        row.Method,
			Status:        row.Status,
			Amount:        row.Amount,
			Currency:      row.Currency,
			TransactionID: row.TransactionID,
			FailureReason: row.FailureReason,
		},
	})
}

func (s *service) observe(method enums.PaymentMethod, op string, status enums.PaymentStatus, started time.Time) {
	if s.metrics == nil {
		return
	}
	elapsed := time.Since(started).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	s.metrics.Observe(string(method), op, string(status), elapsed)
}

func failureMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if cause := errors.Unwrap(typed); cause != nil {
			return typed.Message() + ": " + cause.Error()
		}
		return typed.Message()
	}
	return err.Error()
}

func paymentNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Payment not found")
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
