package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const (
	maxNumberAttempts  = 3
	orderNumberKeyName = "orders_order_number_key"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, owner cart.Owner) (*models.Cart, error)
	Empty(ctx context.Context, tx *gorm.DB, cart *models.Cart) error
}

type addressLoader interface {
	Lookup(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type catalogValidator interface {
	ValidateLines(ctx context.Context, tx *gorm.DB, lines []product.Line) ([]product.ValidatedLine, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, line product.ValidatedLine) error
}

type shippingCalculator interface {
	Calculate(ctx context.Context, methodID uuid.UUID, orderTotal decimal.Decimal, itemCount int) (*shipping.Quote, error)
}

type couponEvaluator interface {
	Evaluate(ctx context.Context, input coupons.EvaluateInput) (*coupons.Evaluation, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
}

type orderNumberer interface {
	Next(ctx context.Context) (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type checkoutRecorder interface {
	IncCreated(method string)
	IncFailed(code string)
}

// CreateOrderInput is the checkout request. The cart is always the user's;
// guest carts are folded in at login.
type CreateOrderInput struct {
	UserID            uuid.UUID           `json:"-"`
	ShippingAddressID uuid.UUID           `json:"shipping_address_id" validate:"required"`
	BillingAddressID  *uuid.UUID          `json:"billing_address_id,omitempty"`
	ShippingMethodID  uuid.UUID           `json:"shipping_method_id" validate:"required"`
	CouponCode        *string             `json:"coupon_code,omitempty" validate:"omitempty,max=50"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method" validate:"required"`
	Notes             *string             `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Service turns a cart into an order.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*orders.OrderDTO, error)
}

// ServiceParams groups the collaborators of the order writer.
type ServiceParams struct {
	Tx       txRunner
	Carts    cartResolver
	Address  addressLoader
	Catalog  catalogValidator
	Shipping shippingCalculator
	Coupons  couponEvaluator
	Orders   orders.Repository
	Numbers  orderNumberer
	Outbox   outboxPublisher
	Metrics  checkoutRecorder
}

type service struct {
	tx       txRunner
	carts    cartResolver
	address  addressLoader
	catalog  catalogValidator
	shipping shippingCalculator
	coupons  couponEvaluator
	orders   orders.Repository
	numbers  orderNumberer
	outbox   outboxPublisher
	metrics  checkoutRecorder
}

// NewService builds the order writer.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart resolver required")
	case params.Address == nil:
		return nil, fmt.Errorf("address loader required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog validator required")
	case params.Shipping == nil:
		return nil, fmt.Errorf("shipping calculator required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon evaluator required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Numbers == nil:
		return nil, fmt.Errorf("order numberer required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       params.Tx,
		carts:    params.Carts,
		address:  params.Address,
		catalog:  params.Catalog,
		shipping: params.Shipping,
		coupons:  params.Coupons,
		orders:   params.Orders,
		numbers:  params.Numbers,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*orders.OrderDTO, error) {
	order, err := s.createOrder(ctx, input)
	if err != nil {
		if s.metrics != nil {
			code := string(pkgerrors.CodeInternal)
			if typed := pkgerrors.As(err); typed != nil {
				code = string(typed.Code())
			}
			s.metrics.IncFailed(code)
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncCreated(string(order.PaymentMethod))
	}
	return orders.NewOrderDTO(order), nil
}

func (s *service) createOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in to complete your order")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	// Reread inside the write transaction; this only orders the errors.
	if _, err := s.nonEmptyCart(ctx, nil, input.UserID); err != nil {
		return nil, err
	}

	shippingAddr, err := s.address.Lookup(ctx, input.UserID, input.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	billingAddr := shippingAddr
	if input.BillingAddressID != nil && *input.BillingAddressID != shippingAddr.ID {
		billingAddr, err = s.address.Lookup(ctx, input.UserID, *input.BillingAddressID)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
		}
		order, err := s.write(ctx, input, number, shippingAddr, billingAddr)
		if err == nil {
			return order, nil
		}
		if !db.IsUniqueViolation(err, orderNumberKeyName) {
			return nil, err
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate a unique order number")
}

func (s *service) nonEmptyCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	found, err := s.carts.Resolve(ctx, tx, cart.Owner{UserID: &userID})
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	}
	if err != nil {
		return nil, err
	}
	if len(found.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	}
	return found, nil
}

// write runs every read that feeds the order and every mutation it causes in
// one transaction. Any failure leaves stock, coupons, and the cart untouched.
func (s *service) write(ctx context.Context, input CreateOrderInput, number string, shippingAddr, billingAddr *models.Address) (*models.Order, error) {
	userID := input.UserID
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shopperCart, err := s.nonEmptyCart(ctx, tx, input.UserID)
		if err != nil {
			return err
		}

		requested := make([]product.Line, 0, len(shopperCart.Items))
		for _, item := range shopperCart.Items {
			requested = append(requested, product.Line{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
			})
		}
		lines, err := s.catalog.ValidateLines(ctx, tx, requested)
		if err != nil {
			return err
		}

		priced := make([]pricing.Line, 0, len(lines))
		productIDs := make([]uuid.UUID, 0, len(lines))
		itemCount := 0
		for _, line := range lines {
			priced = append(priced, pricing.Line{Price: line.Price, SalePrice: line.SalePrice, Quantity: line.Quantity})
			productIDs = append(productIDs, line.ProductID)
			itemCount += line.Quantity
		}
		subtotal := pricing.Subtotal(priced)

		quote, err := s.shipping.Calculate(ctx, input.ShippingMethodID, subtotal, itemCount)
		if err != nil {
			return err
		}

		var (
			evaluation *coupons.Evaluation
			effect     *pricing.CouponEffect
		)
		if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
			evaluation, err = s.coupons.Evaluate(ctx, coupons.EvaluateInput{
				Code:       *input.CouponCode,
				UserID:     &userID,
				OrderTotal: subtotal,
				Currency:   shopperCart.Currency,
				ProductIDs: productIDs,
			})
			if err != nil {
				return err
			}
			effect = &pricing.CouponEffect{Discount: evaluation.Discount, FreeShipping: evaluation.FreeShipping}
		}

		totals := pricing.Compute(pricing.Input{Lines: priced, ShippingCost: quote.Amount, Coupon: effect})

		order = &models.Order{
			OrderNumber:      number,
			UserID:           userID,
			Status:           enums.OrderStatusPending,
			PaymentStatus:    enums.PaymentStatusPending,
			PaymentMethod:    input.PaymentMethod,
			ShippingAddress:  shippingAddr.Snapshot(),
			BillingAddress:   billingAddr.Snapshot(),
			ShippingMethodID: input.ShippingMethodID,
			Subtotal:         totals.Subtotal,
			ShippingAmount:   totals.ShippingAmount,
			TaxAmount:        totals.TaxAmount,
			DiscountAmount:   totals.DiscountAmount,
			Total:            totals.Total,
			Currency:         shopperCart.Currency,
			Notes:            trimmedOrNil(input.Notes),
			Items:            make([]models.OrderItem, 0, len(lines)),
		}
		if evaluation != nil {
			code := evaluation.Code
			order.CouponCode = &code
		}
		for _, line := range lines {
			order.Items = append(order.Items, models.OrderItem{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Name:      line.Name,
				SKU:       line.SKU,
				Image:     line.Image,
				Quantity:  line.Quantity,
				Price:     line.Price,
				SalePrice: line.SalePrice,
				LineTotal: line.LineTotal(),
			})
		}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, orderNumberKeyName) {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		for _, line := range lines {
			if err := s.catalog.DecrementStock(ctx, tx, line); err != nil {
				return err
			}
		}
		if evaluation != nil {
			if err := s.coupons.IncrementUsage(ctx, tx, evaluation.CouponID); err != nil {
				return err
			}
		}
		if err := s.carts.Empty(ctx, tx, shopperCart); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        userID,
				ItemCount:     itemCount,
				Total:         order.Total,
				Currency:      order.Currency,
				PaymentMethod: order.PaymentMethod,
				CouponCode:    order.CouponCode,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
