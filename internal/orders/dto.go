package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type OrderItemDTO struct {
	ID        uuid.UUID           `json:"id"`
	ProductID uuid.UUID           `json:"product_id"`
	VariantID *uuid.UUID          `json:"variant_id,omitempty"`
	Name      string              `json:"name"`
	SKU       string              `json:"sku"`
	Image     *string             `json:"image,omitempty"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.Decimal     `json:"price"`
	SalePrice decimal.NullDecimal `json:"sale_price"`
	LineTotal decimal.Decimal     `json:"line_total"`
}

type OrderDTO struct {
	ID                 uuid.UUID             `json:"id"`
	OrderNumber        string                `json:"order_number"`
	UserID             uuid.UUID             `json:"user_id"`
	Status             enums.OrderStatus     `json:"status"`
	PaymentStatus      enums.PaymentStatus   `json:"payment_status"`
	PaymentMethod      enums.PaymentMethod   `json:"payment_method"`
	ShippingAddress    types.AddressSnapshot `json:"shipping_address"`
	BillingAddress     types.AddressSnapshot `json:"billing_address"`
	ShippingMethodID   uuid.UUID             `json:"shipping_method_id"`
	Subtotal           decimal.Decimal       `json:"subtotal"`
	ShippingAmount     decimal.Decimal       `json:"shipping_amount"`
	TaxAmount          decimal.Decimal       `json:"tax_amount"`
	DiscountAmount     decimal.Decimal       `json:"discount_amount"`
	Total              decimal.Decimal       `json:"total"`
	Currency           string                `json:"currency"`
	CouponCode         *string               `json:"coupon_code,omitempty"`
	Notes              *string               `json:"notes,omitempty"`
	TrackingNumber     *string               `json:"tracking_number,omitempty"`
	ShippedAt          *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	CancellationReason *string               `json:"cancellation_reason,omitempty"`
	Items              []OrderItemDTO        `json:"items"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// OrderSummaryDTO is the list row.
type OrderSummaryDTO struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
	CreatedAt     time.Time           `json:"created_at"`
}

type OrderListResult struct {
	Orders     []OrderSummaryDTO `json:"orders"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps an order with its items.
func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		Status:             order.Status,
		PaymentStatus:      order.PaymentStatus,
		PaymentMethod:      order.PaymentMethod,
		ShippingAddress:    order.ShippingAddress,
		BillingAddress:     order.BillingAddress,
		ShippingMethodID:   order.ShippingMethodID,
		Subtotal:           order.Subtotal,
		ShippingAmount:     order.ShippingAmount,
		TaxAmount:          order.TaxAmount,
		DiscountAmount:     order.DiscountAmount,
		Total:              order.Total,
		Currency:           order.Currency,
		CouponCode:         order.CouponCode,
		Notes:              order.Notes,
		TrackingNumber:     order.TrackingNumber,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		CancelledAt:        order.CancelledAt,
		CancellationReason: order.CancellationReason,
		Items:              make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			Image:     item.Image,
			Quantity:  item.Quantity,
			Price:     item.Price,
			SalePrice: item.SalePrice,
			LineTotal: item.LineTotal,
		})
	}
	return dto
}

func newOrderSummary(order models.Order) OrderSummaryDTO {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderSummaryDTO{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		ItemCount:     count,
		Total:         order.Total,
		Currency:      order.Currency,
		CreatedAt:     order.CreatedAt,
	}
}
