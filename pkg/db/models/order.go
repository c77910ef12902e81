package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is written once at checkout; afterwards only its status fields,
// tracking, and payment status change.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string                `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	UserID             uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Status             enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus   `gorm:"column:payment_status;not null;default:'pending'"`
	PaymentMethod      enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	ShippingAddress    types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress     types.AddressSnapshot `gorm:"column:billing_address;type:jsonb;not null"`
	ShippingMethodID   uuid.UUID             `gorm:"column:shipping_method_id;type:uuid;not null"`
	Subtotal           decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingAmount     decimal.Decimal       `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	TaxAmount          decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount     decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Total              decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	Currency           string                `gorm:"column:currency;not null"`
	CouponCode         *string               `gorm:"column:coupon_code"`
	Notes              *string               `gorm:"column:notes"`
	TrackingNumber     *string               `gorm:"column:tracking_number"`
	ShippedAt          *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time            `gorm:"column:delivered_at"`
	CancelledAt        *time.Time            `gorm:"column:cancelled_at"`
	CancellationReason *string               `gorm:"column:cancellation_reason"`
	Items              []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem snapshots the product as it was sold.
type OrderItem struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	VariantID *uuid.UUID          `gorm:"column:variant_id;type:uuid"`
	Name      string              `gorm:"column:name;not null"`
	SKU       string              `gorm:"column:sku;not null"`
	Image     *string             `gorm:"column:image"`
	Quantity  int                 `gorm:"column:quantity;not null"`
	Price     decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice decimal.NullDecimal `gorm:"column:sale_price;type:numeric(12,2)"`
	LineTotal decimal.Decimal     `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// OrderSequence is the database fallback for the daily order-number counter.
type OrderSequence struct {
	Day   string `gorm:"column:day;primaryKey"`
	Value int64  `gorm:"column:value;not null"`
}
