package shipping

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type MethodDTO struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Description    *string          `json:"description,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	EstimatedDays  string           `json:"estimated_days,omitempty"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxOrderAmount *decimal.Decimal `json:"max_order_amount,omitempty"`
	Countries      []string         `json:"countries,omitempty"`
	IsActive       bool             `json:"is_active"`
}

func NewMethodDTO(m *models.ShippingMethod) MethodDTO {
	dto := MethodDTO{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		Price:         m.Price,
		EstimatedDays: estimatedDays(m.EstimatedDaysMin, m.EstimatedDaysMax),
		Countries:     m.Countries,
		IsActive:      m.IsActive,
	}
	if m.MinOrderAmount.Valid {
		v := m.MinOrderAmount.Decimal
		dto.MinOrderAmount = &v
	}
	if m.MaxOrderAmount.Valid {
		v := m.MaxOrderAmount.Decimal
		dto.MaxOrderAmount = &v
	}
	return dto
}

func estimatedDays(min, max *int) string {
	switch {
	case min != nil && max != nil && *min != *max:
		return fmt.Sprintf("%d-%d", *min, *max)
	case min != nil:
		return fmt.Sprintf("%d", *min)
	case max != nil:
		return fmt.Sprintf("%d", *max)
	default:
		return ""
	}
}
