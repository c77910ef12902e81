package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Quote is the cost of shipping an order with one method.
type Quote struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        MethodDTO       `json:"method"`
	EstimatedDays string          `json:"estimated_days,omitempty"`
}

// Service resolves shipping costs and lists eligible methods.
type Service interface {
	Calculate(ctx context.Context, methodID uuid.UUID, orderTotal decimal.Decimal, itemCount int) (*Quote, error)
	ListAvailable(ctx context.Context, orderTotal decimal.Decimal, country string) ([]MethodDTO, error)
	List(ctx context.Context, country string) ([]MethodDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*MethodDTO, error)
	FreeShippingThreshold(ctx context.Context, country string) (*decimal.Decimal, error)
	Create(ctx context.Context, input UpsertMethodInput) (*MethodDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpsertMethodInput) (*MethodDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type UpsertMethodInput struct {
	Name             string              `json:"name" validate:"required,min=1,max=100"`
	Description      *string             `json:"description,omitempty"`
	Price            decimal.Decimal     `json:"price"`
	EstimatedDaysMin *int                `json:"estimated_days_min,omitempty" validate:"omitempty,gte=0"`
	EstimatedDaysMax *int                `json:"estimated_days_max,omitempty" validate:"omitempty,gte=0"`
	MinOrderAmount   decimal.NullDecimal `json:"min_order_amount"`
	MaxOrderAmount   decimal.NullDecimal `json:"max_order_amount"`
	Countries        []string            `json:"countries,omitempty" validate:"omitempty,dive,len=2"`
	SortOrder        int                 `json:"sort_order"`
	IsActive         *bool               `json:"is_active,omitempty"`
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	return &service{repo: repo}, nil
}

// Calculate returns the flat configured price. The caller already chose the
// method, so eligibility is not re-checked here.
func (s *service) Calculate(ctx context.Context, methodID uuid.UUID, orderTotal decimal.Decimal, itemCount int) (*Quote, error) {
	method, err := s.load(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if !method.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "shipping method is not available")
	}
	dto := NewMethodDTO(method)
	return &Quote{
		Amount:        method.Price.Round(2),
		Method:        dto,
		EstimatedDays: dto.EstimatedDays,
	}, nil
}

func (s *service) ListAvailable(ctx context.Context, orderTotal decimal.Decimal, country string) ([]MethodDTO, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipping methods")
	}
	out := make([]MethodDTO, 0, len(rows))
	for i := range rows {
		if !Eligible(&rows[i], orderTotal, country) {
			continue
		}
		out = append(out, NewMethodDTO(&rows[i]))
	}
	sortByPrice(out)
	return out, nil
}

func (s *service) List(ctx context.Context, country string) ([]MethodDTO, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipping methods")
	}
	out := make([]MethodDTO, 0, len(rows))
	for i := range rows {
		if !shipsTo(rows[i].Countries, country) {
			continue
		}
		out = append(out, NewMethodDTO(&rows[i]))
	}
	sortByPrice(out)
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*MethodDTO, error) {
	method, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := NewMethodDTO(method)
	return &dto, nil
}

// FreeShippingThreshold is the smallest order total that unlocks a zero
// priced method, or nil when no such method exists.
func (s *service) FreeShippingThreshold(ctx context.Context, country string) (*decimal.Decimal, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipping methods")
	}
	var threshold *decimal.Decimal
	for i := range rows {
		m := rows[i]
		if !m.Price.IsZero() || !m.MinOrderAmount.Valid || !shipsTo(m.Countries, country) {
			continue
		}
		if threshold == nil || m.MinOrderAmount.Decimal.LessThan(*threshold) {
			v := m.MinOrderAmount.Decimal
			threshold = &v
		}
	}
	return threshold, nil
}

func (s *service) Create(ctx context.Context, input UpsertMethodInput) (*MethodDTO, error) {
	if err := validateUpsert(input); err != nil {
		return nil, err
	}
	method := &models.ShippingMethod{IsActive: true}
	applyUpsert(method, input)
	created, err := s.repo.Create(ctx, method)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert shipping method")
	}
	dto := NewMethodDTO(created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpsertMethodInput) (*MethodDTO, error) {
	if err := validateUpsert(input); err != nil {
		return nil, err
	}
	method, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	applyUpsert(method, input)
	saved, err := s.repo.Update(ctx, method)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: update shipping method")
	}
	dto := NewMethodDTO(saved)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate shipping method")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Shipping method not found")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error) {
	method, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Shipping method not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipping method")
	}
	return method, nil
}

// Eligible applies the listing filters: order amount bounds and destination.
func Eligible(m *models.ShippingMethod, orderTotal decimal.Decimal, country string) bool {
	if !m.IsActive {
		return false
	}
	if m.MinOrderAmount.Valid && orderTotal.LessThan(m.MinOrderAmount.Decimal) {
		return false
	}
	if m.MaxOrderAmount.Valid && orderTotal.GreaterThan(m.MaxOrderAmount.Decimal) {
		return false
	}
	return shipsTo(m.Countries, country)
}

func shipsTo(countries pq.StringArray, country string) bool {
	country = strings.TrimSpace(country)
	if country == "" || len(countries) == 0 {
		return true
	}
	for _, c := range countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

func sortByPrice(methods []MethodDTO) {
	sort.SliceStable(methods, func(i, j int) bool {
		return methods[i].Price.LessThan(methods[j].Price)
	})
}

func validateUpsert(input UpsertMethodInput) error {
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.MinOrderAmount.Valid && input.MaxOrderAmount.Valid &&
		input.MaxOrderAmount.Decimal.LessThan(input.MinOrderAmount.Decimal) {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_order_amount must be at least min_order_amount")
	}
	if input.EstimatedDaysMin != nil && input.EstimatedDaysMax != nil && *input.EstimatedDaysMax < *input.EstimatedDaysMin {
		return pkgerrors.New(pkgerrors.CodeValidation, "estimated_days_max must be at least estimated_days_min")
	}
	return nil
}

func applyUpsert(m *models.ShippingMethod, input UpsertMethodInput) {
	m.Name = strings.TrimSpace(input.Name)
	m.Description = input.Description
	m.Price = input.Price.Round(2)
	m.EstimatedDaysMin = input.EstimatedDaysMin
	m.EstimatedDaysMax = input.EstimatedDaysMax
	m.MinOrderAmount = input.MinOrderAmount
	m.MaxOrderAmount = input.MaxOrderAmount
	countries := make([]string, 0, len(input.Countries))
	for _, c := range input.Countries {
		countries = append(countries, strings.ToUpper(strings.TrimSpace(c)))
	}
	m.Countries = pq.StringArray(countries)
	m.SortOrder = input.SortOrder
	if input.IsActive != nil {
		m.IsActive = *input.IsActive
	}
}
