package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes coupon administration and shopper-facing checks.
type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error)
	ListActive(ctx context.Context) ([]PublicCouponDTO, error)
	Create(ctx context.Context, input UpsertCouponInput) (*CouponDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpsertCouponInput) (*CouponDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByCode(ctx context.Context, code string) (*CouponDTO, error)
	List(ctx context.Context, includeInactive bool, params pagination.Params) (*CouponListResult, error)
}

type ApplyInput struct {
	Code       string          `json:"code" validate:"required,min=1,max=64"`
	OrderTotal decimal.Decimal `json:"order_total"`
	Currency   string          `json:"currency" validate:"omitempty,len=3"`
	UserID     *uuid.UUID      `json:"-"`
}

type UpsertCouponInput struct {
	Code               string              `json:"code" validate:"required,min=2,max=64"`
	Name               string              `json:"name" validate:"required,min=1,max=200"`
	Description        *string             `json:"description,omitempty"`
	Type               enums.CouponType    `json:"type" validate:"required"`
	Value              decimal.Decimal     `json:"value"`
	MaxDiscountAmount  decimal.NullDecimal `json:"max_discount_amount"`
	MinOrderAmount     decimal.NullDecimal `json:"min_order_amount"`
	UsageLimit         *int                `json:"usage_limit,omitempty" validate:"omitempty,gte=1"`
	StartDate          *time.Time          `json:"start_date,omitempty"`
	EndDate            *time.Time          `json:"end_date,omitempty"`
	AllowedCurrencies  []string            `json:"allowed_currencies,omitempty" validate:"omitempty,dive,len=3"`
	AllowedUserIDs     []uuid.UUID         `json:"allowed_user_ids,omitempty"`
	ExcludedProductIDs []uuid.UUID         `json:"excluded_product_ids,omitempty"`
	IsActive           *bool               `json:"is_active,omitempty"`
}

type service struct {
	repo      *Repository
	evaluator *Evaluator
	now       func() time.Time
}

// NewService builds the coupon service.
func NewService(repo *Repository, evaluator *Evaluator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("coupon evaluator required")
	}
	return &service{repo: repo, evaluator: evaluator, now: evaluator.now}, nil
}

// Apply turns evaluator rejections into an invalid result so shoppers get
// the reason instead of an error status.
func (s *service) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	if input.OrderTotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_total must be non-negative")
	}
	eval, err := s.evaluator.Evaluate(ctx, EvaluateInput{
		Code:       input.Code,
		UserID:     input.UserID,
		OrderTotal: input.OrderTotal,
		Currency:   input.Currency,
	})
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && (typed.Code() == pkgerrors.CodeBusinessRule || typed.Code() == pkgerrors.CodeNotFound) {
			return &ApplyResult{Valid: false, Discount: decimal.Zero, Message: typed.Message()}, nil
		}
		return nil, err
	}

	coupon, err := s.repo.FindByID(ctx, eval.CouponID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	public := NewPublicCouponDTO(coupon)
	return &ApplyResult{
		Valid:        true,
		Discount:     eval.Discount,
		FreeShipping: eval.FreeShipping,
		Coupon:       &public,
	}, nil
}

func (s *service) ListActive(ctx context.Context) ([]PublicCouponDTO, error) {
	rows, err := s.repo.ListActive(ctx, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active coupons")
	}
	out := make([]PublicCouponDTO, 0, len(rows))
	for i := range rows {
		// exhausted coupons are not advertised
		if rows[i].UsageLimit != nil && rows[i].UsedCount >= *rows[i].UsageLimit {
			continue
		}
		out = append(out, NewPublicCouponDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input UpsertCouponInput) (*CouponDTO, error) {
	if err := validateUpsert(input); err != nil {
		return nil, err
	}
	coupon := &models.Coupon{IsActive: true}
	applyUpsert(coupon, input)

	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert coupon")
	}
	dto := NewCouponDTO(created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpsertCouponInput) (*CouponDTO, error) {
	if err := validateUpsert(input); err != nil {
		return nil, err
	}
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	applyUpsert(coupon, input)

	saved, err := s.repo.Update(ctx, coupon)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: update coupon")
	}
	dto := NewCouponDTO(saved)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate coupon")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Coupon not found")
	}
	return nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*CouponDTO, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	dto := NewCouponDTO(coupon)
	return &dto, nil
}

func (s *service) List(ctx context.Context, includeInactive bool, params pagination.Params) (*CouponListResult, error) {
	rows, next, err := s.repo.List(ctx, includeInactive, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	out := make([]CouponDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewCouponDTO(&rows[i]))
	}
	return &CouponListResult{Coupons: out, NextCursor: next}, nil
}

func validateUpsert(input UpsertCouponInput) error {
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon type")
	}
	if input.Value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "value must be non-negative")
	}
	if input.Type == enums.CouponTypePercentage && input.Value.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage value cannot exceed 100")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end_date must be after start_date")
	}
	return nil
}

func applyUpsert(coupon *models.Coupon, input UpsertCouponInput) {
	coupon.Code = NormalizeCode(input.Code)
	coupon.Name = strings.TrimSpace(input.Name)
	coupon.Description = input.Description
	coupon.Type = input.Type
	coupon.Value = input.Value.Round(2)
	coupon.MaxDiscountAmount = input.MaxDiscountAmount
	coupon.MinOrderAmount = input.MinOrderAmount
	coupon.UsageLimit = input.UsageLimit
	coupon.StartDate = input.StartDate
	coupon.EndDate = input.EndDate

	currencies := make([]string, 0, len(input.AllowedCurrencies))
	for _, c := range input.AllowedCurrencies {
		currencies = append(currencies, strings.ToUpper(strings.TrimSpace(c)))
	}
	coupon.AllowedCurrencies = pq.StringArray(currencies)
	coupon.AllowedUserIDs = dbtypes.UUIDArray(input.AllowedUserIDs)
	coupon.ExcludedProductIDs = dbtypes.UUIDArray(input.ExcludedProductIDs)
	if input.IsActive != nil {
		coupon.IsActive = *input.IsActive
	}
}
