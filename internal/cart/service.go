package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Owner identifies whose cart an operation targets. UserID wins over
// SessionID when both are present.
type Owner struct {
	UserID    *uuid.UUID
	SessionID string
}

func (o Owner) empty() bool {
	return o.UserID == nil && strings.TrimSpace(o.SessionID) == ""
}

// AddItemInput adds a product (or variant) to the cart.
type AddItemInput struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,min=1,max=100"`
}

// UpdateItemInput sets a line quantity; zero removes the line.
type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"min=0,max=100"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lineValidator interface {
	ValidateLine(ctx context.Context, line product.Line) (*product.ValidatedLine, error)
}

// Service exposes cart resolution and mutation.
type Service interface {
	Get(ctx context.Context, owner Owner) (*CartDTO, error)
	Resolve(ctx context.Context, tx *gorm.DB, owner Owner) (*models.Cart, error)
	GetOrCreate(ctx context.Context, owner Owner) (*CartDTO, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, input UpdateItemInput) (*CartDTO, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, owner Owner) (*CartDTO, error)
	Summary(ctx context.Context, owner Owner) (*SummaryDTO, error)
	Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*CartDTO, error)
	Empty(ctx context.Context, tx *gorm.DB, cart *models.Cart) error
	CleanupInactiveGuestCarts(ctx context.Context, before time.Time) (int64, error)
}

type service struct {
	repo      *Repository
	tx        txRunner
	validator lineValidator
	currency  string
	now       func() time.Time
}

// NewService wires the cart service.
func NewService(repo *Repository, tx txRunner, validator lineValidator, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if validator == nil {
		return nil, fmt.Errorf("product validator required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = string(enums.CurrencyUSD)
	}
	return &service{
		repo:      repo,
		tx:        tx,
		validator: validator,
		currency:  currency,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*CartDTO, error) {
	cart, err := s.Resolve(ctx, nil, owner)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return NewCartDTO(nil, s.currency), nil
		}
		return nil, err
	}
	return NewCartDTO(cart, s.currency), nil
}

func (s *service) Resolve(ctx context.Context, tx *gorm.DB, owner Owner) (*models.Cart, error) {
	if owner.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found")
	}
	repo := s.repo.WithTx(tx)

	var (
		cart *models.Cart
		err  error
	)
	if owner.UserID != nil {
		cart, err = repo.FindByUser(ctx, *owner.UserID)
	} else {
		cart, err = repo.FindBySession(ctx, owner.SessionID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return cart, nil
}

func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*CartDTO, error) {
	cart, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	return NewCartDTO(cart, s.currency), nil
}

func (s *service) getOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.Resolve(ctx, nil, owner)
	if err == nil {
		return cart, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || owner.empty() {
		return nil, err
	}

	cart = &models.Cart{Currency: s.currency, LastActivityAt: s.now()}
	if owner.UserID != nil {
		userID := *owner.UserID
		cart.UserID = &userID
	} else {
		sessionID := owner.SessionID
		cart.SessionID = &sessionID
	}
	created, err := s.repo.Create(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return created, nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*CartDTO, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	cart, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	want := models.CartItem{ProductID: input.ProductID, VariantID: input.VariantID}
	idx := findLine(cart, want)
	qty := input.Quantity
	if idx >= 0 {
		qty += cart.Items[idx].Quantity
	}

	line, err := s.validator.ValidateLine(ctx, product.Line{
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		Quantity:  qty,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if idx >= 0 {
			cart.Items[idx].Quantity = qty
			if err := repo.UpdateItemQuantity(ctx, cart.Items[idx].ID, qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
		} else {
			item := models.CartItem{
				CartID:    cart.ID,
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Quantity:  qty,
				Price:     line.Price,
				SalePrice: line.SalePrice,
				Position:  len(cart.Items),
			}
			if err := repo.CreateItem(ctx, &item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
			}
			cart.Items = append(cart.Items, item)
		}
		return s.saveTotals(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}
	return NewCartDTO(cart, s.currency), nil
}

func (s *service) UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, input UpdateItemInput) (*CartDTO, error) {
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if input.Quantity == 0 {
		return s.RemoveItem(ctx, owner, itemID)
	}

	cart, idx, err := s.resolveItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}
	item := cart.Items[idx]
	if _, err := s.validator.ValidateLine(ctx, product.Line{
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  input.Quantity,
	}); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart.Items[idx].Quantity = input.Quantity
		if err := repo.UpdateItemQuantity(ctx, itemID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		return s.saveTotals(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}
	return NewCartDTO(cart, s.currency), nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*CartDTO, error) {
	cart, idx, err := s.resolveItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteItem(ctx, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return s.saveTotals(ctx, repo, cart)
	})
	if err != nil {
		return nil, err
	}
	return NewCartDTO(cart, s.currency), nil
}

func (s *service) Clear(ctx context.Context, owner Owner) (*CartDTO, error) {
	cart, err := s.Resolve(ctx, nil, owner)
	if err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.Empty(ctx, tx, cart)
	}); err != nil {
		return nil, err
	}
	return NewCartDTO(cart, s.currency), nil
}

// Empty deletes every line of cart inside tx and zeroes its totals.
func (s *service) Empty(ctx context.Context, tx *gorm.DB, cart *models.Cart) error {
	if cart == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found")
	}
	repo := s.repo.WithTx(tx)
	if err := repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart items")
	}
	cart.Items = nil
	return s.saveTotals(ctx, repo, cart)
}

func (s *service) Summary(ctx context.Context, owner Owner) (*SummaryDTO, error) {
	cart, err := s.Resolve(ctx, nil, owner)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return &SummaryDTO{TotalAmount: decimal.Zero, Currency: s.currency}, nil
		}
		return nil, err
	}
	return &SummaryDTO{
		ItemCount:   len(cart.Items),
		TotalItems:  cart.TotalItems,
		TotalAmount: cart.TotalAmount,
		Currency:    cart.Currency,
	}, nil
}

// Merge folds the guest cart for sessionID into the user's cart. Quantities of
// equivalent lines are summed without a stock check; the guest cart is then
// deleted. A user without a cart takes ownership of the guest cart instead.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	sessionID = strings.TrimSpace(sessionID)

	guest, err := s.findOptional(ctx, Owner{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	userCart, err := s.findOptional(ctx, Owner{UserID: &userID})
	if err != nil {
		return nil, err
	}

	if sessionID == "" || guest == nil {
		return NewCartDTO(userCart, s.currency), nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if userCart == nil {
			guest.UserID = &userID
			guest.SessionID = nil
			userCart = guest
			return s.saveTotals(ctx, repo, guest)
		}

		for _, item := range guest.Items {
			if idx := findLine(userCart, item); idx >= 0 {
				userCart.Items[idx].Quantity += item.Quantity
				if err := repo.UpdateItemQuantity(ctx, userCart.Items[idx].ID, userCart.Items[idx].Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart item")
				}
				continue
			}
			moved := models.CartItem{
				CartID:    userCart.ID,
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				Price:     item.Price,
				SalePrice: item.SalePrice,
				Position:  len(userCart.Items),
			}
			if err := repo.CreateItem(ctx, &moved); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "copy cart item")
			}
			userCart.Items = append(userCart.Items, moved)
		}

		if err := repo.Delete(ctx, guest.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete guest cart")
		}
		return s.saveTotals(ctx, repo, userCart)
	})
	if err != nil {
		return nil, err
	}
	return NewCartDTO(userCart, s.currency), nil
}

func (s *service) CleanupInactiveGuestCarts(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).DeleteGuestCartsInactiveSince(ctx, before.UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete inactive guest carts")
		}
		deleted = n
		return nil
	})
	return deleted, err
}

func (s *service) findOptional(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.empty() {
		return nil, nil
	}
	cart, err := s.Resolve(ctx, nil, owner)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cart, nil
}

func (s *service) resolveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, int, error) {
	cart, err := s.Resolve(ctx, nil, owner)
	if err != nil {
		return nil, -1, err
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return cart, i, nil
		}
	}
	return nil, -1, pkgerrors.New(pkgerrors.CodeNotFound, "Item not found in cart")
}

func (s *service) saveTotals(ctx context.Context, repo *Repository, cart *models.Cart) error {
	recompute(cart)
	cart.LastActivityAt = s.now()
	if err := repo.SaveTotals(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart totals")
	}
	return nil
}
