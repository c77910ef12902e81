package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type cartAdder interface {
	AddItem(ctx context.Context, owner cart.Owner, input cart.AddItemInput) (*cart.CartDTO, error)
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	WishlistRepo *Repository
	ProductRepo  *products.Repository
	Cart         cartAdder
}

// Service exposes business rules for wishlist management.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (WishlistPageDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	MoveToCart(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID) (*cart.CartDTO, error)
}

type service struct {
	wishlistRepo *Repository
	productRepo  *products.Repository
	cart         cartAdder
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.WishlistRepo == nil {
		return nil, fmt.Errorf("wishlist repo is required")
	}
	if params.ProductRepo == nil {
		return nil, fmt.Errorf("product repo is required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service is required")
	}
	return &service{
		wishlistRepo: params.WishlistRepo,
		productRepo:  params.ProductRepo,
		cart:         params.Cart,
	}, nil
}

// List returns the paginated wishlist with a current product snapshot.
// Entries whose product has since been deleted are skipped.
func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (WishlistPageDTO, error) {
	if err := requireUser(userID); err != nil {
		return WishlistPageDTO{}, err
	}
	rows, next, err := s.wishlistRepo.ListItems(ctx, userID, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return WishlistPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return WishlistPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wishlist")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	found, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return WishlistPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wishlist products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	out := WishlistPageDTO{Items: make([]WishlistItemDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		p, ok := byID[row.ProductID]
		if !ok {
			continue
		}
		out.Items = append(out.Items, WishlistItemDTO{
			ID:        row.ID,
			Product:   newProductSummary(p),
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// AddItem ensures the product exists and adds it to the wishlist.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	p, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !p.IsActive {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, "Product is not available")
	}
	if err := s.wishlistRepo.AddItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add wishlist item")
	}
	return nil
}

// RemoveItem drops the wishlist entry regardless of prior state.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := s.wishlistRepo.RemoveItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove wishlist item")
	}
	return nil
}

// MoveToCart adds one unit to the user's cart and then drops the wishlist
// entry. A failed add leaves the wishlist untouched.
func (s *service) MoveToCart(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID) (*cart.CartDTO, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	listed, err := s.wishlistRepo.Contains(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wishlist item")
	}
	if !listed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product is not in your wishlist")
	}

	uid := userID
	updated, err := s.cart.AddItem(ctx, cart.Owner{UserID: &uid}, cart.AddItemInput{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  1,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.wishlistRepo.RemoveItem(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove wishlist item")
	}
	return updated, nil
}

func requireUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	return nil
}
