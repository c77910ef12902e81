package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type addWishlistItemPayload struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type moveToCartPayload struct {
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
}

// WishlistList returns the caller's wishlist page with product snapshots.
func WishlistList(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "wishlist", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), userID, params)
	})
}

// WishlistAdd is idempotent; adding a product twice is not an error.
func WishlistAdd(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "wishlist", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		var payload addWishlistItemPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		if payload.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if err := svc.AddItem(r.Context(), userID, payload.ProductID); err != nil {
			return nil, err
		}
		return map[string]any{"product_id": payload.ProductID, "added": true}, nil
	})
}

func WishlistRemove(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "wishlist", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			return nil, err
		}
		if err := svc.RemoveItem(r.Context(), userID, productID); err != nil {
			return nil, err
		}
		return map[string]bool{"removed": true}, nil
	})
}

// WishlistMoveToCart accepts an empty body when the product has no variants.
func WishlistMoveToCart(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "wishlist", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			return nil, err
		}
		var payload moveToCartPayload
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.MoveToCart(r.Context(), userID, productID, payload.VariantID)
	})
}
