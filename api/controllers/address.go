package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AddressList returns the caller's saved addresses, default first.
func AddressList(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "address", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		list, err := svc.List(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"addresses": list}, nil
	})
}

func AddressGet(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "address", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		addressID, err := validators.ParseUUIDParam(r, "addressId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), userID, addressID)
	})
}

func AddressCreate(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "address", svc != nil, http.StatusCreated, func(r *http.Request, userID uuid.UUID) (any, error) {
		var body address.AddressInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Create(r.Context(), userID, body)
	})
}

func AddressUpdate(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "address", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		addressID, err := validators.ParseUUIDParam(r, "addressId")
		if err != nil {
			return nil, err
		}
		var body address.AddressInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), userID, addressID, body)
	})
}

func AddressDelete(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "address", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		addressID, err := validators.ParseUUIDParam(r, "addressId")
		if err != nil {
			return nil, err
		}
		if err := svc.Delete(r.Context(), userID, addressID); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})
}

// AddressSetDefault makes one address the default and clears the rest.
func AddressSetDefault(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, "address", svc != nil, http.StatusOK, func(r *http.Request, userID uuid.UUID) (any, error) {
		addressID, err := validators.ParseUUIDParam(r, "addressId")
		if err != nil {
			return nil, err
		}
		return svc.SetDefault(r.Context(), userID, addressID)
	})
}
