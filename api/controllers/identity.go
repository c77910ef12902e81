package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// userAction is the body of a route that needs a signed-in caller.
type userAction func(r *http.Request, userID uuid.UUID) (any, error)

// authed resolves the caller, runs action and writes its result with status.
// ready is false when the backing service was not wired.
func authed(logg *logger.Logger, service string, ready bool, status int, action userAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !ready {
			responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", service))
			return
		}
		userID, err := requireUserID(r)
		var data any
		if err == nil {
			data, err = action(r, userID)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, data)
	}
}

func requireUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

func optionalUserID(r *http.Request) *uuid.UUID {
	userID, err := requireUserID(r)
	if err != nil {
		return nil
	}
	return &userID
}

func viewerFromRequest(r *http.Request) (orders.Viewer, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return orders.Viewer{}, err
	}
	return orders.Viewer{UserID: userID, Admin: middleware.IsAdmin(r)}, nil
}

func chiParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}
