package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

const maxCartSessionLength = 128

// CartSession copies the guest cart cookie into the request context.
// Malformed values are ignored so a stale cookie never blocks a request.
func CartSession(cfg config.CartConfig) func(http.Handler) http.Handler {
	name := cookieName(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(name)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			value := strings.TrimSpace(cookie.Value)
			if value == "" || len(value) > maxCartSessionLength {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCartSession(r.Context(), value)))
		})
	}
}

// IssueCartSession allocates a new guest session id and sets its cookie.
func IssueCartSession(w http.ResponseWriter, cfg config.CartConfig) string {
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(cfg),
		Value:    id,
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// ClearCartSession expires the guest cookie once its cart has been merged.
func ClearCartSession(w http.ResponseWriter, cfg config.CartConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(cfg),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieName(cfg config.CartConfig) string {
	if name := strings.TrimSpace(cfg.SessionCookie); name != "" {
		return name
	}
	return "cart_session"
}
