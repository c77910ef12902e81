// Package users stores shopper and admin accounts and shapes them for the API.
package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Profile is an account as clients see it; the password hash never leaves.
type Profile struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Phone       *string        `json:"phone,omitempty"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func ProfileOf(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// NewCustomer builds an active customer account. email must already be
// normalized.
func NewCustomer(email, passwordHash, firstName, lastName string, phone *string) *models.User {
	return &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Phone:        trimmedOrNil(phone),
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
}

// ProfileUpdate is a partial edit of the caller's own account. Email and role
// are not editable here.
type ProfileUpdate struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
}

// columns maps the update onto user columns. An empty phone clears it.
func (p ProfileUpdate) columns() map[string]any {
	cols := map[string]any{}
	if p.FirstName != nil {
		if v := strings.TrimSpace(*p.FirstName); v != "" {
			cols["first_name"] = v
		}
	}
	if p.LastName != nil {
		if v := strings.TrimSpace(*p.LastName); v != "" {
			cols["last_name"] = v
		}
	}
	if p.Phone != nil {
		cols["phone"] = trimmedOrNil(p.Phone)
	}
	return cols
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
