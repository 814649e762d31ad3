package model

import (
	"errors"
	"time"
)

// User is a seller, collector or admin. Key is the store record key the user
// was loaded from; ID is the logical id field, which may differ for records
// that were not created by this service.
type User struct {
	Key              string        `json:"-"`
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Phone            string        `json:"phone"`
	Email            string        `json:"email,omitempty"`
	Role             string        `json:"user_type"`
	PasswordHash     string        `json:"password_hash,omitempty"`
	AuthProvider     string        `json:"auth_provider,omitempty"`
	ReferralCode     string        `json:"referral_code,omitempty"`
	ReferredBy       string        `json:"referred_by,omitempty"`
	Location         *Location     `json:"location,omitempty"`
	Subscription     *Subscription `json:"subscription,omitempty"`
	TotalCollections int64         `json:"total_collections,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Location is a user's current position. Collectors carry a search radius,
// sellers an optional area name.
type Location struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	SearchRadiusKm float64 `json:"search_radius_km,omitempty"`
	AreaName       string  `json:"area_name,omitempty"`
}

// Profile is the public view of a user.
type Profile struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email,omitempty"`
	Role             string    `json:"user_type"`
	ReferralCode     string    `json:"referral_code,omitempty"`
	ReferredBy       string    `json:"referred_by,omitempty"`
	TotalCollections int64     `json:"total_collections,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Profile returns the user's public view, identified by its record key.
func (u *User) Profile() Profile {
	return Profile{
		ID:               u.Key,
		Name:             u.Name,
		Phone:            u.Phone,
		Email:            u.Email,
		Role:             u.Role,
		ReferralCode:     u.ReferralCode,
		ReferredBy:       u.ReferredBy,
		TotalCollections: u.TotalCollections,
		CreatedAt:        u.CreatedAt,
	}
}

// Roles.
const (
	RoleSeller    = "seller"
	RoleCollector = "collector"
	RoleAdmin     = "admin"
)

// Auth providers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleSeller || role == RoleCollector || role == RoleAdmin
}

// RoleAllowed checks whether role is one of allowed. Admins pass every check;
// unknown roles fail closed.
func RoleAllowed(role string, allowed ...string) bool {
	if !ValidRole(role) {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ValidatePassword checks that a password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// ValidatePhone checks that a phone number is at least ten digits.
func ValidatePhone(phone string) error {
	if len(phone) < 10 {
		return errors.New("phone must be at least 10 digits")
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return errors.New("phone must contain only digits")
		}
	}
	return nil
}
