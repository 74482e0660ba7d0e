package model

import (
	"net/mail"
	"strings"
	"time"
)

// User represents a user account. Users are never serialized directly to
// API clients; use ToView.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	FullName     string    `json:"full_name" gorm:"size:200;not null"`
	Email        string    `json:"email" gorm:"size:320;uniqueIndex;not null"`
	PasswordHash string    `json:"password_hash,omitempty" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "user" }

func (u User) EntityID() string { return u.ID }

// User field names used in store criteria.
const (
	UserFieldID    = "id"
	UserFieldEmail = "email"
)

// UserView is the public projection of a user
type UserView struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (u *User) ToView() UserView {
	return UserView{ID: u.ID, FullName: u.FullName, Email: u.Email}
}

// UserSubscription opts a user into new-job emails. Email and FullName are
// copied from the user so the notifier never has to load users.
type UserSubscription struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"size:36;uniqueIndex;not null"`
	IsActive  bool      `json:"is_active" gorm:"index"`
	Email     string    `json:"email" gorm:"size:320;not null"`
	FullName  string    `json:"full_name" gorm:"size:200"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserSubscription) TableName() string { return "user_subscription" }

func (s UserSubscription) EntityID() string { return s.ID }

// Subscription field names used in store criteria.
const (
	SubscriptionFieldUserID   = "user_id"
	SubscriptionFieldIsActive = "is_active"
)

// SubscriptionView is the API representation of a subscription
type SubscriptionView struct {
	UserID    string    `json:"userId"`
	IsActive  bool      `json:"isActive"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

func (s *UserSubscription) ToView() SubscriptionView {
	return SubscriptionView{UserID: s.UserID, IsActive: s.IsActive, UpdatedAt: s.UpdatedAt}
}

// UpdateSubscriptionRequest is the body of PUT /subscriptions/me
type UpdateSubscriptionRequest struct {
	IsActive *bool `json:"isActive"`
}

func (r *UpdateSubscriptionRequest) Validate() []FieldError {
	if r.IsActive == nil {
		return []FieldError{{Field: "isActive", Message: "isActive is required"}}
	}
	return nil
}

// InvalidToken records a revoked bearer token. ID is the hex SHA-256 of the
// raw token; the raw token is never stored. Rows are append-only and only
// useful until ExpiresAt, after which the token fails validation anyway.
type InvalidToken struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}

func (InvalidToken) TableName() string { return "invalid_token" }

func (t InvalidToken) EntityID() string { return t.ID }

// InvalidToken field names used in store criteria.
const (
	InvalidTokenFieldID        = "id"
	InvalidTokenFieldExpiresAt = "expires_at"
)

// Account constraints
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
	MaxFullNameLength = 200
	MaxEmailLength    = 320
)

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *RegisterRequest) Validate() []FieldError {
	var errors []FieldError

	if r.FullName == "" {
		errors = append(errors, FieldError{Field: "fullName", Message: "fullName is required"})
	} else if len(r.FullName) > MaxFullNameLength {
		errors = append(errors, FieldError{Field: "fullName", Message: "fullName exceeds maximum length"})
	}

	if len(r.Email) > MaxEmailLength {
		errors = append(errors, FieldError{Field: "email", Message: "email exceeds maximum length"})
	} else if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		errors = append(errors, FieldError{Field: "email", Message: "invalid email format"})
	}

	if len(r.Password) < MinPasswordLength {
		errors = append(errors, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	} else if len(r.Password) > MaxPasswordLength {
		errors = append(errors, FieldError{Field: "password", Message: "password must be at most 72 bytes"})
	}

	return errors
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by register and login
type TokenResponse struct {
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType"`
	ExpiresIn   int      `json:"expiresIn"`
	User        UserView `json:"user"`
}
