package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	UserID        int       `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PhoneNumber   string    `json:"phone"`
	PasswordHash  string    `json:"-"`
	UserType      string    `json:"user_type"`
	AgreedTerms   bool      `json:"-"`
	AgreedPrivacy bool      `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

type UserResponse struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	UserType string `json:"user_type"`
}

type RegisterRequest struct {
	Username      string `json:"username" validate:"required"`
	Email         string `json:"email" validate:"required,email,gmail"`
	Phone         string `json:"phone" validate:"required,phoneph"`
	Password      string `json:"password" validate:"required,min=8"`
	AgreedTerms   bool   `json:"agreed_terms"`
	AgreedPrivacy bool   `json:"agreed_privacy"`
}

type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" validate:"omitempty,min=1"`
	Email    string `json:"email" validate:"omitempty,email,gmail"`
	Phone    string `json:"phone" validate:"omitempty,phoneph"`
}
