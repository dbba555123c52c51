package models

import "time"

// PasswordReset holds a hashed one-time code. The plaintext code is
// delivered over email and never stored.
type PasswordReset struct {
	ResetID   int       `json:"-"`
	UserID    int       `json:"-"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
	Used      bool      `json:"-"`
	CreatedAt time.Time `json:"-"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=4,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=4,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}
