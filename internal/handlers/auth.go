package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"pathpal-api/internal/credentials"
	"pathpal-api/internal/models"
	"pathpal-api/internal/otp"
	"pathpal-api/internal/responses"
	"pathpal-api/internal/session"
	"pathpal-api/internal/utils"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// conflictMessage maps a unique-constraint violation to the user-facing
// message for the colliding field. The DB constraint is the real invariant
// guard; pre-checks only exist for friendlier fast-path errors.
func conflictMessage(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return "", false
	}
	switch pqErr.Constraint {
	case "users_username_key":
		return "Username already exists", true
	case "users_email_key":
		return "Email already exists", true
	case "users_phone_number_key":
		return "Phone number already exists", true
	case "linked_devices_serial_number_key":
		return "Device is already linked to another user", true
	case "devices_serial_number_key":
		return "Device already exists in system", true
	default:
		return "Duplicate value", true
	}
}

func Register(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		if req.Username == "" || req.Email == "" || req.Phone == "" || req.Password == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "All fields are required")
			return
		}

		if !req.AgreedTerms || !req.AgreedPrivacy {
			responses.SendErrorResponse(w, http.StatusBadRequest,
				"You must agree to both Terms and Conditions and Data Privacy Policy")
			return
		}

		if err := utils.Validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		// Fast-path uniqueness checks; the insert below is still guarded by
		// the unique constraints.
		var exists int
		if err := db.QueryRow("SELECT 1 FROM users WHERE email = $1", req.Email).Scan(&exists); err == nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Email already exists")
			return
		}
		if err := db.QueryRow("SELECT 1 FROM users WHERE username = $1", req.Username).Scan(&exists); err == nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Username already exists")
			return
		}
		if err := db.QueryRow("SELECT 1 FROM users WHERE phone_number = $1", req.Phone).Scan(&exists); err == nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Phone number already exists")
			return
		}

		hashedPassword, err := credentials.Hash(req.Password)
		if err != nil {
			log.Printf("Failed to hash password during registration: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		_, err = db.Exec(`
			INSERT INTO users (username, email, phone_number, password_hash, user_type, agreed_terms, agreed_privacy)
			VALUES ($1, $2, $3, $4, 'user', $5, $6)
		`, req.Username, req.Email, req.Phone, hashedPassword, req.AgreedTerms, req.AgreedPrivacy)

		if err != nil {
			if msg, ok := conflictMessage(err); ok {
				responses.SendErrorResponse(w, http.StatusBadRequest, msg)
				return
			}
			log.Printf("Database error during registration: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		responses.SendMessageResponse(w, http.StatusCreated, "Registration successful")
	}
}

func Login(db *sql.DB, store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		if req.UsernameOrEmail == "" || req.Password == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Username/Email and password are required")
			return
		}

		if err := utils.Validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		var user models.User
		err := db.QueryRow(`
			SELECT user_id, username, email, phone_number, password_hash, user_type
			FROM users WHERE username = $1 OR email = $1
		`, req.UsernameOrEmail).Scan(
			&user.UserID, &user.Username, &user.Email, &user.PhoneNumber,
			&user.PasswordHash, &user.UserType,
		)

		// Unknown identifier and wrong password must be indistinguishable to
		// the caller.
		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
			} else {
				log.Printf("Database error during login: %v", err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Login failed")
			}
			return
		}

		match, err := credentials.Check(req.Password, user.PasswordHash)
		if err != nil {
			log.Printf("Malformed password hash for user %d: %v", user.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Login failed")
			return
		}
		if !match {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		sess := store.Create(user.UserID, user.Username, user.Email, user.UserType)
		setSessionCookie(w, sess)

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message": "Login successful",
			"user": models.UserResponse{
				UserID:   user.UserID,
				Username: user.Username,
				Email:    user.Email,
				Phone:    user.PhoneNumber,
				UserType: user.UserType,
			},
		})
	}
}

// OTPMailer delivers a plaintext reset code out-of-band. Satisfied by
// services.EmailService.
type OTPMailer interface {
	SendOTPEmail(to, code string) error
}

func ForgotPassword(db *sql.DB, ledger *otp.Ledger, mailer OTPMailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ForgotPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		if err := utils.Validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		// The response must not reveal whether the email is registered.
		accepted := func() {
			responses.SendMessageResponse(w, http.StatusOK,
				"If a user with that email exists, a password reset OTP has been sent.")
		}

		var userID int
		err := db.QueryRow("SELECT user_id FROM users WHERE email = $1", req.Email).Scan(&userID)
		if err != nil {
			if err == sql.ErrNoRows {
				accepted()
				return
			}
			log.Printf("Database error during forgot password: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to send password reset email.")
			return
		}

		code, err := ledger.Issue(r.Context(), userID)
		if err != nil {
			log.Printf("Failed to issue reset code for user %d: %v", userID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to send password reset email.")
			return
		}

		if err := mailer.SendOTPEmail(req.Email, code); err != nil {
			log.Printf("Failed to send reset email for user %d: %v", userID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to send password reset email.")
			return
		}

		accepted()
	}
}

func VerifyOTP(db *sql.DB, ledger *otp.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.VerifyOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		if err := utils.Validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		var userID int
		err := db.QueryRow("SELECT user_id FROM users WHERE email = $1", req.Email).Scan(&userID)
		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid OTP or email.")
			} else {
				log.Printf("Database error during OTP verification: %v", err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to verify OTP.")
			}
			return
		}

		_, err = ledger.Verify(r.Context(), userID, req.OTP)
		if err != nil {
			switch {
			case errors.Is(err, otp.ErrNoActiveRequest):
				responses.SendErrorResponse(w, http.StatusBadRequest, "OTP has expired or is invalid.")
			case errors.Is(err, otp.ErrInvalidCode):
				responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid OTP.")
			default:
				log.Printf("Failed to verify OTP for user %d: %v", userID, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to verify OTP.")
			}
			return
		}

		responses.SendMessageResponse(w, http.StatusOK, "OTP verified successfully.")
	}
}

func ResetPassword(db *sql.DB, ledger *otp.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ResetPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		if req.NewPassword == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "New password is required")
			return
		}

		if err := utils.Validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		var userID int
		err := db.QueryRow("SELECT user_id FROM users WHERE email = $1", req.Email).Scan(&userID)
		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request.")
			} else {
				log.Printf("Database error during password reset: %v", err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to reset password.")
			}
			return
		}

		err = ledger.Consume(r.Context(), userID, req.OTP, req.NewPassword)
		if err != nil {
			switch {
			case errors.Is(err, otp.ErrNoActiveRequest):
				responses.SendErrorResponse(w, http.StatusBadRequest,
					"Your password reset token has expired. Please try again.")
			case errors.Is(err, otp.ErrInvalidCode):
				responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid token. Please try again.")
			default:
				log.Printf("Failed to reset password for user %d: %v", userID, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to reset password.")
			}
			return
		}

		responses.SendMessageResponse(w, http.StatusOK, "Password has been reset successfully.")
	}
}

func Logout(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(session.CookieName); err == nil {
			store.Delete(cookie.Value)
		}
		clearSessionCookie(w)
		responses.SendMessageResponse(w, http.StatusOK, "Logout successful")
	}
}

func setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
