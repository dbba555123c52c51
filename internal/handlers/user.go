package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"pathpal-api/internal/credentials"
	"pathpal-api/internal/models"
	"pathpal-api/internal/responses"
	"pathpal-api/internal/session"
	"pathpal-api/internal/utils"
)

func GetProfile(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var user models.UserResponse
		err := db.QueryRow(`
			SELECT user_id, username, email, phone_number, user_type
			FROM users WHERE user_id = $1
		`, sess.UserID).Scan(&user.UserID, &user.Username, &user.Email, &user.Phone, &user.UserType)

		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			} else {
				log.Printf("Failed to fetch profile for user %d: %v", sess.UserID, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch profile")
			}
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"user": user})
	}
}

func UpdateProfile(db *sql.DB, store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var req models.UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		if req.Username == "" && req.Email == "" && req.Phone == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "No fields to update")
			return
		}

		if err := utils.Validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		var exists int
		if req.Email != "" {
			err := db.QueryRow("SELECT 1 FROM users WHERE email = $1 AND user_id != $2",
				req.Email, sess.UserID).Scan(&exists)
			if err == nil {
				responses.SendErrorResponse(w, http.StatusBadRequest, "Email already in use")
				return
			}
		}
		if req.Phone != "" {
			err := db.QueryRow("SELECT 1 FROM users WHERE phone_number = $1 AND user_id != $2",
				req.Phone, sess.UserID).Scan(&exists)
			if err == nil {
				responses.SendErrorResponse(w, http.StatusBadRequest, "Phone number already in use")
				return
			}
		}
		if req.Username != "" {
			err := db.QueryRow("SELECT 1 FROM users WHERE username = $1 AND user_id != $2",
				req.Username, sess.UserID).Scan(&exists)
			if err == nil {
				responses.SendErrorResponse(w, http.StatusBadRequest, "Username already in use")
				return
			}
		}

		var updates []string
		var values []interface{}
		if req.Username != "" {
			values = append(values, req.Username)
			updates = append(updates, fmt.Sprintf("username = $%d", len(values)))
		}
		if req.Email != "" {
			values = append(values, req.Email)
			updates = append(updates, fmt.Sprintf("email = $%d", len(values)))
		}
		if req.Phone != "" {
			values = append(values, req.Phone)
			updates = append(updates, fmt.Sprintf("phone_number = $%d", len(values)))
		}
		values = append(values, sess.UserID)

		query := fmt.Sprintf("UPDATE users SET %s WHERE user_id = $%d",
			strings.Join(updates, ", "), len(values))

		result, err := db.Exec(query, values...)
		if err != nil {
			if msg, ok := conflictMessage(err); ok {
				responses.SendErrorResponse(w, http.StatusBadRequest, msg)
				return
			}
			log.Printf("Failed to update profile for user %d: %v", sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update profile")
			return
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			return
		}

		// Keep the login-time snapshot in sync with the new identity fields.
		username := sess.Username
		if req.Username != "" {
			username = req.Username
		}
		email := sess.Email
		if req.Email != "" {
			email = req.Email
		}
		store.Update(sess.Token, username, email)

		responses.SendMessageResponse(w, http.StatusOK, "Profile updated successfully")
	}
}

func VerifyPassword(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var req struct {
			CurrentPassword string `json:"currentPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.CurrentPassword == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Current password is required")
			return
		}

		var hash string
		err := db.QueryRow("SELECT password_hash FROM users WHERE user_id = $1", sess.UserID).Scan(&hash)
		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			} else {
				log.Printf("Failed to fetch password hash for user %d: %v", sess.UserID, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to verify password")
			}
			return
		}

		match, err := credentials.Check(req.CurrentPassword, hash)
		if err != nil {
			log.Printf("Malformed password hash for user %d: %v", sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to verify password")
			return
		}
		if !match {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Incorrect password")
			return
		}

		responses.SendMessageResponse(w, http.StatusOK, "Password verified")
	}
}

func ChangePassword(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var req struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Current and new password are required")
			return
		}

		var hash string
		err := db.QueryRow("SELECT password_hash FROM users WHERE user_id = $1", sess.UserID).Scan(&hash)
		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			} else {
				log.Printf("Failed to fetch password hash for user %d: %v", sess.UserID, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to change password")
			}
			return
		}

		match, err := credentials.Check(req.CurrentPassword, hash)
		if err != nil {
			log.Printf("Malformed password hash for user %d: %v", sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to change password")
			return
		}
		if !match {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Incorrect current password")
			return
		}

		newHash, err := credentials.Hash(req.NewPassword)
		if err != nil {
			log.Printf("Failed to hash new password for user %d: %v", sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to change password")
			return
		}

		_, err = db.Exec("UPDATE users SET password_hash = $1 WHERE user_id = $2", newHash, sess.UserID)
		if err != nil {
			log.Printf("Failed to change password for user %d: %v", sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to change password")
			return
		}

		responses.SendMessageResponse(w, http.StatusOK, "Password changed successfully")
	}
}

// GetDeviceStatus returns the caller's most recently linked device, or null
// when no device is linked.
func GetDeviceStatus(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var device models.LinkedDevice
		err := db.QueryRow(`
			SELECT serial_number, device_name, status, battery_level
			FROM linked_devices WHERE user_id = $1
			ORDER BY linked_at DESC LIMIT 1
		`, sess.UserID).Scan(&device.SerialNumber, &device.DeviceName, &device.Status, &device.BatteryLevel)

		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"device": nil})
			} else {
				log.Printf("Failed to fetch device status for user %d: %v", sess.UserID, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch device status")
			}
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"device": device})
	}
}

func GetUserNotifications(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		rows, err := db.Query(`
			SELECT notification_id, user_id, message, created_at
			FROM notifications WHERE user_id = $1
			ORDER BY created_at DESC LIMIT 10
		`, sess.UserID)
		if err != nil {
			log.Printf("Failed to fetch notifications for user %d: %v", sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch notifications")
			return
		}
		defer rows.Close()

		notifications := []models.Notification{}
		for rows.Next() {
			var n models.Notification
			if err := rows.Scan(&n.NotificationID, &n.UserID, &n.Message, &n.CreatedAt); err != nil {
				log.Printf("Failed to scan notification row: %v", err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch notifications")
				return
			}
			notifications = append(notifications, n)
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
	}
}
