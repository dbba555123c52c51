package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"pathpal-api/internal/models"
	"pathpal-api/internal/responses"

	"github.com/gorilla/mux"
)

func GetUsers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.Query(`
			SELECT user_id, username, email, phone_number, user_type, created_at
			FROM users WHERE user_type != 'admin'
		`)
		if err != nil {
			log.Printf("Failed to fetch users: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch users")
			return
		}
		defer rows.Close()

		users := []models.User{}
		for rows.Next() {
			var u models.User
			err := rows.Scan(&u.UserID, &u.Username, &u.Email, &u.PhoneNumber, &u.UserType, &u.CreatedAt)
			if err != nil {
				log.Printf("Failed to scan user row: %v", err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch users")
				return
			}
			users = append(users, u)
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"users": users})
	}
}

// GetAdminDevices lists the inventory joined with link records. Rows with a
// link are tagged "linked", unclaimed stock is tagged "admin".
func GetAdminDevices(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.Query(`
			SELECT d.device_id, d.serial_number, d.status, d.added_at,
				ld.linked_device_id, ld.user_id, ld.device_name, ld.linked_at
			FROM devices d
			LEFT JOIN linked_devices ld ON d.serial_number = ld.serial_number
		`)
		if err != nil {
			log.Printf("Failed to fetch devices: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch devices")
			return
		}
		defer rows.Close()

		devices := []models.AdminDevice{}
		for rows.Next() {
			var d models.AdminDevice
			err := rows.Scan(&d.DeviceID, &d.SerialNumber, &d.Status, &d.AddedAt,
				&d.LinkedDeviceID, &d.LinkedUserID, &d.DeviceName, &d.LinkedAt)
			if err != nil {
				log.Printf("Failed to scan device row: %v", err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch devices")
				return
			}
			if d.LinkedDeviceID != nil {
				d.Type = "linked"
			} else {
				d.Type = "admin"
			}
			devices = append(devices, d)
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"devices": devices})
	}
}

func GetDeviceCount(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var unlinked, linked int

		err := db.QueryRow(`
			SELECT COUNT(*)
			FROM devices d
			LEFT JOIN linked_devices ld ON d.serial_number = ld.serial_number
			WHERE ld.serial_number IS NULL
		`).Scan(&unlinked)
		if err != nil {
			log.Printf("Failed to count unlinked devices: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch device count")
			return
		}

		err = db.QueryRow("SELECT COUNT(*) FROM linked_devices").Scan(&linked)
		if err != nil {
			log.Printf("Failed to count linked devices: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch device count")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"count": unlinked + linked})
	}
}

func AddDevice(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SerialNumber string `json:"serial_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.SerialNumber == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Serial number is required")
			return
		}

		var exists int
		err := db.QueryRow("SELECT 1 FROM devices WHERE serial_number = $1", req.SerialNumber).Scan(&exists)
		if err == nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Device already exists in system")
			return
		}
		if err != sql.ErrNoRows {
			log.Printf("Failed to check device %s: %v", req.SerialNumber, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to add device")
			return
		}

		err = db.QueryRow("SELECT 1 FROM linked_devices WHERE serial_number = $1", req.SerialNumber).Scan(&exists)
		if err == nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Device is already linked to a user")
			return
		}
		if err != sql.ErrNoRows {
			log.Printf("Failed to check device link %s: %v", req.SerialNumber, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to add device")
			return
		}

		_, err = db.Exec("INSERT INTO devices (serial_number) VALUES ($1)", req.SerialNumber)
		if err != nil {
			if msg, ok := conflictMessage(err); ok {
				responses.SendErrorResponse(w, http.StatusBadRequest, msg)
				return
			}
			log.Printf("Failed to add device %s: %v", req.SerialNumber, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to add device")
			return
		}

		responses.SendMessageResponse(w, http.StatusCreated, "Device added successfully")
	}
}

func UpdateDeviceStatus(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID, err := strconv.Atoi(mux.Vars(r)["deviceId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid device ID")
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.Status == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Status is required")
			return
		}

		result, err := db.Exec("UPDATE devices SET status = $1 WHERE device_id = $2", req.Status, deviceID)
		if err != nil {
			log.Printf("Failed to update device %d: %v", deviceID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update device")
			return
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			responses.SendErrorResponse(w, http.StatusNotFound, "Device not found")
			return
		}

		responses.SendMessageResponse(w, http.StatusOK, "Device status updated")
	}
}

func GetAdminNotifications(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Admin notifications are not produced yet; keep the shape stable for
		// the dashboard.
		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"notifications": []models.Notification{},
		})
	}
}
