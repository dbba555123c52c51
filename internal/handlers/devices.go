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

// CheckDeviceLink reports whether a serial number exists in inventory and is
// still free to be claimed.
func CheckDeviceLink(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serialNumber := mux.Vars(r)["serialNumber"]

		var exists int
		err := db.QueryRow("SELECT 1 FROM devices WHERE serial_number = $1", serialNumber).Scan(&exists)
		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
					"success":  false,
					"message":  "Device does not exist in the system",
					"isLinked": false,
					"canLink":  false,
				})
			} else {
				log.Printf("Failed to check device %s: %v", serialNumber, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to check device status")
			}
			return
		}

		err = db.QueryRow("SELECT 1 FROM linked_devices WHERE serial_number = $1", serialNumber).Scan(&exists)
		if err == nil {
			responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
				"success":  false,
				"message":  "Device is already linked to another user",
				"isLinked": true,
				"canLink":  false,
			})
			return
		}
		if err != sql.ErrNoRows {
			log.Printf("Failed to check device link %s: %v", serialNumber, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to check device status")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message":  "Device exists and can be linked",
			"isLinked": false,
			"canLink":  true,
		})
	}
}

func GetLinkedDevices(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		rows, err := db.Query(`
			SELECT linked_device_id, serial_number, device_name, user_id, status, battery_level, linked_at
			FROM linked_devices WHERE user_id = $1
		`, sess.UserID)
		if err != nil {
			log.Printf("Failed to fetch devices for user %d: %v", sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch devices")
			return
		}
		defer rows.Close()

		devices := []models.LinkedDevice{}
		for rows.Next() {
			var d models.LinkedDevice
			err := rows.Scan(&d.LinkedDeviceID, &d.SerialNumber, &d.DeviceName,
				&d.UserID, &d.Status, &d.BatteryLevel, &d.LinkedAt)
			if err != nil {
				log.Printf("Failed to scan device row: %v", err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch devices")
				return
			}
			devices = append(devices, d)
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{"devices": devices})
	}
}

// LinkDevice claims a serial number for the caller. The pre-checks give
// friendly errors; the unique constraint on serial_number is what actually
// rules out double-linking under concurrency.
func LinkDevice(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		var req models.LinkDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.DeviceSerial == "" || req.DeviceName == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "All fields are required")
			return
		}

		var exists int
		err := db.QueryRow("SELECT 1 FROM devices WHERE serial_number = $1", req.DeviceSerial).Scan(&exists)
		if err != nil {
			if err == sql.ErrNoRows {
				responses.SendErrorResponse(w, http.StatusBadRequest, "Device does not exist in the system")
			} else {
				log.Printf("Failed to check device %s: %v", req.DeviceSerial, err)
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to link device")
			}
			return
		}

		err = db.QueryRow("SELECT 1 FROM linked_devices WHERE serial_number = $1", req.DeviceSerial).Scan(&exists)
		if err == nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Device is already linked to another user")
			return
		}
		if err != sql.ErrNoRows {
			log.Printf("Failed to check device link %s: %v", req.DeviceSerial, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to link device")
			return
		}

		_, err = db.Exec(`
			INSERT INTO linked_devices (serial_number, device_name, user_id)
			VALUES ($1, $2, $3)
		`, req.DeviceSerial, req.DeviceName, sess.UserID)
		if err != nil {
			if msg, ok := conflictMessage(err); ok {
				responses.SendErrorResponse(w, http.StatusBadRequest, msg)
				return
			}
			log.Printf("Failed to link device %s for user %d: %v", req.DeviceSerial, sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to link device")
			return
		}

		responses.SendMessageResponse(w, http.StatusCreated, "Device linked successfully")
	}
}

func UnlinkDevice(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())

		deviceID, err := strconv.Atoi(mux.Vars(r)["deviceId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid device ID")
			return
		}

		result, err := db.Exec(
			"DELETE FROM linked_devices WHERE linked_device_id = $1 AND user_id = $2",
			deviceID, sess.UserID)
		if err != nil {
			log.Printf("Failed to unlink device %d for user %d: %v", deviceID, sess.UserID, err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete device")
			return
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			responses.SendErrorResponse(w, http.StatusNotFound, "Device not found")
			return
		}

		responses.SendMessageResponse(w, http.StatusOK, "Device deleted successfully")
	}
}
