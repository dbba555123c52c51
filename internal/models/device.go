package models

import "time"

type Device struct {
	DeviceID     int       `json:"device_id"`
	SerialNumber string    `json:"serial_number"`
	Status       string    `json:"status"`
	AddedAt      time.Time `json:"added_at"`
}

type LinkedDevice struct {
	LinkedDeviceID int       `json:"linked_device_id"`
	SerialNumber   string    `json:"serial_number"`
	DeviceName     string    `json:"device_name"`
	UserID         int       `json:"user_id"`
	Status         string    `json:"status"`
	BatteryLevel   *int      `json:"battery_level"`
	LinkedAt       time.Time `json:"linked_at"`
}

// AdminDevice is an inventory row joined with its link record, if any.
type AdminDevice struct {
	DeviceID       int        `json:"device_id"`
	SerialNumber   string     `json:"serial_number"`
	Status         string     `json:"status"`
	AddedAt        time.Time  `json:"added_at"`
	LinkedDeviceID *int       `json:"linked_device_id"`
	LinkedUserID   *int       `json:"linked_user_id"`
	DeviceName     *string    `json:"device_name"`
	LinkedAt       *time.Time `json:"linked_at"`
	Type           string     `json:"type"`
}

type LinkDeviceRequest struct {
	DeviceSerial string `json:"deviceSerial" validate:"required"`
	DeviceName   string `json:"deviceName" validate:"required"`
}

type Notification struct {
	NotificationID int       `json:"notification_id"`
	UserID         int       `json:"user_id"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}
