package models

// NotificationAccepted is the 200 body of POST /v1/notifications/trending.
type NotificationAccepted struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// NotificationError is the error body of POST /v1/notifications/trending.
type NotificationError struct {
	Error string `json:"error"`
}

// InvalidNotificationMessage is returned for bodies that fail validation.
const InvalidNotificationMessage = "Invalid notification data"
