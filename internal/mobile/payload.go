// Package mobile models the receiving side of a trend push: it turns a delivered
// payload into a local notification with a deep link, and keeps the device's
// delivery token registered.
package mobile

import (
	"encoding/json"
	"fmt"
)

// Payload is a push as delivered to the device.
// Notification is nil when the push carried no notification block,
// Data is nil when it carried no data block.
type Payload struct {
	Notification *PayloadNotification `json:"notification,omitempty"`
	Data         map[string]string    `json:"data,omitempty"`
}

// PayloadNotification is the human-readable block of a push.
type PayloadNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Data block keys.
const (
	DataContentType = "contentType"
	DataContentID   = "contentId"
	DataTeam        = "team"
	DataTitle       = "title"
	DataMessage     = "message"
)

// ParsePayload decodes a delivered payload. Both the bare form and the FCM
// envelope {"message": {...}} are accepted.
func ParsePayload(data []byte) (Payload, error) {
	var envelope struct {
		Message *Payload `json:"message"`
		Payload
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Payload{}, fmt.Errorf("decoding payload: %w", err)
	}
	if envelope.Message != nil {
		return *envelope.Message, nil
	}
	return envelope.Payload, nil
}
