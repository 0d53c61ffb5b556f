// Package push builds push payloads for trend events and submits them to a push backend.
package push

import (
	"github.com/trendpush/trendpush/internal/trend"
)

// Data block keys read by the mobile receiver.
const (
	DataKeyContentType = "contentType"
	DataKeyContentID   = "contentId"
	DataKeyTeam        = "team"
)

// Notification is the human-readable part of a push.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Message is the payload submitted to the push backend for one event.
// Its JSON form is the FCM v1 message shape for topic delivery.
type Message struct {
	Topic        string            `json:"topic"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data"`
}

// BuildMessage builds the push payload for an event addressed to an audience.
func BuildMessage(event *trend.Event, audience trend.Audience) Message {
	return Message{
		Topic: audience.Topic(),
		Notification: Notification{
			Title: event.Title,
			Body:  event.Message,
		},
		Data: map[string]string{
			DataKeyContentType: event.ContentType,
			DataKeyContentID:   event.ContentID,
			DataKeyTeam:        event.Team,
		},
	}
}
