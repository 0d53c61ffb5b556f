// Package device stores the current push delivery token of each user.
package device

import (
	"errors"
	"time"
)

// Errors.
var (
	ErrTokenNotFound = errors.New("device token not found")
	ErrInvalidToken  = errors.New("invalid device token")
	ErrPersistence   = errors.New("device token persistence failed")
)

// DeviceToken is the current delivery token of a user. A user has at most one.
type DeviceToken struct {
	UserID    string
	Token     string
	UpdatedAt time.Time
}

// TokenLast4 returns the last 4 characters of the token for display purposes.
func (t *DeviceToken) TokenLast4() string {
	if len(t.Token) < 4 {
		return t.Token
	}
	return t.Token[len(t.Token)-4:]
}

// TokenPath returns the storage key of a user's token.
func TokenPath(userID string) string {
	return "Users/" + userID + "/fcmToken"
}
