package device

import "context"

// TokenRegistry persists one delivery token per user.
type TokenRegistry interface {
	// Put stores token as the user's current token, replacing any previous one.
	Put(ctx context.Context, token *DeviceToken) error

	// Get returns the user's current token or ErrTokenNotFound.
	Get(ctx context.Context, userID string) (*DeviceToken, error)

	// Delete removes the user's token. Deleting a missing token is not an error.
	Delete(ctx context.Context, userID string) error
}
