package device

import (
	"context"
	"sync"
)

// InMemoryRegistry is an in-memory implementation of TokenRegistry.
// This is intended for testing and local runs.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	tokens map[string]DeviceToken // keyed by TokenPath
}

// NewInMemoryRegistry creates a new in-memory token registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		tokens: make(map[string]DeviceToken),
	}
}

// Put stores the token, overwriting any previous one.
func (r *InMemoryRegistry) Put(_ context.Context, token *DeviceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[TokenPath(token.UserID)] = *token
	return nil
}

// Get retrieves the user's token.
func (r *InMemoryRegistry) Get(_ context.Context, userID string) (*DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[TokenPath(userID)]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &token, nil
}

// Delete removes the user's token.
func (r *InMemoryRegistry) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, TokenPath(userID))
	return nil
}

// Len returns the number of stored tokens.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
