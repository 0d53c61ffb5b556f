package mobile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/trendpush/trendpush/internal/provider/resilience"
)

// APIRegistryConfig holds configuration for an APIRegistry.
type APIRegistryConfig struct {
	// BaseURL of the API, e.g. https://api.example.com.
	BaseURL string

	// AccessToken is sent as the bearer token.
	AccessToken string
}

// APIRegistry is a TokenWriter that calls PUT /v1/users/{userId}/fcm-token.
type APIRegistry struct {
	baseURL string
	client  *resilience.Client
}

// NewAPIRegistry creates an APIRegistry.
func NewAPIRegistry(ctx context.Context, cfg APIRegistryConfig) (*APIRegistry, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("mobile: api base url is required")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
		TokenType:   "Bearer",
	}))

	clientCfg := resilience.DefaultClientConfig("token-api")
	clientCfg.HTTPClient = httpClient

	return &APIRegistry{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  resilience.NewClient(clientCfg),
	}, nil
}

// StatusError is a non-204 answer from the token API.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("token api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("token api: status %d: %s", e.StatusCode, e.Detail)
}

// SetToken implements TokenWriter.
func (r *APIRegistry) SetToken(ctx context.Context, userID, token string) error {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return err
	}

	endpoint := r.baseURL + "/v1/users/" + url.PathEscape(userID) + "/fcm-token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}

	var problem struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&problem)
	return &StatusError{StatusCode: resp.StatusCode, Detail: problem.Detail}
}

var _ TokenWriter = (*APIRegistry)(nil)
