// Package fcm submits topic messages to Firebase Cloud Messaging over the HTTP v1 API.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/trendpush/trendpush/internal/provider/resilience"
	"github.com/trendpush/trendpush/internal/push"
)

const (
	// ProviderName identifies this push backend.
	ProviderName = "fcm"

	// Scope is the OAuth2 scope required to send messages.
	Scope = "https://www.googleapis.com/auth/firebase.messaging"

	// DefaultBaseURL is the FCM HTTP v1 API base URL.
	DefaultBaseURL = "https://fcm.googleapis.com/v1"
)

// ClientConfig holds configuration for the FCM client.
type ClientConfig struct {
	// ProjectID is the Firebase project id (required).
	ProjectID string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// HTTPClient must carry FCM credentials. See NewCredentialedHTTPClient.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client sends messages to FCM.
type Client struct {
	projectID  string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates an FCM client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("fcm: project id is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		projectID:  cfg.ProjectID,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

// NewCredentialedHTTPClient returns an HTTP client authorised for FCM and the
// project id of the credentials. With empty serviceAccountJSON it falls back to
// application default credentials.
func NewCredentialedHTTPClient(ctx context.Context, serviceAccountJSON []byte) (*http.Client, string, error) {
	var (
		creds *google.Credentials
		err   error
	)
	if len(serviceAccountJSON) > 0 {
		creds, err = google.CredentialsFromJSON(ctx, serviceAccountJSON, Scope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, Scope)
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading fcm credentials: %w", err)
	}

	return oauth2.NewClient(ctx, creds.TokenSource), creds.ProjectID, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type sendRequest struct {
	Message push.Message `json:"message"`
}

type sendResponse struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// APIError is a non-200 answer from FCM.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("fcm: unexpected status code %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fcm: %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Send submits msg and returns the FCM message name.
func (c *Client) Send(ctx context.Context, msg push.Message) (string, error) {
	body, err := json.Marshal(sendRequest{Message: msg})
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/messages:send", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Name == "" {
		return "", errors.New("fcm: response carried no message name")
	}

	c.logger.Debug().
		Str("topic", msg.Topic).
		Str("message_id", out.Name).
		Msg("fcm accepted message")

	return out.Name, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		apiErr.Status = er.Error.Status
		apiErr.Message = er.Error.Message
		return apiErr
	}

	apiErr.Message = http.StatusText(resp.StatusCode)
	return apiErr
}

// Ensure Client implements push.Sender.
var _ push.Sender = (*Client)(nil)
