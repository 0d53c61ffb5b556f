package resilience

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the backend while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the breaker-protected HTTP client.
type ClientConfig struct {
	// Name identifies the backend.
	Name string

	// Timeout applies to each HTTP call. Default: 10 seconds.
	Timeout time.Duration

	// HTTPClient is the underlying client, e.g. one carrying OAuth2 credentials.
	// If nil, a plain client is used.
	HTTPClient *http.Client

	// CircuitBreaker overrides DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultClientConfig returns defaults for a named backend.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:           name,
		Timeout:        10 * time.Second,
		CircuitBreaker: &cb,
	}
}

// Client is an HTTP client guarded by a circuit breaker.
// Each request is attempted at most once.
type Client struct {
	name           string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]

	mu            sync.RWMutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	var httpClient http.Client
	if cfg.HTTPClient != nil {
		httpClient = *cfg.HTTPClient
	}
	httpClient.Timeout = cfg.Timeout

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	return &Client{
		name:           cfg.Name,
		httpClient:     &httpClient,
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
	}
}

// Name returns the backend name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req through the circuit breaker.
// 5xx and 429 responses count as failures for the breaker but are still
// returned to the caller, who owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
		r, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})

	switch {
	case err == nil:
		c.recordSuccess()
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.recordFailure(ErrCircuitOpen)
		return nil, ErrCircuitOpen
	}

	c.recordFailure(err)

	var serverErr *ServerError
	if errors.As(err, &serverErr) && resp != nil {
		return resp, nil
	}
	return nil, err
}

// ServerError marks a response the breaker counts as a failure.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current breaker counts.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}

func (c *Client) recordSuccess() {
	now := time.Now()
	c.mu.Lock()
	c.lastSuccessAt = &now
	c.mu.Unlock()
}

func (c *Client) recordFailure(err error) {
	now := time.Now()
	c.mu.Lock()
	c.lastFailureAt = &now
	c.lastError = err.Error()
	c.mu.Unlock()
}

// Health returns a snapshot of the backend health.
func (c *Client) Health() *BackendHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &BackendHealth{
		Name:          c.name,
		CircuitState:  c.circuitBreaker.State(),
		Counts:        c.circuitBreaker.Counts(),
		LastSuccessAt: c.lastSuccessAt,
		LastFailureAt: c.lastFailureAt,
		LastError:     c.lastError,
	}
}
