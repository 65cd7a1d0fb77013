package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kmathy/carlink/core/logger"
	"github.com/kmathy/carlink/core/model"
)

// ErrAuthExpired is returned when the API rejects the session token. The
// coordination layer surfaces it but does not remediate; token refresh is
// the auth package's concern.
var ErrAuthExpired = errors.New("authorization expired")

// StatusError reports a non-2xx API response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Code, e.Body)
}

// Authorizer sets the Authorization header on outgoing requests.
type Authorizer interface {
	SetAuthHeader(*http.Request) error
}

// Config defines the REST client parameters.
type Config struct {
	BaseURL string `json:"base_url"`
	// TimeoutSeconds bounds each request. Defaults to 30.
	TimeoutSeconds int `json:"timeout_seconds"`
}

func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	return nil
}

// Client talks to the vehicle service HTTP API. It implements the fetch and
// command-sending collaborator contracts of the coordinator.
type Client struct {
	base string
	http *http.Client
	auth Authorizer
	log  logger.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, auth Authorizer, log logger.Logger) *Client {
	cfg.SetDefaults()
	return &Client{
		base: cfg.BaseURL,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		auth: auth,
		log:  log,
	}
}

// Fetch retrieves the current data for one vehicle domain. The payload is
// returned raw; domain schemas are owned by the callers.
func (c *Client) Fetch(ctx context.Context, vin string, domain model.Domain) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/api/v2/%s/%s", c.base, domainPath(domain), vin)
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return body, nil
}

type operationAccepted struct {
	ID string `json:"id"`
}

// SendCommand issues a command and returns the operation id assigned by the
// backend. The API only acknowledges receipt: the outcome arrives later on
// the bus under this id.
func (c *Client) SendCommand(ctx context.Context, vin string, cmd model.CommandSpec) (string, error) {
	var payload io.Reader
	if cmd.Body != nil {
		b, err := json.Marshal(cmd.Body)
		if err != nil {
			return "", fmt.Errorf("encode command body: %w", err)
		}
		payload = bytes.NewReader(b)
	}
	url := fmt.Sprintf("%s/api/v1/vehicles/%s/%s", c.base, vin, cmd.Path)
	body, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return "", err
	}
	var accepted operationAccepted
	if err := json.Unmarshal(body, &accepted); err != nil {
		return "", fmt.Errorf("decode command response: %w", err)
	}
	if accepted.ID == "" {
		return "", fmt.Errorf("command response carries no operation id")
	}
	c.log.Debugf("command %s accepted for %s as operation %s", cmd.Operation, vin, accepted.ID)
	return accepted.ID, nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("authorize request: %w", err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuthExpired
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func domainPath(domain model.Domain) string {
	switch domain {
	case model.DomainInfo:
		return "garage/vehicles"
	case model.DomainStatus:
		return "vehicle-status"
	case model.DomainPositions:
		return "maps/positions"
	case model.DomainDrivingRange:
		return "vehicle-status/driving-range"
	default:
		return string(domain)
	}
}
