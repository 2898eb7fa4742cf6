package ucenter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNoBaseURL       = errors.New("ucenter: no base url configured")
	ErrLoginInProgress = errors.New("ucenter: login already in progress")
	ErrNotLoggedIn     = errors.New("ucenter: not logged in")
	ErrDetached        = errors.New("ucenter: component detached")
)

// Config points the SDK at an account-center deployment.
type Config struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	AppID   string        `yaml:"app_id" toml:"app_id"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// Session is an authenticated account-center session.
type Session struct {
	AccountID string    `json:"account_id"`
	Account   string    `json:"account"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginRequest struct {
	RequestID string `json:"-"`
	AppID     string `json:"app_id"`
	Account   string `json:"account"`
	Password  string `json:"password"`
}

// APIError is a non-2xx answer from the account center.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ucenter: status %d: %s", e.Status, e.Message)
}

// Client talks to the account center. Implementations are called from
// background goroutines.
type Client interface {
	Login(ctx context.Context, req LoginRequest) (Session, error)
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a Client speaking JSON over HTTP to cfg.BaseURL.
func NewHTTPClient(cfg Config) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *httpClient) Login(ctx context.Context, req LoginRequest) (Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Session{}, fmt.Errorf("encode login: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/login", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", req.RequestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Session{}, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, fmt.Errorf("decode login response: %w", err)
	}
	return session, nil
}
