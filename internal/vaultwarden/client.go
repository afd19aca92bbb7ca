package vaultwarden

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Admin API endpoints.
const (
	LoginPath       = "/admin"
	UsersPath       = "/admin/users"
	DiagnosticsPath = "/admin/diagnostics/config"
)

// UserAgent is sent with every upstream request.
var UserAgent = "vaultstats/dev"

// Client talks to the Vaultwarden admin interface.
type Client struct {
	resty  *resty.Client
	logger *zap.Logger
}

// NewClient creates a client for the admin interface at baseURL.
// Every request is bounded by timeout and is never retried.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", UserAgent).
		SetRetryCount(0).
		SetCookieJar(nil).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(_ *http.Request, _ []*http.Request) error {
			// The login endpoint answers with a redirect that carries the session cookie.
			return http.ErrUseLastResponse
		}))

	return &Client{
		resty:  r,
		logger: logger.Named("vaultwarden"),
	}
}

// GetRestyClient returns the wrapped resty client.
func (c *Client) GetRestyClient() *resty.Client {
	return c.resty
}

// BaseURL returns the admin server address requests are sent to.
func (c *Client) BaseURL() string {
	return c.resty.BaseURL
}

// Authenticate logs in with the admin secret and returns the session credential.
// The returned credential has no expiry set; callers own its lifetime.
func (c *Client) Authenticate(ctx context.Context, secret string) (*Credential, error) {
	if secret == "" {
		return nil, &ConfigError{Key: "ADMIN_TOKEN"}
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetFormData(map[string]string{"token": secret}).
		Post(LoginPath)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	status := resp.StatusCode()
	if status != http.StatusOK && status != http.StatusFound {
		c.logger.Warn("Admin login rejected", zap.Int("status", status))
		return nil, &AuthError{StatusCode: status}
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookieName && cookie.Value != "" {
			c.logger.Debug("Admin login succeeded", zap.Int("status", status))
			return &Credential{Name: cookie.Name, Value: cookie.Value}, nil
		}
	}

	return nil, &AuthError{StatusCode: status, Err: ErrMissingSessionToken}
}

// ListUsers fetches the full user list.
func (c *Client) ListUsers(ctx context.Context, cred *Credential) ([]UserRecord, error) {
	body, err := c.get(ctx, cred, UsersPath, "list users")
	if err != nil {
		return nil, err
	}

	var users []UserRecord
	if err := sonic.Unmarshal(body, &users); err != nil {
		return nil, &FetchError{Op: "list users", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return users, nil
}

// Diagnostics fetches the server's diagnostic configuration.
func (c *Client) Diagnostics(ctx context.Context, cred *Credential) (map[string]any, error) {
	body, err := c.get(ctx, cred, DiagnosticsPath, "fetch diagnostics")
	if err != nil {
		return nil, err
	}

	var diag map[string]any
	if err := sonic.Unmarshal(body, &diag); err != nil {
		return nil, &FetchError{Op: "fetch diagnostics", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return diag, nil
}

// get issues an authenticated GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, cred *Credential, path string, op string) ([]byte, error) {
	if cred == nil {
		return nil, &FetchError{Op: op, Err: ErrMissingSessionToken}
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetCookie(&http.Cookie{Name: cred.Name, Value: cred.Value}).
		Get(path)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &FetchError{Op: op, StatusCode: resp.StatusCode()}
	}

	return resp.Body(), nil
}
