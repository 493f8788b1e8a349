// Package erpapi is the typed client for the upstream construction-ERP REST
// API: the login and identity endpoints plus the per-module data endpoints
// the dashboards proxy through.
package erpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the upstream ERP API at a single configured base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client. The timeout bounds every upstream call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type remoteError struct {
	Message string `json:"message"`
}

// Login exchanges credentials for a bearer token and the user record.
func (c *Client) Login(ctx context.Context, email, password string) (string, *User, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", nil, fmt.Errorf("erpapi: marshal login: %w", err)
	}
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", nil, bytes.NewReader(body), &out); err != nil {
		return "", nil, err
	}
	if out.Token == "" {
		return "", nil, fmt.Errorf("erpapi: login: empty token: %w", ErrRemote)
	}
	return out.Token, &out.User, nil
}

// Identity maps a bearer token to the authenticated user.
func (c *Client) Identity(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile updates the self-service profile fields of the acting user.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*User, error) {
	body, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("erpapi: marshal profile: %w", err)
	}
	var out User
	if err := c.do(ctx, http.MethodPut, "/users/me", token, nil, bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns the users an impersonation-capable role may select from.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users", token, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchModule lists a dashboard module's rows scoped to one user id.
func (c *Client) FetchModule(ctx context.Context, token, module, userID string) (json.RawMessage, error) {
	query := url.Values{"user_id": {userID}}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/"+module, token, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateItem creates a row in a dashboard module on behalf of one user id.
func (c *Client) CreateItem(ctx context.Context, token, module, userID string, payload json.RawMessage) (json.RawMessage, error) {
	query := url.Values{"user_id": {userID}}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/"+module, token, query, bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateItem updates one row in a dashboard module.
func (c *Client) UpdateItem(ctx context.Context, token, module, itemID string, payload json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/"+module+"/"+itemID, token, nil, bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteItem removes one row from a dashboard module.
func (c *Client) DeleteItem(ctx context.Context, token, module, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/"+module+"/"+itemID, token, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body io.Reader, out any) error {
	op := "erpapi: " + method + " " + path
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// A context cancelled by the caller is not an upstream outage.
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", op, context.Canceled)
		}
		return transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote remoteError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&remote)
		return statusError(op, resp.StatusCode, remote.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
