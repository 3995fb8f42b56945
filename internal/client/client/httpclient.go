package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/client/models"
	"github.com/dmitrijs2005/paymentapi/internal/common"
)

const basePath = "/api/AuthManagement"

const defaultTimeout = 10 * time.Second

// HTTPClient talks to the auth REST API. It keeps the current session in
// memory and refreshes it once when an authenticated call gets a 401.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session *models.Session
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

func NewHTTPClient(serverURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", serverURL)
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Session returns a copy of the current session, or nil.
func (c *HTTPClient) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *HTTPClient) SetSession(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.session = nil
		return
	}
	cp := *s
	c.session = &cp
}

func (c *HTTPClient) Register(ctx context.Context, username, email, password string) (string, error) {
	body := map[string]string{"email": email, "username": username, "password": password}
	res, err := c.do(ctx, http.MethodPost, basePath+"/Register", body, "")
	if err != nil {
		return "", err
	}
	return res.Messages, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	res, err := c.do(ctx, http.MethodPost, basePath+"/Login", body, "")
	if err != nil {
		return nil, err
	}

	c.SetSession(&models.Session{
		UserID:       res.UserID,
		Email:        email,
		AccessToken:  res.Token,
		RefreshToken: res.RefreshToken,
		UpdatedAt:    time.Now().UTC(),
	})
	return res, nil
}

// Refresh rotates the current token pair. The server only accepts this
// once the access token has expired.
func (c *HTTPClient) Refresh(ctx context.Context) (*AuthResult, error) {
	s := c.Session()
	if !s.Valid() {
		return nil, ErrNoSession
	}

	body := map[string]string{"token": s.AccessToken, "refreshToken": s.RefreshToken}
	res, err := c.do(ctx, http.MethodPost, basePath+"/RefreshToken", body, "")
	if err != nil {
		return nil, err
	}

	s.AccessToken = res.Token
	s.RefreshToken = res.RefreshToken
	s.UpdatedAt = time.Now().UTC()
	c.SetSession(s)
	return res, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	if err := c.authorized(ctx, http.MethodDelete, "/Logout/"); err != nil {
		return err
	}
	c.SetSession(nil)
	return nil
}

func (c *HTTPClient) Revoke(ctx context.Context) error {
	return c.authorized(ctx, http.MethodPost, "/Revoke/")
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// authorized calls a bearer-protected {id} endpoint for the session owner,
// refreshing the pair once if the access token is rejected.
func (c *HTTPClient) authorized(ctx context.Context, method, prefix string) error {
	s := c.Session()
	if !s.Valid() {
		return ErrNoSession
	}
	path := basePath + prefix + url.PathEscape(s.UserID)

	_, err := c.do(ctx, method, path, nil, s.AccessToken)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	if _, rerr := c.Refresh(ctx); rerr != nil {
		return err
	}
	_, err = c.do(ctx, method, path, nil, c.Session().AccessToken)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, token string) (*AuthResult, error) {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var res AuthResult
	decodeErr := json.NewDecoder(resp.Body).Decode(&res)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Errors: res.Errors}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !res.Success {
		return nil, &APIError{Status: resp.StatusCode, Errors: res.Errors}
	}
	return &res, nil
}
