package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rexlx/bookify/viewer"
)

// Login posts the form-encoded credentials and returns the session cookies
// the backend set.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", nil, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := c.do(req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusBadRequest) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	creds := Credentials(res.Cookies())
	if len(creds) == 0 {
		return nil, fmt.Errorf("backend: login returned no session cookie")
	}
	return creds, nil
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. The caller logs in afterwards.
func (c *Client) Register(ctx context.Context, r Registration) error {
	return c.SendJSON(ctx, http.MethodPost, "/auth/register", nil, r, nil)
}

// Logout asks the backend to drop the session.
func (c *Client) Logout(ctx context.Context, creds Credentials) error {
	return c.SendJSON(ctx, http.MethodPost, "/auth/logout", creds, nil, nil)
}

// Profile fetches and normalizes the viewer behind creds. Any 401 or 403
// means there is no viewer.
func (c *Client) Profile(ctx context.Context, creds Credentials) (*viewer.Viewer, error) {
	if len(creds) == 0 {
		return nil, ErrUnauthenticated
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/users/profile", creds, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.do(req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("backend: reading profile: %w", err)
	}
	return viewer.Decode(body)
}
