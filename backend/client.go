// Package backend is the JSON-over-HTTP client for the Bookify API. Every
// call carries the backend session cookies of the browser session it serves.
package backend

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
	"time"
)

// ErrUnauthenticated is returned when the backend has no valid session for
// the supplied credentials.
var ErrUnauthenticated = errors.New("backend: not authenticated")

// StatusError is any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Credentials are the backend cookies held by one browser session.
type Credentials []*http.Cookie

// Encode flattens the cookies into name=value pairs for session storage.
func (c Credentials) Encode() []string {
	out := make([]string, 0, len(c))
	for _, ck := range c {
		out = append(out, ck.Name+"="+ck.Value)
	}
	return out
}

// DecodeCredentials is the inverse of Encode. Malformed pairs are skipped.
func DecodeCredentials(pairs []string) Credentials {
	out := make(Credentials, 0, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	return out
}

// Header renders the credentials as a Cookie header value.
func (c Credentials) Header() string {
	parts := make([]string, 0, len(c))
	for _, ck := range c {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

// Client talks to one backend base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for baseURL, e.g. http://localhost:8000.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

// URL resolves a backend path against the base URL.
func (c *Client) URL(path string) string {
	return c.base.String() + path
}

// WebSocketURL is URL with the scheme switched to ws or wss.
func (c *Client) WebSocketURL(path string) string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String() + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, creds Credentials, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for _, ck := range creds {
		req.AddCookie(ck)
	}
	return req, nil
}

// do sends req and fails on non-2xx responses. The caller closes the body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", req.Method, req.URL.Path, err)
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
	return nil, &StatusError{
		Method: req.Method,
		Path:   req.URL.Path,
		Code:   res.StatusCode,
		Body:   strings.TrimSpace(string(msg)),
	}
}

// GetJSON decodes the response of GET path into out.
func (c *Client) GetJSON(ctx context.Context, path string, creds Credentials, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, creds, nil)
	if err != nil {
		return err
	}
	res, err := c.do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decoding %s: %w", path, err)
	}
	return nil
}

// SendJSON sends in as a JSON body and decodes the response into out when
// out is non-nil.
func (c *Client) SendJSON(ctx context.Context, method, path string, creds Credentials, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encoding %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, creds, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decoding %s: %w", path, err)
	}
	return nil
}

// Stream opens GET path and returns the raw response for the caller to copy
// and close. Used for file downloads.
func (c *Client) Stream(ctx context.Context, path string, creds Credentials) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, creds, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Del("Accept")
	return c.do(req)
}

// Upload posts a pre-encoded body, such as a multipart form, and discards
// the response.
func (c *Client) Upload(ctx context.Context, path string, creds Credentials, contentType string, body io.Reader) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, creds, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	res, err := c.do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	return nil
}
