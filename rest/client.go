// Package rest implements the Ultimate64 HTTP control protocol: the
// /v1 API exposed on the device's control port, covering identification,
// machine control, runners, drive mounts, configuration, and stream
// start/stop. Authentication is a per-request X-Password header.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// DefaultTimeout bounds every control request unless the caller's context
// expires first.
const DefaultTimeout = 5 * time.Second

// Client talks to one device's control port. It is safe for concurrent
// use; the command queue serializes calls where ordering matters.
type Client struct {
	host     string // host[:port], port 80 assumed when absent
	password string
	http     *http.Client
	log      *slog.Logger
}

// NewClient creates a Client for the device at host. An empty password
// disables the X-Password header.
func NewClient(host, password string, opts ...func(*Client)) *Client {
	c := &Client{
		host:     host,
		password: password,
		http:     &http.Client{Timeout: DefaultTimeout},
		log:      slog.With("component", "rest", "device", host),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) func(*Client) {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client, used by tests to
// point at an httptest server transport.
func WithHTTPClient(h *http.Client) func(*Client) {
	return func(c *Client) {
		c.http = h
	}
}

// Host returns the device address the client was created with.
func (c *Client) Host() string {
	return c.host
}

// DeviceInfo is the response of GET /v1/info, used as the identification
// handshake when a session connects.
type DeviceInfo struct {
	Product         string `json:"product"`
	FirmwareVersion string `json:"firmware_version"`
	Hostname        string `json:"hostname"`
	UniqueID        string `json:"unique_id"`
	CoreVersion     string `json:"core_version"`
}

// Info performs the identification handshake.
func (c *Client) Info(ctx context.Context) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.getJSON(ctx, "/v1/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Version returns the API version string from GET /v1/version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/v1/version", &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

func (c *Client) baseURL() string {
	host := c.host
	if !strings.Contains(host, ":") {
		host += ":80"
	}
	return "http://" + host
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.password != "" {
		req.Header.Set("X-Password", c.password)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrUnauthorized
	case resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, &ProtocolError{Op: method + " " + path, Status: resp.StatusCode}
	}
	return resp, nil
}

// put issues a PUT with no body and discards the response body. Most
// device commands follow this shape.
func (c *Client) put(ctx context.Context, path string, query url.Values) error {
	resp, err := c.do(ctx, http.MethodPut, path, query, nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Op: "GET " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// classify maps transport-level failures onto the package sentinels so
// the session can distinguish a dead device from a slow one.
func classify(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrRefused, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
