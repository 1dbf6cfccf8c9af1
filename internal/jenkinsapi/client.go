// Package jenkinsapi talks to the CI server's remote access API, the
// /api/json endpoints every model object exposes.
package jenkinsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
)

// VersionHeader carries the server version on every response.
const VersionHeader = "X-Jenkins"

// Response represents an HTTP response from the API.
type Response struct {
	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	StatusCode int

	// Body contains the raw response body bytes.
	Body []byte

	// Headers contains the response headers.
	Headers http.Header
}

// JSON unmarshals the response body into the provided value.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Result parses the body lazily with gjson.
//
//	offline := resp.Result().Get("offline").Bool()
func (r *Response) Result() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// String returns the response body as a string.
func (r *Response) String() string {
	return string(r.Body)
}

// StatusError is returned by Get and PostForm for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Client sends requests relative to the server's root URL.
type Client struct {
	baseURL string
	aliases []string
	headers map[string]string
	client  *http.Client
}

// NewClient creates a client for the server at baseURL. A trailing slash is
// optional.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: make(map[string]string),
		client:  &http.Client{},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL + "/"
}

// SetHeader sets a header that will be included in all subsequent requests.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetBasicAuth authenticates with a user name and API token.
func (c *Client) SetBasicAuth(user, token string) {
	req := &http.Request{Header: http.Header{}}
	req.SetBasicAuth(user, token)
	c.headers["Authorization"] = req.Header.Get("Authorization")
}

// AddAlias makes absolute URLs under prefix resolve against the base URL.
// A browser in a container reaches the server under a different host than
// the test process does.
func (c *Client) AddAlias(prefix string) {
	c.aliases = append(c.aliases, strings.TrimSuffix(prefix, "/")+"/")
}

func (c *Client) resolve(path string) string {
	for _, alias := range c.aliases {
		if strings.HasPrefix(path, alias) {
			return c.baseURL + "/" + strings.TrimPrefix(path, alias)
		}
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Call makes an HTTP request and returns the response.
//
// The path is joined to the base URL unless it is already absolute. The body
// is JSON-encoded when non-nil. HTTP error status codes are NOT treated as
// errors - check resp.StatusCode instead.
func (c *Client) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req)
}

// PostForm submits url-encoded form values, the way the server's own forms do.
func (c *Client) PostForm(ctx context.Context, path string, values url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path), strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return resp, &StatusError{Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}

// Get fetches path and parses the JSON body. Non-2xx is a *StatusError.
func (c *Client) Get(ctx context.Context, path string) (gjson.Result, error) {
	resp, err := c.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, &StatusError{Method: http.MethodGet, URL: c.resolve(path), StatusCode: resp.StatusCode}
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, fmt.Errorf("GET %s: response is not valid JSON", c.resolve(path))
	}
	return resp.Result(), nil
}

// Version reads the server version from the root URL's response headers.
func (c *Client) Version(ctx context.Context) (*semver.Version, error) {
	resp, err := c.Call(ctx, http.MethodGet, "api/json", nil)
	if err != nil {
		return nil, err
	}
	raw := resp.Headers.Get(VersionHeader)
	if raw == "" {
		return nil, fmt.Errorf("response from %s carries no %s header", c.baseURL, VersionHeader)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server version %q: %w", raw, err)
	}
	return v, nil
}
