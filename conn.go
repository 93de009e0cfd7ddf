package polyadicqml

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultAPIURL is the default IBM quantum runtime API endpoint URL
	DefaultAPIURL = "https://api.quantum-computing.ibm.com/runtime"
	// DefaultRetries is the default number of retries every request gets
	DefaultRetries = 5
	// DefaultTimeout is the default timeout for each request
	DefaultTimeout = 30 * time.Second
)

type dialOptions struct {
	token string
	url   string

	retries int
	timeout time.Duration
}

// DialOption configures how the connection works
type DialOption func(*dialOptions)

// WithToken configures the connection to authenticate with the given API token
func WithToken(token string) DialOption {
	return func(options *dialOptions) {
		options.token = token
	}
}

// WithAPIURL configures the connection to use the provided url for the API endpoints
func WithAPIURL(url string) DialOption {
	return func(options *dialOptions) {
		options.url = url
	}
}

// WithRetries configures the number of retries performed for any request
func WithRetries(retries int) DialOption {
	return func(options *dialOptions) {
		options.retries = retries
	}
}

// WithTimeout configures the timeout for each request
func WithTimeout(timeout time.Duration) DialOption {
	return func(options *dialOptions) {
		options.timeout = timeout
	}
}

// Conn is a representation of a connection to the quantum runtime API
type Conn struct {
	dopts dialOptions
	c     *http.Client
}

// Dial takes a list of DialOptions and returns a connection to the runtime API
func Dial(options ...DialOption) (*Conn, error) {
	c := &Conn{
		c: &http.Client{},
	}

	for _, option := range options {
		option(&c.dopts)
	}

	if c.dopts.token == "" {
		return nil, newConfigError(
			"missing API token",
			"Dial requires WithToken; session management is left to the caller",
		)
	}

	// Set defaults
	if c.dopts.url == "" {
		c.dopts.url = DefaultAPIURL
	}
	if c.dopts.retries == 0 {
		c.dopts.retries = DefaultRetries
	}
	if c.dopts.timeout == 0 {
		c.dopts.timeout = DefaultTimeout
	}
	c.c.Timeout = c.dopts.timeout

	return c, nil
}

// newRequest is simply just a helper for generating requests
func (c *Conn) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/%s", c.dopts.url, path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.dopts.token)
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decode is simply a helper for decoding json
func (c *Conn) decode(r io.Reader, i interface{}) (err error) {
	err = json.NewDecoder(r).Decode(i)
	return
}

// do runs a http request, retrying until a 2xx response or the retries
// run out
func (c *Conn) do(req *http.Request) (resp *http.Response, err error) {
	retries := c.dopts.retries
	for retries > 0 {
		resp, err = c.c.Do(req)
		if err != nil {
			return
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return
		}
		resp.Body.Close()

		retries--
	}

	err = fmt.Errorf("failed to get proper response from backend after %d tries: %s", c.dopts.retries, resp.Status)
	return
}

// post is a convenience wrapper around a POST request
func (c *Conn) post(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// get is a convenience wrapper around a GET request
func (c *Conn) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}
