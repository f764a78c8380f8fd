// Package whttp wraps outbound provider HTTP calls: default headers, per-client
// timeout, transparent retries on transport failures, and mapping of anything
// that never produced a structured response to a fetcherr.NetworkError.
package whttp

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/foodscope/foodscope/pkg/fetcherr"
)

const defaultUserAgent = "foodscope/2.0 (+https://github.com/foodscope/foodscope)"

// Header is a single request header.
type Header struct {
	Name  string
	Value string
}

// Request describes one outbound call. When Form is set the body is sent
// form-encoded and Content-Type is set accordingly; Body is used otherwise.
type Request struct {
	Method  string
	URL     string
	Headers []Header
	Form    url.Values
	Body    string
}

// Response is the raw result of a completed HTTP exchange.
type Response struct {
	StatusCode int
	Body       string
}

// Client issues requests with a fixed timeout. Construct one per provider:
// a known-slow aggregator gets a longer timeout than a fast API.
type Client struct {
	inner *retryablehttp.Client
}

// NewClient builds a Client with the given request timeout. Retries are
// limited to transport-level failures; HTTP error statuses are returned to
// the caller untouched so adapters can map them to structured errors.
func NewClient(timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Retry only when no response arrived at all. Status codes,
		// including 429 and 5xx, are the adapters' business.
		return err != nil, nil
	}
	return &Client{inner: rc}
}

// Do sends the request. Timeouts, aborts and connection failures come back as
// *fetcherr.NetworkError; any received response, whatever its status, is
// returned as a Response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	contentType := ""
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	r, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &fetcherr.NetworkError{Op: req.Method, URL: req.URL, Err: err}
	}

	r.Header.Set("User-Agent", defaultUserAgent)
	r.Header.Set("Accept", "application/json")
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	for _, h := range req.Headers {
		r.Header.Set(h.Name, h.Value)
	}

	resp, err := c.inner.Do(r)
	if err != nil {
		return nil, &fetcherr.NetworkError{Op: req.Method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fetcherr.NetworkError{Op: req.Method, URL: req.URL, Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(bodyBytes),
	}, nil
}
