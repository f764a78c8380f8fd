package fatsecret

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/foodscope/foodscope/pkg/fetcherr"
	"github.com/foodscope/foodscope/pkg/whttp"
)

const (
	// Tokens are treated as expired this long before their real expiry so
	// an in-flight request never crosses the boundary.
	tokenExpirySlack = 60 * time.Second

	tokenRetryAttempts = 3
)

// accessToken returns a valid bearer token, refreshing the cached one when
// expired. The mutex serializes concurrent refreshes. Transient acquisition
// failures are retried with exponential backoff; an explicit credential
// rejection is fatal and returned immediately.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	var lastErr error
	for attempt := 0; attempt < tokenRetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		token, ttl, err := c.fetchToken(ctx)
		if err == nil {
			c.token = token
			c.tokenExp = time.Now().Add(ttl - tokenExpirySlack)
			return token, nil
		}
		if fetcherr.IsCode(err, fetcherr.CodeAuthFailed) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// InvalidateToken drops the cached token so the next call re-authenticates.
// Called on a 401 from the API endpoint.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.tokenExp = time.Time{}
}

// fetchToken performs one OAuth2 client-credentials exchange: form-encoded
// POST with Basic auth, returning the access token and its lifetime.
func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	if !c.limiter.Allow("token") {
		return "", 0, fetcherr.NewAPIError(http.StatusTooManyRequests, fetcherr.CodeRateLimitedLocal,
			"local fatsecret token budget exhausted")
	}

	scope := "basic"
	if c.cfg.Premier {
		scope = "premier"
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", scope)

	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	res, err := c.http.Do(ctx, &whttp.Request{
		Method: http.MethodPost,
		URL:    c.tokenURL,
		Form:   form,
		Headers: []whttp.Header{
			{Name: "Authorization", Value: "Basic " + basic},
		},
	})
	if err != nil {
		return "", 0, err
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		// Wrong credentials are an operator problem, not a transient one.
		return "", 0, fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeAuthFailed,
			"fatsecret rejected client credentials")
	case res.StatusCode != http.StatusOK:
		return "", 0, fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeUpstream,
			fmt.Sprintf("fatsecret token endpoint returned status %d", res.StatusCode))
	}

	token := gjson.Get(res.Body, "access_token").String()
	if token == "" {
		return "", 0, fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeUpstream,
			"fatsecret token response missing access_token")
	}
	expiresIn := gjson.Get(res.Body, "expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return token, time.Duration(expiresIn) * time.Second, nil
}
