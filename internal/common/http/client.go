// internal/common/http/client.go
package http

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Client is a credentialed HTTP client: cookies set by the API are kept in a
// jar and replayed on every later request.
type Client struct {
	httpClient *http.Client
}

type Option func(*http.Client)

// WithTransport swaps the round tripper (tests, instrumentation).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *http.Client) {
		c.Transport = rt
	}
}

// WithSessionCookie seeds the jar with a session cookie for baseURL.
func WithSessionCookie(baseURL, name, value string) Option {
	return func(c *http.Client) {
		if value == "" || c.Jar == nil {
			return
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return
		}
		c.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil) // never fails with nil options
	hc := &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}
	for _, opt := range opts {
		opt(hc)
	}
	return &Client{httpClient: hc}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// Cookies exposes the jar contents for u.
func (c *Client) Cookies(u *url.URL) []*http.Cookie {
	if c.httpClient.Jar == nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(u)
}
