package httpx

import (
	"context"
	"github.com/pkg/errors"
	"io"
	"net"
	"net/http"
	"time"
)

const userAgent = "ratesync/1.0"

// MaxBodySize caps a response body. Both feeds send a few kilobytes.
const MaxBodySize = 10 << 20

var ErrBodyTooLarge = errors.New("response body too large")

// Doer is satisfied by *http.Client, *Client and the providers' mocks.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an http.Client with transport defaults suited to a handful of
// slow upstream feeds.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: userAgent,
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	return c.HTTP.Do(req)
}

// Get performs a GET and returns the body of a 2xx response.
func Get(ctx context.Context, client Doer, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("bad status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(body) > MaxBodySize {
		return nil, errors.Wrapf(ErrBodyTooLarge, "more than %d bytes", MaxBodySize)
	}

	return body, nil
}
