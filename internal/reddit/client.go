package reddit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
)

const (
	// DefaultBaseURL serves every JSON listing surface.
	DefaultBaseURL = "https://www.reddit.com"

	// DefaultOldBaseURL serves the metadata endpoints. The old frontend
	// answers them without the JavaScript gate the new one puts up.
	DefaultOldBaseURL = "https://old.reddit.com"

	// DefaultUserAgent is a desktop browser string. The public JSON
	// endpoints answer browser agents without credentials; default Go
	// agents get blocked quickly.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	// DefaultTimeout bounds one HTTP exchange.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps response and media bodies.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// MaxChildrenPerFetch is the most child IDs one expansion call
	// accepts; longer lists must be chunked by the caller.
	MaxChildrenPerFetch = 100
)

// Client calls Reddit's public JSON endpoints. It performs single
// attempts and classifies failures; the fetch scheduler wrapping it
// owns retries and rate governance. A Client is safe for concurrent
// use.
type Client struct {
	// httpClient carries the proxy and timeout configuration.
	httpClient *http.Client

	// baseURL is the listing host, overridable in tests.
	baseURL string

	// oldBaseURL is the metadata host.
	oldBaseURL string

	// userAgent is sent on every request.
	userAgent string

	// maxBodySize caps how much of any response is read.
	maxBodySize int64

	// proxyAddr is the optional SOCKS5 proxy in host:port form.
	proxyAddr string

	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the listing host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithOldBaseURL overrides the metadata host.
func WithOldBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.oldBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-exchange timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxBodySize caps response body reads.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithProxy routes all requests through a SOCKS5 proxy at addr
// ("host:port").
func WithProxy(addr string) Option {
	return func(c *Client) {
		c.proxyAddr = addr
	}
}

// WithHTTPClient substitutes the underlying HTTP client, bypassing the
// proxy and timeout options. Intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request-level records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client. The proxy address, when set, is validated and
// dialed lazily on first use.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     DefaultBaseURL,
		oldBaseURL:  DefaultOldBaseURL,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     30 * time.Second,
		}

		if c.proxyAddr != "" {
			if !isValidProxyAddress(c.proxyAddr) {
				return nil, ErrInvalidProxyAddress
			}
			dialer, err := proxy.SOCKS5("tcp", c.proxyAddr, nil, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
			}
			transport.Proxy = nil
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			}
		}

		c.httpClient = &http.Client{
			Transport: transport,
			Timeout:   c.timeout,
		}
	}

	return c, nil
}

// isValidProxyAddress checks for "host:port" with a numeric port in
// range.
func isValidProxyAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// get performs one GET and returns the body, classifying every failure
// into the fetch error taxonomy.
func (c *Client) get(ctx context.Context, op, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fetch.Permanent(op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("request", "op", op, "url", requestURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fetch.Canceled(op, err)
		}
		return nil, fetch.Transient(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(op, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fetch.Canceled(op, err)
		}
		return nil, fetch.Transient(op, err)
	}
	return body, nil
}

// classifyStatus maps a non-200 response onto the error taxonomy:
// 429 is throttling with an optional Retry-After hint, 4xx target
// failures are permanent, everything else is worth a retry.
func classifyStatus(op string, resp *http.Response) error {
	err := fmt.Errorf("unexpected status %s", resp.Status)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return fetch.Throttled(op, parseRetryAfter(resp.Header.Get("Retry-After")), err)
	case http.StatusBadRequest,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusGone,
		http.StatusUnavailableForLegalReasons:
		return fetch.Permanent(op, err)
	default:
		return fetch.Transient(op, err)
	}
}

// parseRetryAfter reads the Retry-After header, which carries either
// delay seconds or an HTTP date. Unparseable values yield no hint.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
