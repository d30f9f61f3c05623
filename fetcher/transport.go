package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport performs a single GET. Implementations attach whatever
// credentials they need; the fetcher never sees them.
type Transport interface {
	Get(ctx context.Context, url string) (status int, body []byte, err error)
}

// DefaultUserAgent is sent when TransportConfig.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/74.0.3729.169 Safari/537.36"

// DefaultMaxBodySize caps how much of a response is read.
const DefaultMaxBodySize = 16 << 20

// TransportConfig is the immutable request template of an HTTPTransport.
type TransportConfig struct {
	Headers   map[string]string
	Cookie    string
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize bounds the response body; larger bodies are rejected.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64
}

// DefaultTransportConfig returns browser-like navigation headers.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Sec-Fetch-Dest":  "document",
			"Sec-Fetch-Mode":  "navigate",
		},
		UserAgent:   DefaultUserAgent,
		Timeout:     10 * time.Second,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// HTTPTransport is the net/http Transport. Its headers are copied at
// construction and cloned per request, so no two transports share state.
type HTTPTransport struct {
	client  *http.Client
	header  http.Header
	maxBody int64
}

// NewHTTPTransport builds a transport from cfg.
func NewHTTPTransport(cfg TransportConfig) *HTTPTransport {
	header := make(http.Header, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	header.Set("User-Agent", ua)
	if cfg.Cookie != "" {
		header.Set("Cookie", cfg.Cookie)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	return &HTTPTransport{
		client:  &http.Client{Timeout: timeout},
		header:  header,
		maxBody: maxBody,
	}
}

// Get fetches url and returns the status and body. Non-2xx responses are not
// errors at this level.
func (t *HTTPTransport) Get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = t.header.Clone()

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if int64(len(body)) > t.maxBody {
		return resp.StatusCode, nil, &FatalFetchError{
			URL:      url,
			Attempts: 1,
			Err:      fmt.Errorf("response body exceeds %d bytes", t.maxBody),
		}
	}

	return resp.StatusCode, body, nil
}
