package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/logging"
	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcache_origin_requests_total",
		Help: "Total origin requests by HTTP status",
	}, []string{"status"})

	originRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedcache_origin_request_duration_seconds",
		Help:    "Origin retrieval duration in seconds, including retries and parsing",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcache_origin_errors_total",
		Help: "Total failed origin retrievals by error class",
	}, []string{"class"})

	conditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedcache_conditional_requests_total",
		Help: "Total origin requests sent with If-None-Match or If-Modified-Since",
	})
)

const (
	// DefaultUserAgent identifies the cache to origins.
	DefaultUserAgent = "feedcache/0.1"

	// DefaultMaxBodyBytes bounds the size of a feed document.
	DefaultMaxBodyBytes = 10 << 20

	acceptHeader = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8"
)

// HTTPConfig holds the HTTP source configuration.
type HTTPConfig struct {
	// UserAgent header sent with every request
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// MaxBodyBytes limits the feed document size
	MaxBodyBytes int64

	// Retry controls retries of network, 429 and 5xx failures
	Retry RetryConfig

	// HTTPClient overrides the default client (for testing).
	// Its Timeout is left untouched.
	HTTPClient *http.Client
}

// DefaultHTTPConfig returns a safe default configuration.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		UserAgent:    DefaultUserAgent,
		Timeout:      30 * time.Second,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Retry:        DefaultRetryConfig(),
	}
}

// HTTPSource retrieves feeds over HTTP and parses them with gofeed.
// It is safe for concurrent use.
type HTTPSource struct {
	httpClient *http.Client
	config     HTTPConfig
	logger     zerolog.Logger
}

// NewHTTPSource creates a new HTTP feed source.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	def := DefaultHTTPConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPSource{
		httpClient: httpClient,
		config:     cfg,
		logger:     logging.NewLogger("feed-source"),
	}
}

// Retrieve fetches url, sending the hints as If-None-Match and
// If-Modified-Since. Network, 429 and 5xx failures are retried with
// backoff before an error is returned.
func (s *HTTPSource) Retrieve(ctx context.Context, url string, hints cache.Hints) (*Response, error) {
	start := time.Now()
	defer func() {
		originRequestDuration.Observe(time.Since(start).Seconds())
	}()

	var resp *Response
	err := retryWithBackoff(ctx, s.config.Retry, s.logger.With().Str("url", url).Logger(), func() error {
		r, err := s.do(ctx, url, hints)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		originErrorsTotal.WithLabelValues(string(Class(err))).Inc()
		return nil, err
	}
	return resp, nil
}

// do performs a single HTTP attempt.
func (s *HTTPSource) do(ctx context.Context, url string, hints cache.Hints) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, ErrorClass: ErrorClassRequest, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	if AddConditionalHeaders(req, hints) {
		conditionalRequestsSent.Inc()
		s.logger.Debug().
			Str("url", url).
			Str("etag", hints.ETag).
			Str("last_modified", hints.LastModified).
			Msg("Making conditional request")
	}

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		originRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &Error{URL: url, ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	originRequestsTotal.WithLabelValues(strconv.Itoa(httpResp.StatusCode)).Inc()

	resp := &Response{
		StatusCode:   httpResp.StatusCode,
		Headers:      httpResp.Header.Clone(),
		ETag:         httpResp.Header.Get("ETag"),
		LastModified: httpResp.Header.Get("Last-Modified"),
	}

	switch code := httpResp.StatusCode; {
	case code == http.StatusNotModified:
		resp.Status = StatusNotModified
		return resp, nil

	case code >= 200 && code < 300:
		feed, err := s.parse(httpResp.Body)
		if err != nil {
			return nil, &Error{URL: url, StatusCode: code, ErrorClass: ErrorClassParse, Message: "parse feed", Err: err}
		}
		resp.Status = StatusOK
		resp.Feed = feed
		return resp, nil

	case code == http.StatusTooManyRequests:
		return nil, &Error{URL: url, StatusCode: code, ErrorClass: ErrorClassRateLimit, Message: httpResp.Status}

	case code >= 500:
		return nil, &Error{URL: url, StatusCode: code, ErrorClass: ErrorClassServer, Message: httpResp.Status}

	default:
		// 4xx and unfollowed 3xx are final answers from the origin
		s.logger.Warn().
			Str("url", url).
			Int("status_code", code).
			Msg("Origin returned terminal status")
		resp.Status = StatusTerminal
		return resp, nil
	}
}

func (s *HTTPSource) parse(body io.Reader) (*gofeed.Feed, error) {
	data, err := io.ReadAll(io.LimitReader(body, s.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > s.config.MaxBodyBytes {
		return nil, fmt.Errorf("feed exceeds %d bytes", s.config.MaxBodyBytes)
	}

	// gofeed parsers keep per-document state, so one is created per call
	return gofeed.NewParser().Parse(bytes.NewReader(data))
}

// AddConditionalHeaders adds If-None-Match and If-Modified-Since headers for
// the hints that are present. Returns true if any header was added.
func AddConditionalHeaders(req *http.Request, hints cache.Hints) bool {
	if req == nil {
		return false
	}
	if hints.ETag != "" {
		req.Header.Set("If-None-Match", hints.ETag)
	}
	if hints.LastModified != "" {
		req.Header.Set("If-Modified-Since", hints.LastModified)
	}
	return !hints.IsZero()
}
