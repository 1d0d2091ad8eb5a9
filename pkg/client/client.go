// Package client provides the resilient HTTP fetcher for the PLOS search
// API: bounded retries, classified network failures, an optional circuit
// breaker and an optional response cache.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/plos-harvester/pkg/cache"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Prometheus metrics for fetch operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plos_requests_total",
		Help: "Total HTTP attempts by status code or failure class",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plos_request_duration_seconds",
		Help:    "Duration of single HTTP attempts in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plos_fetch_failures_total",
		Help: "Total fetches that produced no data, by failure class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plos_retries_total",
		Help: "Total number of retry attempts after a non-200 status",
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plos_retry_exhausted_total",
		Help: "Total number of fetches that used the whole retry budget",
	})
)

// Cache is the response cache consulted before the network.
// *cache.Manager implements it.
type Cache interface {
	Get(ctx context.Context, rawURL string) (string, error)
	Set(ctx context.Context, rawURL, body string) error
}

// Config holds the client configuration.
type Config struct {
	// Retry controls the per-request attempt budget and backoff.
	Retry RetryConfig

	// ConnectTimeout bounds dialing and the TLS handshake. ReadTimeout bounds
	// each read from the connection, including the wait for response headers;
	// a body that keeps arriving is never cut off.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// UserAgent header sent with every request
	UserAgent string

	// BreakerThreshold opens the circuit after this many consecutive failed
	// fetches. Zero disables the breaker.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open before a probe request.
	BreakerTimeout time.Duration

	// Cache is optional; only 200 bodies are stored.
	Cache Cache

	// Cacheable, when set, must approve a 200 body before it is cached.
	// A 200 error page that is rejected here is returned but not replayed.
	Cacheable func(body string) bool
}

// DefaultConfig returns the baseline configuration: 21 attempts without
// delay, 60s connect and 120s read timeouts, no breaker and no cache.
func DefaultConfig() Config {
	return Config{
		Retry:          DefaultRetryConfig(),
		ConnectTimeout: 60 * time.Second,
		ReadTimeout:    120 * time.Second,
		UserAgent:      "plos-harvester/0.1.0",
		BreakerTimeout: 60 * time.Second,
	}
}

// Client fetches search API pages.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	cache   Cache
	config  Config
	logger  zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.ConnectTimeout <= 0 || cfg.ReadTimeout <= 0 {
		return nil, fmt.Errorf("connect and read timeouts must be positive")
	}
	if cfg.BreakerThreshold < 0 {
		return nil, fmt.Errorf("breaker_threshold must be >= 0 (got %d)", cfg.BreakerThreshold)
	}

	logger := log.With().Str("component", "plos-client").Logger()

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &readTimeoutConn{Conn: conn, timeout: cfg.ReadTimeout}, nil
		},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       cfg.ReadTimeout,
	}

	httpClient := resty.New().
		SetTransport(transport).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger})
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	c := &Client{
		http:   httpClient,
		cache:  cfg.Cache,
		config: cfg,
		logger: logger,
	}

	if cfg.BreakerThreshold > 0 {
		threshold := uint32(cfg.BreakerThreshold)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "plos-search",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// Caller cancellation says nothing about the API's health.
				return err == nil || ClassOf(err) == ClassCancelled
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
	}

	return c, nil
}

// Get fetches rawURL and returns the response body.
// On any failure the body is "" and the error is a *FetchError.
func (c *Client) Get(ctx context.Context, rawURL string) (string, error) {
	if c.cache != nil {
		body, err := c.cache.Get(ctx, rawURL)
		if err == nil {
			c.logger.Debug().Str("url", redactURL(rawURL)).Msg("Cache hit")
			return body, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", redactURL(rawURL)).Msg("Cache get error")
		}
	}

	body, err := c.execute(ctx, rawURL)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if c.config.Cacheable != nil && !c.config.Cacheable(body) {
			c.logger.Warn().Str("url", redactURL(rawURL)).Msg("Response not cached, body rejected")
			return body, nil
		}
		if err := c.cache.Set(ctx, rawURL, body); err != nil {
			c.logger.Warn().Err(err).Str("url", redactURL(rawURL)).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// Fetch is Get without the error: "" means no data.
func (c *Client) Fetch(ctx context.Context, rawURL string) string {
	body, _ := c.Get(ctx, rawURL)
	return body
}

// execute runs fetch through the circuit breaker when one is configured.
func (c *Client) execute(ctx context.Context, rawURL string) (string, error) {
	if c.breaker == nil {
		return c.fetch(ctx, rawURL)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, rawURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			fetchFailuresTotal.WithLabelValues(string(ClassCircuitOpen)).Inc()
			c.logger.Error().Str("url", redactURL(rawURL)).Msg("Request rejected by open circuit")
			return "", &FetchError{
				Class: ClassCircuitOpen,
				URL:   redactURL(rawURL),
				Err:   fmt.Errorf("%w: %v", ErrCircuitOpen, err),
			}
		}
		return "", err
	}

	return result.(string), nil
}

// fetch performs the retry loop for one logical request.
// Non-200 statuses are retried until the budget runs out; transport failures
// end the loop immediately.
func (c *Client) fetch(ctx context.Context, rawURL string) (string, error) {
	var (
		body       string
		attempts   int
		lastStatus int
	)
	safeURL := redactURL(rawURL)

	operation := func() error {
		attempts++
		start := time.Now()
		resp, err := c.http.R().SetContext(ctx).Get(rawURL)
		requestDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			class := classifyTransportError(ctx.Err(), err)
			requestsTotal.WithLabelValues(string(class)).Inc()

			fe := &FetchError{Class: class, URL: safeURL, Attempts: attempts, Err: err}
			if class == ClassCancelled {
				fe.Err = fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			}
			return backoff.Permanent(fe)
		}

		lastStatus = resp.StatusCode()
		requestsTotal.WithLabelValues(strconv.Itoa(lastStatus)).Inc()

		c.logger.Debug().
			Str("url", safeURL).
			Int("status", lastStatus).
			Int("attempt", attempts).
			Msg("GET request")

		if lastStatus == http.StatusOK {
			body = string(resp.Body())
			return nil
		}
		return fmt.Errorf("unexpected status %d", lastStatus)
	}

	notify := func(err error, wait time.Duration) {
		retriesTotal.Inc()
		c.logger.Warn().
			Err(err).
			Str("url", safeURL).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Msg("Retrying request")
	}

	err := backoff.RetryNotify(operation, c.config.Retry.newBackOff(ctx), notify)
	if err == nil {
		if attempts > 1 {
			c.logger.Info().
				Str("url", safeURL).
				Int("attempt", attempts).
				Msg("Request succeeded after retry")
		}
		return body, nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		fetchFailuresTotal.WithLabelValues(string(fe.Class)).Inc()
		c.logger.Error().
			Err(fe.Err).
			Str("url", safeURL).
			Str("failure_class", string(fe.Class)).
			Int("attempt", attempts).
			Msg(failureMessage(fe.Class))
		return "", fe
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		fetchFailuresTotal.WithLabelValues(string(ClassCancelled)).Inc()
		c.logger.Warn().Str("url", safeURL).Int("attempt", attempts).Msg("Context cancelled during retry")
		return "", &FetchError{
			Class:      ClassCancelled,
			URL:        safeURL,
			StatusCode: lastStatus,
			Attempts:   attempts,
			Err:        fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr),
		}
	}

	retryExhaustedTotal.Inc()
	fetchFailuresTotal.WithLabelValues(string(ClassStatus)).Inc()
	c.logger.Error().
		Str("url", safeURL).
		Int("status", lastStatus).
		Int("max_attempts", c.config.Retry.MaxAttempts).
		Msg("Retry attempts exhausted")

	return "", &FetchError{
		Class:      ClassStatus,
		URL:        safeURL,
		StatusCode: lastStatus,
		Attempts:   attempts,
		Err:        fmt.Errorf("%w: %v", ErrRetryExhausted, err),
	}
}

func failureMessage(class FailureClass) string {
	switch class {
	case ClassDNS:
		return "Host could not be resolved, check the network connection"
	case ClassTimeout:
		return "Connection is taking too long, the server may be unhealthy"
	case ClassCancelled:
		return "Request cancelled"
	default:
		return "HTTP request failed"
	}
}

// redactURL hides the api_key value so URLs can be logged.
func redactURL(rawURL string) string {
	const marker = "api_key="
	i := strings.Index(rawURL, marker)
	if i < 0 {
		return rawURL
	}
	start := i + len(marker)
	end := strings.IndexByte(rawURL[start:], '&')
	if end < 0 {
		return rawURL[:start] + "REDACTED"
	}
	return rawURL[:start] + "REDACTED" + rawURL[start+end:]
}

// readTimeoutConn bounds every read by timeout, so a body that keeps
// arriving is never cut off while a stalled one fails. Writes push the read
// deadline forward so a pooled connection's idle time is not charged to the
// next request.
type readTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readTimeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *readTimeoutConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// restyLogger routes resty's internal messages through zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
