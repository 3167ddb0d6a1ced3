// Package elasticsearch wraps the go-elasticsearch client with retries, a circuit breaker,
// error classification and latency metrics. One Client is built at startup and shared.
package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/metrics"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/retry"
)

// Client executes portal queries against the cluster.
type Client struct {
	es       *es.Client
	cfg      config.ElasticsearchConfig
	breaker  *circuitbreaker.Breaker
	retryCfg retry.Config
	metrics  *metrics.Metrics
	log      logger.Logger
}

// Option customises a Client.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	metrics   *metrics.Metrics
	now       func() time.Time
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithMetrics records latency and errors on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the breaker clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewClient builds the client. It does not contact the cluster; call Connect for that.
func NewClient(cfg config.ElasticsearchConfig, log logger.Logger, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.NewNop()
	}

	transport := o.transport
	if transport == nil {
		transport = createTransport(cfg.InsecureSkipVerify)
	}

	// A negative max_retries turns transport retries off. The transport loop runs
	// MaxRetries+1 times, so it must never see a negative count.
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	clientConfig := es.Config{
		Addresses:    []string{normalizeURL(cfg.URL)},
		Transport:    transport,
		MaxRetries:   maxRetries,
		DisableRetry: cfg.MaxRetries < 0,
	}

	switch {
	case cfg.APIKey != "":
		clientConfig.APIKey = cfg.APIKey
	case cfg.Username != "" && cfg.Password != "":
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	esClient, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	c := &Client{
		es:      esClient,
		cfg:     cfg,
		metrics: o.metrics,
		log:     log,
	}

	c.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
		Now:              o.now,
		// Bad queries are the caller's fault and must not open the circuit.
		IsFailure: func(err error) bool { return apperrors.Is(err, apperrors.KindUnavailable) },
		OnStateChange: func(from, to circuitbreaker.State) {
			c.metrics.SetBreakerState(int(to))
			c.log.Warn("Elasticsearch circuit breaker state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	c.retryCfg = retry.Config{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		IsRetryable: func(err error) bool {
			return apperrors.Is(err, apperrors.KindUnavailable) && !errors.Is(err, circuitbreaker.ErrCircuitOpen)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.log.Warn("Retrying Elasticsearch request",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(err),
			)
		},
	}

	return c, nil
}

// Connect verifies the cluster answers, retrying with backoff.
func (c *Client) Connect(ctx context.Context) error {
	url := normalizeURL(c.cfg.URL)
	c.log.Info("Verifying Elasticsearch connection", logger.String("url", url))

	cfg := c.retryCfg
	cfg.IsRetryable = retry.DefaultIsRetryable
	if err := retry.Do(ctx, cfg, c.Ping); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch after retries: %w", err)
	}

	c.log.Info("Elasticsearch connection established", logger.String("url", url))
	return nil
}

// Ping checks the cluster is reachable within the configured ping timeout.
func (c *Client) Ping(ctx context.Context) error {
	if c.cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PingTimeout)
		defer cancel()
	}

	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.Unavailable("elasticsearch ping", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return classifyResponse("elasticsearch ping", res)
	}
	return nil
}

// Health returns the cluster health status (green, yellow or red).
func (c *Client) Health(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return "", apperrors.Unavailable("cluster health", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return "", classifyResponse("cluster health", res)
	}

	var health clusterHealth
	if decodeErr := json.NewDecoder(res.Body).Decode(&health); decodeErr != nil {
		return "", apperrors.Internal("cluster health", decodeErr)
	}
	return health.Status, nil
}

// Search runs a _search request with body against index.
func (c *Client) Search(ctx context.Context, index string, body map[string]any) (*SearchResponse, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	var out SearchResponse
	err = c.do(ctx, "search", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(index),
			c.es.Search.WithBody(bytes.NewReader(payload)),
		)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Count runs a _count request. Only the "query" key of body is sent.
func (c *Client) Count(ctx context.Context, index string, body map[string]any) (int64, error) {
	countBody := map[string]any{}
	if q, ok := body["query"]; ok {
		countBody["query"] = q
	}

	payload, err := encodeBody(countBody)
	if err != nil {
		return 0, err
	}

	var out countResponse
	err = c.do(ctx, "count", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Count(
			c.es.Count.WithContext(ctx),
			c.es.Count.WithIndex(index),
			c.es.Count.WithBody(bytes.NewReader(payload)),
		)
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

// OpenScroll starts a scroll over index and returns the first batch.
func (c *Client) OpenScroll(ctx context.Context, index string, body map[string]any, keepAlive time.Duration) (*SearchResponse, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	var out SearchResponse
	err = c.do(ctx, "scroll_open", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(index),
			c.es.Search.WithBody(bytes.NewReader(payload)),
			c.es.Search.WithScroll(keepAlive),
		)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// NextScroll fetches the next batch of an open scroll.
func (c *Client) NextScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*SearchResponse, error) {
	var out SearchResponse
	err := c.do(ctx, "scroll_next", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Scroll(
			c.es.Scroll.WithContext(ctx),
			c.es.Scroll.WithScrollID(scrollID),
			c.es.Scroll.WithScroll(keepAlive),
		)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearScroll releases a scroll context. Failures are logged, not returned to callers
// that are already finishing a response.
func (c *Client) ClearScroll(ctx context.Context, scrollID string) error {
	if scrollID == "" {
		return nil
	}
	return c.do(ctx, "scroll_clear", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.ClearScroll(
			c.es.ClearScroll.WithContext(ctx),
			c.es.ClearScroll.WithScrollID(scrollID),
		)
	}, nil)
}

// do runs one request through the breaker and the retry loop, decoding into out when non-nil.
// Each attempt is bounded by the configured client timeout.
func (c *Client) do(ctx context.Context, op string, call func(context.Context) (*esapi.Response, error), out any) error {
	start := time.Now()

	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			if c.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
				defer cancel()
			}

			res, err := call(ctx)
			if err != nil {
				return classifyTransportError(op, err)
			}
			defer closeBody(res)

			if res.IsError() {
				return classifyResponse(op, res)
			}
			if out == nil {
				return nil
			}
			if decodeErr := json.NewDecoder(res.Body).Decode(out); decodeErr != nil {
				return apperrors.Internal(op, fmt.Errorf("decode response: %w", decodeErr))
			}
			return nil
		})
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		err = apperrors.Unavailable(op, err)
	} else if errors.Is(err, retry.ErrContextCancelled) && !apperrors.Is(err, apperrors.KindUnavailable) {
		err = apperrors.Unavailable(op, err)
	}

	kind := ""
	if err != nil {
		kind = apperrors.KindOf(err).String()
		c.log.Debug("Elasticsearch request failed",
			logger.String("operation", op),
			logger.String("kind", kind),
			logger.Error(err),
		)
	}
	c.metrics.ObserveSearch(op, time.Since(start), kind)

	return err
}

// BreakerState exposes the breaker state for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func encodeBody(body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Internal("encode query", err)
	}
	return payload, nil
}

// classifyTransportError treats every transport failure (refused, reset, timeout) as unavailable.
func classifyTransportError(op string, err error) error {
	return apperrors.Unavailable(op, err)
}

func classifyResponse(op string, res *esapi.Response) error {
	body, readErr := io.ReadAll(res.Body)
	reason := strings.TrimSpace(string(body))
	if readErr == nil {
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Reason != "" {
			reason = parsed.Error.Type + ": " + parsed.Error.Reason
		}
	}

	err := fmt.Errorf("elasticsearch returned [%d]: %s", res.StatusCode, reason)
	switch res.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return apperrors.Unavailable(op, err)
	default:
		// includes 404 for a missing index, which is a deployment fault
		return apperrors.Internal(op, err)
	}
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}

// normalizeURL adds http:// when the scheme is missing.
func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func createTransport(insecure bool) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		//nolint:gosec // opt-in for clusters with self-signed certificates
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}
