package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dvcrn/authclient/internal/credentials"
	serverhttp "github.com/dvcrn/authclient/internal/http"
	"github.com/dvcrn/authclient/internal/logger"
	"github.com/dvcrn/authclient/internal/metrics"
)

const (
	DefaultBaseURL        = "http://localhost:8080"
	DefaultAPIPrefix      = "/api/v1"
	DefaultRefreshTimeout = 30 * time.Second

	// RefreshTokenHeader carries the refresh token on /auth/refresh and /auth/logout.
	RefreshTokenHeader = "Refresh-Token"
	// RequestIDHeader is set on every outgoing request.
	RequestIDHeader = "X-Request-ID"
)

// Client is an authenticated client for the API. It is safe for concurrent use.
type Client struct {
	httpClient     serverhttp.HTTPClient
	store          *credentials.Store
	baseURL        string
	apiPrefix      string
	refreshTimeout time.Duration
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	log            zerolog.Logger
	now            func() time.Time

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the scheme and host of the API, e.g. https://kanban.example.com.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithAPIPrefix sets the version segment prepended to every path.
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		c.apiPrefix = prefix
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(httpClient serverhttp.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMetrics records request and refresh metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRefreshTimeout bounds a shared refresh call. It applies independently
// of any caller's context.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.refreshTimeout = d
	}
}

// New creates a Client that reads and updates credentials through store.
func New(store *credentials.Store, opts ...Option) *Client {
	if store == nil {
		store = credentials.NewStore(nil, nil)
	}
	c := &Client{
		store:          store,
		baseURL:        DefaultBaseURL,
		apiPrefix:      DefaultAPIPrefix,
		refreshTimeout: DefaultRefreshTimeout,
		tracer:         otel.Tracer("github.com/dvcrn/authclient/internal/apiclient"),
		log:            logger.Component("apiclient"),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = serverhttp.NewHTTPClient(30 * time.Second)
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	return c
}

// Store returns the credential store the client authenticates with.
func (c *Client) Store() *credentials.Store {
	return c.store
}

// Execute sends spec with the current access token. On a 401 it obtains a
// renewed token, shared with any concurrent callers, and retries exactly
// once. A 401 on the retry is not retried again.
func (c *Client) Execute(ctx context.Context, spec RequestSpec) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient.Execute", trace.WithAttributes(
		attribute.String("http.request.method", spec.Method()),
		attribute.String("url.path", spec.Path()),
	))
	defer span.End()

	resp, err := c.execute(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *Client) execute(ctx context.Context, spec RequestSpec) (*Response, error) {
	token := c.store.Snapshot().AccessToken
	resp, err := c.send(ctx, spec, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Debug().Str("method", spec.Method()).Str("path", spec.Path()).Msg("Access token rejected, renewing")

		renewed, err := c.renewAccessToken(ctx, token)
		if err != nil {
			return nil, err
		}

		resp, err = c.send(ctx, spec, renewed)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.log.Warn().Str("method", spec.Method()).Str("path", spec.Path()).Msg("Request rejected again after token refresh")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     spec.Method(),
			Path:       spec.Path(),
			StatusCode: resp.StatusCode,
			Body:       bodyPreview(resp.Body),
			Response:   resp,
		}
	}
	return resp, nil
}

// send performs a single round trip with token as the bearer credential. It
// never refreshes. Non-2xx responses are returned, not turned into errors.
func (c *Client) send(ctx context.Context, spec RequestSpec, token string) (*Response, error) {
	var body io.Reader
	if spec.sendsBody() {
		bodyBytes, err := json.Marshal(spec.Body())
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method(), spec.target(c.baseURL, c.apiPrefix), body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	req.Header = spec.Header()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.New().String())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(0)
		return nil, &TransportError{Method: spec.Method(), Path: spec.Path(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(0)
		return nil, &TransportError{Method: spec.Method(), Path: spec.Path(), Err: fmt.Errorf("could not read response body: %w", err)}
	}
	c.metrics.ObserveRequest(resp.StatusCode)

	c.log.Debug().
		Str("method", spec.Method()).
		Str("path", spec.Path()).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}
