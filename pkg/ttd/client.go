package ttd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/ttd-workflows/pkg/config"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/metrics"
)

const (
	authHeader              = "TTD-Auth"
	defaultTimeout          = 30 * time.Second
	errorBodyReadLimit      = 64 * 1024
	defaultRESTErrorMessage = "REST call failed. No error message provided."
)

var errTokenRequired = errors.New("ttd auth token is required")

// Client talks to the platform REST v3 and GraphQL APIs with one auth token.
type Client struct {
	httpClient *http.Client
	// transferClient shares httpClient's transport without its Timeout;
	// presigned file transfers are bounded by ctx alone.
	transferClient *http.Client
	restURL    string
	graphqlURL string
	token      string
	logg       *logger.Logger
	metrics    *metrics.APIMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRESTURL overrides the REST base URL chosen by environment.
func WithRESTURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.restURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithGraphQLURL overrides the GraphQL endpoint chosen by environment.
func WithGraphQLURL(endpoint string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.graphqlURL = trimmed
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

func WithMetrics(m *metrics.APIMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a platform client for the configured environment.
func NewClient(cfg config.PlatformConfig, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errTokenRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	restURL, graphqlURL := cfg.BaseURLs()

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		restURL:    restURL,
		graphqlURL: graphqlURL,
		token:      token,
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	client.transferClient = &http.Client{
		Transport:     client.httpClient.Transport,
		CheckRedirect: client.httpClient.CheckRedirect,
		Jar:           client.httpClient.Jar,
	}
	return client, nil
}

// REST sends body as JSON to the v3 resource at path and decodes a 200
// response into out. Any other status becomes a typed error carrying the
// platform's Message field.
func (c *Client) REST(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "ttd client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal rest request")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.restURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build rest request")
	}
	req.Header.Set(authHeader, c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Observe(metrics.APIREST, metrics.OutcomeTransport, time.Since(start))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute %s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.metrics.Observe(metrics.APIREST, metrics.OutcomeHTTP, time.Since(start))
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.New(pkgerrors.FromHTTPStatus(resp.StatusCode), fmt.Sprintf("%s %s: %s", method, path, restErrorMessage(raw))).
			WithDetails(map[string]any{
				"status": resp.StatusCode,
				"method": method,
				"path":   path,
			})
	}
	c.metrics.Observe(metrics.APIREST, metrics.OutcomeOK, time.Since(start))

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s %s response", method, path))
	}
	return nil
}

func restErrorMessage(raw []byte) string {
	var body struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && strings.TrimSpace(body.Message) != "" {
		return body.Message
	}
	return defaultRESTErrorMessage
}
