// Package upstream talks to the screenshot rendering service.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/pixashot-gateway/internal/capture"
	"github.com/JakeFAU/pixashot-gateway/internal/metrics"
)

const (
	capturePath = "/capture"
	userAgent   = "pixashot-gateway/1.0"

	// UnknownErrorMessage is relayed when the renderer's error body carries no message.
	UnknownErrorMessage = "Unknown error occurred"

	maxErrorBodyBytes = 1 << 20
)

// Error is a non-200 answer from the renderer.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// Client posts capture requests to the renderer.
type Client struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a Client for endpoint (scheme and host, no trailing /capture).
func New(endpoint, authToken string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Image bytes and Content-Length are relayed verbatim.
	transport.DisableCompression = true

	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.Init()
	return c
}

// Capture sends req to the renderer and returns the response with its body
// unread. The caller owns resp.Body. A non-nil error means no response was
// received.
func (c *Client) Capture(ctx context.Context, req capture.Request) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode capture request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+capturePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build capture request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveUpstream(metrics.OutcomeTransportError, 0, elapsed)
		return nil, fmt.Errorf("post capture: %w", err)
	}

	outcome := metrics.OutcomeOK
	if resp.StatusCode != http.StatusOK {
		outcome = metrics.OutcomeUpstreamError
	}
	metrics.ObserveUpstream(outcome, resp.StatusCode, elapsed)
	c.logger.Debug("renderer responded",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

// ReadError drains a non-200 response and extracts the renderer's message
// field. It closes the body.
func ReadError(resp *http.Response) (*Error, error) {
	defer resp.Body.Close() //nolint:errcheck // body fully consumed or abandoned

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream error body: %w", err)
	}
	return &Error{Status: resp.StatusCode, Message: ErrorMessage(body)}, nil
}

// ErrorMessage returns the "message" field of a JSON error body, or
// UnknownErrorMessage when the body is not JSON or has no usable message.
func ErrorMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return UnknownErrorMessage
	}
	msg := gjson.GetBytes(body, "message")
	switch msg.Type {
	case gjson.String:
		return msg.Str
	case gjson.Number, gjson.True, gjson.False:
		return msg.Raw
	default:
		// Missing, null, or a nested object/array.
		return UnknownErrorMessage
	}
}
