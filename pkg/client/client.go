// Package client is the typed HTTP client for the appointment API. Every call
// goes through one transport path: the session guard for authenticated
// calls, the circuit breaker, and the retry policy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/appointment-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
	"github.com/jwalitptl/appointment-api/pkg/httputil"
	"github.com/jwalitptl/appointment-api/pkg/retry"
	"github.com/jwalitptl/appointment-api/pkg/session"
)

const (
	apiPrefix       = "/api/v1"
	maxResponseBody = 4 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
	session *session.Session
	policy  retry.Policy
	breaker *circuitbreaker.CircuitBreaker
	logger  zerolog.Logger
	timeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithSession(s *session.Session) Option {
	return func(c *Client) { c.session = s }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds each call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		policy:  retry.DefaultPolicy(),
		logger:  zerolog.Nop(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.session == nil {
		c.session = session.New(session.NewMemoryStore(""))
	}
	if c.breaker == nil {
		logger := c.logger
		c.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "appointment-api",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			IsFailure:   apperrors.IsRetryable,
			OnStateChange: func(name, from, to string) {
				logger.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("circuit breaker state changed")
			},
		})
	}
	if c.policy.OnRetry == nil {
		logger := c.logger
		c.policy.OnRetry = func(err error, wait time.Duration) {
			logger.Warn().Err(err).Dur("wait", wait).Msg("retrying request")
		}
	}
	return c, nil
}

// Session exposes the credential holder, for login state in callers.
func (c *Client) Session() *session.Session {
	return c.session
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	authed bool
}

// do runs one logical request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var token string
	if req.authed {
		var err error
		if token, err = c.session.Token(ctx); err != nil {
			return err
		}
	}

	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return apperrors.Validation("failed to encode request: %v", err)
		}
	}

	var data json.RawMessage
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		err := c.breaker.Execute(func() error {
			var err error
			data, err = c.roundTrip(ctx, req, token, payload)
			return err
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return apperrors.Unreachable(err)
		}
		return err
	})
	if err != nil {
		if req.authed {
			if rerr := c.session.Reject(ctx, err); rerr != nil {
				c.logger.Error().Err(rerr).Msg("failed to purge rejected credential")
			}
		}
		return err
	}

	if out != nil && len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, out); err != nil {
			return apperrors.Internal(fmt.Errorf("failed to decode %s %s response: %w", req.method, req.path, err))
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request, token string, payload []byte) (json.RawMessage, error) {
	target := c.baseURL + apiPrefix + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, apperrors.Validation("invalid request: %v", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("request_id", requestID).
			Str("method", req.method).
			Str("path", req.path).
			Msg("request failed")
		return nil, apperrors.Unreachable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, apperrors.Unreachable(fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request completed")

	var env httputil.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		if decodeErr != nil {
			env = httputil.Envelope{}
		}
		return nil, env.Err(resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, apperrors.Internal(fmt.Errorf("invalid response envelope: %w", decodeErr))
	}
	return env.Data, nil
}
