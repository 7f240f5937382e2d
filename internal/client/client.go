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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// GenericErrorMessage is shown when the backend gives no usable message.
const GenericErrorMessage = "request failed"

var (
	// ErrMalformedResponse marks a 2xx response whose body could not be parsed.
	ErrMalformedResponse = errors.New("malformed response from server")
	ErrUnauthorized      = errors.New("unauthorized")
)

// RequestError is a non-2xx response or a failed round trip.
// StatusCode is 0 when the request never reached the backend.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the marketplace REST backend. It never retries and never refreshes tokens.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a Client for baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, tokens TokenSource, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(transport),
		},
		tokens: tokens,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs the request and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.path, req.query), req.body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	if !req.anonymous && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return &RequestError{
			Method:  req.method,
			Path:    req.path,
			Message: GenericErrorMessage,
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{
			Method:     req.method,
			Path:       req.path,
			StatusCode: resp.StatusCode,
			Message:    GenericErrorMessage,
			Err:        err,
		}
	}

	c.logger.Debug("Backend request completed",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newRequestError(req, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// errorEnvelope covers {"error":{"code","message"}}, {"error":"..."} and {"message":"..."} bodies.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRequestError(req request, status int, body []byte) *RequestError {
	reqErr := &RequestError{
		Method:     req.method,
		Path:       req.path,
		StatusCode: status,
		Message:    GenericErrorMessage,
	}
	if status == http.StatusUnauthorized {
		reqErr.Err = ErrUnauthorized
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return reqErr
	}

	var detail errorDetail
	var text string
	switch {
	case len(env.Error) > 0 && json.Unmarshal(env.Error, &detail) == nil && detail.Message != "":
		reqErr.Code = detail.Code
		reqErr.Message = detail.Message
	case len(env.Error) > 0 && json.Unmarshal(env.Error, &text) == nil && text != "":
		reqErr.Message = text
	case env.Message != "":
		reqErr.Message = env.Message
	}
	return reqErr
}

// Message turns any error from this package into text fit for a toast or alert.
func Message(err error) string {
	var reqErr *RequestError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &reqErr):
		return reqErr.Message
	case errors.Is(err, ErrMalformedResponse):
		return "unexpected response from server"
	case errors.Is(err, ErrUnauthorized):
		return "please log in again"
	default:
		return "something went wrong"
	}
}
