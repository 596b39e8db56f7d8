package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodySize = 4 << 20

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit  float64
	HTTPClient *http.Client
	Log        *zap.Logger
}

// Client talks JSON to the storefront backend. Calls are never retried: an
// open breaker fails fast with ErrUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
	token   string
	// bypass skips the breaker's rejection; outcomes are not counted either.
	bypass bool
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		timeout: opts.Timeout,
		limiter: limiter,
		breaker: newBreaker(opts.Log),
		log:     opts.Log,
	}
}

func newBreaker(log *zap.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:     "storefront-api",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// client errors mean the backend is healthy
		IsSuccessful: func(err error) bool {
			var apiErr *Error
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// WithToken returns a client that sends the bearer token. It shares the
// transport, limiter and breaker with c.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// WithoutBreaker returns a client whose calls are always sent, even while the
// breaker is open. Used for writes that must be attempted once money has
// moved.
func (c *Client) WithoutBreaker() *Client {
	clone := *c
	clone.bypass = true
	return &clone
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends in as JSON and decodes the (possibly enveloped) response into out.
func (c *Client) Do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	return c.send(ctx, method, path, payload, "application/json", out)
}

// File is one file part of a multipart request.
type File struct {
	Field string
	Name  string
	Data  []byte
}

// DoForm sends fields and files as multipart/form-data. The response is
// decoded like Do's.
func (c *Client) DoForm(ctx context.Context, method, path string, fields map[string]string, files []File, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return fmt.Errorf("encode form: %w", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return fmt.Errorf("encode form: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return fmt.Errorf("encode form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("encode form: %w", err)
	}
	return c.send(ctx, method, path, buf.Bytes(), mw.FormDataContentType(), out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	var (
		raw []byte
		err error
	)
	if c.bypass {
		raw, err = c.roundTrip(ctx, method, path, payload, contentType)
	} else {
		raw, err = c.breaker.Execute(func() ([]byte, error) {
			return c.roundTrip(ctx, method, path, payload, contentType)
		})
	}
	log := logger.WithTrace(ctx, c.log).With(
		zap.String("method", method),
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn("backend call rejected by breaker")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		log.Debug("backend call failed", zap.Error(err))
		return err
	}
	log.Debug("backend call")
	return decodeBody(raw, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, contentType string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}
