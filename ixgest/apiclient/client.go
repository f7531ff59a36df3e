// Package apiclient creates records through the target API's
// collection endpoints.
//
// A 2xx response means the record was created. A 409 means a record with
// the same external_ref already exists and is reported as
// errors.ErrConflict. Network failures, 429 and 502-504 are retried with
// bounded exponential backoff; every other failure is returned at once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/internal/httpclient"
	"github.com/teranos/govpipe/logger"
)

// maxErrorBody bounds the response text kept in a StatusError
const maxErrorBody = 512

// StatusError is a non-2xx, non-409 response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("API returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Options tune retries and pacing
type Options struct {
	MaxRetries        int
	RetryInitial      time.Duration
	RequestsPerSecond float64
}

// OptionsFromConfig reads the import section
func OptionsFromConfig(cfg *config.Config) Options {
	initial := time.Duration(cfg.Import.RetryInitialMS) * time.Millisecond
	if initial <= 0 {
		initial = config.DefaultRetryInitialMS * time.Millisecond
	}
	return Options{
		MaxRetries:        cfg.Import.MaxRetries,
		RetryInitial:      initial,
		RequestsPerSecond: cfg.Import.RequestsPerSecond,
	}
}

// Client posts canonical records to one environment
type Client struct {
	http    *httpclient.SaferClient
	env     config.Environment
	opts    Options
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// New creates a Client. A non-positive RequestsPerSecond disables pacing.
func New(client *httpclient.SaferClient, env config.Environment, opts Options, l *zap.SugaredLogger) *Client {
	c := &Client{
		http:   client,
		env:    env,
		opts:   opts,
		logger: logger.OrNop(l),
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Create posts one record to its entity's collection endpoint
func (c *Client) Create(ctx context.Context, rec *entity.Record) error {
	if !rec.Type.Importable() {
		return errors.Wrapf(entity.ErrNotImportable, "%q", rec.Type)
	}
	body, err := json.Marshal(rec.Fields)
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}
	endpoint := c.env.URL(rec.Type.ResourcePath())
	log := c.logger.With(logger.FieldsFromContext(ctx)...)

	attempt := 0
	op := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := c.post(ctx, log, endpoint, body)
		if err == nil || !retryable(err) {
			return permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Debugw("Retrying create",
			logger.FieldEndpoint, rec.Type.ResourcePath(),
			logger.FieldRecordIndex, rec.Index,
			logger.FieldAttempt, attempt,
			"wait_ms", wait.Milliseconds(),
			logger.FieldError, err,
		)
	}

	return backoff.RetryNotify(op, c.policy(ctx), notify)
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInitial
	b.MaxElapsedTime = 0
	retries := c.opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (c *Client) post(ctx context.Context, log *zap.SugaredLogger, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	log.Debugw("Create call",
		logger.FieldMethod, http.MethodPost,
		logger.FieldEndpoint, endpoint,
		logger.FieldStatusCode, resp.StatusCode,
		logger.FieldLatencyMS, time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return errors.Wrap(errors.ErrConflict, "record already exists")
	default:
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
}

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// retryable covers transport failures and throttling or gateway statuses
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, errors.ErrInvalidRequest) {
		return false
	}
	return errors.IsAny(err, errors.ErrTimeout, errors.ErrServiceUnavailable)
}
