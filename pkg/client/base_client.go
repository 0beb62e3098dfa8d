package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseClient downloads remote dataset files with retries behind a circuit breaker.
type BaseClient struct {
	client         HTTPClient
	logger         *zap.Logger
	circuitBreaker *gobreaker.CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration
	multiplier     float64
}

type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Multiplier     float64
	Threshold      int
	BreakerTimeout time.Duration
}

// ErrClientStatus is wrapped by errors for non-2xx responses.
var ErrClientStatus = errors.New("unexpected status")

func NewBaseClient(name string, config ClientConfig, logger *zap.Logger) *BaseClient {
	return NewBaseClientWith(name, &http.Client{Timeout: config.Timeout}, config, logger)
}

// NewBaseClientWith uses httpClient instead of a default http.Client.
func NewBaseClientWith(name string, httpClient HTTPClient, config ClientConfig, logger *zap.Logger) *BaseClient {
	threshold := config.Threshold
	if threshold <= 0 {
		threshold = 3
	}

	breakerSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("client", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	return &BaseClient{
		client:         httpClient,
		logger:         logger,
		circuitBreaker: gobreaker.NewCircuitBreaker(breakerSettings),
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
		multiplier:     multiplier,
	}
}

// GetWithRetry returns the body of a successful GET on url.
func (c *BaseClient) GetWithRetry(ctx context.Context, url string) ([]byte, error) {
	body, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doGetWithRetry(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// State reports the circuit breaker state, e.g. "closed" or "open".
func (c *BaseClient) State() string {
	return c.circuitBreaker.State().String()
}

// backoff returns the wait before the given retry (1-based).
func (c *BaseClient) backoff(retry int) time.Duration {
	return time.Duration(float64(c.retryDelay) * math.Pow(c.multiplier, float64(retry-1)))
}

func (c *BaseClient) doGetWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for retry := 0; retry <= c.maxRetries; retry++ {
		if retry > 0 {
			wait := c.backoff(retry)
			c.logger.Debug("Retrying download",
				zap.String("url", url),
				zap.Int("retry", retry),
				zap.Duration("wait", wait))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		body, retryable, err := c.fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.logger.Warn("Download failed",
			zap.String("url", url),
			zap.Int("retry", retry),
			zap.Error(err))
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("download of %s failed after %d retries: %w", url, c.maxRetries, lastErr)
}

// fetch performs a single GET. retryable reports whether another attempt could
// succeed; 4xx responses other than 429 will not.
func (c *BaseClient) fetch(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("%w: HTTP %d", ErrClientStatus, resp.StatusCode)
		clientErr := resp.StatusCode >= 400 && resp.StatusCode < 500
		return nil, !clientErr || resp.StatusCode == http.StatusTooManyRequests, err
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	c.logger.Debug("Download successful",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))
	return body, false, nil
}
