// Package external is the anti-corruption layer between the advisor core and
// third-party APIs. All outbound HTTP goes through the BaseClient, which
// applies circuit breaking, retries with backoff, trace propagation, and
// error mapping to types.AppError.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"fieldscout/internal/types"
)

// RetryPolicy bounds how often and how long the BaseClient retries a
// failed upstream call.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the policy used for weather API calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// BaseClient gives every upstream call the same resilience behavior:
// provider clients embed it instead of talking to http.Client directly.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration) // overridable in tests
}

// BaseClientOption configures optional BaseClient behavior.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep between retries, to keep tests fast.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient with its own circuit breaker. The
// breaker opens after five consecutive failures and recovers through a
// single half-open probe.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool { return err == nil },
	})
	return NewBaseClientWithBreaker(httpClient, breaker, retryPolicy, userAgent, opts...)
}

// NewBaseClientWithBreaker creates a BaseClient around a caller-provided
// circuit breaker, for tests or for sharing a breaker across clients.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	c := &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request with trace and User-Agent injection, circuit
// breaking, and retries on 429/5xx honoring Retry-After.
//
// Any other status is returned as-is with the caller owning the body. On
// exhausted retries or an open breaker, Do returns a types.AppError carrying
// the matching upstream code.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	c.decorate(req)

	// Snapshot the body up front so every attempt can replay it.
	body, err := snapshotBody(req)
	if err != nil {
		return nil, err
	}

	var lastResp *http.Response
	var lastErr error

	attempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			return c.attempt(req)
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		final := attempt == attempts-1
		if resp != nil {
			// A non-retryable status is the caller's answer, not a failure.
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return resp, nil
			}
			if final {
				lastResp = resp
			} else {
				resp.Body.Close()
			}
		}

		if breakerRejected(err) {
			// An open breaker will not recover within this request.
			break
		}
		if !final {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastResp, lastErr)
}

// decorate injects the trace ID and User-Agent headers.
func (c *BaseClient) decorate(req *http.Request) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// attempt performs one round trip, reporting 429 and 5xx as errors so the
// breaker counts them.
func (c *BaseClient) attempt(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return resp, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	return resp, nil
}

func snapshotBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to read request body for retry support", err)
	}
	return body, nil
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// computeBackoff returns the wait before the next attempt: Retry-After when
// the upstream sent one, exponential backoff with full jitter otherwise,
// clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if wait, ok := c.retryAfterWait(resp); ok {
		return wait
	}

	ceiling := math.Min(
		float64(c.retryPolicy.MinWait)*math.Pow(2, float64(attempt)),
		float64(c.retryPolicy.MaxWait),
	)
	floor := float64(c.retryPolicy.MinWait)
	if ceiling <= floor {
		return c.retryPolicy.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

// retryAfterWait parses a Retry-After header in either seconds or HTTP-date
// form, clamped to the policy bounds.
func (c *BaseClient) retryAfterWait(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}

	var wait time.Duration
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		wait = time.Duration(seconds) * time.Second
	} else if at, err := http.ParseTime(header); err == nil {
		wait = time.Until(at)
	} else {
		return 0, false
	}

	if wait <= 0 {
		return c.retryPolicy.MinWait, true
	}
	return min(wait, c.retryPolicy.MaxWait), true
}

// mapError translates a terminal failure into an AppError for the caller.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	switch {
	case breakerRejected(err):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream service unavailable", err)

	case resp != nil && resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"upstream rate limit exceeded", err)

	case resp != nil && resp.StatusCode >= 500:
		return types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
	}

	return types.NewAppError(types.ErrCodeUpstreamWeather,
		"upstream request failed", err)
}
