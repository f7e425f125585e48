package transport

import (
	"context"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/settings"
)

func newRetryableClient(
	s *settings.Settings,
	logger *observability.CoreLogger,
) *retryablehttp.Client {
	delays := s.RetryDelays()

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = len(delays)
	client.CheckRetry = withRetryLogging(retrySendFailures, logger)
	client.Backoff = steppedBackoff(delays)
	client.HTTPClient = &http.Client{
		Timeout:   sendTimeout,
		Transport: baseTransport(s, logger),
	}
	return client
}

func baseTransport(
	s *settings.Settings,
	logger *observability.CoreLogger,
) http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	proxy := s.HTTPProxy()
	if proxy == "" {
		return transport
	}

	proxyURL, err := url.Parse(proxy)
	if err != nil {
		logger.CaptureWarn(
			"transport: invalid proxy URL, using environment proxy settings",
			"error", err.Error())
		return transport
	}

	transport.Proxy = http.ProxyURL(proxyURL)
	return transport
}

// retrySendFailures is a retry policy that retries connection problems
// and server (5xx) errors.
//
// Client errors are terminal: an envelope the server rejected once will
// be rejected again, and 429 belongs to the rate limit bookkeeping, not
// the retry loop.
func retrySendFailures(
	ctx context.Context,
	resp *http.Response,
	err error,
) (bool, error) {
	// Respect context cancellation and deadlines.
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	// Use retryablehttp's defaults for errors.
	//
	// Most errors are retryable connection issues, but a few are not:
	// invalid usage, TLS verification problems, too many redirects. The
	// only way to detect those is to match on the error string, which we
	// let retryablehttp do for us.
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	switch resp.StatusCode {
	case http.StatusNotImplemented: // don't retry on 501 not implemented
		return false, nil
	}

	// Retry some invalid HTTP codes.
	if resp.StatusCode == 0 || resp.StatusCode >= 600 {
		return true, nil
	}

	return resp.StatusCode >= 500 && resp.StatusCode <= 599, nil
}

// steppedBackoff walks the configured delay ladder, holding at the last
// step. A random jitter of up to 25% is added to each delay.
func steppedBackoff(delays []time.Duration) retryablehttp.Backoff {
	return func(
		_, _ time.Duration,
		attemptNum int,
		_ *http.Response,
	) time.Duration {
		if len(delays) == 0 {
			return 0
		}

		step := attemptNum
		if step >= len(delays) {
			step = len(delays) - 1
		}

		delay := delays[step]
		jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
		return delay + jitter
	}
}

// withRetryLogging wraps a retry policy to log retries.
func withRetryLogging(
	policy retryablehttp.CheckRetry,
	logger *observability.CoreLogger,
) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		willRetry, checkErr := policy(ctx, resp, err)

		if willRetry {
			switch {
			case err != nil:
				logger.Debug("transport: retrying error", "error", err.Error())
			case resp != nil && resp.StatusCode >= 400:
				logger.Debug(
					"transport: retrying HTTP error",
					"status", resp.StatusCode)
			}
		}

		return willRetry, checkErr
	}
}
