package scholar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var errNotFound = errors.New("not found")

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 8 * time.Second
	}
	return p
}

// getWithRetry performs a GET with exponential backoff. 404 is permanent and
// surfaces as errNotFound; other 4xx responses are permanent as well.
func getWithRetry(ctx context.Context, client *http.Client, policy RetryPolicy, url string) ([]byte, error) {
	policy = policy.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.MaxInterval = policy.MaxDelay

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request failed: %w", err))
		}
		req.Header.Set("Accept", "application/json, application/atom+xml")
		req.Header.Set("User-Agent", "scholarai/1.0")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, fmt.Errorf("read response failed: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(errNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return nil, backoff.Permanent(fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(string(body), 200)))
		}
		return body, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
