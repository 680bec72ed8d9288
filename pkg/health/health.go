package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Policy bounds a probe: up to Attempts requests, each with its own
// Timeout, with Pause between attempts. Total wait is therefore at most
// Attempts*Timeout + (Attempts-1)*Pause.
type Policy struct {
	Attempts int
	Timeout  time.Duration
	Pause    time.Duration
}

// DefaultPolicy returns the standard fleet probe policy.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Timeout:  10 * time.Second,
		Pause:    5 * time.Second,
	}
}

// Result is the outcome of a probe that got an HTTP response.
type Result struct {
	Up        bool
	Message   string
	Attempts  int
	CheckedAt time.Time
	Duration  time.Duration
}

// Prober performs HTTP liveness probes with bounded retry.
//
// Only request-level failures (timeout, connection refused) are retried. A
// received response is classified immediately and never retried, even when
// it is a 5xx: a server that answers is alive enough to give its real
// status, and hammering a failing endpoint doesn't change it.
type Prober struct {
	policy Policy
	client *http.Client
}

// NewProber creates a prober with the given policy.
func NewProber(policy Policy) *Prober {
	return &Prober{
		policy: policy,
		client: &http.Client{},
	}
}

// URL builds the conventional status endpoint for a deployment's container.
func URL(hostname string, port int, endpoint string) string {
	return fmt.Sprintf("http://%s:%d/%s", hostname, port, endpoint)
}

// Probe issues GET requests against url until one yields a response or the
// attempt budget is spent. A non-nil error means every attempt failed at
// the transport level; the error is the last failure seen.
func (p *Prober) Probe(ctx context.Context, url string) (Result, error) {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= p.policy.Attempts; attempt++ {
		result, err := p.attempt(ctx, url)
		if err == nil {
			result.Attempts = attempt
			result.CheckedAt = start
			result.Duration = time.Since(start)
			return result, nil
		}
		lastErr = err

		if attempt < p.policy.Attempts {
			select {
			case <-time.After(p.policy.Pause):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}
	}
	return Result{}, lastErr
}

func (p *Prober) attempt(ctx context.Context, url string) (Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.policy.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	up := resp.StatusCode >= 200 && resp.StatusCode <= 399
	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return Result{Up: up, Message: message}, nil
}
