package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{Attempts: 3, Timeout: 500 * time.Millisecond, Pause: 10 * time.Millisecond}
}

func TestProbeStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		up     bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"redirect", http.StatusFound, true},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			// Redirects must be classified as received, not followed.
			prober := NewProber(fastPolicy())
			prober.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}

			result, err := prober.Probe(context.Background(), server.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.up, result.Up)
			assert.Equal(t, 1, result.Attempts)
		})
	}
}

func TestProbeDoesNotRetryResponses(t *testing.T) {
	// A 500 is an answer, not a transport failure; one request only.
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result, err := NewProber(fastPolicy()).Probe(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, result.Up)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProbeRetriesTransportFailures(t *testing.T) {
	// Dropping the connection before any response forces a transport error
	// on every attempt.
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer server.Close()

	_, err := NewProber(fastPolicy()).Probe(context.Background(), server.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestProbeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	policy := Policy{Attempts: 2, Timeout: 200 * time.Millisecond, Pause: 10 * time.Millisecond}
	_, err := NewProber(policy).Probe(context.Background(), url)
	assert.Error(t, err)
}

func TestProbeHonorsContextDuringPause(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := Policy{Attempts: 3, Timeout: 100 * time.Millisecond, Pause: time.Minute}
	start := time.Now()
	_, err := NewProber(policy).Probe(ctx, url)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://node-1.example.com:8080/status",
		URL("node-1.example.com", 8080, "status"))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	assert.Equal(t, 3, policy.Attempts)
	assert.Equal(t, 10*time.Second, policy.Timeout)
	assert.Equal(t, 5*time.Second, policy.Pause)
}
