package apify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	return srv, c
}

func TestStartRun(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/acts/actor-1/runs", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://www.linkedin.com/posts/x", body["post_url"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","actId":"actor-1","status":"READY","defaultDatasetId":"ds-1"}}`))
	})

	run, err := c.StartRun(context.Background(), "actor-1", map[string]any{"post_url": "https://www.linkedin.com/posts/x"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, StatusReady, run.Status)
	assert.Equal(t, "ds-1", run.DefaultDatasetID)
	assert.False(t, run.Finished())
}

func TestStartRun_AuthError(t *testing.T) {
	var calls atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"token-not-valid"}}`))
	})

	_, err := c.StartRun(context.Background(), "actor-1", nil)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestStartRun_NotReplayedAfterServerError(t *testing.T) {
	var calls atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"run-2","status":"READY"}}`))
	})

	_, err := c.StartRun(context.Background(), "actor-1", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStartRun_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"run-2","status":"READY"}}`))
	})

	run, err := c.StartRun(context.Background(), "actor-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "run-2", run.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetRun_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actor-runs/run-1", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("waitForFinish"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"SUCCEEDED","usageTotalUsd":0.42}}`))
	})

	run, err := c.GetRun(context.Background(), "run-1", 30)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.InDelta(t, 0.42, run.UsageTotalUSD, 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetRun_WaitCapped(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "60", r.URL.Query().Get("waitForFinish"))
		_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"RUNNING"}}`))
	})
	_, err := c.GetRun(context.Background(), "run-1", 300)
	require.NoError(t, err)
}

func TestDatasetItems(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/ds-1/items", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "true", q.Get("clean"))
		assert.Equal(t, "10", q.Get("offset"))
		assert.Equal(t, "5", q.Get("limit"))
		_, _ = w.Write([]byte(`[{"a":1},{"a":2}]`))
	})

	items, err := c.DatasetItems(context.Background(), "ds-1", 10, 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"a":1}`, string(items[0]))
}

func TestDatasetItems_BadJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	_, err := c.DatasetItems(context.Background(), "ds-1", 0, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 429, Body: "slow down"}
	assert.Equal(t, "apify: HTTP 429: slow down", err.Error())
}
