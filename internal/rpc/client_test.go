package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/fetch"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	c.retryDelay = func(int) time.Duration { return 0 }
	return c, srv
}

func TestCall_RetriesTransientFailures(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":42}}`))
	})

	var result balanceResponse
	err := c.Call(context.Background(), "getBalance", nil, &result)

	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, uint64(42), result.Result.Value)
}

func TestCall_GivesUpAfterMaxRetries(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	var result balanceResponse
	err := c.Call(context.Background(), "getBalance", nil, &result)

	require.Error(t, err)
	assert.Equal(t, int32(3), requests.Load())
	assert.Contains(t, err.Error(), "getBalance failed")
}

func TestCall_RateLimitNotRetried(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	var result balanceResponse
	err := c.Call(context.Background(), "getBalance", nil, &result)

	require.Error(t, err)
	assert.Equal(t, int32(1), requests.Load())
	assert.ErrorIs(t, err, fetch.ErrRateLimited)
}

func TestCall_RPCErrorCodeMapsToRateLimit(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32429,"message":"rate limit reached"}}`))
	})

	_, err := c.GetBalance(context.Background(), "some-address")

	require.Error(t, err)
	assert.Equal(t, int32(1), requests.Load())
	assert.ErrorIs(t, err, fetch.ErrRateLimited)
}

func TestCall_ContextCancelledDuringBackoff(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.retryDelay = func(int) time.Duration { return time.Minute }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var result balanceResponse
	err := c.Call(ctx, "getBalance", nil, &result)
	assert.ErrorIs(t, err, context.Canceled)
}
