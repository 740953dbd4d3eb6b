package serviceability_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/serviceability"
)

func TestStatic(t *testing.T) {
	s := serviceability.NewStatic()
	s.Restrict("ekart", "110001")
	ctx := context.Background()

	ok, err := s.Check(ctx, "ekart", "110001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Check(ctx, "ekart", "781001")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Check(ctx, "delhivery", "781001")
	require.NoError(t, err)
	assert.True(t, ok, "unrestricted carrier serves everything")
}

// =============================================================================
// HTTP
// =============================================================================

func TestHTTPChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/delhivery/serviceability/110001":
			fmt.Fprint(w, `{"serviceable": true}`)
		case "/delhivery/serviceability/781001":
			fmt.Fprint(w, `{"serviceable": false}`)
		case "/broken/serviceability/110001":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := serviceability.NewHTTPChecker(srv.URL+"/", srv.Client())
	ctx := context.Background()

	ok, err := c.Check(ctx, "delhivery", "110001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check(ctx, "delhivery", "781001")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Check(ctx, "unknown", "110001")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Check(ctx, "broken", "110001")
	assert.Error(t, err)
}

func TestHTTPChecker_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := serviceability.NewHTTPChecker(srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Check(ctx, "slow", "110001")
	assert.Error(t, err)
}

// =============================================================================
// REDIS CACHE
// =============================================================================

func TestCachedChecker(t *testing.T) {
	redisAddr := os.Getenv("RATE_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("RATE_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	t.Cleanup(func() { rdb.Close() })

	var calls atomic.Int32
	next := serviceability.CheckerFunc(func(_ context.Context, _ ratecard.Carrier, pincode string) (bool, error) {
		calls.Add(1)
		return pincode == "110001", nil
	})
	c := serviceability.NewCachedChecker(next, rdb, time.Minute, nil)
	ctx := context.Background()

	carrier := ratecard.Carrier(fmt.Sprintf("carrier_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = c.Invalidate(ctx, carrier, "110001")
		_ = c.Invalidate(ctx, carrier, "781001")
	})

	for i := 0; i < 3; i++ {
		ok, err := c.Check(ctx, carrier, "110001")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.Check(ctx, carrier, "781001")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(2), calls.Load(), "one upstream call per pincode")
}
