package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/resilience"
)

func testRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func makeRoles(n, offset int) []model.Payload {
	roles := make([]model.Payload, n)
	for i := range roles {
		roles[i] = model.Payload{ID: fmt.Sprintf("role-%d", offset+i), Name: "Backend Engineer"}
	}
	return roles
}

func TestHTTPSourceFetchRolesPaginates(t *testing.T) {
	const total = 5
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		n := limit
		if offset+n > total {
			n = total - offset
		}
		json.NewEncoder(w).Encode(browsePage{Roles: makeRoles(n, offset), Total: total})
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{
		BaseURL:  srv.URL,
		Token:    "secret-token",
		PageSize: 2,
		Rate:     1000,
		Burst:    1000,
		Retry:    testRetry(),
	})

	roles, err := s.FetchRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, total)
	assert.Equal(t, "role-0", roles[0].ID)
	assert.Equal(t, "role-4", roles[4].ID)
}

func TestHTTPSourceRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(browsePage{Roles: makeRoles(1, 0), Total: 1})
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{
		BaseURL: srv.URL,
		Rate:    1000,
		Burst:   1000,
		Retry:   testRetry(),
	})

	before := s.limiter.Limit()
	roles, err := s.FetchRoles(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, 1)
	assert.Equal(t, int32(2), calls.Load())
	// The 429 halved the rate; the success afterwards nudged it back up.
	assert.Less(t, float64(s.limiter.Limit()), float64(before))
}

func TestHTTPSourceAuthFailureIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{
		BaseURL: srv.URL,
		Rate:    1000,
		Burst:   1000,
		Retry:   testRetry(),
	})

	_, err := s.FetchRoles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSourceFetchRoleDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/roles/role-1":
			json.NewEncoder(w).Encode(model.Payload{ID: "role-1", CompanyTip: "ask about the platform team"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{
		BaseURL: srv.URL,
		Rate:    1000,
		Burst:   1000,
		Retry:   testRetry(),
	})

	detail, err := s.FetchRoleDetail(context.Background(), "role-1")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "ask about the platform team", detail.CompanyTip)

	gone, err := s.FetchRoleDetail(context.Background(), "role-404")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestHTTPSourceServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{
		BaseURL: srv.URL,
		Rate:    1000,
		Burst:   1000,
		Retry:   testRetry(),
	})

	_, err := s.FetchRoles(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSourceBreakerOpensOnSustainedFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	retry := testRetry()
	retry.MaxAttempts = 6

	s := NewHTTPSource(HTTPOptions{
		BaseURL:          srv.URL,
		Rate:             1000,
		Burst:            1000,
		Retry:            retry,
		BreakerThreshold: 2,
	})

	_, err := s.FetchRoles(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, resilience.ErrCircuitOpen))

	// Two calls trip the breaker; the rejected third attempt never
	// reaches the server and stops the retry loop.
	assert.Equal(t, int32(2), calls.Load())
}
