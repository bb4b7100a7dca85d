package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/resilience"
)

// HTTPOptions configures the HTTP source.
type HTTPOptions struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	PageSize  int
	Rate      rate.Limit
	Burst     int
	Retry     resilience.RetryConfig

	// BreakerThreshold is the consecutive transient failures before the
	// circuit opens. Zero keeps the default.
	BreakerThreshold int
}

// HTTPSource implements Source against the token-authenticated browse API.
type HTTPSource struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *AdaptiveLimiter
	breaker *resilience.CircuitBreaker
}

// NewHTTPSource creates an HTTPSource with the given options.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "rolescout/1.0"
	}
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("paraform")
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPSource{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: NewAdaptiveLimiter(opts.Rate, opts.Burst),
		breaker: resilience.NewCircuitBreaker(breakerConfig(opts.BreakerThreshold)),
	}
}

// breakerConfig trips only on transient failures. A 404 on a detail fetch
// is a vanished role, not an outage, and must not open the circuit.
func breakerConfig(threshold int) resilience.CircuitBreakerConfig {
	cfg := resilience.FromCircuitConfig(threshold, 0)
	cfg.ShouldTrip = resilience.IsTransient
	return cfg
}

// browsePage is one page of the listing endpoint.
type browsePage struct {
	Roles []model.Payload `json:"roles"`
	Total int             `json:"total"`
}

// FetchRoles pages through the browse endpoint until the feed is exhausted.
func (s *HTTPSource) FetchRoles(ctx context.Context) ([]model.Payload, error) {
	var all []model.Payload
	offset := 0

	for {
		url := fmt.Sprintf("%s/roles?limit=%d&offset=%d", s.opts.BaseURL, s.opts.PageSize, offset)
		var page browsePage
		if err := s.getJSON(ctx, url, &page); err != nil {
			return nil, eris.Wrapf(err, "fetch roles page at offset %d", offset)
		}

		all = append(all, page.Roles...)
		offset += len(page.Roles)

		if len(page.Roles) < s.opts.PageSize || (page.Total > 0 && offset >= page.Total) {
			break
		}
	}

	zap.L().Info("fetched roles from browse API",
		zap.Int("count", len(all)),
	)
	return all, nil
}

// FetchRoleDetail returns the expanded record for one role. A 404 means the
// role vanished between the listing and the detail call; that surfaces as
// (nil, nil).
func (s *HTTPSource) FetchRoleDetail(ctx context.Context, externalID string) (*model.Payload, error) {
	url := fmt.Sprintf("%s/roles/%s", s.opts.BaseURL, externalID)
	var detail model.Payload
	if err := s.getJSON(ctx, url, &detail); err != nil {
		if eris.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "fetch role detail %s", externalID)
	}
	return &detail, nil
}

var errNotFound = eris.New("fetcher: not found")

// getJSON performs one rate-limited, retried GET and decodes the body. The
// circuit breaker short-circuits calls while the API is hard down, so a dead
// feed fails a run in seconds instead of grinding through per-page retries.
func (s *HTTPSource) getJSON(ctx context.Context, url string, out any) error {
	body, err := resilience.DoVal(ctx, s.opts.Retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]byte, error) {
			return s.get(ctx, url)
		})
	})
	if err != nil {
		return err
	}
	return eris.Wrap(json.Unmarshal(body, out), "decode response")
}

func (s *HTTPSource) get(ctx context.Context, url string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if s.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		s.limiter.OnSuccess()
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		s.limiter.OnRateLimit()
		return nil, resilience.NewTransientError(
			eris.Errorf("http 429 from %s", url), resp.StatusCode)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, url), resp.StatusCode)
	default:
		return nil, eris.Errorf("http %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read response"), resp.StatusCode)
	}
	return body, nil
}
