package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/finobytes/maxreward/pkg/buildinfo"
	"github.com/finobytes/maxreward/pkg/cache"
	"github.com/finobytes/maxreward/pkg/observability"
)

// DefaultTreePath is the upstream route for a member's referral tree.
// {id} is replaced with the member id.
const DefaultTreePath = "/api/member/referral-tree/{id}"

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 16 << 20
)

var (
	// ErrNotFound is returned when the member has no tree upstream (404).
	ErrNotFound = cache.ErrNotFound

	// ErrNetwork covers transport failures and 5xx responses.
	ErrNetwork = cache.ErrNetwork

	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidMemberID is returned for empty or path-breaking member ids.
	ErrInvalidMemberID = errors.New("invalid member id")
)

// Config describes the upstream API.
type Config struct {
	BaseURL  string
	TreePath string        // defaults to DefaultTreePath
	Token    string        // sent as "Authorization: Bearer <token>" when set
	Timeout  time.Duration // per request; defaults to 10s
	// RateLimit is the sustained request rate per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// CacheTTL is how long raw payloads are cached; zero means cache.PayloadTTL.
	CacheTTL time.Duration
}

// Client fetches referral tree payloads.
type Client struct {
	http     *http.Client
	base     *url.URL
	treePath string
	headers  map[string]string
	limiter  *rate.Limiter
	backoff  cache.Backoff

	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration

	logger *log.Logger
}

// NewClient validates cfg and returns a client. A nil cache disables caching;
// a nil logger discards debug output.
func NewClient(cfg Config, c cache.Cache, logger *log.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cl := &Client{
		http:     &http.Client{Timeout: orDefault(cfg.Timeout, defaultTimeout)},
		base:     base,
		treePath: cfg.TreePath,
		headers:  map[string]string{"Accept": "application/json", "User-Agent": buildinfo.UserAgent()},
		backoff:  cache.DefaultBackoff,
		cache:    c,
		keyer:    cache.NewDefaultKeyer(),
		ttl:      orDefault(cfg.CacheTTL, cache.PayloadTTL),
		logger:   logger,
	}
	if cl.treePath == "" {
		cl.treePath = DefaultTreePath
	}
	if cfg.Token != "" {
		cl.headers["Authorization"] = "Bearer " + cfg.Token
	}
	if cfg.RateLimit > 0 {
		cl.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}
	return cl, nil
}

// SetKeyer replaces the cache keyer, e.g. with a scoped one on a shared Redis.
func (c *Client) SetKeyer(k cache.Keyer) {
	if k != nil {
		c.keyer = k
	}
}

// SetBackoff replaces the retry schedule.
func (c *Client) SetBackoff(b cache.Backoff) { c.backoff = b }

// TreeURL returns the upstream URL for a member's tree.
func (c *Client) TreeURL(memberID string) (string, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" || strings.ContainsAny(memberID, "/?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidMemberID, memberID)
	}
	u := *c.base
	u.Path = u.Path + strings.ReplaceAll(c.treePath, "{id}", memberID)
	return u.String(), nil
}

// FetchTree returns the raw tree payload for memberID and whether it came
// from cache. With refresh set the cache is bypassed but still updated.
func (c *Client) FetchTree(ctx context.Context, memberID string, refresh bool) ([]byte, bool, error) {
	target, err := c.TreeURL(memberID)
	if err != nil {
		return nil, false, err
	}

	key := c.keyer.HTTPKey("tree", strings.TrimSpace(memberID))
	if !refresh {
		data, hit, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache read failed", "key", key, "err", err)
		}
		if hit {
			observability.Cache().OnCacheHit(ctx, "payload")
			c.logger.Debug("payload cache hit", "member", memberID)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "payload")
	}

	hooks := observability.Pipeline()
	hooks.OnFetchStart(ctx, memberID)
	start := time.Now()

	var body []byte
	err = c.backoff.Retry(ctx, func() error {
		var ferr error
		body, ferr = c.get(ctx, target)
		if ferr != nil && cache.IsRetryable(ferr) {
			c.logger.Debug("retrying tree fetch", "member", memberID, "err", ferr)
		}
		return ferr
	})
	hooks.OnFetchComplete(ctx, memberID, len(body), time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	if err := c.cache.Set(ctx, key, body, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "payload", len(body))
	}
	return body, false, nil
}

// get performs one rate-limited GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, cache.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
	}
	return body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code == http.StatusTooManyRequests, code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
