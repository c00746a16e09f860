// Package pdpj is a client for the PDPJ unified process API: bearer-token
// rotation over a credential pool, retry with exponential backoff, a shared
// back-off gate for 429 responses, and checkpointed cursor pagination.
package pdpj

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotFound signals a 404 from the detail endpoint. It is a permanent
// negative fact, not a transient failure.
var ErrNotFound = eris.New("pdpj: process not found")

// Options configures the client.
type Options struct {
	Tokens   []string
	BaseURL  string
	Tribunal string
	// ClassID is the default class filter applied to document searches.
	ClassID  string
	PageSize int

	MaxRetries  int           // total attempts per request, default 5
	BackoffBase time.Duration // base for exponential backoff, default 1s
	Timeout     time.Duration // per-attempt HTTP timeout, default 60s
	GateWait    time.Duration // max time a caller blocks on the 429 gate, default 2m

	// RatePerSecond enables client-side pacing when > 0. The limiter is
	// shared by all callers, like the gate.
	RatePerSecond float64
	RateBurst     int
}

// Stats is a snapshot of client counters.
type Stats struct {
	Requests      int64 `json:"requests"`
	Retries       int64 `json:"retries"`
	RateLimitHits int64 `json:"rate_limit_hits"`
	NetworkErrors int64 `json:"network_errors"`
	PagesOK       int64 `json:"pages_ok"`
	DetailsOK     int64 `json:"details_ok"`
}

// Client issues authenticated PDPJ requests. Safe for concurrent use: the
// rotation cursor, stats, and the 429 gate are shared across goroutines.
type Client struct {
	httpc   *http.Client
	opts    Options
	limiter *rate.Limiter

	mu       sync.Mutex
	tokenIdx int
	stats    Stats

	gate *gate

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// New validates options and builds a client.
func New(opts Options) (*Client, error) {
	if len(opts.Tokens) == 0 {
		return nil, eris.New("pdpj: at least one token is required")
	}
	if opts.BaseURL == "" {
		return nil, eris.New("pdpj: base URL is required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.GateWait <= 0 {
		opts.GateWait = 2 * time.Minute
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	return &Client{
		httpc:   &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: limiter,
		gate:    newGate(),
		sleep:   time.Sleep,
	}, nil
}

// nextToken advances the rotation cursor. Round-robin, fair across callers.
func (c *Client) nextToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.opts.Tokens[c.tokenIdx%len(c.opts.Tokens)]
	c.tokenIdx++
	return t
}

// Stats returns a point-in-time copy of the counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Get issues an authenticated GET with retries. A pinned token bypasses
// rotation. 429 closes the shared gate for the advised wait; 5xx and network
// failures back off exponentially; any other response is returned as-is.
// Exhausting the attempt budget returns a terminal error wrapping the last
// cause. The caller owns the response body.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, token string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		// Wait out any active rate-limit back-off. The bounded wait is a
		// liveness valve: on timeout the request proceeds anyway.
		c.gate.wait(ctx, c.opts.GateWait)

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "pdpj: limiter wait")
			}
		}

		tok := token
		if tok == "" {
			tok = c.nextToken()
		}

		c.mu.Lock()
		c.stats.Requests++
		c.mu.Unlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "pdpj: build request")
		}
		if len(params) > 0 {
			req.URL.RawQuery = params.Encode()
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			c.mu.Lock()
			c.stats.Retries++
			c.stats.NetworkErrors++
			c.mu.Unlock()
			zap.L().Warn("pdpj request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.sleep(c.backoff(attempt))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := rateLimitWait(resp.Header.Get("Retry-After"), attempt)
			_ = resp.Body.Close()
			lastErr = eris.Errorf("pdpj: rate limited (429) by %s", rawURL)
			c.mu.Lock()
			c.stats.RateLimitHits++
			c.stats.Retries++
			c.mu.Unlock()
			zap.L().Warn("pdpj rate limited, pausing all requests",
				zap.Duration("wait", wait),
				zap.Int("attempt", attempt+1),
			)
			// Close the gate for everyone; only this goroutine sleeps,
			// the rest block on the gate until it reopens.
			c.gate.shut()
			c.sleep(wait)
			c.gate.reopen()
			continue

		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("pdpj: server error %d from %s", resp.StatusCode, rawURL)
			c.mu.Lock()
			c.stats.Retries++
			c.mu.Unlock()
			zap.L().Warn("pdpj server error, retrying",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.sleep(c.backoff(attempt))
			continue

		default:
			return resp, nil
		}
	}

	return nil, eris.Wrapf(lastErr, "pdpj: exhausted %d attempts", c.opts.MaxRetries)
}

// Detail fetches the full document for one process number.
// 404 returns ErrNotFound; any other non-200 is an error.
func (c *Client) Detail(ctx context.Context, number string) ([]byte, error) {
	u := c.opts.BaseURL + "/" + url.PathEscape(number)
	resp, err := c.Get(ctx, u, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, eris.Errorf("pdpj: detail %s: unexpected status %d", number, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "pdpj: read detail %s", number)
	}

	c.mu.Lock()
	c.stats.DetailsOK++
	c.mu.Unlock()

	return body, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.opts.BackoffBase) * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * float64(time.Second)
	return time.Duration(d + jitter)
}

// rateLimitWait computes the 429 pause: the server-advised Retry-After when
// present, floored at 10s per attempt already spent.
func rateLimitWait(retryAfter string, attempt int) time.Duration {
	advised := 30
	if retryAfter != "" {
		if n, err := strconv.Atoi(retryAfter); err == nil && n >= 0 {
			advised = n
		}
	}
	floor := 10 * (attempt + 1)
	if advised < floor {
		advised = floor
	}
	return time.Duration(advised) * time.Second
}

// gate is a shared binary gate. Open is the normal state; any goroutine that
// observes a 429 shuts it, sleeps the advised wait, and reopens it. Other
// goroutines block on wait() without sleeping themselves.
type gate struct {
	mu   sync.Mutex
	open chan struct{} // closed channel == gate open
}

func newGate() *gate {
	g := &gate{open: make(chan struct{})}
	close(g.open)
	return g
}

func (g *gate) wait(ctx context.Context, limit time.Duration) {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()

	t := time.NewTimer(limit)
	defer t.Stop()
	select {
	case <-ch:
	case <-t.C:
	case <-ctx.Done():
	}
}

func (g *gate) shut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
		// already shut
	}
}

func (g *gate) reopen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		// already open
	default:
		close(g.open)
	}
}
