package pdpj

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, tokens ...string) *Client {
	t.Helper()
	if len(tokens) == 0 {
		tokens = []string{"token-a-0123456789", "token-b-0123456789"}
	}
	c, err := New(Options{
		Tokens:      tokens,
		BaseURL:     baseURL,
		Tribunal:    "TJPE",
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		GateWait:    50 * time.Millisecond,
	})
	require.NoError(t, err)
	c.sleep = func(time.Duration) {}
	return c
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{BaseURL: "http://x"})
	require.Error(t, err)

	_, err = New(Options{Tokens: []string{"t"}})
	require.Error(t, err)
}

func TestGetRotatesTokens(t *testing.T) {
	var mu sync.Mutex
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "tok-one-0123456789", "tok-two-0123456789")
	for i := 0; i < 4; i++ {
		resp, err := c.Get(context.Background(), srv.URL, nil, "")
		require.NoError(t, err)
		resp.Body.Close()
	}

	require.Len(t, auths, 4)
	assert.Equal(t, "Bearer tok-one-0123456789", auths[0])
	assert.Equal(t, "Bearer tok-two-0123456789", auths[1])
	assert.Equal(t, "Bearer tok-one-0123456789", auths[2])
	assert.Equal(t, "Bearer tok-two-0123456789", auths[3])
}

func TestGetPinnedTokenBypassesRotation(t *testing.T) {
	var mu sync.Mutex
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for i := 0; i < 2; i++ {
		resp, err := c.Get(context.Background(), srv.URL, nil, "pinned")
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, []string{"Bearer pinned", "Bearer pinned"}, auths)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Get(context.Background(), srv.URL, nil, "")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 3, calls)
	stats := c.Stats()
	assert.Equal(t, int64(3), stats.Requests)
	assert.Equal(t, int64(2), stats.Retries)
}

func TestGetExhaustsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Get(context.Background(), srv.URL, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted 3 attempts")
	assert.Equal(t, int64(3), c.Stats().Requests)
}

func TestGetRateLimitGate(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	resp, err := c.Get(context.Background(), srv.URL, nil, "")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int64(1), c.Stats().RateLimitHits)
	assert.Equal(t, int64(1), c.Stats().Retries)
	// advised 1s is floored at 10s for the first attempt
	require.Len(t, slept, 1)
	assert.Equal(t, 10*time.Second, slept[0])

	// the gate must be open again after the sleeping goroutine reopens it
	done := make(chan struct{})
	go func() {
		c.gate.wait(context.Background(), time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("gate left shut after reopen")
	}
}

func TestGateBlocksOthersWhileShut(t *testing.T) {
	g := newGate()
	g.shut()

	released := make(chan struct{})
	go func() {
		g.wait(context.Background(), time.Second)
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("wait returned while gate shut")
	case <-time.After(50 * time.Millisecond):
	}

	g.reopen()
	select {
	case <-released:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("wait did not return after reopen")
	}
}

func TestGateWaitBounded(t *testing.T) {
	g := newGate()
	g.shut()

	start := time.Now()
	g.wait(context.Background(), 20*time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimitWait(t *testing.T) {
	assert.Equal(t, 30*time.Second, rateLimitWait("", 2))
	assert.Equal(t, 10*time.Second, rateLimitWait("5", 0))
	assert.Equal(t, 60*time.Second, rateLimitWait("60", 0))
	assert.Equal(t, 40*time.Second, rateLimitWait("", 3))
	assert.Equal(t, 30*time.Second, rateLimitWait("garbage", 0))
}

func TestDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/0001":
			w.Write([]byte(`{"numeroProcesso":"0001"}`))
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	body, err := c.Detail(context.Background(), "0001")
	require.NoError(t, err)
	assert.Contains(t, string(body), "0001")
	assert.Equal(t, int64(1), c.Stats().DetailsOK)

	_, err = c.Detail(context.Background(), "gone")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.Detail(context.Background(), "other")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
