package hlr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smppware/hlrgate/pkg/cache"
)

func newTestResolver(t *testing.T, handler http.HandlerFunc, rec Recorder) (*Resolver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
		Timeout:   2 * time.Second,
	})
	return NewResolver(client, cache.NewMemoryCache(time.Minute), rec, ResolverConfig{Concurrency: 4}), srv
}

func providerResponse(msisdn string, errCode, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]map[string]any{
			msisdn: {"number": msisdn, "error": errCode, "status": status},
		})
	}
}

type captureRecorder struct {
	mu     sync.Mutex
	events []LookupEvent
}

func (c *captureRecorder) Enqueue(ev LookupEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureRecorder) all() []LookupEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LookupEvent(nil), c.events...)
}

func TestResolve_ValidNumber(t *testing.T) {
	rec := &captureRecorder{}
	r, _ := newTestResolver(t, providerResponse("40722570240", 0, 0), rec)

	got, err := r.Resolve(context.Background(), "40722570240", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, ClassValid, got.Classification())

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "40722570240", events[0].MSISDN)
	assert.Equal(t, ClassValid, events[0].Classification)
	assert.Equal(t, "10.0.0.1", events[0].SourceIP)
}

func TestResolve_CacheHitSkipsProviderAndStore(t *testing.T) {
	var calls atomic.Int32
	rec := &captureRecorder{}
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		providerResponse("40722570240", 0, 1)(w, req)
	}, rec)

	ctx := context.Background()
	first, err := r.Resolve(ctx, "40722570240", "")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "40722570240", "")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second resolve must come from cache")
	assert.Equal(t, first.Classification(), second.Classification())
	assert.Len(t, rec.all(), 1, "cache hits are not persisted")
}

func TestResolve_ZeroTTLDisablesCaching(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		providerResponse("40722570240", 0, 1)(w, req)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
		Timeout:   2 * time.Second,
	})
	r := NewResolver(client, cache.NewMemoryCache(0), nil, ResolverConfig{Concurrency: 4})

	ctx := context.Background()
	_, err := r.Resolve(ctx, "40722570240", "")
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "40722570240", "")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load(),
		"with a zero TTL every resolve must reach the provider")
}

func TestResolve_EmptyProviderResponse(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	got, err := r.Resolve(context.Background(), "40722570240", "")
	require.NoError(t, err)
	assert.Equal(t, ClassInvalid, got.Classification())
	assert.Equal(t, "Empty response from HLR", got["status_message"])
}

func TestResolve_TimeoutNotCached(t *testing.T) {
	var calls atomic.Int32
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
			return
		}
		providerResponse("40722570240", 0, 0)(w, req)
	}, nil)
	r.client.cfg.Timeout = 50 * time.Millisecond
	r.client.http.Timeout = 50 * time.Millisecond

	_, err := r.Resolve(context.Background(), "40722570240", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	// The failure must not poison the cache: the retry reaches the
	// provider and succeeds.
	r.client.cfg.Timeout = 2 * time.Second
	r.client.http.Timeout = 2 * time.Second
	got, err := r.Resolve(context.Background(), "40722570240", "")
	require.NoError(t, err)
	assert.Equal(t, ClassValid, got.Classification())
}

func TestResolve_TransportError(t *testing.T) {
	r, srv := newTestResolver(t, providerResponse("1", 0, 0), nil)
	srv.Close()

	_, err := r.Resolve(context.Background(), "1", "")
	require.Error(t, err)

	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestResolve_HTTPErrorStatus(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}, nil)

	_, err := r.Resolve(context.Background(), "1", "")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
}

func TestResolve_ConcurrentBurstCollapses(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		<-gate
		providerResponse("40722570240", 0, 0)(w, req)
	}, nil)
	r.sem = make(chan struct{}, 1)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = r.Resolve(context.Background(), "40722570240", "")
		}(i)
	}

	// Let the burst pile up behind the single slot, then release.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, err := range results {
		require.NoError(t, err, "goroutine %d", i)
	}
	assert.Equal(t, int32(1), calls.Load(),
		"waiters must be served by the double-checked cache")
}

func TestResolve_ContextCancelledWhileWaiting(t *testing.T) {
	r, _ := newTestResolver(t, providerResponse("1", 0, 0), nil)
	r.sem = make(chan struct{}, 1)
	r.sem <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, "1", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWarmup(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	src := warmupSourceFunc(func(ctx context.Context, since time.Time, limit int) ([]StoredLookup, error) {
		return []StoredLookup{
			{MSISDN: "1", Record: Record{"error": float64(0), "status": float64(0), "classification": ClassValid}},
			{MSISDN: "2", Record: Record{"error": float64(1), "status": float64(1), "classification": ClassInvalid}},
		}, nil
	})

	loaded, err := Warmup(context.Background(), c, src, WarmupConfig{Enabled: true, Days: 7, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	raw, ok := c.Get(context.Background(), CacheKey("1"))
	require.True(t, ok)
	var rec Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, ClassValid, rec.Classification())
}

func TestWarmup_Idempotent(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	src := warmupSourceFunc(func(ctx context.Context, since time.Time, limit int) ([]StoredLookup, error) {
		return []StoredLookup{
			{MSISDN: "1", Record: Record{"error": float64(0), "status": float64(0), "classification": ClassValid}},
			{MSISDN: "2", Record: Record{"error": float64(1), "status": float64(1), "classification": ClassInvalid}},
		}, nil
	})

	loaded, err := Warmup(context.Background(), c, src, WarmupConfig{Enabled: true, Days: 7, Limit: 100})
	require.NoError(t, err)
	require.Equal(t, 2, loaded)

	first, ok := c.Get(context.Background(), CacheKey("1"))
	require.True(t, ok)

	loaded, err = Warmup(context.Background(), c, src, WarmupConfig{Enabled: true, Days: 7, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	assert.Equal(t, 2, c.Len(), "a second run must not grow the cache")
	second, ok := c.Get(context.Background(), CacheKey("1"))
	require.True(t, ok)
	assert.Equal(t, first, second, "a second run must not change entries")
}

func TestWarmup_Disabled(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	src := warmupSourceFunc(func(context.Context, time.Time, int) ([]StoredLookup, error) {
		t.Fatal("source must not be queried when warmup is disabled")
		return nil, nil
	})

	loaded, err := Warmup(context.Background(), c, src, WarmupConfig{Enabled: false})
	require.NoError(t, err)
	assert.Zero(t, loaded)
}

func TestWarmup_SourceError(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	src := warmupSourceFunc(func(context.Context, time.Time, int) ([]StoredLookup, error) {
		return nil, errors.New("database offline")
	})

	_, err := Warmup(context.Background(), c, src, WarmupConfig{Enabled: true, Days: 7, Limit: 10})
	assert.Error(t, err)
}

type warmupSourceFunc func(ctx context.Context, since time.Time, limit int) ([]StoredLookup, error)

func (f warmupSourceFunc) RecentUnique(ctx context.Context, since time.Time, limit int) ([]StoredLookup, error) {
	return f(ctx, since, limit)
}
