package prewarm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameshell/assetcache/internal/metrics"
	"github.com/gameshell/assetcache/internal/store"
)

func newTestPrewarmer(cache *store.Store) *Prewarmer {
	return New(cache, nil, metrics.NewCollector(), nil, Config{
		IdleWait:     time.Millisecond,
		FetchTimeout: 5 * time.Second,
	})
}

func TestPrewarmer_ConcurrencyBound(t *testing.T) {
	var inflight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("asset"))
	}))
	defer srv.Close()

	cache := store.New(1 << 20)
	p := newTestPrewarmer(cache)

	urls := make([]string, 5)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/assets/sprite-%d.png", srv.URL, i)
	}

	result, err := p.Run(context.Background(), urls, 2, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int64(2), "no more than 2 fetches in flight")
	assert.Equal(t, 5, result.Success)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, result.Success+result.Failed, len(urls)-result.Skipped)
	assert.Equal(t, 5, cache.Len())
}

func TestPrewarmer_FiltersSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("asset"))
	}))
	defer srv.Close()

	cache := store.New(1 << 20)
	already := srv.URL + "/assets/cached.png"
	res := &store.Resource{Status: 200, Header: http.Header{}, Body: []byte("x")}
	require.True(t, cache.Set(already, res, res.Size()))

	p := newTestPrewarmer(cache)
	urls := []string{
		already,                        // already cached
		srv.URL + "/api/profile",       // never cacheable
		srv.URL + "/assets/fresh.png",  // eligible
		srv.URL + "/sounds/fresh.mp3",  // eligible
		srv.URL + "/assets/q.png?v=1",  // query string, never cacheable
	}

	result, err := p.Run(context.Background(), urls, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, len(urls)-result.Skipped, result.Success+result.Failed)
}

func TestPrewarmer_FailuresDoNotAbort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("asset"))
	}))
	defer srv.Close()

	cache := store.New(1 << 20)
	p := newTestPrewarmer(cache)

	urls := []string{
		srv.URL + "/assets/ok-1.png",
		srv.URL + "/assets/broken-1.png",
		srv.URL + "/assets/ok-2.png",
		srv.URL + "/assets/broken-2.png",
		srv.URL + "/assets/ok-3.png",
	}

	result, err := p.Run(context.Background(), urls, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 3, cache.Len())
}

func TestPrewarmer_ProgressCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("asset"))
	}))
	defer srv.Close()

	cache := store.New(1 << 20)
	p := newTestPrewarmer(cache)

	urls := make([]string, 5)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/assets/p-%d.png", srv.URL, i)
	}

	var mu sync.Mutex
	var reports []Progress
	_, err := p.Run(context.Background(), urls, 2, func(pr Progress) {
		mu.Lock()
		reports = append(reports, pr)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, reports, 3, "one report per batch: 2+2+1")
	last := reports[len(reports)-1]
	assert.Equal(t, 5, last.Total)
	assert.Equal(t, 5, last.Completed+last.Failed)
	assert.InDelta(t, 100.0, last.Percent, 0.0001)

	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t,
			reports[i].Completed+reports[i].Failed,
			reports[i-1].Completed+reports[i-1].Failed,
			"progress is monotonic")
	}
}

func TestPrewarmer_RejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("asset"))
	}))
	defer srv.Close()
	defer close(release)

	cache := store.New(1 << 20)
	p := newTestPrewarmer(cache)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		_, _ = p.Run(context.Background(), []string{srv.URL + "/assets/slow.png"}, 1, nil)
	}()

	<-started
	require.Eventually(t, p.Running, time.Second, time.Millisecond)

	_, err := p.Run(context.Background(), []string{srv.URL + "/assets/other.png"}, 1, nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	release <- struct{}{}
	<-done
	assert.False(t, p.Running())
}

func TestPrewarmer_StopSkipsFurtherBatches(t *testing.T) {
	var served atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		_, _ = w.Write([]byte("asset"))
	}))
	defer srv.Close()

	cache := store.New(1 << 20)
	p := New(cache, nil, metrics.NewCollector(), nil, Config{
		IdleWait:     50 * time.Millisecond,
		FetchTimeout: 5 * time.Second,
	})

	urls := make([]string, 6)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/assets/s-%d.png", srv.URL, i)
	}

	go func() {
		// Stop during the first idle wait; only batch scheduling is affected.
		time.Sleep(10 * time.Millisecond)
		p.Stop()
	}()

	result, err := p.Run(context.Background(), urls, 2, nil)
	require.NoError(t, err)

	assert.Less(t, result.Success+result.Failed, 6, "later batches must not run after Stop")
	assert.Equal(t, int64(result.Success), served.Load())
}

func TestPrewarmer_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("asset"))
	}))
	defer srv.Close()

	cache := store.New(1 << 20)
	p := newTestPrewarmer(cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, []string{srv.URL + "/assets/a.png"}, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Success)
}
