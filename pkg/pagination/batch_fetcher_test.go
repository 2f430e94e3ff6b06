package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	total   int
	failOn  int
	delay   time.Duration
	calls   atomic.Int32
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, int, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if pageNum == f.failOn {
		return nil, 0, fmt.Errorf("page %d: boom", pageNum)
	}
	return []byte(fmt.Sprintf("%s#%d", endpoint, pageNum)), f.total, nil
}

func TestFetchAllPages_Order(t *testing.T) {
	f := &fakeFetcher{total: 7, delay: time.Millisecond}
	bf := NewBatchFetcher(f, Config{MaxConcurrency: 3})

	pages, err := bf.FetchAllPages(context.Background(), "/movie/popular")
	require.NoError(t, err)
	require.Len(t, pages, 7)
	for i, p := range pages {
		assert.Equal(t, fmt.Sprintf("/movie/popular#%d", i+1), string(p))
	}
	assert.Equal(t, int32(7), f.calls.Load())
	assert.LessOrEqual(t, f.maxSeen, 3)
}

func TestFetchAllPages_SinglePage(t *testing.T) {
	f := &fakeFetcher{total: 1}
	pages, err := NewBatchFetcher(f, DefaultConfig()).FetchAllPages(context.Background(), "/x")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestFetchAllPages_MaxPages(t *testing.T) {
	f := &fakeFetcher{total: 500}
	pages, err := NewBatchFetcher(f, Config{MaxPages: 3}).FetchAllPages(context.Background(), "/x")
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestFetchAllPages_FirstPageError(t *testing.T) {
	f := &fakeFetcher{total: 5, failOn: 1}
	pages, err := NewBatchFetcher(f, DefaultConfig()).FetchAllPages(context.Background(), "/x")
	assert.Error(t, err)
	assert.Nil(t, pages)
	assert.Contains(t, err.Error(), "fetch page 1")
}

func TestFetchAllPages_NoPartialData(t *testing.T) {
	f := &fakeFetcher{total: 20, failOn: 4, delay: time.Millisecond}
	pages, err := NewBatchFetcher(f, Config{MaxConcurrency: 2}).FetchAllPages(context.Background(), "/x")
	require.Error(t, err)
	assert.Nil(t, pages)
	assert.Contains(t, err.Error(), "fetch page 4")
	assert.Less(t, f.calls.Load(), int32(20), "remaining pages are cancelled")
}

func TestFetchAllPages_ContextCancelled(t *testing.T) {
	f := &fakeFetcher{total: 10, delay: 50 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()

	pages, err := NewBatchFetcher(f, Config{MaxConcurrency: 1}).FetchAllPages(ctx, "/x")
	require.Error(t, err)
	assert.Nil(t, pages)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
