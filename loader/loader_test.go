package loader_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eak1mov/go-libwall/loader"
	"github.com/eak1mov/go-libwall/tile"
	"github.com/stretchr/testify/require"
)

func drainAll(l *loader.Loader, want int) []loader.Result {
	deadline := time.Now().Add(5 * time.Second)
	var results []loader.Result
	for len(results) < want && time.Now().Before(deadline) {
		results = append(results, l.Drain()...)
		time.Sleep(time.Millisecond)
	}
	return results
}

func TestLoadCompletion(t *testing.T) {
	l := loader.New(func() loader.Source {
		return loader.SourceFunc(func(_ context.Context, id tile.ID) ([]byte, error) {
			return fmt.Appendf(nil, "%d/%d/%d", id.Level, id.X, id.Y), nil
		})
	}, loader.WithWorkers(4))
	defer l.Close()

	for i := range 8 {
		id := tile.ID{Level: 2, X: uint32(i % 4), Y: uint32(i / 4)}
		require.NoError(t, l.Request(tile.Index(i), id))
	}

	results := drainAll(l, 8)
	require.Len(t, results, 8)
	seen := make(map[tile.Index]string)
	for _, r := range results {
		require.NoError(t, r.Err)
		seen[r.Index] = string(r.Pixels)
	}
	require.Equal(t, "2/1/0", seen[1])
	require.Equal(t, "2/0/1", seen[4])
}

func TestDuplicateRequestIsNoOp(t *testing.T) {
	var fetches atomic.Int64
	release := make(chan struct{})

	l := loader.New(func() loader.Source {
		return loader.SourceFunc(func(context.Context, tile.ID) ([]byte, error) {
			fetches.Add(1)
			<-release
			return []byte("px"), nil
		})
	}, loader.WithWorkers(1), loader.WithQueueCapacity(4))
	defer l.Close()

	id := tile.ID{Level: 1}
	require.NoError(t, l.Request(7, id))
	require.NoError(t, l.Request(7, id))
	require.NoError(t, l.Request(7, id))
	require.Equal(t, 1, l.Pending())

	close(release)
	results := drainAll(l, 1)
	require.Len(t, results, 1)
	require.Equal(t, int64(1), fetches.Load())
}

func TestDecodeFailureDoesNotAbort(t *testing.T) {
	errDecode := errors.New("bad tile")
	l := loader.New(func() loader.Source {
		return loader.SourceFunc(func(_ context.Context, id tile.ID) ([]byte, error) {
			if id.X == 1 {
				return nil, errDecode
			}
			return []byte("ok"), nil
		})
	}, loader.WithWorkers(2))
	defer l.Close()

	require.NoError(t, l.Request(0, tile.ID{Level: 1, X: 0}))
	require.NoError(t, l.Request(1, tile.ID{Level: 1, X: 1}))

	results := drainAll(l, 2)
	require.Len(t, results, 2)
	var failed, succeeded int
	for _, r := range results {
		if r.Err != nil {
			failed++
			require.Nil(t, r.Pixels, "failed tile keeps no pixel data")
		} else {
			succeeded++
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 1, succeeded)
	require.Equal(t, uint64(1), l.Failures())
}

func TestCancelDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	l := loader.New(func() loader.Source {
		return loader.SourceFunc(func(context.Context, tile.ID) ([]byte, error) {
			close(started)
			<-release
			return []byte("px"), nil
		})
	}, loader.WithWorkers(1))
	defer l.Close()

	require.NoError(t, l.Request(3, tile.ID{Level: 1}))
	<-started

	// Load already in progress: cancellation is best-effort, the result
	// is discarded on completion.
	l.Cancel(3)
	close(release)

	deadline := time.Now().Add(time.Second)
	for l.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Zero(t, l.Pending())
	require.Empty(t, l.Drain())
}

func TestCancelAllBlocksUntilDrained(t *testing.T) {
	var inFlight atomic.Int64
	release := make(chan struct{})

	l := loader.New(func() loader.Source {
		return loader.SourceFunc(func(context.Context, tile.ID) ([]byte, error) {
			inFlight.Add(1)
			defer inFlight.Add(-1)
			<-release
			return []byte("px"), nil
		})
	}, loader.WithWorkers(2), loader.WithQueueCapacity(8))
	defer l.Close()

	for i := range 4 {
		require.NoError(t, l.Request(tile.Index(i), tile.ID{Level: 2, X: uint32(i)}))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	returned := make(chan struct{})
	go func() {
		defer wg.Done()
		l.CancelAll()
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("CancelAll returned while loads were still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	require.Zero(t, l.Pending())
	require.Zero(t, inFlight.Load())
	require.Empty(t, l.Drain(), "cancelled loads deliver no results")
}

func TestRequestAfterCloseFails(t *testing.T) {
	l := loader.New(func() loader.Source {
		return loader.SourceFunc(func(context.Context, tile.ID) ([]byte, error) {
			return nil, nil
		})
	}, loader.WithWorkers(1))
	l.Close()

	require.ErrorIs(t, l.Request(0, tile.ID{}), loader.ErrClosed)
}
