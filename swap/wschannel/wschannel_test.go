package wschannel_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/eak1mov/go-libwall/swap"
	"github.com/eak1mov/go-libwall/swap/wschannel"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) string {
	t.Helper()

	hub := wschannel.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string, rank int) *wschannel.Client {
	t.Helper()

	client, err := wschannel.Dial(url, rank)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// roundResult is one process's view of a finished round.
type roundResult struct {
	value []byte
	swap  bool
	err   error
}

// runRound drives one barrier round on every coordinator concurrently.
func runRound(coords []*swap.Coordinator, candidate []bool, local [][]byte) []roundResult {
	results := make([]roundResult, len(coords))

	var wg sync.WaitGroup
	for i, c := range coords {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := &results[i]
			r.value, r.swap, r.err = c.Round(candidate[i], local[i])
		}()
	}
	wg.Wait()
	return results
}

func TestRoundOverHub(t *testing.T) {
	url := startHub(t)

	coords := []*swap.Coordinator{
		swap.NewCoordinator(dial(t, url, 0)),
		swap.NewCoordinator(dial(t, url, 1)),
		swap.NewCoordinator(dial(t, url, 2)),
	}

	// All candidates: rank 0 leads and everyone presents its value.
	results := runRound(coords,
		[]bool{true, true, true},
		[][]byte{[]byte("zero"), []byte("one"), []byte("two")})
	for i, r := range results {
		require.NoError(t, r.err, "rank %v", i)
		require.True(t, r.swap, "rank %v", i)
		require.Equal(t, []byte("zero"), r.value, "rank %v", i)
	}

	// Rank 0 sits out: leadership moves to rank 1, rank 0 keeps current.
	results = runRound(coords,
		[]bool{false, true, true},
		[][]byte{nil, []byte("one"), []byte("two")})
	require.NoError(t, results[0].err)
	require.False(t, results[0].swap)
	for _, i := range []int{1, 2} {
		require.NoError(t, results[i].err, "rank %v", i)
		require.True(t, results[i].swap, "rank %v", i)
		require.Equal(t, []byte("one"), results[i].value, "rank %v", i)
	}

	// Nobody has a value: the round completes without a swap anywhere.
	results = runRound(coords,
		[]bool{false, false, false},
		[][]byte{nil, nil, nil})
	for i, r := range results {
		require.NoError(t, r.err, "rank %v", i)
		require.False(t, r.swap, "rank %v", i)
	}
}

func TestManyRounds(t *testing.T) {
	url := startHub(t)

	coords := []*swap.Coordinator{
		swap.NewCoordinator(dial(t, url, 0)),
		swap.NewCoordinator(dial(t, url, 1)),
	}

	for round := range 20 {
		want := []byte{byte(round)}
		results := runRound(coords, []bool{true, true}, [][]byte{want, want})
		for i, r := range results {
			require.NoError(t, r.err, "round %v rank %v", round, i)
			require.True(t, r.swap, "round %v rank %v", round, i)
			require.Equal(t, want, r.value, "round %v rank %v", round, i)
		}
	}

	stats := coords[0].Stats()
	require.Equal(t, uint64(20), stats.Rounds)
	require.Equal(t, uint64(20), stats.Swaps)
	require.Equal(t, uint64(20), stats.Leads)
}

func TestReceiveAfterHubGone(t *testing.T) {
	hub := wschannel.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	server := httptest.NewServer(hub.Handler())

	client := dial(t, "ws"+strings.TrimPrefix(server.URL, "http"), 0)

	cancel()
	server.CloseClientConnections()
	server.Close()

	_, err := client.ReportCandidacy(true)
	require.Error(t, err)
}
