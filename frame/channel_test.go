package frame_test

import "github.com/eak1mov/go-libwall/swap"

// localCluster is a single-process swap channel: the local process is always
// the lowest-ranked (only) candidate, so every round with a pending frame
// swaps immediately.
type localCluster struct{}

func newLocalCluster() *localCluster { return &localCluster{} }

func (c *localCluster) coordinator() *swap.Coordinator {
	return swap.NewCoordinator(c)
}

func (c *localCluster) Rank() int { return 0 }

func (c *localCluster) ReportCandidacy(candidate bool) ([]int, error) {
	if candidate {
		return []int{0}, nil
	}
	return nil, nil
}

func (c *localCluster) Broadcast(value []byte) error { return nil }

func (c *localCluster) Receive() ([]byte, error) { return nil, nil }
