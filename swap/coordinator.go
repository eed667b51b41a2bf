package swap

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Channel is the reliable broadcast channel a Coordinator runs over. It is
// an external collaborator: implementations own connection liveness and
// delivery guarantees. All methods are called from the render thread, one
// round at a time.
type Channel interface {
	// Rank returns this process's fixed rank within the cluster.
	Rank() int

	// ReportCandidacy announces whether this process has a value to
	// present this round and returns the ranks of all candidates in the
	// round, including this process when candidate is true.
	ReportCandidacy(candidate bool) ([]int, error)

	// Broadcast publishes the round's canonical value. Leader only.
	Broadcast(value []byte) error

	// Receive blocks until the round's canonical value arrives.
	// Candidate followers only.
	Receive() ([]byte, error)
}

// Coordinator runs the two-phase leader-elected barrier. Leadership is not
// stored anywhere: the lowest-ranked candidate leads, recomputed from the
// candidate set every round, so repeated rounds cannot thrash between
// leaders while ranks are stable.
type Coordinator struct {
	ch     Channel
	logger *slog.Logger

	rounds uint64
	swaps  uint64
	leads  uint64
}

type CoordinatorOption func(*Coordinator)

func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

func NewCoordinator(ch Channel, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		ch:     ch,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Round executes one agreement round. The returned value is the round's
// canonical value when swap is true. Non-candidates never wait on the
// broadcast phase and never swap; a round with no candidates anywhere
// yields no swap for everyone.
//
// There is no timeout on the broadcast phase: a leader that never responds
// stalls the candidate followers. Liveness is the channel's concern.
func (c *Coordinator) Round(candidate bool, local []byte) (value []byte, swap bool, err error) {
	atomic.AddUint64(&c.rounds, 1)

	candidates, err := c.ch.ReportCandidacy(candidate)
	if err != nil {
		return nil, false, fmt.Errorf("libwall: candidacy report: %w", err)
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}
	if !candidate {
		// Others may swap this round; we keep our current value.
		return nil, false, nil
	}

	leader := candidates[0]
	for _, rank := range candidates[1:] {
		if rank < leader {
			leader = rank
		}
	}

	if leader == c.ch.Rank() {
		atomic.AddUint64(&c.leads, 1)
		c.logger.Debug("libwall: leading swap round", "rank", leader, "candidates", len(candidates))
		if err := c.ch.Broadcast(local); err != nil {
			return nil, false, fmt.Errorf("libwall: broadcast: %w", err)
		}
		atomic.AddUint64(&c.swaps, 1)
		return local, true, nil
	}

	value, err = c.ch.Receive()
	if err != nil {
		return nil, false, fmt.Errorf("libwall: receive: %w", err)
	}
	atomic.AddUint64(&c.swaps, 1)
	return value, true, nil
}

// Stats is a snapshot of coordinator activity, for diagnostics only.
type Stats struct {
	Rounds uint64
	Swaps  uint64
	Leads  uint64
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Rounds: atomic.LoadUint64(&c.rounds),
		Swaps:  atomic.LoadUint64(&c.swaps),
		Leads:  atomic.LoadUint64(&c.leads),
	}
}
