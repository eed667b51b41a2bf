// Package swap implements cluster-wide frame swapping: a version-tagged
// double buffer (Object) and the per-round agreement protocol (Coordinator)
// that promotes pending values to current on every participating process at
// the same logical instant.
package swap

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Object is a version-tagged double buffer. Update overwrites the pending
// value (last writer wins, never queued); Sync promotes pending to current
// only when a coordinator round agrees. A slow process therefore always
// swaps to the latest available value, never a stale one.
//
// The payload must be CBOR-serializable: the agreed round value travels
// through the broadcast channel, so every process that swaps in a round ends
// it with an identical current value regardless of what it had pending.
type Object[T any] struct {
	mu      sync.Mutex
	pending *T
	current *T
	version uint64
	onSwap  func(T)
}

func NewObject[T any]() *Object[T] {
	return &Object[T]{}
}

// OnSwap registers a callback fired with the new current value after each
// successful swap. The callback runs on the goroutine calling Sync.
func (o *Object[T]) OnSwap(fn func(T)) {
	o.mu.Lock()
	o.onSwap = fn
	o.mu.Unlock()
}

// Update replaces the pending value. Always legal: if the previous pending
// value was never swapped in, it is silently discarded in favor of the
// newer one. Currency beats completeness.
func (o *Object[T]) Update(v T) {
	o.mu.Lock()
	o.pending = &v
	o.version++
	o.mu.Unlock()
}

// Current returns the last swapped-in value, or false if no swap has
// happened yet.
func (o *Object[T]) Current() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		var zero T
		return zero, false
	}
	return *o.current, true
}

// Version returns the version tag of the pending value.
func (o *Object[T]) Version() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.version
}

// envelope is the wire form of a pending value in a coordinator round.
type envelope struct {
	Version uint64 `cbor:"1,keyasint"`
	Payload []byte `cbor:"2,keyasint"`
}

// Sync runs one agreement round through the coordinator. The process is a
// candidate iff it has a pending value. When the round agrees on a swap,
// the leader's value becomes current and pending is cleared; when it does
// not (no candidates cluster-wide, or this process sat the round out as a
// non-candidate), current is left unchanged.
func (o *Object[T]) Sync(c *Coordinator) (bool, error) {
	o.mu.Lock()
	candidate := o.pending != nil
	version := o.version
	var local []byte
	if candidate {
		payload, err := cbor.Marshal(*o.pending)
		if err != nil {
			o.mu.Unlock()
			return false, fmt.Errorf("libwall: encode pending: %w", err)
		}
		local, err = cbor.Marshal(envelope{Version: version, Payload: payload})
		if err != nil {
			o.mu.Unlock()
			return false, fmt.Errorf("libwall: encode pending: %w", err)
		}
	}
	o.mu.Unlock()

	agreed, swapped, err := c.Round(candidate, local)
	if err != nil {
		return false, err
	}
	if !swapped {
		return false, nil
	}

	var env envelope
	if err := cbor.Unmarshal(agreed, &env); err != nil {
		return false, fmt.Errorf("libwall: decode agreed value: %w", err)
	}
	var value T
	if err := cbor.Unmarshal(env.Payload, &value); err != nil {
		return false, fmt.Errorf("libwall: decode agreed value: %w", err)
	}

	o.mu.Lock()
	o.current = &value
	// Clear pending only if it is still the value this round presented.
	// An Update arriving mid-round stays pending for the next round
	// instead of being destroyed.
	if o.version == version {
		o.pending = nil
	}
	onSwap := o.onSwap
	o.mu.Unlock()

	if onSwap != nil {
		onSwap(value)
	}
	return true, nil
}
