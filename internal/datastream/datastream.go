// Package datastream carries datapoints from a running measurement to live
// observers. Producers never block and never fail: a relay is a best-effort
// side channel, persistence happens in the database.
package datastream

import (
	"context"
	"sync"
)

// Datapoint is one measured row, tagged with the pixel it belongs to.
type Datapoint struct {
	Pixel  string
	Values []float64
}

// Relay receives datapoints as they are measured. Publish must not block the
// measurement loop.
type Relay interface {
	Publish(point Datapoint)
}

// Null discards everything. It is the default relay when no observer is
// attached.
type Null struct{}

func (Null) Publish(Datapoint) {}

// Buffer is an in-memory FIFO relay. Points come out in publish order; Next
// blocks until a point arrives, the buffer is closed, or the context ends.
type Buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Datapoint
	closed bool
}

// NewBuffer builds an empty FIFO relay.
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends a point. Publishing to a closed buffer is a no-op.
func (b *Buffer) Publish(point Datapoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	// A nil Values slice is a completion marker and must survive as nil.
	var values []float64
	if point.Values != nil {
		values = make([]float64, len(point.Values))
		copy(values, point.Values)
	}
	b.queue = append(b.queue, Datapoint{Pixel: point.Pixel, Values: values})
	b.cond.Signal()
}

// Next returns the oldest unconsumed point. The second result is false once
// the buffer is closed and drained, or the context is done.
func (b *Buffer) Next(ctx context.Context) (Datapoint, bool) {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 {
		if b.closed || ctx.Err() != nil {
			return Datapoint{}, false
		}
		b.cond.Wait()
	}
	point := b.queue[0]
	b.queue = b.queue[1:]
	return point, true
}

// TryNext returns the oldest unconsumed point without blocking.
func (b *Buffer) TryNext() (Datapoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Datapoint{}, false
	}
	point := b.queue[0]
	b.queue = b.queue[1:]
	return point, true
}

// Len returns the number of unconsumed points.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close wakes blocked consumers; published points already in the queue stay
// readable through TryNext and Next until drained.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
