package slotring

import (
	"context"
	"time"
)

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// held tracks the slot a handle acquired and the ring generation it belongs to.
type held struct {
	index      int
	generation uint64
	ok         bool
}

// Producer is the write side of a Ring. Only one exists per ring, see
// Ring.Producer. A Producer must be used from a single goroutine.
type Producer[T any] struct {
	_    noCopy
	ring *Ring[T]
	slot held
}

// Consumer is the read side of a Ring. Only one exists per ring, see
// Ring.Consumer. A Consumer must be used from a single goroutine.
type Consumer[T any] struct {
	_    noCopy
	ring *Ring[T]
	slot held
}

// Producer claims the write side of the ring. It succeeds once, later calls
// return ErrRoleClaimed.
func (r *Ring[T]) Producer() (*Producer[T], error) {
	if !r.producerClaimed.CompareAndSwap(false, true) {
		return nil, ErrRoleClaimed
	}
	return &Producer[T]{ring: r}, nil
}

// Consumer claims the read side of the ring. It succeeds once, later calls
// return ErrRoleClaimed.
func (r *Ring[T]) Consumer() (*Consumer[T], error) {
	if !r.consumerClaimed.CompareAndSwap(false, true) {
		return nil, ErrRoleClaimed
	}
	return &Consumer[T]{ring: r}, nil
}

func (p *Producer[T]) hold(index int, generation uint64, err error) (*Slot[T], error) {
	if err != nil {
		return nil, err
	}
	p.slot = held{index: index, generation: generation, ok: true}
	return p.ring.Slot(index), nil
}

// Acquire waits up to timeout (<= 0 waits indefinitely) for a free slot and
// returns it. The slot stays acquired until Commit.
func (p *Producer[T]) Acquire(timeout time.Duration) (*Slot[T], error) {
	expiry, stop := expiry(timeout)
	defer stop()
	return p.hold(p.ring.acquireWrite(context.Background(), expiry))
}

// AcquireContext is Acquire bounded by ctx.
func (p *Producer[T]) AcquireContext(ctx context.Context) (*Slot[T], error) {
	if ctx == nil {
		panic(`slotring: nil context`)
	}
	return p.hold(p.ring.acquireWrite(ctx, nil))
}

// TryAcquire returns a free slot, or ErrFull without blocking.
func (p *Producer[T]) TryAcquire() (*Slot[T], error) {
	return p.hold(p.ring.tryAcquireWrite())
}

// Index returns the acquired slot index, -1 if none is held.
func (p *Producer[T]) Index() int {
	if !p.slot.ok {
		return -1
	}
	return p.slot.index
}

// SetTimestamp tags the acquired slot.
func (p *Producer[T]) SetTimestamp(us int64) {
	p.ring.SetTimestamp(p.mustHold(), us)
}

// StampNow tags the acquired slot with the ring's clock.
func (p *Producer[T]) StampNow() int64 {
	return p.ring.StampNow(p.mustHold())
}

func (p *Producer[T]) mustHold() int {
	if !p.slot.ok {
		panic(`slotring: producer holds no slot`)
	}
	return p.slot.index
}

// Commit publishes the acquired slot. It panics if no slot is held, or if the
// ring was resized or cleared since the slot was acquired.
func (p *Producer[T]) Commit() {
	p.mustHold()
	s := p.slot
	p.slot = held{}
	p.ring.commitWrite(s.generation, true)
}

// Write copies up to one slot worth of values into a free slot, tags it with
// timestamp and commits it, waiting up to timeout for room. It returns the
// number of values written.
func (p *Producer[T]) Write(timeout time.Duration, values []T, timestamp int64) (int, error) {
	s, err := p.Acquire(timeout)
	if err != nil {
		return 0, err
	}
	n := copy(s.DataAt(0), values)
	s.SetDataSpan(0, n)
	p.SetTimestamp(timestamp)
	p.Commit()
	return n, nil
}

func (c *Consumer[T]) hold(index int, generation uint64, err error) (*Slot[T], error) {
	if err != nil {
		return nil, err
	}
	c.slot = held{index: index, generation: generation, ok: true}
	return c.ring.Slot(index), nil
}

// Acquire waits up to timeout (<= 0 waits indefinitely) for an occupied slot
// and returns it. The slot stays acquired until Commit.
func (c *Consumer[T]) Acquire(timeout time.Duration) (*Slot[T], error) {
	expiry, stop := expiry(timeout)
	defer stop()
	return c.hold(c.ring.acquireRead(context.Background(), expiry))
}

// AcquireContext is Acquire bounded by ctx.
func (c *Consumer[T]) AcquireContext(ctx context.Context) (*Slot[T], error) {
	if ctx == nil {
		panic(`slotring: nil context`)
	}
	return c.hold(c.ring.acquireRead(ctx, nil))
}

// TryAcquire returns the next occupied slot, or ErrEmpty without blocking.
func (c *Consumer[T]) TryAcquire() (*Slot[T], error) {
	return c.hold(c.ring.tryAcquireRead())
}

// Index returns the acquired slot index, -1 if none is held.
func (c *Consumer[T]) Index() int {
	if !c.slot.ok {
		return -1
	}
	return c.slot.index
}

// Timestamp returns the tag of the acquired slot.
func (c *Consumer[T]) Timestamp() int64 {
	if !c.slot.ok {
		panic(`slotring: consumer holds no slot`)
	}
	return c.ring.Timestamp(c.slot.index)
}

// Commit releases the acquired slot. It panics if no slot is held, or if the
// ring was resized or cleared since the slot was acquired.
func (c *Consumer[T]) Commit() {
	if !c.slot.ok {
		panic(`slotring: consumer holds no slot`)
	}
	s := c.slot
	c.slot = held{}
	c.ring.commitRead(s.generation, true)
}

// Read drains up to len(dst) values from the front of the current slot,
// waiting up to timeout for one to become available. The slot is committed
// once its span is empty, so a slot may be drained across several calls.
// It returns the number of values copied and the slot's timestamp.
func (c *Consumer[T]) Read(timeout time.Duration, dst []T) (int, int64, error) {
	s, err := c.current(timeout)
	if err != nil {
		return 0, 0, err
	}
	n := copy(dst, s.Span())
	s.SetDataUsed(n)
	ts := c.Timestamp()
	if s.Len() == 0 {
		c.Commit()
	}
	return n, ts, nil
}

// current returns the held slot, acquiring one if needed.
func (c *Consumer[T]) current(timeout time.Duration) (*Slot[T], error) {
	if c.slot.ok {
		return c.ring.Slot(c.slot.index), nil
	}
	return c.Acquire(timeout)
}
