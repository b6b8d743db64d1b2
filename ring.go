package slotring

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Ring is a bounded FIFO of fixed-capacity slots for one producer and one
// consumer.
//
// The producer calls AcquireWrite (or TryAcquireWrite), fills the slot, then
// CommitWrite. The consumer calls AcquireRead, drains the slot, then
// CommitRead. Acquire never changes the ring: repeated acquires without a
// commit return the same index. The slot contents are transferred without the
// lock; the mutex only serializes cursor and level bookkeeping.
//
// Exactly one goroutine may use the write side and exactly one the read side.
// Diagnostic methods (Level, SlotCount, SlotCapacity, Cursors, Stats) are safe
// from any goroutine, but their results may be stale as soon as they return.
type Ring[T any] struct {
	mu       sync.Mutex
	readable *cond // level > 0
	writable *cond // level < len(slots)

	slots      []Slot[T]
	timestamps []int64 // microseconds, parallel to slots
	readIndex  int     // next slot to read
	writeIndex int     // next slot to write
	level      int     // occupied slots
	generation uint64  // bumped by Resize and Clear
	closed     bool
	drained    chan struct{} // closed by the last waiter to leave after Close

	producerClaimed atomic.Bool
	consumerClaimed atomic.Bool

	stats counters

	logger     *zap.Logger
	clock      func() int64
	closeGrace time.Duration
}

// New creates a ring of slots slots, each holding slotCapacity elements.
// It panics if either size is negative. A ring with no slots is valid, but
// can never be written.
func New[T any](slots, slotCapacity int, opts ...Option) *Ring[T] {
	o := newOptions(opts)
	r := &Ring[T]{
		logger:     o.logger.Named("slotring"),
		clock:      o.clock,
		closeGrace: o.closeGrace,
	}
	r.readable = newCond(&r.mu)
	r.writable = newCond(&r.mu)
	r.reset(slots, slotCapacity)
	return r
}

func (r *Ring[T]) reset(slots, slotCapacity int) {
	if slots < 0 {
		panic(`slotring: negative slot count`)
	}
	if slotCapacity < 0 {
		panic(`slotring: negative slot capacity`)
	}
	r.slots = make([]Slot[T], slots)
	for i := range r.slots {
		r.slots[i].Resize(slotCapacity)
	}
	r.timestamps = make([]int64, slots)
	r.readIndex = 0
	r.writeIndex = 0
	r.level = 0
	r.generation++
}

// AcquireRead returns the index of the next slot to read, waiting up to
// timeout while the ring is empty. A timeout <= 0 waits indefinitely.
// Returns ErrTimeout if no slot became readable in time, or ErrClosed.
func (r *Ring[T]) AcquireRead(timeout time.Duration) (int, error) {
	expiry, stop := expiry(timeout)
	defer stop()
	index, _, err := r.acquireRead(context.Background(), expiry)
	return index, err
}

// AcquireReadContext is AcquireRead bounded by ctx instead of a timeout.
func (r *Ring[T]) AcquireReadContext(ctx context.Context) (int, error) {
	if ctx == nil {
		panic(`slotring: nil context`)
	}
	index, _, err := r.acquireRead(ctx, nil)
	return index, err
}

// TryAcquireRead returns the next slot to read, or ErrEmpty without blocking.
func (r *Ring[T]) TryAcquireRead() (int, error) {
	index, _, err := r.tryAcquireRead()
	return index, err
}

func (r *Ring[T]) tryAcquireRead() (int, uint64, error) {
	r.stats.readAcquires.Inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return -1, 0, ErrClosed
	case !r.readReady():
		r.stats.readEmpty.Inc()
		return -1, 0, ErrEmpty
	}
	return r.readIndex, r.generation, nil
}

func (r *Ring[T]) acquireRead(ctx context.Context, expiry <-chan time.Time) (int, uint64, error) {
	r.stats.readAcquires.Inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.await(ctx, expiry, r.readable, r.readReady, &r.stats.readWaits, &r.stats.readTimeouts)
	if err != nil {
		return -1, 0, errors.WithMessage(err, "acquire read")
	}
	return r.readIndex, r.generation, nil
}

// AcquireWrite returns the index of the next slot to fill, waiting up to
// timeout while the ring is full. A timeout <= 0 waits indefinitely.
// Returns ErrTimeout if no slot became free in time, or ErrClosed.
func (r *Ring[T]) AcquireWrite(timeout time.Duration) (int, error) {
	expiry, stop := expiry(timeout)
	defer stop()
	index, _, err := r.acquireWrite(context.Background(), expiry)
	return index, err
}

// AcquireWriteContext is AcquireWrite bounded by ctx instead of a timeout.
func (r *Ring[T]) AcquireWriteContext(ctx context.Context) (int, error) {
	if ctx == nil {
		panic(`slotring: nil context`)
	}
	index, _, err := r.acquireWrite(ctx, nil)
	return index, err
}

// TryAcquireWrite returns the next slot to fill, or ErrFull without blocking.
func (r *Ring[T]) TryAcquireWrite() (int, error) {
	index, _, err := r.tryAcquireWrite()
	return index, err
}

func (r *Ring[T]) tryAcquireWrite() (int, uint64, error) {
	r.stats.writeAcquires.Inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return -1, 0, ErrClosed
	case !r.writeReady():
		r.stats.writeFull.Inc()
		return -1, 0, ErrFull
	}
	return r.writeIndex, r.generation, nil
}

func (r *Ring[T]) acquireWrite(ctx context.Context, expiry <-chan time.Time) (int, uint64, error) {
	r.stats.writeAcquires.Inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.await(ctx, expiry, r.writable, r.writeReady, &r.stats.writeWaits, &r.stats.writeTimeouts)
	if err != nil {
		return -1, 0, errors.WithMessage(err, "acquire write")
	}
	return r.writeIndex, r.generation, nil
}

func (r *Ring[T]) readReady() bool  { return r.level > 0 }
func (r *Ring[T]) writeReady() bool { return r.level < len(r.slots) }

// await blocks on c until ready holds, the ring closes, expiry fires or ctx
// is done. Must be called with r.mu held.
func (r *Ring[T]) await(ctx context.Context, expiry <-chan time.Time, c *cond, ready func() bool, waits, timeouts *atomic.Uint64) error {
	if err := ctx.Err(); err != nil {
		timeouts.Inc()
		return err
	}
	for waited := false; ; waited = true {
		if r.closed {
			if waited {
				timeouts.Inc()
			}
			return ErrClosed
		}
		if ready() {
			return nil
		}
		if !waited {
			waits.Inc()
		}
		signaled, expired := c.wait(ctx, expiry)
		r.leftWait()
		if r.closed || ready() || (signaled && !expired && ctx.Err() == nil) {
			continue
		}
		timeouts.Inc()
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTimeout
	}
}

// leftWait completes a pending Close once the last waiter is gone.
func (r *Ring[T]) leftWait() {
	if r.drained != nil && r.readable.waiting+r.writable.waiting == 0 {
		close(r.drained)
		r.drained = nil
	}
}

// CommitRead releases the slot at the read cursor: it empties the slot's
// span, advances the cursor and wakes a blocked producer if the ring was
// full. Consumer only, once per successful read acquire.
//
// It panics if the ring is empty.
func (r *Ring[T]) CommitRead() {
	r.commitRead(0, false)
}

func (r *Ring[T]) commitRead(generation uint64, checkGeneration bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if checkGeneration && generation != r.generation {
		panic(`slotring: commit read of a slot acquired before Resize or Clear`)
	}
	if r.level == 0 {
		panic(`slotring: commit read on an empty ring`)
	}

	r.slots[r.readIndex].SetEmpty()

	r.level--
	r.readIndex++
	if r.readIndex >= len(r.slots) {
		r.readIndex = 0
	}
	r.stats.reads.Inc()

	if r.level == len(r.slots)-1 {
		r.writable.signal()
	}
}

// CommitWrite publishes the slot at the write cursor, advances the cursor
// and wakes a blocked consumer if the ring was empty. The slot's span must
// already describe the written data. Producer only, once per successful
// write acquire.
//
// It panics if the ring is full.
func (r *Ring[T]) CommitWrite() {
	r.commitWrite(0, false)
}

func (r *Ring[T]) commitWrite(generation uint64, checkGeneration bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if checkGeneration && generation != r.generation {
		panic(`slotring: commit write of a slot acquired before Resize or Clear`)
	}
	if r.level >= len(r.slots) {
		panic(`slotring: commit write on a full ring`)
	}

	r.level++
	r.writeIndex++
	if r.writeIndex >= len(r.slots) {
		r.writeIndex = 0
	}
	r.stats.writes.Inc()

	if r.level == 1 {
		r.readable.signal()
	}
}

// Level returns the number of occupied slots.
func (r *Ring[T]) Level() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// SlotCapacity returns the number of elements per slot, 0 if the ring has
// no slots.
func (r *Ring[T]) SlotCapacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.slots) == 0 {
		return 0
	}
	return r.slots[0].Cap()
}

func (r *Ring[T]) SlotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Cursors returns the read and write indexes.
func (r *Ring[T]) Cursors() (read, write int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readIndex, r.writeIndex
}

// Stats returns a snapshot of the ring's counters.
func (r *Ring[T]) Stats() Stats {
	return r.stats.snapshot()
}

// Resize discards every slot and reallocates slots slots of slotCapacity
// elements. Cursors, level and timestamps are reset. Indexes, slots and data
// slices obtained before the call are invalid afterwards.
//
// Resize must not run while the producer or consumer is between an acquire
// and its commit.
func (r *Ring[T]) Resize(slots, slotCapacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset(slots, slotCapacity)
	r.stats.resizes.Inc()
	r.writable.signal()
	r.logger.Debug("resized",
		zap.Int("slots", slots),
		zap.Int("slot_capacity", slotCapacity))
}

// Clear empties the ring without reallocating: cursors and level go to zero,
// every span is emptied and every timestamp zeroed. A blocked producer is
// woken; a blocked consumer is not, since nothing became readable.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := r.level
	r.readIndex = 0
	r.writeIndex = 0
	r.level = 0
	for i := range r.slots {
		r.slots[i].SetEmpty()
		r.timestamps[i] = 0
	}
	r.generation++
	r.stats.clears.Inc()
	r.writable.signal()
	r.logger.Debug("cleared", zap.Int("dropped", dropped))
}

// Data returns the storage of slot index from its span start, for callers
// transferring whole slots.
func (r *Ring[T]) Data(index int) []T {
	return r.slots[index].Data()
}

// Slot returns slot index for span-level access. The pointer is valid until
// the next Resize.
func (r *Ring[T]) Slot(index int) *Slot[T] {
	return &r.slots[index]
}

// Timestamp returns the tag of slot index, in microseconds.
func (r *Ring[T]) Timestamp(index int) int64 {
	return r.timestamps[index]
}

// SetTimestamp tags slot index. The tag is independent of the slot's
// occupancy and may be set before or after CommitWrite.
func (r *Ring[T]) SetTimestamp(index int, us int64) {
	r.timestamps[index] = us
}

// StampNow tags slot index with the ring's clock and returns the tag.
func (r *Ring[T]) StampNow(index int) int64 {
	us := r.clock()
	r.timestamps[index] = us
	return us
}

// Close shuts the ring down: every blocked and future acquire returns
// ErrClosed. Close waits, up to the close grace, for blocked acquirers to
// leave, and returns an error wrapping ErrCloseGrace if some did not.
// Closing a closed ring returns nil.
func (r *Ring[T]) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.readable.broadcast()
	r.writable.broadcast()
	waiting := r.readable.waiting + r.writable.waiting
	var drained chan struct{}
	if waiting != 0 && r.closeGrace > 0 {
		drained = make(chan struct{})
		r.drained = drained
	}
	r.mu.Unlock()

	if drained == nil {
		return nil
	}

	timer := time.NewTimer(r.closeGrace)
	defer timer.Stop()
	select {
	case <-drained:
		return nil
	case <-timer.C:
	}

	r.mu.Lock()
	waiting = r.readable.waiting + r.writable.waiting
	r.drained = nil
	r.mu.Unlock()

	if waiting == 0 {
		return nil
	}
	r.logger.Warn("closed with blocked waiters", zap.Int("waiters", waiting), zap.Duration("grace", r.closeGrace))
	return errors.Wrapf(ErrCloseGrace, "slotring: %d waiter(s)", waiting)
}
