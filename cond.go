package slotring

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// waiter is one parked goroutine. signaled and abandoned are only touched with
// the cond's lock held.
type waiter struct {
	ch        chan struct{}
	signaled  bool
	abandoned bool
}

// cond is a condition variable whose Wait can also give up on a deadline or a
// context, which sync.Cond cannot. Waiters are woken in FIFO order.
type cond struct {
	L       *sync.Mutex
	waiters *queue.Queue // *waiter, oldest first
	waiting int          // goroutines currently inside wait
}

func newCond(l *sync.Mutex) *cond {
	return &cond{L: l, waiters: queue.New()}
}

// wait parks the caller until signal/broadcast, the expiry channel fires, or
// ctx is done. It must be called with c.L held, and returns with c.L held.
// signaled reports a wake from signal/broadcast, expired that the expiry
// channel was drained. As with any monitor the caller re-checks its predicate
// either way.
func (c *cond) wait(ctx context.Context, expiry <-chan time.Time) (signaled, expired bool) {
	w := &waiter{ch: make(chan struct{})}
	c.waiters.Add(w)
	c.waiting++

	c.L.Unlock()
	select {
	case <-w.ch:
	case <-expiry:
		expired = true
	case <-ctx.Done():
	}
	c.L.Lock()

	c.waiting--
	if w.signaled {
		return true, expired
	}
	w.abandoned = true
	c.prune()
	return false, expired
}

// prune drops abandoned waiters from the head of the queue.
func (c *cond) prune() {
	for c.waiters.Length() > 0 && c.waiters.Peek().(*waiter).abandoned {
		c.waiters.Remove()
	}
}

// signal wakes the oldest waiter that has not given up, if any.
func (c *cond) signal() {
	for c.waiters.Length() > 0 {
		w := c.waiters.Remove().(*waiter)
		if w.abandoned {
			continue
		}
		w.signaled = true
		close(w.ch)
		return
	}
}

// broadcast wakes every waiter.
func (c *cond) broadcast() {
	for c.waiters.Length() > 0 {
		w := c.waiters.Remove().(*waiter)
		if w.abandoned {
			continue
		}
		w.signaled = true
		close(w.ch)
	}
}

// expiry returns a channel firing after timeout, and a stop func. A timeout
// <= 0 never fires.
func expiry(timeout time.Duration) (<-chan time.Time, func() bool) {
	if timeout <= 0 {
		return nil, func() bool { return false }
	}
	t := time.NewTimer(timeout)
	return t.C, t.Stop
}
