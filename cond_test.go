package slotring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// parks n goroutines on c, in order, and returns a channel receiving their ids as they wake
func parkWaiters(t *testing.T, mu *sync.Mutex, c *cond, n int) <-chan int {
	t.Helper()
	woken := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(id int) {
			mu.Lock()
			signaled, _ := c.wait(context.Background(), nil)
			mu.Unlock()
			if signaled {
				woken <- id
			}
		}(i)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return c.waiting == i+1
		}, time.Second, time.Millisecond)
	}
	return woken
}

func TestCondSignalFIFO(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	c := newCond(&mu)
	woken := parkWaiters(t, &mu, c, 3)

	for want := 0; want < 3; want++ {
		mu.Lock()
		c.signal()
		mu.Unlock()
		select {
		case got := <-woken:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("waiter %d not woken", want)
		}
	}

	mu.Lock()
	assert.Equal(t, 0, c.waiting)
	assert.Equal(t, 0, c.waiters.Length())
	mu.Unlock()
}

func TestCondBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	c := newCond(&mu)
	woken := parkWaiters(t, &mu, c, 4)

	mu.Lock()
	c.broadcast()
	mu.Unlock()

	for i := 0; i < 4; i++ {
		select {
		case <-woken:
		case <-time.After(time.Second):
			t.Fatalf("only %d of 4 waiters woken", i)
		}
	}
}

func TestCondExpirySkipsAbandonedWaiter(t *testing.T) {
	var mu sync.Mutex
	c := newCond(&mu)

	mu.Lock()
	start := time.Now()
	signaled, expired := c.wait(context.Background(), time.After(20*time.Millisecond))
	assert.False(t, signaled)
	assert.True(t, expired)
	assert.True(t, time.Since(start) >= 20*time.Millisecond)
	// pruned from the head, nothing left to signal
	assert.Equal(t, 0, c.waiters.Length())
	assert.Equal(t, 0, c.waiting)
	mu.Unlock()

	// abandoned behind a live waiter: stays queued, and signal must skip it
	ctx, cancel := context.WithCancel(context.Background())
	woken := make(chan string, 3)
	park := func(name string, ctx context.Context, waiting int) {
		go func() {
			mu.Lock()
			if signaled, _ := c.wait(ctx, nil); signaled {
				woken <- name
			}
			mu.Unlock()
		}()
		require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return c.waiting == waiting }, time.Second, time.Millisecond)
	}
	park("a", context.Background(), 1)
	park("b", ctx, 2)
	park("c", context.Background(), 3)

	cancel()
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return c.waiting == 2 }, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, 3, c.waiters.Length())
	mu.Unlock()

	for _, want := range []string{"a", "c"} {
		mu.Lock()
		c.signal()
		mu.Unlock()
		select {
		case got := <-woken:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("waiter %s not woken", want)
		}
	}

	mu.Lock()
	assert.Equal(t, 0, c.waiters.Length())
	mu.Unlock()
}

func TestExpiryNonPositiveNeverFires(t *testing.T) {
	ch, stop := expiry(0)
	assert.Nil(t, ch)
	assert.False(t, stop())

	ch, stop = expiry(time.Millisecond)
	defer stop()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expiry did not fire")
	}
}
