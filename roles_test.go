package slotring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
	"go.uber.org/goleak"
)

func TestRolesClaimedOnce(t *testing.T) {
	r := New[int](2, 2)

	p, err := r.Producer()
	require.NoError(t, err)
	require.NotNil(t, p)
	_, err = r.Producer()
	assert.ErrorIs(t, err, ErrRoleClaimed)

	c, err := r.Consumer()
	require.NoError(t, err)
	require.NotNil(t, c)
	_, err = r.Consumer()
	assert.ErrorIs(t, err, ErrRoleClaimed)
}

func TestRolesRoundTrip(t *testing.T) {
	r := New[byte](2, 8)
	p, err := r.Producer()
	require.NoError(t, err)
	c, err := r.Consumer()
	require.NoError(t, err)

	assert.Equal(t, -1, p.Index())
	s, err := p.Acquire(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index())
	n := copy(s.Data(), "sample")
	s.SetDataSpan(0, n)
	p.SetTimestamp(123)
	p.Commit()
	assert.Equal(t, -1, p.Index())

	s, err = c.Acquire(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, "sample", string(s.Span()))
	assert.Equal(t, int64(123), c.Timestamp())
	c.Commit()
	assert.Equal(t, 0, r.Level())
	assert.Equal(t, 0, s.Len())
}

func TestRolesWriteTruncatesToSlot(t *testing.T) {
	r := New[int](1, 3)
	p, _ := r.Producer()

	n, err := p.Write(time.Second, []int{1, 2, 3, 4, 5}, 9)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, r.Slot(0).Span())
	assert.Equal(t, int64(9), r.Timestamp(0))

	_, err = p.Write(10*time.Millisecond, []int{6}, 10)
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = p.TryAcquire()
	assert.ErrorIs(t, err, ErrFull)
}

func TestRolesPartialDrain(t *testing.T) {
	r := New[int](2, 5)
	p, _ := r.Producer()
	c, _ := r.Consumer()

	_, err := p.Write(0, []int{1, 2, 3, 4, 5}, 77)
	require.NoError(t, err)

	buf := make([]int, 2)
	var got []int
	for i := 0; i < 2; i++ {
		n, ts, err := c.Read(time.Second, buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, int64(77), ts)
		got = append(got, buf[:n]...)
		// still mid-slot: nothing released yet
		assert.Equal(t, 1, r.Level())
		assert.Equal(t, 0, c.Index())
	}

	n, _, err := c.Read(time.Second, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got = append(got, buf[:n]...)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.Equal(t, 0, r.Level())
	assert.Equal(t, -1, c.Index())

	_, _, err = c.Read(10*time.Millisecond, buf)
	assert.ErrorIs(t, err, ErrTimeout)
	_, err = c.TryAcquire()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRolesCommitWithoutAcquirePanics(t *testing.T) {
	r := New[int](1, 1)
	p, _ := r.Producer()
	c, _ := r.Consumer()

	assert.PanicsWithValue(t, `slotring: producer holds no slot`, p.Commit)
	assert.PanicsWithValue(t, `slotring: consumer holds no slot`, c.Commit)
	assert.Panics(t, func() { p.SetTimestamp(1) })
	assert.Panics(t, func() { c.Timestamp() })
}

func TestRolesCommitAfterResizePanics(t *testing.T) {
	r := New[int](2, 1)
	p, _ := r.Producer()
	c, _ := r.Consumer()

	_, err := p.Acquire(0)
	require.NoError(t, err)
	r.Resize(4, 1)
	assert.PanicsWithValue(t, `slotring: commit write of a slot acquired before Resize or Clear`, p.Commit)
	assert.Equal(t, 0, r.Level())

	_, err = p.Write(0, []int{1}, 0)
	require.NoError(t, err)
	_, err = c.Acquire(0)
	require.NoError(t, err)
	r.Clear()
	assert.PanicsWithValue(t, `slotring: commit read of a slot acquired before Resize or Clear`, c.Commit)
}

func TestRolesStampNow(t *testing.T) {
	r := New[int](1, 1, WithClock(func() int64 { return 555 }))
	p, _ := r.Producer()

	_, err := p.TryAcquire()
	require.NoError(t, err)
	assert.Equal(t, int64(555), p.StampNow())
	p.Commit()
	assert.Equal(t, int64(555), r.Timestamp(0))
}

func TestRolesCloseReleasesBlockedConsumer(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := New[int](1, 1)
	c, _ := r.Consumer()

	errs := make(chan error, 1)
	go func() {
		_, _, err := c.Read(0, make([]int, 1))
		errs <- err
	}()
	require.Eventually(t, func() bool { return r.Stats().ReadWaits == 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.Close())
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("consumer not released by Close")
	}
}

// Stream of random-length writes drained through random-length reads.
func TestRolesStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		slots    = 3
		capacity = 16
		total    = 200_000
	)
	r := New[int](slots, capacity)
	p, _ := r.Producer()
	c, _ := r.Consumer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]int, capacity)
		for next := 0; next < total; {
			k := 1 + int(fastrand.Uint32n(capacity))
			if k > total-next {
				k = total - next
			}
			for i := 0; i < k; i++ {
				buf[i] = next + i
			}
			n, err := p.Write(0, buf[:k], int64(next))
			if err != nil {
				t.Errorf("producer: %v", err)
				return
			}
			next += n
		}
	}()

	buf := make([]int, capacity)
	for next := 0; next < total; {
		n, _, err := c.Read(time.Second, buf[:1+fastrand.Uint32n(capacity)])
		require.NoError(t, err)
		for _, v := range buf[:n] {
			if v != next {
				t.Fatalf("expected %d, got %d (FIFO violated)", next, v)
			}
			next++
		}
	}
	wg.Wait()
	assert.Equal(t, 0, r.Level())
}

func TestRolesAcquireContext(t *testing.T) {
	r := New[int](1, 1)
	p, _ := r.Producer()
	c, _ := r.Consumer()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.AcquireContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, c.Index())

	s, err := p.AcquireContext(context.Background())
	require.NoError(t, err)
	s.SetFull()
	p.Commit()

	s, err = c.AcquireContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	c.Commit()
}
