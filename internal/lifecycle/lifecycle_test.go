package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_StartRunsEveryTaskAndStopDrainsAll(t *testing.T) {
	sup := NewSupervisor(nil)

	var running int32
	blocker := func(ctx context.Context) error {
		atomic.AddInt32(&running, 1)
		<-ctx.Done()
		atomic.AddInt32(&running, -1)
		return nil
	}
	sup.Add("a", blocker)
	sup.Add("b", blocker)

	sup.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 2 }, time.Second, time.Millisecond)

	assert.True(t, sup.Running("a"))
	assert.True(t, sup.Running("b"))

	sup.Stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&running))
	assert.False(t, sup.Running("a"))
	assert.False(t, sup.Running("b"))
}

func TestSupervisor_RecordsLastErrorOnExit(t *testing.T) {
	sup := NewSupervisor(nil)
	boom := errors.New("boom")
	sup.Add("failing", func(ctx context.Context) error {
		return boom
	})

	sup.Start(context.Background())
	require.Eventually(t, func() bool {
		_, ok := sup.LastError("failing")
		return ok
	}, time.Second, time.Millisecond)

	err, ok := sup.LastError("failing")
	require.True(t, ok)
	assert.Equal(t, boom, err)
}

func TestSupervisor_StopTaskOnlyStopsOne(t *testing.T) {
	sup := NewSupervisor(nil)
	block := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	sup.Add("a", block)
	sup.Add("b", block)
	sup.Start(context.Background())

	require.Eventually(t, func() bool { return sup.Running("a") && sup.Running("b") }, time.Second, time.Millisecond)

	sup.StopTask("a")
	assert.False(t, sup.Running("a"))
	assert.True(t, sup.Running("b"))

	sup.Stop()
}

func TestSupervisor_StartIsIdempotentForAlreadyRunningTasks(t *testing.T) {
	sup := NewSupervisor(nil)
	var starts int32
	sup.Add("a", func(ctx context.Context) error {
		atomic.AddInt32(&starts, 1)
		<-ctx.Done()
		return nil
	})

	sup.Start(context.Background())
	sup.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&starts) >= 1 }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))

	sup.Stop()
}

func TestIOPool_BoundsConcurrency(t *testing.T) {
	pool := NewIOPool(2)

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Submit(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxInFlight, 2)
	assert.Equal(t, 0, pool.InUse())
	assert.Equal(t, 2, pool.Capacity())
}

func TestIOPool_SubmitReturnsCtxErrWhenCancelledBeforeSlot(t *testing.T) {
	pool := NewIOPool(1)

	release := make(chan struct{})
	go pool.Submit(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})
	time.Sleep(10 * time.Millisecond) // let the first Submit claim the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Submit(ctx, func(ctx context.Context) error {
		t.Fatal("fn should not run once ctx is already cancelled")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
}

func TestIOPool_PropagatesFnError(t *testing.T) {
	pool := NewIOPool(1)
	boom := errors.New("boom")
	err := pool.Submit(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.Equal(t, boom, err)
}
