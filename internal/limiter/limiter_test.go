package limiter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyBackendDefaultsToLocal(t *testing.T) {
	l, err := New("", "", 2)
	require.NoError(t, err)
	_, ok := l.(*localLimiter)
	assert.True(t, ok)
}

func TestNew_RedisBackendRequiresAddr(t *testing.T) {
	_, err := New("redis", "", 2)
	assert.Error(t, err)
}

func TestLocalLimiter_BoundsConcurrentHolders(t *testing.T) {
	l := newLocalLimiter(2)
	var current, max int32

	acquire := func() func() {
		release, err := l.Acquire(context.Background())
		require.NoError(t, err)
		n := atomic.AddInt32(&current, 1)
		for {
			old := atomic.LoadInt32(&max)
			if n <= old || atomic.CompareAndSwapInt32(&max, old, n) {
				break
			}
		}
		return release
	}

	releases := make(chan func(), 5)
	for i := 0; i < 5; i++ {
		go func() {
			release := acquire()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			releases <- release
		}()
	}

	for i := 0; i < 5; i++ {
		release := <-releases
		release()
	}

	assert.LessOrEqual(t, int(atomic.LoadInt32(&max)), 2)
}

func TestLocalLimiter_AcquireRespectsContextCancellation(t *testing.T) {
	l := newLocalLimiter(1)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLimiter_ReleaseFreesSlotForNextAcquire(t *testing.T) {
	l := newLocalLimiter(1)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release()

	done := make(chan struct{})
	go func() {
		release2, err := l.Acquire(context.Background())
		require.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire did not complete after release")
	}
}
