package sender

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 32})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 20; i++ {
		for _, key := range []int64{7, 8, 9} {
			key, i := key, i
			require.NoError(t, d.Enqueue(context.Background(), key, "send", "", func() error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			}))
		}
	}
	d.Close()

	for _, key := range []int64{7, 8, 9} {
		require.Len(t, got[key], 20)
		for i, v := range got[key] {
			assert.Equal(t, i, v, "key %d out of order", key)
		}
	}
}

func TestDispatcherDoReturnsResult(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	defer d.Close()

	want := errors.New("telegram: message to forward not found (400)")
	err := d.Do(context.Background(), -5, "forward", "forwardMessage", func() error { return want })
	require.ErrorIs(t, err, want)
	assert.Equal(t, uint64(1), d.ErrorCount())

	require.NoError(t, d.Do(context.Background(), 5, "send", "", func() error { return nil }))
}

func TestDispatcherSlotHandlesExtremeKeys(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3})
	defer d.Close()

	for _, key := range []int64{math.MinInt64, math.MinInt64 + 1, -1, 0, 1, math.MaxInt64} {
		slot := d.slot(key)
		assert.GreaterOrEqual(t, slot, 0, key)
		assert.Less(t, slot, 3, key)
		assert.Equal(t, slot, d.slot(key), key)
		require.NoError(t, d.Do(context.Background(), key, "send", "", func() error { return nil }), key)
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	defer d.Close()

	calls := 0
	err := d.Do(context.Background(), 1, "send", "", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDispatcherClosed(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), 1, "send", "", func() error { return nil }), ErrQueueClosed)
}

func TestClassifyAndSanitize(t *testing.T) {
	assert.Equal(t, "timeout", ClassifyError(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, "dial", ClassifyError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "blocked", ClassifyError(errors.New("telegram: Forbidden: bot was blocked by the user (403)")))
	assert.Equal(t, "unknown", ClassifyError(errors.New("boom")))

	msg := SanitizeError(errors.New(`Post "https://api.telegram.org/bot123:ABC-def_9/sendMessage": EOF`))
	assert.NotContains(t, msg, "ABC-def_9")
	assert.Contains(t, msg, "bot<redacted>")
}
