package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFlusher struct {
	calls atomic.Int32
}

func (f *countingFlusher) FlushIdleSessions(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return 1, nil
}

func TestSessionFlusherRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &countingFlusher{}

	done := StartSessionFlusher(ctx, f, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.calls.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flusher did not stop")
	}

	stopped := f.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, f.calls.Load())
}
