package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/interval"
)

func TestRangeLockerSerialisesOverlappingRanges(t *testing.T) {
	l := NewRangeLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, interval.Interval{Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release, err := l.Lock(ctx, interval.Interval{Start: at(9, 30), End: at(11, 0)})
		if err == nil {
			close(acquired)
			release()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("overlapping range acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the range")
	}
}

func TestRangeLockerAllowsDisjointRanges(t *testing.T) {
	l := NewRangeLocker()
	ctx := context.Background()

	first, err := l.Lock(ctx, interval.Interval{Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)
	defer first()

	second, err := l.Lock(ctx, interval.Interval{Start: at(11, 0), End: at(12, 0)})
	require.NoError(t, err)
	defer second()

	require.Equal(t, 2, l.Held())
}

func TestRangeLockerHonoursContext(t *testing.T) {
	l := NewRangeLocker()
	unlock, err := l.Lock(context.Background(), interval.Interval{Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, interval.Interval{Start: at(10, 0), End: at(10, 30)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, l.Held())
}
