package reconcile

import (
	"context"
	"sync"

	"github.com/osama1998H/lume-sub000/internal/interval"
)

// RangeLocker serialises holders of overlapping time ranges. Disjoint ranges
// proceed concurrently.
type RangeLocker struct {
	mu      sync.Mutex
	held    map[uint64]interval.Interval
	next    uint64
	changed chan struct{}
}

// NewRangeLocker constructs an empty locker.
func NewRangeLocker() *RangeLocker {
	return &RangeLocker{
		held:    make(map[uint64]interval.Interval),
		changed: make(chan struct{}),
	}
}

// Lock blocks until no held range intersects iv, or ctx ends.
func (l *RangeLocker) Lock(ctx context.Context, iv interval.Interval) (func(), error) {
	for {
		l.mu.Lock()
		if !l.intersectsLocked(iv) {
			id := l.next
			l.next++
			l.held[id] = iv
			l.mu.Unlock()

			var once sync.Once
			return func() { once.Do(func() { l.release(id) }) }, nil
		}
		wait := l.changed
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Held returns the number of ranges currently locked.
func (l *RangeLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func (l *RangeLocker) release(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
	close(l.changed)
	l.changed = make(chan struct{})
}

// intersectsLocked treats ranges as closed so that zero-length and touching
// windows still serialise.
func (l *RangeLocker) intersectsLocked(iv interval.Interval) bool {
	for _, h := range l.held {
		if !iv.Start.After(h.End) && !h.Start.After(iv.End) {
			return true
		}
	}
	return false
}
