package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingWrapsOldestFirst(t *testing.T) {
	t.Parallel()

	r := newRing(2)
	_, ok := r.last()
	require.False(t, ok)

	for i := range 3 {
		r.push(Snapshot{TotalRequests: int64(i)})
	}
	require.Equal(t, 2, r.len())
	tail := r.tail(0)
	require.Equal(t, int64(1), tail[0].TotalRequests)
	require.Equal(t, int64(2), tail[1].TotalRequests)
	last, _ := r.last()
	require.Equal(t, int64(2), last.TotalRequests)
	require.Len(t, r.tail(10), 2)
}

func TestRingZeroCapacity(t *testing.T) {
	t.Parallel()

	r := newRing(0)
	r.push(Snapshot{Timestamp: time.Now()})
	require.Zero(t, r.len())
}
