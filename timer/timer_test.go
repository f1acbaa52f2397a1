package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleFires(t *testing.T) {
	s := New("test")
	var fired int32
	s.Schedule("order-1", 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, time.Millisecond)
	assert.False(t, s.Pending("order-1"))
}

func TestCancelPreventsFire(t *testing.T) {
	s := New("test")
	var fired int32
	s.Schedule("order-2", 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	s.Cancel("order-2")
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestCancelIdempotent(t *testing.T) {
	s := New("test")
	s.Cancel("never-scheduled") // must not panic
	assert.False(t, s.Pending("never-scheduled"))
}

func TestRescheduleReplaces(t *testing.T) {
	s := New("test")
	var count int32
	s.Schedule("order-3", 10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	s.Schedule("order-3", 10*time.Millisecond, func() { atomic.AddInt32(&count, 10) })

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) > 0
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}
