package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyncMapWrapperCompareAndDelete(t *testing.T) {
	m := NewSyncMapWrapper[string, string]()
	m.Store("client", "s1")

	require.False(t, m.CompareAndDelete("client", "s2"))
	v, ok := m.Load("client")
	require.True(t, ok)
	require.Equal(t, "s1", v)

	require.True(t, m.CompareAndDelete("client", "s1"))
	_, ok = m.Load("client")
	require.False(t, ok)
}

func TestSyncMapWrapperConcurrentStores(t *testing.T) {
	m := NewSyncMapWrapper[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Store(i, i*i)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 64, m.Len())

	v, ok := m.LoadAndDelete(8)
	require.True(t, ok)
	require.Equal(t, 64, v)
	require.Equal(t, 63, m.Len())
}

func TestSetIntervalTimerStops(t *testing.T) {
	var calls atomic.Int32
	timer := SetIntervalTimer(5*time.Millisecond, func() { calls.Add(1) })

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	timer.Stop()
	timer.Stop()

	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.LessOrEqual(t, calls.Load(), stopped+1)
}
