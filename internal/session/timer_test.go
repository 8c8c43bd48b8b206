package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiryTimer_Fires(t *testing.T) {
	tm := NewExpiryTimer()
	assert.False(t, tm.Armed())

	var fired atomic.Int32
	tm.Arm(10*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, tm.Armed())
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestExpiryTimer_StopPreventsFire(t *testing.T) {
	tm := NewExpiryTimer()
	var fired atomic.Int32
	tm.Arm(20*time.Millisecond, func() { fired.Add(1) })
	tm.Stop()
	tm.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, tm.Armed())
}

func TestExpiryTimer_RearmReplacesCallback(t *testing.T) {
	tm := NewExpiryTimer()
	var first, second atomic.Int32
	tm.Arm(20*time.Millisecond, func() { first.Add(1) })
	tm.Arm(40*time.Millisecond, func() { second.Add(1) })
	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}
