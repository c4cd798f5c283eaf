package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_FiresWhenDue(t *testing.T) {
	c := NewFakeClock()
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4 * time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, c.Pending())

	c.Advance(time.Hour)
	assert.Equal(t, 1, fired, "timers fire once")
	assert.Equal(t, time.Hour+5*time.Second, c.Elapsed())
}

func TestFakeClock_Stop(t *testing.T) {
	c := NewFakeClock()
	fired := false
	stop := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, stop())
	assert.False(t, stop(), "second stop reports already stopped")

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeClock_StopAfterFire(t *testing.T) {
	c := NewFakeClock()
	stop := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, stop())
}

func TestFakeClock_OrderAndNesting(t *testing.T) {
	c := NewFakeClock()
	var order []string

	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(1*time.Second, func() {
		order = append(order, "a")
		// Scheduled from inside a callback; due within the same Advance.
		c.AfterFunc(1*time.Second, func() { order = append(order, "b") })
	})

	c.Advance(10 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFakeClock_SameDueTimeKeepsScheduleOrder(t *testing.T) {
	c := NewFakeClock()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		c.AfterFunc(time.Second, func() { order = append(order, i) })
	}
	c.Advance(time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
}
