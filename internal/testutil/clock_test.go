package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestDeterministicClock_StepsPerCall(t *testing.T) {
	clock := NewDeterministicClock(start, time.Second)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Second), clock.Now())
	assert.Equal(t, start.Add(2*time.Second), clock.Peek())
	assert.Equal(t, start.Add(2*time.Second), clock.Now())
}

func TestDeterministicClock_ZeroStepFreezes(t *testing.T) {
	clock := NewDeterministicClock(start, 0)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestDeterministicClock_Advance(t *testing.T) {
	clock := NewDeterministicClock(start, 0)

	clock.Advance(3 * time.Hour)
	assert.Equal(t, start.Add(3*time.Hour), clock.Now())
}

func TestDeterministicClock_ConcurrentNow(t *testing.T) {
	clock := NewDeterministicClock(start, time.Nanosecond)

	const calls = 100
	seen := make(chan time.Time, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- clock.Now()
		}()
	}
	wg.Wait()
	close(seen)

	// Every call got a distinct instant.
	unique := make(map[time.Time]bool)
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, calls)
}
