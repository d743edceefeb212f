// Package coarsetime provides a clock refreshed every 50ms by a background
// goroutine, for timestamps taken on hot paths where that precision is
// enough (session durations, stats). The goroutine starts on first use.
package coarsetime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution is the refresh interval of the clock.
const Resolution = 50 * time.Millisecond

var (
	now   atomic.Pointer[time.Time]
	start sync.Once
)

func run() {
	t := time.Now()
	now.Store(&t)

	ticker := time.NewTicker(Resolution)
	go func() {
		for tick := range ticker.C {
			now.Store(&tick)
		}
	}()
}

// Now returns the current time, at most Resolution old.
func Now() time.Time {
	start.Do(run)
	return *now.Load()
}

// Since returns the time elapsed since t, to within Resolution.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
