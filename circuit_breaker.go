package sshed

import (
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a function that creates the circuit breaker
// guarding dials to an agent socket.
//
// Once open, Edit stops dialing and falls back to the local editor right
// away, which keeps a multi-file edit from waiting on a dead agent for every
// file.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(socket string) *gobreaker.CircuitBreaker[net.Conn] {
	return func(socket string) *gobreaker.CircuitBreaker[net.Conn] {
		settings := gobreaker.Settings{
			Name:        socket,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[net.Conn](settings)
	}
}
