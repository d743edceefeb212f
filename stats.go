package sshed

import (
	"sync/atomic"
	"time"
)

// SlotStats contains statistics about the agent's session slots.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalSlots, IdleSlots, ActiveSlots, MaxSlots
//   - Counters: AcquireCount, AcquireWaitCount, AcquireErrors
type SlotStats struct {
	AcquireCount      uint64 // Total slot acquisitions
	AcquireWaitCount  uint64 // Acquisitions that waited for a free slot
	AcquireErrors     uint64 // Acquisitions canceled before a slot was free
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalSlots  int32 // Slots created (active + idle)
	IdleSlots   int32 // Slots ready for the next session
	ActiveSlots int32 // Slots held by sessions and waiting accept loops
	MaxSlots    int32 // Session ceiling
}

// AgentStats contains statistics about the sessions served by an agent.
// All fields are safe for concurrent access.
//
// For Prometheus integration, expose these as:
//   - Counters: Sessions, Unchanged, DiffReplies, FullReplies, Rejected, Failures
//   - Counters: BytesReceived, BytesSent
//   - Counter: SessionTimeNs (derive mean session duration as SessionTimeNs/Sessions)
type AgentStats struct {
	Sessions      uint64 // Sessions accepted
	Unchanged     uint64 // Sessions answered with Modified: False
	DiffReplies   uint64 // Sessions answered with a diff
	FullReplies   uint64 // Sessions answered with the full content
	Rejected      uint64 // Sessions dropped for a bad request (version, malformed headers)
	Failures      uint64 // Sessions that failed after the request was accepted
	BytesReceived uint64 // Body bytes received from guests
	BytesSent     uint64 // Body bytes sent to guests
	SessionTimeNs uint64 // Total nanoseconds spent in sessions
}

// agentStatsCollector provides internal methods for updating agent stats.
type agentStatsCollector struct {
	stats *AgentStats
}

func newAgentStatsCollector() *agentStatsCollector {
	return &agentStatsCollector{
		stats: &AgentStats{},
	}
}

func (c *agentStatsCollector) recordSession(d time.Duration) {
	atomic.AddUint64(&c.stats.Sessions, 1)
	atomic.AddUint64(&c.stats.SessionTimeNs, uint64(d.Nanoseconds()))
}

func (c *agentStatsCollector) recordReply(r reply) {
	switch r {
	case replyUnchanged:
		atomic.AddUint64(&c.stats.Unchanged, 1)
	case replyDiff:
		atomic.AddUint64(&c.stats.DiffReplies, 1)
	case replyFull:
		atomic.AddUint64(&c.stats.FullReplies, 1)
	}
}

func (c *agentStatsCollector) recordRejected() {
	atomic.AddUint64(&c.stats.Rejected, 1)
}

func (c *agentStatsCollector) recordFailure() {
	atomic.AddUint64(&c.stats.Failures, 1)
}

func (c *agentStatsCollector) recordReceived(n int64) {
	atomic.AddUint64(&c.stats.BytesReceived, uint64(n))
}

func (c *agentStatsCollector) recordSent(n int64) {
	atomic.AddUint64(&c.stats.BytesSent, uint64(n))
}

func (c *agentStatsCollector) snapshot() AgentStats {
	return AgentStats{
		Sessions:      atomic.LoadUint64(&c.stats.Sessions),
		Unchanged:     atomic.LoadUint64(&c.stats.Unchanged),
		DiffReplies:   atomic.LoadUint64(&c.stats.DiffReplies),
		FullReplies:   atomic.LoadUint64(&c.stats.FullReplies),
		Rejected:      atomic.LoadUint64(&c.stats.Rejected),
		Failures:      atomic.LoadUint64(&c.stats.Failures),
		BytesReceived: atomic.LoadUint64(&c.stats.BytesReceived),
		BytesSent:     atomic.LoadUint64(&c.stats.BytesSent),
		SessionTimeNs: atomic.LoadUint64(&c.stats.SessionTimeNs),
	}
}
