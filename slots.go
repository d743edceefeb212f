package sshed

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/puddle/v2"
)

// DefaultMaxSessions is the session ceiling used when AgentConfig.MaxSessions
// is zero.
const DefaultMaxSessions = 16

// sessionSlot is held by a session for its whole lifetime.
type sessionSlot struct {
	id int64
}

// sessionSlots bounds the number of concurrent sessions. The accept loop
// acquires a slot before accepting a connection and the session releases it
// when done, so a full agent stops accepting instead of queueing goroutines.
type sessionSlots struct {
	pool *puddle.Pool[*sessionSlot]
	next atomic.Int64
}

func newSessionSlots(maxSize int32) (*sessionSlots, error) {
	s := &sessionSlots{}

	pool, err := puddle.NewPool(&puddle.Config[*sessionSlot]{
		Constructor: func(ctx context.Context) (*sessionSlot, error) {
			return &sessionSlot{id: s.next.Add(1)}, nil
		},
		Destructor: func(*sessionSlot) {},
		MaxSize:    maxSize,
	})
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Acquire blocks until a slot is free or ctx is done.
func (s *sessionSlots) Acquire(ctx context.Context) (*puddle.Resource[*sessionSlot], error) {
	res, err := s.pool.Acquire(ctx)
	if errors.Is(err, puddle.ErrClosedPool) {
		return nil, ErrAgentClosed
	}
	return res, err
}

// Close waits for every acquired slot to be released.
func (s *sessionSlots) Close() {
	s.pool.Close()
}

// Stats returns a snapshot of slot statistics.
func (s *sessionSlots) Stats() SlotStats {
	st := s.pool.Stat()

	return SlotStats{
		TotalSlots:        st.TotalResources(),
		IdleSlots:         st.IdleResources(),
		ActiveSlots:       st.AcquiredResources(),
		MaxSlots:          st.MaxResources(),
		AcquireCount:      uint64(st.AcquireCount()),
		AcquireWaitCount:  uint64(st.EmptyAcquireCount()),
		AcquireErrors:     uint64(st.CanceledAcquireCount()),
		AcquireWaitTimeNs: uint64(st.EmptyAcquireWaitTime().Nanoseconds()),
	}
}
