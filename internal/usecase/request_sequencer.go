package usecase

import (
	"context"
	"sync"
)

// RequestSequencer hands out monotonically increasing tickets for a stream of
// requests where only the newest one matters, such as search-as-you-type.
// Beginning a request cancels the one before it.
type RequestSequencer struct {
	mu     sync.Mutex
	latest uint64
	cancel context.CancelFunc
}

// Ticket identifies one request issued by a RequestSequencer
type Ticket struct {
	token uint64
	seq   *RequestSequencer
}

// NewRequestSequencer creates a sequencer with no request in flight
func NewRequestSequencer() *RequestSequencer {
	return &RequestSequencer{}
}

// Begin starts a new request. The returned context is cancelled when a newer
// request begins, when the parent is cancelled, or on Stop.
func (s *RequestSequencer) Begin(parent context.Context) (Ticket, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.latest++
	s.cancel = cancel

	return Ticket{token: s.latest, seq: s}, ctx
}

// Stop cancels the in-flight request, if any. Tickets issued so far stay valid
// for IsLatest until the next Begin.
func (s *RequestSequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Token returns the ticket's sequence number
func (t Ticket) Token() uint64 {
	return t.token
}

// IsLatest reports whether no newer ticket has been issued. Results for a
// ticket that is no longer latest must be dropped.
func (t Ticket) IsLatest() bool {
	if t.seq == nil {
		return false
	}
	t.seq.mu.Lock()
	defer t.seq.mu.Unlock()
	return t.seq.latest == t.token
}
