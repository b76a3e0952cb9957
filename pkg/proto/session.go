package proto

import (
	"sync"
	"sync/atomic"

	"github.com/wireql/wireql/pkg/sqlerr"
)

// Phase is the protocol session state. The legal cycle is
// Connecting -> Authenticating -> Ready <-> Querying, with Closed
// reachable from every phase and terminal.
type Phase int32

const (
	PhaseConnecting Phase = iota
	PhaseAuthenticating
	PhaseReady
	PhaseQuerying
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseReady:
		return "ready"
	case PhaseQuerying:
		return "querying"
	case PhaseClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Session tracks the phase of one protocol session and latches the first
// fatal error observed on it. A latched session fails every subsequent
// operation immediately instead of re-attempting IO on a broken wire.
type Session struct {
	phase int32

	mu    sync.Mutex
	fatal error
}

func NewSession() *Session {
	return &Session{phase: int32(PhaseConnecting)}
}

func (s *Session) Phase() Phase {
	return Phase(atomic.LoadInt32(&s.phase))
}

// Transition moves the session to the target phase, failing with a
// protocol error (and latching the session closed) on an illegal move.
// Wire-level state cannot be resynchronized once the machine and the
// server disagree, so there is no recovery path.
func (s *Session) Transition(to Phase) error {
	from := s.Phase()
	if !legalTransition(from, to) {
		err := sqlerr.Newf(sqlerr.KindProtocol, "illegal session transition %s -> %s", from, to)
		s.Latch(err)
		return err
	}
	atomic.StoreInt32(&s.phase, int32(to))
	return nil
}

// Latch records err as the session's fatal error and forces the phase to
// Closed. Only the first latched error is kept.
func (s *Session) Latch(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()
	atomic.StoreInt32(&s.phase, int32(PhaseClosed))
}

// Fatal returns the latched error, or nil if the session never broke.
func (s *Session) Fatal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Broken reports whether a fatal error has been latched.
func (s *Session) Broken() bool {
	return s.Fatal() != nil
}

func legalTransition(from, to Phase) bool {
	if to == PhaseClosed {
		return true
	}
	switch from {
	case PhaseConnecting:
		return to == PhaseAuthenticating
	case PhaseAuthenticating:
		return to == PhaseReady
	case PhaseReady:
		return to == PhaseQuerying
	case PhaseQuerying:
		return to == PhaseReady
	default:
		return false
	}
}
