package connectivity

import "time"

// State is the connectivity state of the network link or the broker session.
type State int

const (
	// Disconnected means no link or no broker session.
	Disconnected State = iota

	// Connecting means a broker attempt is in flight, or a link rejoin was
	// requested and has not been confirmed yet.
	Connecting

	// Connected means the link is up or the broker session is established.
	Connected
)

// String returns the lowercase state name used in logs and status payloads.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session tracks the link and broker states of one station.
//
// It is a plain value owned by the Manager's dispatch goroutine and is only
// changed through its methods, which enforce that at most one broker attempt
// is in flight and that no attempt starts while the link is down.
type Session struct {
	link        State
	broker      State
	lastAttempt time.Time
	attempts    uint64
}

// LinkUp marks the network link as connected.
func (s *Session) LinkUp() {
	s.link = Connected
}

// LinkRejoining marks a requested rejoin while the link is still down.
func (s *Session) LinkRejoining() {
	if s.link != Connected {
		s.link = Connecting
	}
}

// LinkDown marks the network link as down. Any broker session or in-flight
// attempt is considered gone.
func (s *Session) LinkDown() {
	s.link = Disconnected
	s.broker = Disconnected
}

// BeginAttempt starts a broker attempt at now. It returns false without
// changing anything when the link is down, an attempt is already in flight,
// or the session is established.
func (s *Session) BeginAttempt(now time.Time) bool {
	if s.link != Connected || s.broker != Disconnected {
		return false
	}
	s.broker = Connecting
	s.lastAttempt = now
	s.attempts++
	return true
}

// AttemptSucceeded marks the in-flight attempt as established.
// It reports false if no attempt was in flight.
func (s *Session) AttemptSucceeded() bool {
	if s.broker != Connecting {
		return false
	}
	s.broker = Connected
	return true
}

// AttemptFailed clears the in-flight attempt.
// It reports false if no attempt was in flight.
func (s *Session) AttemptFailed() bool {
	if s.broker != Connecting {
		return false
	}
	s.broker = Disconnected
	return true
}

// SessionLost marks an established session as dropped.
// It reports false if the session was not established.
func (s *Session) SessionLost() bool {
	if s.broker != Connected {
		return false
	}
	s.broker = Disconnected
	return true
}

// Link returns the link state.
func (s Session) Link() State { return s.link }

// Broker returns the broker session state.
func (s Session) Broker() State { return s.broker }

// LinkIsUp reports whether the link is connected.
func (s Session) LinkIsUp() bool { return s.link == Connected }

// BrokerIsConnected reports whether the broker session is established.
func (s Session) BrokerIsConnected() bool { return s.broker == Connected }

// InFlight reports whether a broker attempt is in flight.
func (s Session) InFlight() bool { return s.broker == Connecting }

// LastAttempt returns when the most recent attempt began.
func (s Session) LastAttempt() time.Time { return s.lastAttempt }

// Attempts returns the number of attempts begun. The value doubles as the
// id of the latest attempt.
func (s Session) Attempts() uint64 { return s.attempts }
