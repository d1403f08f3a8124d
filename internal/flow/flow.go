package flow

import (
	"github.com/danmuck/wsdpi/internal/protocol"
)

// Flow is what a dissector sees of one tracked conversation.
type Flow interface {
	// Payload is the current segment. Callers must not modify it.
	Payload() []byte
	// PacketCounter counts segments seen so far, including the current one.
	PacketCounter() int
	DetectedProtocol() protocol.ID
	GuessedHostProtocol() protocol.ID
	// SetDetectedProtocol drops any guessed classification and records the
	// definitive one.
	SetDetectedProtocol(app, master protocol.ID)
	ExcludeProtocol(id protocol.ID)
	Excluded(id protocol.ID) bool
}

// State is the concrete per-flow record kept by a Tracker.
type State struct {
	Key Key

	payload []byte
	packets int

	// detected[0] is the application protocol, detected[1] the master.
	detected [2]protocol.ID
	guessed  protocol.ID
	excluded protocol.Bitmask
}

var _ Flow = (*State)(nil)

func NewState(key Key) *State {
	return &State{Key: key}
}

// Advance makes payload the current segment and bumps the packet counter.
func (s *State) Advance(payload []byte) {
	s.payload = payload
	s.packets++
}

func (s *State) Payload() []byte {
	return s.payload
}

func (s *State) PacketCounter() int {
	return s.packets
}

func (s *State) DetectedProtocol() protocol.ID {
	return s.detected[0]
}

func (s *State) MasterProtocol() protocol.ID {
	return s.detected[1]
}

func (s *State) GuessedHostProtocol() protocol.ID {
	return s.guessed
}

// GuessHostProtocol records a tentative classification, e.g. from a well-known
// port, that a later detection carries as its master protocol.
func (s *State) GuessHostProtocol(id protocol.ID) {
	s.guessed = id
}

func (s *State) SetDetectedProtocol(app, master protocol.ID) {
	s.guessed = protocol.Unknown
	s.detected = [2]protocol.ID{app, master}
}

func (s *State) ExcludeProtocol(id protocol.ID) {
	s.excluded.Add(id)
}

func (s *State) Excluded(id protocol.ID) bool {
	return s.excluded.Has(id)
}

func (s *State) ExcludedSet() protocol.Bitmask {
	return s.excluded
}

// Snapshot is a copy of State safe to hand to other goroutines.
type Snapshot struct {
	Key        Key           `json:"key"`
	Packets    int           `json:"packets"`
	Detected   protocol.ID   `json:"detected"`
	Master     protocol.ID   `json:"master"`
	Guessed    protocol.ID   `json:"guessed"`
	Excluded   []protocol.ID `json:"excluded"`
	DetectedAs string        `json:"detected_as"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Key:        s.Key,
		Packets:    s.packets,
		Detected:   s.DetectedProtocol(),
		Master:     s.MasterProtocol(),
		Guessed:    s.guessed,
		Excluded:   s.excluded.IDs(),
		DetectedAs: s.DetectedProtocol().String(),
	}
}
