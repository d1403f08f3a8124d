package flow

import (
	"github.com/danmuck/wsdpi/internal/classifier"
	"github.com/danmuck/wsdpi/internal/protocol"
)

type Transition uint8

const (
	TransitionNone Transition = iota
	TransitionConfirmed
	TransitionExcluded
)

func (t Transition) String() string {
	switch t {
	case TransitionConfirmed:
		return "confirmed"
	case TransitionExcluded:
		return "excluded"
	default:
		return "none"
	}
}

// Apply is the only place a verdict for protocol id mutates f.
func Apply(f Flow, id protocol.ID, v classifier.Verdict) Transition {
	switch v.Outcome {
	case classifier.OutcomeMatch:
		if f.DetectedProtocol() != protocol.Unknown {
			return TransitionNone
		}
		f.SetDetectedProtocol(id, f.GuessedHostProtocol())
		return TransitionConfirmed
	case classifier.OutcomeReject:
		f.ExcludeProtocol(id)
		return TransitionExcluded
	default:
		return TransitionNone
	}
}
