package classifier

import (
	"fmt"

	"github.com/danmuck/wsdpi/internal/protocol/frame"
)

type Outcome uint8

const (
	OutcomeInconclusive Outcome = iota
	OutcomeMatch
	OutcomeReject
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeReject:
		return "reject"
	default:
		return "inconclusive"
	}
}

// Verdict is the result of one classification call. Header is only
// meaningful when Decoded is true.
type Verdict struct {
	Outcome Outcome
	Reason  error
	Header  frame.Header
	Decoded bool
}

func Match(h frame.Header) Verdict {
	return Verdict{Outcome: OutcomeMatch, Header: h, Decoded: true}
}

func Reject(reason error) Verdict {
	return Verdict{Outcome: OutcomeReject, Reason: reason}
}

func Inconclusive() Verdict {
	return Verdict{Outcome: OutcomeInconclusive}
}

func (v Verdict) withHeader(h frame.Header) Verdict {
	v.Header = h
	v.Decoded = true
	return v
}

func (v Verdict) IsMatch() bool  { return v.Outcome == OutcomeMatch }
func (v Verdict) IsReject() bool { return v.Outcome == OutcomeReject }

// Terminal reports whether the verdict ends classification for the flow.
func (v Verdict) Terminal() bool {
	return v.Outcome != OutcomeInconclusive
}

func (v Verdict) String() string {
	if v.Reason != nil {
		return fmt.Sprintf("%s(%v)", v.Outcome, v.Reason)
	}
	return v.Outcome.String()
}
