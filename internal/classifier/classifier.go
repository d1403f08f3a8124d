package classifier

import (
	"fmt"

	"github.com/danmuck/wsdpi/internal/protocol/frame"
)

// DefaultAttemptBudget is the number of segments inspected per flow before
// the protocol is excluded.
const DefaultAttemptBudget = 10

type Options struct {
	// AttemptBudget is the highest attempt index still classified.
	// Zero selects DefaultAttemptBudget.
	AttemptBudget int
	// DeferShortSegments turns a segment shorter than the base header into
	// an inconclusive verdict instead of a rejection.
	DeferShortSegments bool
}

func DefaultOptions() Options {
	return Options{AttemptBudget: DefaultAttemptBudget}
}

// Classifier judges whether a segment starts with a plausible frame header.
// It holds only immutable options and is safe for concurrent use.
type Classifier struct {
	budget     int
	deferShort bool
}

func New(opts Options) *Classifier {
	budget := opts.AttemptBudget
	if budget <= 0 {
		budget = DefaultAttemptBudget
	}
	return &Classifier{budget: budget, deferShort: opts.DeferShortSegments}
}

func (c *Classifier) AttemptBudget() int {
	return c.budget
}

// Classify inspects payload, the current segment of a flow, and attempt, the
// 1-based number of segments seen on that flow including this one.
func (c *Classifier) Classify(payload []byte, attempt int) Verdict {
	if attempt > c.budget {
		return Reject(ErrAttemptBudgetExhausted)
	}

	if len(payload) < frame.HeaderLen {
		if c.deferShort {
			return Inconclusive()
		}
		return Reject(ErrTruncatedHeader)
	}

	h, err := frame.DecodeHeader(payload)
	if err != nil {
		return Reject(ErrTruncatedHeader)
	}

	if !h.Opcode.Legal() {
		return Reject(fmt.Errorf("%w: 0x%X", ErrIllegalOpcode, uint8(h.Opcode))).withHeader(h)
	}

	// A legal opcode is only a tentative match until the mask check passes.
	if len(payload) < h.MinLen() {
		return Reject(ErrTruncatedMaskedPayload).withHeader(h)
	}

	return Match(h)
}
