package classifier

import "errors"

var (
	ErrTruncatedHeader        = errors.New("classifier: header truncated")
	ErrIllegalOpcode          = errors.New("classifier: illegal opcode")
	ErrTruncatedMaskedPayload = errors.New("classifier: masked frame too short")
	ErrAttemptBudgetExhausted = errors.New("classifier: attempt budget exhausted")
)

// ReasonLabel maps a rejection reason onto a short stable label for logs and
// metrics.
func ReasonLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTruncatedHeader):
		return "truncated_header"
	case errors.Is(err, ErrIllegalOpcode):
		return "illegal_opcode"
	case errors.Is(err, ErrTruncatedMaskedPayload):
		return "truncated_masked_payload"
	case errors.Is(err, ErrAttemptBudgetExhausted):
		return "attempt_budget_exhausted"
	default:
		return "other"
	}
}
