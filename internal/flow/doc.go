// Package flow owns per-flow classification state.
//
// Ownership boundary:
// - the Flow contract dissectors read through
// - the single-owner verdict transition (Apply)
// - the flow table and in-order segment delivery (Tracker)
package flow
