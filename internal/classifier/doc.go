// Package classifier owns the frame header heuristic.
//
// Ownership boundary:
// - attempt budget enforcement
// - base header decode and opcode legality
// - masked-length sanity check
// - the match/reject/inconclusive verdict
//
// The classifier never touches flow state. Callers apply verdicts through
// flow.Apply.
package classifier
