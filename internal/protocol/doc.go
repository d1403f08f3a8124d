// Package protocol owns protocol identifiers and header parsing primitives.
//
// Ownership boundary:
// - numeric protocol identifiers and their names
// - protocol bitmasks used for detection and exclusion
// - frame/header primitives (see subpackage frame)
package protocol
