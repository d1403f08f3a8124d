// Package dissector owns protocol dissector registration and dispatch.
//
// Ownership boundary:
// - name/id/search-function registration
// - selection bitmasks deciding which traffic a dissector sees
// - the global detection bitmask
// - dispatching a flow's current segment to eligible dissectors
package dissector
