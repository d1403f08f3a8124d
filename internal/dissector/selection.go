package dissector

import (
	"strings"

	"github.com/danmuck/wsdpi/internal/flow"
)

// Selection describes which traffic a dissector applies to.
type Selection uint32

const (
	SelectionIPv4 Selection = 1 << iota
	SelectionIPv6
	SelectionTCP
	SelectionUDP
	SelectionPayload

	SelectionV4V6                    = SelectionIPv4 | SelectionIPv6
	SelectionV4V6TCPWithPayload      = SelectionV4V6 | SelectionTCP | SelectionPayload
	SelectionV4V6UDPWithPayload      = SelectionV4V6 | SelectionUDP | SelectionPayload
	SelectionV4V6TCPOrUDPWithPayload = SelectionV4V6 | SelectionTCP | SelectionUDP | SelectionPayload
)

// SelectionOf describes the current segment of s.
func SelectionOf(s *flow.State) Selection {
	var sel Selection
	if s.Key.IPv6() {
		sel |= SelectionIPv6
	} else {
		sel |= SelectionIPv4
	}
	switch s.Key.Proto {
	case flow.ProtoTCP:
		sel |= SelectionTCP
	case flow.ProtoUDP:
		sel |= SelectionUDP
	}
	if len(s.Payload()) > 0 {
		sel |= SelectionPayload
	}
	return sel
}

// Accepts reports whether a packet described by pkt falls inside s: the IP
// family and transport must both be allowed, and payload must be present
// when s requires it.
func (s Selection) Accepts(pkt Selection) bool {
	if s&pkt&SelectionV4V6 == 0 {
		return false
	}
	if s&pkt&(SelectionTCP|SelectionUDP) == 0 {
		return false
	}
	if s&SelectionPayload != 0 && pkt&SelectionPayload == 0 {
		return false
	}
	return true
}

func (s Selection) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []struct {
		bit  Selection
		name string
	}{
		{SelectionIPv4, "ipv4"},
		{SelectionIPv6, "ipv6"},
		{SelectionTCP, "tcp"},
		{SelectionUDP, "udp"},
		{SelectionPayload, "payload"},
	} {
		if s&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
