package flow

import (
	"fmt"
	"net/netip"
)

// L4 protocol numbers carried in Key.Proto.
const (
	ProtoTCP uint8 = 6
	ProtoUDP uint8 = 17
)

// Key identifies a flow by its 5-tuple. Keys are normalized so both
// directions of a conversation map to the same flow.
type Key struct {
	SrcIP   netip.Addr `json:"src_ip"`
	DstIP   netip.Addr `json:"dst_ip"`
	SrcPort uint16     `json:"src_port"`
	DstPort uint16     `json:"dst_port"`
	Proto   uint8      `json:"proto"`
}

// NewKey builds a normalized key from two endpoints.
func NewKey(src, dst netip.AddrPort, proto uint8) Key {
	k := Key{
		SrcIP:   src.Addr().Unmap(),
		DstIP:   dst.Addr().Unmap(),
		SrcPort: src.Port(),
		DstPort: dst.Port(),
		Proto:   proto,
	}
	if endpointLess(netip.AddrPortFrom(k.DstIP, k.DstPort), netip.AddrPortFrom(k.SrcIP, k.SrcPort)) {
		k.SrcIP, k.DstIP = k.DstIP, k.SrcIP
		k.SrcPort, k.DstPort = k.DstPort, k.SrcPort
	}
	return k
}

func endpointLess(a, b netip.AddrPort) bool {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c < 0
	}
	return a.Port() < b.Port()
}

func (k Key) IPv6() bool {
	return k.SrcIP.Is6()
}

func (k Key) String() string {
	proto := fmt.Sprintf("proto-%d", k.Proto)
	switch k.Proto {
	case ProtoTCP:
		proto = "tcp"
	case ProtoUDP:
		proto = "udp"
	}
	return fmt.Sprintf("%s %s <-> %s",
		proto,
		netip.AddrPortFrom(k.SrcIP, k.SrcPort),
		netip.AddrPortFrom(k.DstIP, k.DstPort))
}
