package protocol

import (
	"fmt"
	"strings"
)

// ID is a numeric protocol identifier.
type ID uint16

// Well-known identifiers. Values follow the nDPI numbering so captured
// classifications stay comparable.
const (
	Unknown   ID = 0
	HTTP      ID = 7
	WebSocket ID = 251

	// MaxID bounds every identifier a Bitmask can hold.
	MaxID ID = 511
)

var names = map[ID]string{
	Unknown:   "Unknown",
	HTTP:      "HTTP",
	WebSocket: "WebSocket",
}

func (id ID) String() string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("proto-%d", uint16(id))
}

// Lookup resolves a protocol name case-insensitively.
func Lookup(name string) (ID, bool) {
	name = strings.TrimSpace(name)
	for id, n := range names {
		if strings.EqualFold(n, name) {
			return id, true
		}
	}
	return Unknown, false
}

const bitmaskWords = (int(MaxID) + 64) / 64

// Bitmask is a fixed-size set of protocol identifiers.
type Bitmask struct {
	words [bitmaskWords]uint64
}

func (b *Bitmask) Add(id ID) {
	if id > MaxID {
		return
	}
	b.words[id/64] |= 1 << (id % 64)
}

func (b *Bitmask) Del(id ID) {
	if id > MaxID {
		return
	}
	b.words[id/64] &^= 1 << (id % 64)
}

func (b Bitmask) Has(id ID) bool {
	if id > MaxID {
		return false
	}
	return b.words[id/64]&(1<<(id%64)) != 0
}

// Subtract removes every identifier set in other.
func (b *Bitmask) Subtract(other Bitmask) {
	for i := range b.words {
		b.words[i] &^= other.words[i]
	}
}

func (b *Bitmask) Reset() {
	b.words = [bitmaskWords]uint64{}
}

func (b Bitmask) Empty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// IDs returns the set members in ascending order.
func (b Bitmask) IDs() []ID {
	out := make([]ID, 0, 4)
	for id := ID(0); id <= MaxID; id++ {
		if b.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
