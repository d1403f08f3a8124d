package frame

import (
	"errors"
	"testing"
)

func TestDecodeHeaderFields(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want Header
	}{
		{"text unmasked", []byte{0x81, 0x05}, Header{Fin: true, Opcode: OpcodeText, PayloadLen7: 5}},
		{"close masked", []byte{0x88, 0x80}, Header{Fin: true, Opcode: OpcodeClose, Masked: true}},
		{"continuation not final", []byte{0x00, 0x7F}, Header{Opcode: OpcodeContinuation, PayloadLen7: 127}},
		{"rsv bits kept", []byte{0xC1, 0x85, 0x37, 0xFA}, Header{Fin: true, Rsv: 0b100, Opcode: OpcodeText, Masked: true, PayloadLen7: 5}},
		{"reserved opcode", []byte{0x83, 0x00}, Header{Fin: true, Opcode: Opcode(0x3)}},
	}
	for _, tc := range cases {
		got, err := DecodeHeader(tc.in)
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got=%+v want=%+v", tc.name, got, tc.want)
		}
	}
}

func TestDecodeHeaderShortInput(t *testing.T) {
	for _, in := range [][]byte{nil, {}, {0x8F}} {
		if _, err := DecodeHeader(in); !errors.Is(err, ErrShortHeader) {
			t.Fatalf("decode(%v): expected ErrShortHeader, got %v", in, err)
		}
	}
}

func TestEncodeDecodeEveryFirstByte(t *testing.T) {
	for i := 0; i < 256; i++ {
		for _, b1 := range []byte{0x00, 0x05, 0x7E, 0x80, 0xFF} {
			in := []byte{byte(i), b1}
			h, err := DecodeHeader(in)
			if err != nil {
				t.Fatalf("decode(%v): %v", in, err)
			}
			if out := encodeHeader(h); out[0] != in[0] || out[1] != in[1] {
				t.Fatalf("encode(decode(%v)) = %v", in, out)
			}
		}
	}
}

func TestLegalOpcodes(t *testing.T) {
	legal := map[Opcode]bool{
		OpcodeContinuation: true,
		OpcodeText:         true,
		OpcodeBinary:       true,
		OpcodeClose:        true,
		OpcodePing:         true,
		OpcodePong:         true,
	}
	for op := Opcode(0); op <= 0xF; op++ {
		if op.Legal() != legal[op] {
			t.Fatalf("opcode 0x%X: legal=%v want %v", uint8(op), op.Legal(), legal[op])
		}
	}
}

// 0x10 is listed as Pong by some dissectors. The opcode field is four bits
// wide, so no input byte can decode to it.
func TestLegacyPongOpcodeNeverDecodes(t *testing.T) {
	if LegacyPongOpcode.Legal() {
		t.Fatalf("0x10 must not be a legal opcode")
	}
	for i := 0; i < 256; i++ {
		h, err := DecodeHeader([]byte{byte(i), 0})
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if h.Opcode == LegacyPongOpcode {
			t.Fatalf("byte 0x%02X decoded to opcode 0x10", i)
		}
	}
	if got := LegacyPongOpcode.String(); got != "unknown(0x10)" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestMinLen(t *testing.T) {
	if got := (Header{}).MinLen(); got != HeaderLen {
		t.Fatalf("unmasked min len = %d", got)
	}
	if got := (Header{Masked: true}).MinLen(); got != MaskingKeyLen {
		t.Fatalf("masked min len = %d", got)
	}
}

func TestControlOpcodes(t *testing.T) {
	for _, op := range []Opcode{OpcodeClose, OpcodePing, OpcodePong} {
		if !op.IsControl() {
			t.Fatalf("%s must be control", op)
		}
	}
	for _, op := range []Opcode{OpcodeContinuation, OpcodeText, OpcodeBinary} {
		if op.IsControl() {
			t.Fatalf("%s must not be control", op)
		}
	}
}

// encodeHeader is the inverse of DecodeHeader. Fields wider than their wire
// width are truncated.
func encodeHeader(h Header) [HeaderLen]byte {
	var b0, b1 byte
	if h.Fin {
		b0 |= finBit
	}
	b0 |= (h.Rsv << 4) & rsvBits
	b0 |= byte(h.Opcode) & opcodeBits
	if h.Masked {
		b1 |= maskBit
	}
	b1 |= h.PayloadLen7 & lenBits
	return [HeaderLen]byte{b0, b1}
}
