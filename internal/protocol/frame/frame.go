package frame

import (
	"errors"
	"fmt"
)

/*
  0                   1
  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
 +-+-+-+-+-------+-+-------------+
 |F|R|R|R| opcode|M| Payload len |
 |I|S|S|S|  (4)  |A|     (7)     |
 |N|V|V|V|       |S|             |
 | |1|2|3|       |K|             |
 +-+-+-+-+-------+-+-------------+
*/

const (
	// HeaderLen is the size of the fixed base header.
	HeaderLen = 2
	// MaskingKeyLen is the size of the masking key carried by masked frames.
	MaskingKeyLen = 4

	finBit     byte = 0b1_000_0000
	rsvBits    byte = 0b0_111_0000
	opcodeBits byte = 0b0_000_1111
	maskBit    byte = 0b1_0000000
	lenBits    byte = 0b0_1111111
)

var ErrShortHeader = errors.New("frame: short base header")

// Opcode is the 4-bit frame type field.
type Opcode uint8

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA

	// LegacyPongOpcode is the value some dissectors list for Pong. It does
	// not fit in the 4-bit field and never decodes.
	LegacyPongOpcode Opcode = 0x10
)

// Legal reports whether o is one of the six defined frame types.
func (o Opcode) Legal() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary,
		OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

func (o Opcode) IsControl() bool {
	return o == OpcodeClose || o == OpcodePing || o == OpcodePong
}

func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", uint8(o))
	}
}

// Header is the decoded base header of a candidate frame. PayloadLen7 is the
// raw short-form length; 126 and 127 are not resolved to extended lengths.
type Header struct {
	Fin         bool   `json:"fin"`
	Rsv         uint8  `json:"rsv"`
	Opcode      Opcode `json:"opcode"`
	Masked      bool   `json:"masked"`
	PayloadLen7 uint8  `json:"payload_len7"`
}

// DecodeHeader reads the base header from the first two bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	b0, b1 := b[0], b[1]
	return Header{
		Fin:         b0&finBit != 0,
		Rsv:         (b0 & rsvBits) >> 4,
		Opcode:      Opcode(b0 & opcodeBits),
		Masked:      b1&maskBit != 0,
		PayloadLen7: b1 & lenBits,
	}, nil
}

// MinLen is the number of bytes a segment needs before the masked-length
// check passes: the base header alone, or room for a masking key region when
// the mask bit is set.
func (h Header) MinLen() int {
	if h.Masked {
		return MaskingKeyLen
	}
	return HeaderLen
}
