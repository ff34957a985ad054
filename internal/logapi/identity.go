// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package logapi

import "bytes"

// TSI is a TETRA Subscriber Identity: 8 packed bytes on the wire
// (SSI 4, MNC 2, MCC 2).
type TSI struct {
	SSI uint32
	MNC uint16
	MCC uint16
}

// Number is a subscriber user number: a nibble count followed by 7
// BCD-packed digit bytes in the extended alphabet.
type Number struct {
	Len    uint8
	Digits [7]byte
}

const numberLen = 8 // on-wire size of Number

// bcdAlphabet maps a digit nibble to its character. Values above 9
// carry the TETRA dialing extensions.
const bcdAlphabet = "0123456789*#+DEF"

// String decodes the packed digits. The nibble iteration covers
// floor(Len/2)+1 bytes and the output is cut at Len characters; a
// length that would overrun the digit array yields the empty string.
func (n Number) String() string {
	if n.Len == 0 || int(n.Len/2) >= len(n.Digits) {
		return ""
	}
	out := make([]byte, 0, 2*len(n.Digits))
	for i := 0; i <= int(n.Len/2); i++ {
		b := n.Digits[i]
		out = append(out, bcdAlphabet[b>>4], bcdAlphabet[b&0x0f])
	}
	return string(out[:n.Len])
}

// Party is a call participant: identity, optional user number and a
// fixed-width display description.
type Party struct {
	TSI    TSI
	Number Number
	Descr  [DescrLen]byte
}

const partyLen = 8 + numberLen + DescrLen

// DescrString returns the display description cut at the first NUL.
func (p Party) DescrString() string {
	return cString(p.Descr[:])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
