// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package logapitest builds wire-format LogApi records for tests. The
// production side of the system only ever decodes, so the encoders live
// here rather than in the protocol package.
package logapitest

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tetraops/callstream/internal/logapi"
)

type writer struct {
	b []byte
}

func (w *writer) u8(v uint8)   { w.b = append(w.b, v) }
func (w *writer) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *writer) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }

func (w *writer) bytes(b []byte) { w.b = append(w.b, b...) }

func (w *writer) header(h logapi.Header, id logapi.MsgID) {
	w.u32(logapi.SignalingSignature)
	w.u16(h.SequenceCounter)
	w.u8(h.APIVersion)
	w.u8(uint8(id))
}

func (w *writer) tsi(t logapi.TSI) {
	w.u32(t.SSI)
	w.u16(t.MNC)
	w.u16(t.MCC)
}

func (w *writer) party(p logapi.Party) {
	w.tsi(p.TSI)
	w.u8(p.Number.Len)
	w.bytes(p.Number.Digits[:])
	w.bytes(p.Descr[:])
}

// Encode renders a signaling record into its packed wire form. It
// panics on an unknown record type; tests only build known variants.
func Encode(rec logapi.Record) []byte {
	w := &writer{}
	hdr := rec.RecordHeader()

	switch v := rec.(type) {
	case logapi.KeepAlive:
		w.header(hdr, logapi.MsgKeepAlive)
		w.u8(v.LogServerNo)
		w.u8(v.Timeout)
		w.u16(0)
		w.u32(0)
		w.bytes(v.SwVer[:])
		w.bytes(v.SwVerString[:])
		w.bytes(v.LogServerDescr[:])

	case logapi.DuplexCallChange:
		w.header(hdr, logapi.MsgDuplexCallChange)
		w.u32(v.CallID)
		w.u8(uint8(v.Action))
		w.u8(v.Timeout)
		w.u16(0)
		w.party(v.A)
		w.party(v.B)

	case logapi.DuplexCallRelease:
		w.header(hdr, logapi.MsgDuplexCallRelease)
		w.u32(v.CallID)
		w.u8(uint8(v.Cause))
		w.bytes([]byte{0, 0, 0})

	case logapi.SimplexCallStartChange:
		w.header(hdr, logapi.MsgSimplexCallChange)
		w.u32(v.CallID)
		w.u8(uint8(v.Action))
		w.u8(v.Timeout)
		w.u16(0)
		w.party(v.A)
		w.party(v.B)

	case logapi.SimplexCallPttChange:
		w.header(hdr, logapi.MsgSimplexCallPttChange)
		w.u32(v.CallID)
		w.u8(uint8(v.TalkingParty))
		w.bytes([]byte{0, 0, 0})

	case logapi.SimplexCallRelease:
		w.header(hdr, logapi.MsgSimplexCallRelease)
		w.u32(v.CallID)
		w.u8(uint8(v.Cause))
		w.bytes([]byte{0, 0, 0})

	case logapi.GroupCallStartChange:
		w.header(hdr, logapi.MsgGroupCallChange)
		w.u32(v.CallID)
		w.u8(uint8(v.Action))
		w.u8(v.Timeout)
		w.u16(0)
		w.party(v.Group)

	case logapi.GroupCallPttActive:
		w.header(hdr, logapi.MsgGroupCallPttActive)
		w.u32(v.CallID)
		w.u32(0)
		w.party(v.TalkingParty)

	case logapi.GroupCallPttIdle:
		w.header(hdr, logapi.MsgGroupCallPttIdle)
		w.u32(v.CallID)
		w.u32(0)

	case logapi.GroupCallRelease:
		w.header(hdr, logapi.MsgGroupCallRelease)
		w.u32(v.CallID)
		w.u8(uint8(v.Cause))
		w.bytes([]byte{0, 0, 0})

	case logapi.StatusSDS:
		w.header(hdr, logapi.MsgStatusSDS)
		w.party(v.A)
		w.party(v.B)
		w.u16(v.PrecodedStatus)

	case logapi.TextSDS:
		w.header(hdr, logapi.MsgTextSDS)
		w.party(v.A)
		w.party(v.B)
		w.bytes(v.Text[:])

	default:
		panic(fmt.Sprintf("logapitest: cannot encode %T", rec))
	}

	if size, ok := logapi.RecordSize(hdr.MsgID); ok && len(w.b) != size {
		// MsgID may be zero on hand-built records; only check when set.
		panic(fmt.Sprintf("logapitest: %T encoded to %d bytes, want %d", rec, len(w.b), size))
	}
	return w.b
}

// EncodeVoice renders a voice record: the 20-byte prefix followed by the
// payload bytes as given.
func EncodeVoice(vf *logapi.VoiceFrame, payload []byte) []byte {
	w := &writer{}
	w.u32(logapi.VoiceSignature)
	w.u8(vf.APIVersion)
	w.u8(uint8(vf.StreamOriginator))
	w.u16(vf.OriginatingNode)
	w.u32(vf.CallID)
	w.u16(vf.SourceAndIndex)
	w.u16(vf.StreamRandomID)
	w.u8(vf.PacketSeq)
	w.u8(0)
	w.u8(uint8(vf.Payload1Kind))
	w.u8(uint8(vf.Payload2Kind))
	w.bytes(payload)
	return w.b
}

// Party builds a call participant with a packed number and a
// NUL-padded description.
func Party(ssi uint32, mnc, mcc uint16, number, descr string) logapi.Party {
	p := logapi.Party{
		TSI:    logapi.TSI{SSI: ssi, MNC: mnc, MCC: mcc},
		Number: PackNumber(number),
	}
	copy(p.Descr[:], descr)
	return p
}

// PackNumber BCD-packs a digit string in the extended dialing alphabet.
func PackNumber(digits string) logapi.Number {
	const alphabet = "0123456789*#+DEF"
	n := logapi.Number{Len: uint8(len(digits))}
	for i, c := range digits {
		nibble := strings.IndexRune(alphabet, c)
		if nibble < 0 {
			panic(fmt.Sprintf("logapitest: digit %q outside dialing alphabet", c))
		}
		if i/2 >= len(n.Digits) {
			panic(fmt.Sprintf("logapitest: number %q too long", digits))
		}
		if i%2 == 0 {
			n.Digits[i/2] = byte(nibble) << 4
		} else {
			n.Digits[i/2] |= byte(nibble)
		}
	}
	return n
}
