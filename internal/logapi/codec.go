// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package logapi

import (
	"encoding/binary"
	"fmt"
)

// reader is a cursor over a packed little-endian record. All record
// sizes are validated before decoding starts, so reads never overrun.
type reader struct {
	b   []byte
	off int
}

func (r *reader) u8() uint8 {
	v := r.b[r.off]
	r.off++
	return v
}

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *reader) skip(n int) { r.off += n }

func (r *reader) bytes(dst []byte) {
	copy(dst, r.b[r.off:r.off+len(dst)])
	r.off += len(dst)
}

func (r *reader) header() Header {
	return Header{
		Signature:       r.u32(),
		SequenceCounter: r.u16(),
		APIVersion:      r.u8(),
		MsgID:           MsgID(r.u8()),
	}
}

func (r *reader) tsi() TSI {
	return TSI{SSI: r.u32(), MNC: r.u16(), MCC: r.u16()}
}

func (r *reader) number() Number {
	n := Number{Len: r.u8()}
	r.bytes(n.Digits[:])
	return n
}

func (r *reader) party() Party {
	p := Party{TSI: r.tsi(), Number: r.number()}
	r.bytes(p.Descr[:])
	return p
}

// DecodeRecord decodes one complete signaling record. The slice must be
// exactly RecordSize(id) bytes for the id found in the header.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("signaling record truncated: %d bytes", len(b))
	}
	id := MsgID(b[7])
	size, ok := RecordSize(id)
	if !ok {
		return nil, fmt.Errorf("unknown signaling message id 0x%x", uint8(id))
	}
	if len(b) != size {
		return nil, fmt.Errorf("signaling record 0x%x: got %d bytes, want %d", uint8(id), len(b), size)
	}

	r := &reader{b: b}
	hdr := r.header()

	switch id {
	case MsgKeepAlive:
		rec := KeepAlive{Header: hdr}
		rec.LogServerNo = r.u8()
		rec.Timeout = r.u8()
		r.skip(2) // spare
		r.skip(4) // spare
		r.bytes(rec.SwVer[:])
		r.bytes(rec.SwVerString[:])
		r.bytes(rec.LogServerDescr[:])
		return rec, nil

	case MsgDuplexCallChange:
		rec := DuplexCallChange{Header: hdr}
		rec.CallID = r.u32()
		rec.Action = IndividualCallAction(r.u8())
		rec.Timeout = r.u8()
		r.skip(2)
		rec.A = r.party()
		rec.B = r.party()
		return rec, nil

	case MsgDuplexCallRelease:
		rec := DuplexCallRelease{Header: hdr}
		rec.CallID = r.u32()
		rec.Cause = IndiReleaseCause(r.u8())
		return rec, nil

	case MsgSimplexCallChange:
		rec := SimplexCallStartChange{Header: hdr}
		rec.CallID = r.u32()
		rec.Action = IndividualCallAction(r.u8())
		rec.Timeout = r.u8()
		r.skip(2)
		rec.A = r.party()
		rec.B = r.party()
		return rec, nil

	case MsgSimplexCallPttChange:
		rec := SimplexCallPttChange{Header: hdr}
		rec.CallID = r.u32()
		rec.TalkingParty = SimplexPtt(r.u8())
		return rec, nil

	case MsgSimplexCallRelease:
		rec := SimplexCallRelease{Header: hdr}
		rec.CallID = r.u32()
		rec.Cause = IndiReleaseCause(r.u8())
		return rec, nil

	case MsgGroupCallChange:
		rec := GroupCallStartChange{Header: hdr}
		rec.CallID = r.u32()
		rec.Action = GroupCallAction(r.u8())
		rec.Timeout = r.u8()
		r.skip(2)
		rec.Group = r.party()
		return rec, nil

	case MsgGroupCallPttActive:
		rec := GroupCallPttActive{Header: hdr}
		rec.CallID = r.u32()
		r.skip(4) // spare
		rec.TalkingParty = r.party()
		return rec, nil

	case MsgGroupCallPttIdle:
		rec := GroupCallPttIdle{Header: hdr}
		rec.CallID = r.u32()
		return rec, nil

	case MsgGroupCallRelease:
		rec := GroupCallRelease{Header: hdr}
		rec.CallID = r.u32()
		rec.Cause = GroupReleaseCause(r.u8())
		return rec, nil

	case MsgStatusSDS:
		rec := StatusSDS{Header: hdr}
		rec.A = r.party()
		rec.B = r.party()
		rec.PrecodedStatus = r.u16()
		return rec, nil

	case MsgTextSDS:
		rec := TextSDS{Header: hdr}
		rec.A = r.party()
		rec.B = r.party()
		r.bytes(rec.Text[:])
		return rec, nil
	}

	return nil, fmt.Errorf("unhandled signaling message id 0x%x", uint8(id))
}

// DecodeVoicePrefix decodes the fixed 20-byte prefix of a voice record.
// The payload is not attached here; the parser copies it after checking
// the payload kind.
func DecodeVoicePrefix(b []byte) (*VoiceFrame, error) {
	if len(b) < VoicePrefixLen {
		return nil, fmt.Errorf("voice record truncated: %d bytes", len(b))
	}
	r := &reader{b: b}
	vf := &VoiceFrame{
		Signature:        r.u32(),
		APIVersion:       r.u8(),
		StreamOriginator: StreamOriginator(r.u8()),
		OriginatingNode:  r.u16(),
		CallID:           r.u32(),
		SourceAndIndex:   r.u16(),
		StreamRandomID:   r.u16(),
		PacketSeq:        r.u8(),
	}
	r.skip(1) // spare
	vf.Payload1Kind = PayloadKind(r.u8())
	vf.Payload2Kind = PayloadKind(r.u8())
	return vf, nil
}
