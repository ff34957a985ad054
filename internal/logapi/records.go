// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package logapi

import (
	"fmt"
	"time"
)

// Header is the common prefix of every signaling record.
type Header struct {
	Signature       uint32
	SequenceCounter uint16
	APIVersion      uint8
	MsgID           MsgID
}

// Record is one decoded signaling record. The on-wire message id is the
// authoritative discriminator; consumers type-switch on the variant.
type Record interface {
	RecordHeader() Header
}

// KeepAlive is the log server heartbeat.
type KeepAlive struct {
	Header
	LogServerNo    uint8
	Timeout        uint8
	SwVer          [4]byte
	SwVerString    [20]byte
	LogServerDescr [DescrLen]byte
}

// Version returns the short software version cut at the first NUL.
func (k KeepAlive) Version() string { return cString(k.SwVer[:]) }

// VersionText returns the display software version cut at the first NUL.
func (k KeepAlive) VersionText() string { return cString(k.SwVerString[:]) }

// DescrString returns the log server description cut at the first NUL.
func (k KeepAlive) DescrString() string { return cString(k.LogServerDescr[:]) }

// DuplexCallChange reports setup or state change of a duplex individual call.
type DuplexCallChange struct {
	Header
	CallID  uint32
	Action  IndividualCallAction
	Timeout uint8
	A       Party
	B       Party
}

// DuplexCallRelease terminates a duplex individual call.
type DuplexCallRelease struct {
	Header
	CallID uint32
	Cause  IndiReleaseCause
}

// SimplexCallStartChange reports setup or state change of a simplex
// individual call.
type SimplexCallStartChange struct {
	Header
	CallID  uint32
	Action  IndividualCallAction
	Timeout uint8
	A       Party
	B       Party
}

// SimplexCallPttChange reports the talking party of a simplex call.
type SimplexCallPttChange struct {
	Header
	CallID       uint32
	TalkingParty SimplexPtt
}

// SimplexCallRelease terminates a simplex individual call.
type SimplexCallRelease struct {
	Header
	CallID uint32
	Cause  IndiReleaseCause
}

// GroupCallStartChange reports setup or state change of a group call.
type GroupCallStartChange struct {
	Header
	CallID  uint32
	Action  GroupCallAction
	Timeout uint8
	Group   Party
}

// GroupCallPttActive reports a group member keying up.
type GroupCallPttActive struct {
	Header
	CallID       uint32
	TalkingParty Party
}

// GroupCallPttIdle reports the group going silent.
type GroupCallPttIdle struct {
	Header
	CallID uint32
}

// GroupCallRelease terminates a group call.
type GroupCallRelease struct {
	Header
	CallID uint32
	Cause  GroupReleaseCause
}

// StatusSDS is a precoded short-data status message.
type StatusSDS struct {
	Header
	A              Party
	B              Party
	PrecodedStatus uint16
}

// TextSDS is a short-data text message.
type TextSDS struct {
	Header
	A    Party
	B    Party
	Text [512]byte
}

// TextString returns the SDS payload cut at the first NUL.
func (t TextSDS) TextString() string { return cString(t.Text[:]) }

func (h Header) RecordHeader() Header { return h }

// VoiceFrame is one decoded voice record. Payload is only populated for
// G.711 A-law (exactly G711FrameLen bytes); other payload kinds are
// skipped at parse time.
type VoiceFrame struct {
	Signature        uint32
	APIVersion       uint8
	StreamOriginator StreamOriginator
	OriginatingNode  uint16
	CallID           uint32
	SourceAndIndex   uint16
	StreamRandomID   uint16
	PacketSeq        uint8
	Payload1Kind     PayloadKind
	Payload2Kind     PayloadKind
	Payload          []byte
}

// Event is one parsed wire event, stamped with the wall-clock time at
// which its header was matched in the byte stream. Exactly one of Record
// and Voice is set.
type Event struct {
	At     time.Time
	Record Record
	Voice  *VoiceFrame
}

// Topic returns the bus tag of the event: S_<msg_id_hex> for signaling,
// V_<call_id_decimal> for voice.
func (e Event) Topic() string {
	if e.Voice != nil {
		return fmt.Sprintf("V_%d", e.Voice.CallID)
	}
	return fmt.Sprintf("S_%x", uint8(e.Record.RecordHeader().MsgID))
}
