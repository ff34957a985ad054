// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package logapi models the TetraFlex LogApi UDP wire protocol: the
// little-endian packed signaling records, the voice records carrying
// G.711 A-law frames, and the rolling-buffer frame parser that extracts
// both from a fragmented, junk-tolerant byte stream.
package logapi

// Protocol signatures, little-endian at record start.
const (
	SignalingSignature uint32 = 0x31474F4C
	VoiceSignature     uint32 = 0x32474F4C
)

// MsgID discriminates signaling record types.
type MsgID uint8

const (
	MsgKeepAlive MsgID = 0x01

	MsgDuplexCallChange  MsgID = 0x10
	MsgDuplexCallRelease MsgID = 0x19

	MsgSimplexCallChange    MsgID = 0x20
	MsgSimplexCallPttChange MsgID = 0x21
	MsgSimplexCallRelease   MsgID = 0x29

	MsgGroupCallChange    MsgID = 0x30
	MsgGroupCallPttActive MsgID = 0x31
	MsgGroupCallPttIdle   MsgID = 0x32
	MsgGroupCallRelease   MsgID = 0x39

	MsgStatusSDS MsgID = 0x40
	MsgTextSDS   MsgID = 0x41
)

// IndividualCallAction is the action of a duplex or simplex call change.
type IndividualCallAction uint8

const (
	IndiKeepAliveOnly      IndividualCallAction = 0
	IndiNewCallSetup       IndividualCallAction = 1
	IndiCallThroughConnect IndividualCallAction = 2
	IndiChangeOfAOrBUser   IndividualCallAction = 3
)

func (a IndividualCallAction) String() string {
	switch a {
	case IndiKeepAliveOnly:
		return "INDI_KEEPALIVEONLY"
	case IndiNewCallSetup:
		return "INDI_NEWCALLSETUP"
	case IndiCallThroughConnect:
		return "INDI_CALLTHROUGHCONNECT"
	case IndiChangeOfAOrBUser:
		return "INDI_CHANGEOFAORBUSER"
	}
	return ""
}

// GroupCallAction is the action of a group call change.
type GroupCallAction uint8

const (
	GroupKeepAliveOnly GroupCallAction = 0
	GroupNewCallSetup  GroupCallAction = 1
)

func (a GroupCallAction) String() string {
	switch a {
	case GroupKeepAliveOnly:
		return "GROUPCALL_KEEPALIVEONLY"
	case GroupNewCallSetup:
		return "GROUPCALL_NEWCALLSETUP"
	}
	return ""
}

// IndiReleaseCause is the disconnect cause of an individual call.
type IndiReleaseCause uint8

const (
	IndiReleaseUnknown IndiReleaseCause = 0
	IndiReleaseBySubA  IndiReleaseCause = 1
	IndiReleaseBySubB  IndiReleaseCause = 2
)

func (c IndiReleaseCause) String() string {
	switch c {
	case IndiReleaseUnknown:
		return "INDI_RELEASE_CAUSE_UNKNOWN"
	case IndiReleaseBySubA:
		return "INDI_CAUSE_A_SUB_RELEASE"
	case IndiReleaseBySubB:
		return "INDI_CAUSE_B_SUB_RELEASE"
	}
	return ""
}

// GroupReleaseCause is the disconnect cause of a group call.
type GroupReleaseCause uint8

const (
	GroupReleaseUnknown       GroupReleaseCause = 0
	GroupReleasePttInactivity GroupReleaseCause = 1
)

func (c GroupReleaseCause) String() string {
	switch c {
	case GroupReleaseUnknown:
		return "GROUPCALL_RELEASE_CAUSE_UNKNOWN"
	case GroupReleasePttInactivity:
		return "GROUPCALL_PTT_INACTIVITY_TIMEOUT"
	}
	return ""
}

// SimplexPtt identifies the talking party of a simplex call.
type SimplexPtt uint8

const (
	PttNone SimplexPtt = 0
	PttSubA SimplexPtt = 1
	PttSubB SimplexPtt = 2
)

func (p SimplexPtt) String() string {
	switch p {
	case PttNone:
		return "TALKING_PARTY_NONE"
	case PttSubA:
		return "TALKING_PARTY_A_SUB"
	case PttSubB:
		return "TALKING_PARTY_B_SUB"
	}
	return ""
}

// StreamOriginator identifies which side of a call produced a voice frame.
type StreamOriginator uint8

const (
	OriginatorGroup StreamOriginator = 0
	OriginatorSubA  StreamOriginator = 1
	OriginatorSubB  StreamOriginator = 2
)

func (o StreamOriginator) String() string {
	switch o {
	case OriginatorGroup:
		return "STREAM_ORG_GROUPCALL"
	case OriginatorSubA:
		return "STREAM_ORG_A_SUB"
	case OriginatorSubB:
		return "STREAM_ORG_B_SUB"
	}
	return ""
}

// PayloadKind tags the encoding of a voice payload.
type PayloadKind uint8

const (
	PayloadNone     PayloadKind = 0
	PayloadStchU    PayloadKind = 1
	PayloadTchS     PayloadKind = 2
	PayloadTch72    PayloadKind = 3
	PayloadTch48    PayloadKind = 4
	PayloadTch24    PayloadKind = 5
	PayloadG711Alaw PayloadKind = 7
)

// PayloadLen returns the on-wire byte length of a payload kind. Unknown
// kinds report ok=false.
func PayloadLen(k PayloadKind) (int, bool) {
	switch k {
	case PayloadNone:
		return 0, true
	case PayloadStchU:
		return 16, true
	case PayloadTchS:
		return 18, true
	case PayloadTch72:
		return 27, true
	case PayloadTch48:
		return 18, true
	case PayloadTch24:
		return 9, true
	case PayloadG711Alaw:
		return G711FrameLen, true
	}
	return 0, false
}

// Fixed wire dimensions.
const (
	HeaderLen      = 8   // common signaling header
	VoicePrefixLen = 20  // voice record prefix before payload 1
	G711FrameLen   = 480 // one G.711 A-law voice payload
	DescrLen       = 64  // fixed-width display description
)

// RecordSize returns the fixed on-wire size of a signaling record,
// derived from the packed layout of its variant. Unknown ids report
// ok=false; the parser resynchronizes byte-wise on those.
func RecordSize(id MsgID) (int, bool) {
	switch id {
	case MsgKeepAlive:
		return 104, true
	case MsgDuplexCallChange, MsgSimplexCallChange:
		return 176, true
	case MsgDuplexCallRelease, MsgSimplexCallPttChange, MsgSimplexCallRelease,
		MsgGroupCallPttIdle, MsgGroupCallRelease:
		return 16, true
	case MsgGroupCallChange, MsgGroupCallPttActive:
		return 96, true
	case MsgStatusSDS:
		return 170, true
	case MsgTextSDS:
		return 680, true
	}
	return 0, false
}
