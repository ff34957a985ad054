// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package logapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/internal/logapi/logapitest"
)

func TestDecodeKeepAlive(t *testing.T) {
	in := logapi.KeepAlive{
		Header:      logapi.Header{SequenceCounter: 42, APIVersion: 1},
		LogServerNo: 7,
		Timeout:     30,
	}
	copy(in.SwVer[:], "7.60")
	copy(in.SwVerString[:], "LogServer 7.60")
	copy(in.LogServerDescr[:], "main site")

	wire := logapitest.Encode(in)
	require.Len(t, wire, 104)

	rec, err := logapi.DecodeRecord(wire)
	require.NoError(t, err)

	ka, ok := rec.(logapi.KeepAlive)
	require.True(t, ok)
	assert.Equal(t, logapi.SignalingSignature, ka.Signature)
	assert.Equal(t, uint16(42), ka.SequenceCounter)
	assert.Equal(t, logapi.MsgKeepAlive, ka.MsgID)
	assert.Equal(t, uint8(7), ka.LogServerNo)
	assert.Equal(t, uint8(30), ka.Timeout)
	assert.Equal(t, "LogServer 7.60", string(ka.SwVerString[:14]))
}

func TestDecodeSimplexCallStartChange(t *testing.T) {
	in := logapi.SimplexCallStartChange{
		CallID:  100,
		Action:  logapi.IndiNewCallSetup,
		Timeout: 60,
		A:       logapitest.Party(1001, 17, 214, "1001", "Patrol 1"),
		B:       logapitest.Party(1002, 17, 214, "1002", "Patrol 2"),
	}
	wire := logapitest.Encode(in)
	require.Len(t, wire, 176)

	rec, err := logapi.DecodeRecord(wire)
	require.NoError(t, err)

	sc, ok := rec.(logapi.SimplexCallStartChange)
	require.True(t, ok)
	assert.Equal(t, uint32(100), sc.CallID)
	assert.Equal(t, logapi.IndiNewCallSetup, sc.Action)
	assert.Equal(t, uint8(60), sc.Timeout)
	assert.Equal(t, uint32(1001), sc.A.TSI.SSI)
	assert.Equal(t, uint16(17), sc.A.TSI.MNC)
	assert.Equal(t, uint16(214), sc.A.TSI.MCC)
	assert.Equal(t, "1001", sc.A.Number.String())
	assert.Equal(t, "Patrol 1", sc.A.DescrString())
	assert.Equal(t, "1002", sc.B.Number.String())
}

func TestDecodeGroupCallStartChange(t *testing.T) {
	in := logapi.GroupCallStartChange{
		CallID:  555,
		Action:  logapi.GroupNewCallSetup,
		Timeout: 120,
		Group:   logapitest.Party(9000, 17, 214, "9000", "Dispatch"),
	}
	wire := logapitest.Encode(in)
	require.Len(t, wire, 96)

	rec, err := logapi.DecodeRecord(wire)
	require.NoError(t, err)

	gc, ok := rec.(logapi.GroupCallStartChange)
	require.True(t, ok)
	assert.Equal(t, uint32(555), gc.CallID)
	assert.Equal(t, logapi.GroupNewCallSetup, gc.Action)
	assert.Equal(t, "Dispatch", gc.Group.DescrString())
}

func TestDecodeReleases(t *testing.T) {
	rec, err := logapi.DecodeRecord(logapitest.Encode(logapi.DuplexCallRelease{
		CallID: 9, Cause: logapi.IndiReleaseBySubB,
	}))
	require.NoError(t, err)
	rel, ok := rec.(logapi.DuplexCallRelease)
	require.True(t, ok)
	assert.Equal(t, uint32(9), rel.CallID)
	assert.Equal(t, logapi.IndiReleaseBySubB, rel.Cause)

	rec, err = logapi.DecodeRecord(logapitest.Encode(logapi.GroupCallRelease{
		CallID: 12, Cause: logapi.GroupReleasePttInactivity,
	}))
	require.NoError(t, err)
	grel, ok := rec.(logapi.GroupCallRelease)
	require.True(t, ok)
	assert.Equal(t, logapi.GroupReleasePttInactivity, grel.Cause)
}

func TestDecodeStatusSDS(t *testing.T) {
	in := logapi.StatusSDS{
		A:              logapitest.Party(1, 17, 214, "", "A"),
		B:              logapitest.Party(2, 17, 214, "", "B"),
		PrecodedStatus: 0x8002,
	}
	wire := logapitest.Encode(in)
	require.Len(t, wire, 170)

	rec, err := logapi.DecodeRecord(wire)
	require.NoError(t, err)
	sds, ok := rec.(logapi.StatusSDS)
	require.True(t, ok)
	assert.Equal(t, uint16(0x8002), sds.PrecodedStatus)
}

func TestDecodeTextSDS(t *testing.T) {
	in := logapi.TextSDS{
		A: logapitest.Party(1, 17, 214, "", "A"),
		B: logapitest.Party(2, 17, 214, "", "B"),
	}
	copy(in.Text[:], "unit 4 returning to base")
	wire := logapitest.Encode(in)
	require.Len(t, wire, 680)

	rec, err := logapi.DecodeRecord(wire)
	require.NoError(t, err)
	sds, ok := rec.(logapi.TextSDS)
	require.True(t, ok)
	assert.Equal(t, "unit 4 returning to base", sds.TextString())
}

func TestDecodeRecordErrors(t *testing.T) {
	_, err := logapi.DecodeRecord([]byte{1, 2, 3})
	assert.Error(t, err)

	// Unknown message id.
	wire := logapitest.Encode(logapi.GroupCallPttIdle{CallID: 1})
	wire[7] = 0x7f
	_, err = logapi.DecodeRecord(wire)
	assert.Error(t, err)

	// Wrong record length for a known id.
	wire = logapitest.Encode(logapi.GroupCallPttIdle{CallID: 1})
	_, err = logapi.DecodeRecord(wire[:12])
	assert.Error(t, err)
}

func TestDecodeVoicePrefix(t *testing.T) {
	vf := &logapi.VoiceFrame{
		APIVersion:       1,
		StreamOriginator: logapi.OriginatorSubB,
		OriginatingNode:  3,
		CallID:           77,
		SourceAndIndex:   0x1001,
		StreamRandomID:   0xBEEF,
		PacketSeq:        9,
		Payload1Kind:     logapi.PayloadG711Alaw,
	}
	payload := make([]byte, logapi.G711FrameLen)
	wire := logapitest.EncodeVoice(vf, payload)
	require.Len(t, wire, logapi.VoicePrefixLen+logapi.G711FrameLen)

	got, err := logapi.DecodeVoicePrefix(wire[:logapi.VoicePrefixLen])
	require.NoError(t, err)
	assert.Equal(t, logapi.VoiceSignature, got.Signature)
	assert.Equal(t, logapi.OriginatorSubB, got.StreamOriginator)
	assert.Equal(t, uint32(77), got.CallID)
	assert.Equal(t, uint16(0xBEEF), got.StreamRandomID)
	assert.Equal(t, uint8(9), got.PacketSeq)
	assert.Equal(t, logapi.PayloadG711Alaw, got.Payload1Kind)
}

func TestEventTopic(t *testing.T) {
	sig := logapi.Event{Record: logapi.KeepAlive{
		Header: logapi.Header{MsgID: logapi.MsgKeepAlive},
	}}
	assert.Equal(t, "S_1", sig.Topic())

	dup := logapi.Event{Record: logapi.DuplexCallChange{
		Header: logapi.Header{MsgID: logapi.MsgDuplexCallChange},
	}}
	assert.Equal(t, "S_10", dup.Topic())

	voice := logapi.Event{Voice: &logapi.VoiceFrame{CallID: 42}}
	assert.Equal(t, "V_42", voice.Topic())
}
