// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package tracer

import (
	"fmt"
	"strings"
	"time"

	"github.com/tetraops/callstream/internal/logapi"
)

// Message type tags of the published traces.
const (
	typeKeepAlive              = "LOG_API_KEEP_ALIVE"
	typeDuplexCallChange       = "LOG_API_DUPLEX_CALL_CHANGE"
	typeDuplexCallRelease      = "LOG_API_DUPLEX_CALL_RELEASE"
	typeSimplexCallStartChange = "LOG_API_SIMPLEX_CALL_START_CHANGE"
	typeSimplexCallPttChange   = "LOG_API_SIMPLEX_CALL_PTT_CHANGE"
	typeSimplexCallRelease     = "LOG_API_SIMPLEX_CALL_RELEASE"
	typeGroupCallStartChange   = "LOG_API_GROUP_CALL_START_CHANGE"
	typeGroupCallPttActive     = "LOG_API_GROUP_CALL_PTT_ACTIVE"
	typeGroupCallPttIdle       = "LOG_API_GROUP_CALL_PTT_IDLE"
	typeGroupCallRelease       = "LOG_API_GROUP_CALL_RELEASE"
	typeStatusSDS              = "LOG_API_SDS_STATUS"
	typeTextSDS                = "LOG_API_SDS_TEXT"
	typeVoice                  = "VOICE"
)

// traceHeader opens every signaling trace document. Field names and the
// all-string values follow the downstream consumers of the trace channel.
type traceHeader struct {
	Type              string `json:"type"`
	Timestamp         string `json:"timestamp"`
	ProtocolSignature string `json:"ProtocolSignature"`
	SequenceCounter   string `json:"SequenceCounter"`
	APIVersion        string `json:"ApiVersion"`
	MsgID             string `json:"MsgId"`
	MessageType       string `json:"message_type"`
}

func newTraceHeader(at time.Time, h logapi.Header, messageType string) traceHeader {
	return traceHeader{
		Type:              "S",
		Timestamp:         fmt.Sprintf("%d", at.Unix()),
		ProtocolSignature: fmt.Sprintf("%x", h.Signature),
		SequenceCounter:   fmt.Sprintf("%d", h.SequenceCounter),
		APIVersion:        fmt.Sprintf("%d", h.APIVersion),
		MsgID:             fmt.Sprintf("%x", uint8(h.MsgID)),
		MessageType:       messageType,
	}
}

// pipeHeader is the header prefix of the human-readable trace line.
func pipeHeader(at time.Time, h logapi.Header) string {
	return fmt.Sprintf("S|%d|%x|%d|%d|%x",
		at.Unix(), h.Signature, h.SequenceCounter, h.APIVersion, uint8(h.MsgID))
}

func pipeLine(header string, fields ...string) string {
	return "|" + header + "|" + strings.Join(fields, "|") + "|"
}

type keepAliveTrace struct {
	traceHeader
	LogServerNo    string `json:"m_uiLogServerNo"`
	Timeout        string `json:"m_uiTimeout"`
	SwVer          string `json:"m_bySwVer"`
	SwVerString    string `json:"m_bySwVerString"`
	LogServerDescr string `json:"m_byLogServerDescr"`
}

type indiCallChangeTrace struct {
	traceHeader
	CallID  string `json:"m_uiCallId"`
	Action  string `json:"m_uiAction"`
	ActionS string `json:"m_uiActionS"`
	Timeout string `json:"m_uiTimeout"`
	AMNC    string `json:"m_A_Tsi_Mnc"`
	AMCC    string `json:"m_A_Tsi_Mcc"`
	ASSI    string `json:"m_A_Tsi_Ssi"`
	DigitsA string `json:"digitsA"`
	ADescr  string `json:"m_A_Descr"`
	BMNC    string `json:"m_B_Tsi_Mnc"`
	BMCC    string `json:"m_B_Tsi_Mcc"`
	BSSI    string `json:"m_B_Tsi_Ssi"`
	DigitsB string `json:"digitsB"`
	BDescr  string `json:"m_B_Descr"`
}

type indiCallReleaseTrace struct {
	traceHeader
	CallID        string `json:"m_uiCallId"`
	ReleaseCause  string `json:"m_uiReleaseCause"`
	ReleaseCauseS string `json:"m_uiReleaseCauseS"`
}

type simplexPttTrace struct {
	traceHeader
	CallID        string `json:"m_uiCallId"`
	TalkingParty  string `json:"m_uiTalkingParty"`
	TalkingPartyS string `json:"m_uiTalkingPartyS"`
}

type groupCallChangeTrace struct {
	traceHeader
	CallID     string `json:"m_uiCallId"`
	Action     string `json:"m_uiAction"`
	ActionS    string `json:"m_uiActionS"`
	Timeout    string `json:"m_uiTimeoutValue"`
	GroupMNC   string `json:"m_Group_Tsi_Mnc"`
	GroupMCC   string `json:"m_Group_Tsi_Mcc"`
	GroupSSI   string `json:"m_Group_Tsi_Ssi"`
	DigitsA    string `json:"digitsA"`
	GroupDescr string `json:"m_Group_Descr"`
}

type groupPttActiveTrace struct {
	traceHeader
	CallID  string `json:"m_uiCallId"`
	TPMNC   string `json:"m_TP_Tsi_Mnc"`
	TPMCC   string `json:"m_TP_Tsi_Mcc"`
	TPSSI   string `json:"m_TP_Tsi_Ssi"`
	DigitsA string `json:"digitsA"`
	TPDescr string `json:"m_TP_Descr"`
}

type groupPttIdleTrace struct {
	traceHeader
	CallID string `json:"m_uiCallId"`
}

type groupCallReleaseTrace struct {
	traceHeader
	CallID        string `json:"m_uiCallId"`
	ReleaseCause  string `json:"m_uiReleaseCause"`
	ReleaseCauseS string `json:"m_uiReleaseCauseS"`
}

type statusSDSTrace struct {
	traceHeader
	AMNC           string `json:"m_A_Tsi_Mnc"`
	AMCC           string `json:"m_A_Tsi_Mcc"`
	ASSI           string `json:"m_A_Tsi_Ssi"`
	DigitsA        string `json:"digitsA"`
	ADescr         string `json:"m_A_Descr"`
	BMNC           string `json:"m_B_Tsi_Mnc"`
	BMCC           string `json:"m_B_Tsi_Mcc"`
	BSSI           string `json:"m_B_Tsi_Ssi"`
	DigitsB        string `json:"digitsB"`
	BDescr         string `json:"m_B_Descr"`
	PrecodedStatus string `json:"m_uiPrecodedStatusValue"`
}

type textSDSTrace struct {
	traceHeader
	AMNC     string `json:"m_A_Tsi_Mnc"`
	AMCC     string `json:"m_A_Tsi_Mcc"`
	ASSI     string `json:"m_A_Tsi_Ssi"`
	DigitsA  string `json:"digitsA"`
	ADescr   string `json:"m_A_Descr"`
	BMNC     string `json:"m_B_Tsi_Mnc"`
	BMCC     string `json:"m_B_Tsi_Mcc"`
	BSSI     string `json:"m_B_Tsi_Ssi"`
	DigitsB  string `json:"digitsB"`
	BDescr   string `json:"m_B_Descr"`
	TextData string `json:"m_TextData"`
}

type voiceTrace struct {
	Type              string `json:"type"`
	Timestamp         string `json:"timestamp"`
	MessageType       string `json:"message_type"`
	ProtocolSignature string `json:"m_uiProtocolSignature"`
	APIVersion        string `json:"m_uiApiProtocolVersion"`
	StreamOriginator  string `json:"m_uiStreamOriginator"`
	OriginatingNode   string `json:"m_uiOriginatingNode"`
	CallID            string `json:"m_uiCallId"`
	SourceAndIndex    string `json:"m_uiSourceAndIndex"`
	StreamRandomID    string `json:"m_uiStreamRandomId"`
	PacketSeq         string `json:"m_uiPacketSeq"`
	Payload1Info      string `json:"m_uiPayload1Info"`
}

// partyFields flattens a call party into the order the trace formats
// use: mnc, mcc, ssi, digits, descr.
func partyFields(p logapi.Party) []string {
	return []string{
		fmt.Sprintf("%d", p.TSI.MNC),
		fmt.Sprintf("%d", p.TSI.MCC),
		fmt.Sprintf("%d", p.TSI.SSI),
		p.Number.String(),
		p.DescrString(),
	}
}
