// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package persistence

import "time"

// CallKind distinguishes the three call families that carry voice.
type CallKind byte

const (
	KindDuplex  CallKind = 'D'
	KindSimplex CallKind = 'S'
	KindGroup   CallKind = 'G'
)

// Stereo reports whether the kind accumulates voice frames per leg
// (duplex) or as a single stream.
func (k CallKind) Stereo() bool { return k == KindDuplex }

// LogServerStatus mirrors d_callstream_keepalive: one row per log
// server, refreshed on every heartbeat.
type LogServerStatus struct {
	LogServerNo    uint8     `gorm:"column:log_server_no;primaryKey"`
	LastHeartbeat  time.Time `gorm:"column:last_heartbeat"`
	Timeout        uint8     `gorm:"column:timeout"`
	SwVer          string    `gorm:"column:sw_ver"`
	SwVerString    string    `gorm:"column:sw_ver_string"`
	LogServerDescr string    `gorm:"column:log_server_descr"`
}

func (LogServerStatus) TableName() string { return "d_callstream_keepalive" }

// IndiCall mirrors d_callstream_indicall: one row per individual call,
// opened on setup and closed on release.
type IndiCall struct {
	DBID            int64      `gorm:"column:db_id;primaryKey;autoIncrement"`
	CallID          uint32     `gorm:"column:call_id"`
	Timeout         uint8      `gorm:"column:timeout"`
	CallBegin       time.Time  `gorm:"column:call_begin"`
	SeqNoBegin      uint16     `gorm:"column:seq_no_begin"`
	CallingSSI      uint32     `gorm:"column:calling_ssi"`
	CallingMNC      uint16     `gorm:"column:calling_mnc"`
	CallingMCC      uint16     `gorm:"column:calling_mcc"`
	CallingESN      string     `gorm:"column:calling_esn"`
	CallingDescr    string     `gorm:"column:calling_descr"`
	CalledSSI       uint32     `gorm:"column:called_ssi"`
	CalledMNC       uint16     `gorm:"column:called_mnc"`
	CalledMCC       uint16     `gorm:"column:called_mcc"`
	CalledESN       string     `gorm:"column:called_esn"`
	CalledDescr     string     `gorm:"column:called_descr"`
	SimplexDuplex   int        `gorm:"column:simplex_duplex"`
	CallEnd         *time.Time `gorm:"column:call_end"`
	SeqNoEnd        *uint16    `gorm:"column:seq_no_end"`
	DisconnectCause *uint8     `gorm:"column:disconnect_cause"`
}

func (IndiCall) TableName() string { return "d_callstream_indicall" }

// IndiCallStatusChange mirrors d_callstream_indicall_status_change:
// every non-setup call change of an individual call.
type IndiCallStatusChange struct {
	CallID       uint32    `gorm:"column:call_id"`
	SeqNo        uint16    `gorm:"column:seq_no"`
	ReceivedAt   time.Time `gorm:"column:received_at"`
	ActionID     uint8     `gorm:"column:action_id"`
	Timeout      uint8     `gorm:"column:timeout"`
	CallingSSI   uint32    `gorm:"column:calling_ssi"`
	CallingMNC   uint16    `gorm:"column:calling_mnc"`
	CallingMCC   uint16    `gorm:"column:calling_mcc"`
	CallingESN   string    `gorm:"column:calling_esn"`
	CallingDescr string    `gorm:"column:calling_descr"`
	CalledSSI    uint32    `gorm:"column:called_ssi"`
	CalledMNC    uint16    `gorm:"column:called_mnc"`
	CalledMCC    uint16    `gorm:"column:called_mcc"`
	CalledESN    string    `gorm:"column:called_esn"`
	CalledDescr  string    `gorm:"column:called_descr"`
}

func (IndiCallStatusChange) TableName() string { return "d_callstream_indicall_status_change" }

// IndiCallPtt mirrors d_callstream_indicall_ptt: talking-party changes
// of simplex calls.
type IndiCallPtt struct {
	CallID       uint32    `gorm:"column:call_id"`
	SeqNo        uint16    `gorm:"column:seq_no"`
	ReceivedAt   time.Time `gorm:"column:received_at"`
	TalkingParty uint8     `gorm:"column:talking_party"`
}

func (IndiCallPtt) TableName() string { return "d_callstream_indicall_ptt" }

// GroupCall mirrors d_callstream_groupcall.
type GroupCall struct {
	DBID            int64      `gorm:"column:db_id;primaryKey;autoIncrement"`
	CallID          uint32     `gorm:"column:call_id"`
	Timeout         uint8      `gorm:"column:timeout"`
	CallBegin       time.Time  `gorm:"column:call_begin"`
	SeqNoBegin      uint16     `gorm:"column:seq_no_begin"`
	GroupSSI        uint32     `gorm:"column:group_ssi"`
	GroupMNC        uint16     `gorm:"column:group_mnc"`
	GroupMCC        uint16     `gorm:"column:group_mcc"`
	GroupESN        string     `gorm:"column:group_esn"`
	GroupDescr      string     `gorm:"column:group_descr"`
	CallEnd         *time.Time `gorm:"column:call_end"`
	SeqNoEnd        *uint16    `gorm:"column:seq_no_end"`
	DisconnectCause *uint8     `gorm:"column:disconnect_cause"`
}

func (GroupCall) TableName() string { return "d_callstream_groupcall" }

// GroupCallStatusChange mirrors d_callstream_groupcall_status_change.
type GroupCallStatusChange struct {
	CallID     uint32    `gorm:"column:call_id"`
	Timeout    uint8     `gorm:"column:timeout"`
	SeqNo      uint16    `gorm:"column:seq_no"`
	ReceivedAt time.Time `gorm:"column:received_at"`
	MessageID  uint8     `gorm:"column:message_id"`
	ActionID   uint8     `gorm:"column:action_id"`
	GroupSSI   uint32    `gorm:"column:group_ssi"`
	GroupMNC   uint16    `gorm:"column:group_mnc"`
	GroupMCC   uint16    `gorm:"column:group_mcc"`
	GroupESN   string    `gorm:"column:group_esn"`
	GroupDescr string    `gorm:"column:group_descr"`
}

func (GroupCallStatusChange) TableName() string { return "d_callstream_groupcall_status_change" }

// GroupCallPtt mirrors d_callstream_groupcall_ptt. Talking-party fields
// are null on the idle record, which carries no party.
type GroupCallPtt struct {
	CallID     uint32    `gorm:"column:call_id"`
	SeqNo      uint16    `gorm:"column:seq_no"`
	ReceivedAt time.Time `gorm:"column:received_at"`
	MessageID  uint8     `gorm:"column:message_id"`
	TpSSI      *uint32   `gorm:"column:tp_ssi"`
	TpMNC      *uint16   `gorm:"column:tp_mnc"`
	TpMCC      *uint16   `gorm:"column:tp_mcc"`
	TpESN      *string   `gorm:"column:tp_esn"`
	TpDescr    *string   `gorm:"column:tp_descr"`
}

func (GroupCallPtt) TableName() string { return "d_callstream_groupcall_ptt" }

// SDSData mirrors d_callstream_sdsdata: text short-data messages.
type SDSData struct {
	ReceivedAt     time.Time `gorm:"column:received_at"`
	CallingSSI     uint32    `gorm:"column:calling_ssi"`
	CallingMNC     uint16    `gorm:"column:calling_mnc"`
	CallingMCC     uint16    `gorm:"column:calling_mcc"`
	CallingESN     string    `gorm:"column:calling_esn"`
	CallingDescr   string    `gorm:"column:calling_descr"`
	CalledSSI      uint32    `gorm:"column:called_ssi"`
	CalledMNC      uint16    `gorm:"column:called_mnc"`
	CalledMCC      uint16    `gorm:"column:called_mcc"`
	CalledESN      string    `gorm:"column:called_esn"`
	CalledDescr    string    `gorm:"column:called_descr"`
	UserDataLength int       `gorm:"column:user_data_length"`
	UserData       string    `gorm:"column:user_data"`
}

func (SDSData) TableName() string { return "d_callstream_sdsdata" }

// SDSStatus mirrors d_callstream_sdsstatus: precoded status messages.
type SDSStatus struct {
	ReceivedAt          time.Time `gorm:"column:received_at"`
	CallingSSI          uint32    `gorm:"column:calling_ssi"`
	CallingMNC          uint16    `gorm:"column:calling_mnc"`
	CallingMCC          uint16    `gorm:"column:calling_mcc"`
	CallingESN          string    `gorm:"column:calling_esn"`
	CallingDescr        string    `gorm:"column:calling_descr"`
	CalledSSI           uint32    `gorm:"column:called_ssi"`
	CalledMNC           uint16    `gorm:"column:called_mnc"`
	CalledMCC           uint16    `gorm:"column:called_mcc"`
	CalledESN           string    `gorm:"column:called_esn"`
	CalledDescr         string    `gorm:"column:called_descr"`
	PrecodedStatusValue uint16    `gorm:"column:precoded_status_value"`
}

func (SDSStatus) TableName() string { return "d_callstream_sdsstatus" }
