// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package persistence is the recording worker: it follows the call
// signaling on the bus, accumulates voice frames per call, and writes
// calls, short-data messages and finished recordings to Postgres.
package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/alarm"
	"github.com/tetraops/callstream/internal/bus"
	"github.com/tetraops/callstream/internal/childproc"
	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/pkg/commons"
)

const (
	subscriberName   = "persistence"
	converterTimeout = 2 * time.Minute
)

// Persister is the recording worker.
type Persister interface {
	Run(ctx context.Context) error
}

type persister struct {
	cfg     config.PersistenceConfig
	mp3Mode bool

	store    Store
	notifier alarm.Notifier
	bus      bus.Bus
	logger   commons.Logger

	registry *callRegistry
	tempDir  string

	clock   func() time.Time
	convert func(ctx context.Context, command string) ([]byte, error)
}

// New builds the persister worker.
func New(cfg config.PersistenceConfig, mp3Mode bool, st Store, notifier alarm.Notifier,
	b bus.Bus, logger commons.Logger) Persister {
	return &persister{
		cfg:      cfg,
		mp3Mode:  mp3Mode,
		store:    st,
		notifier: notifier,
		bus:      b,
		logger:   logger,
		registry: newCallRegistry(),
		tempDir:  os.TempDir(),
		clock:    time.Now,
		convert:  childproc.Run,
	}
}

// Run consumes bus messages until the context is cancelled, finalizing
// stale calls on every maintenance tick.
func (p *persister) Run(ctx context.Context) error {
	if p.cfg.AutoMigrate {
		if err := p.store.Migrate(); err != nil {
			return err
		}
	}

	sub := p.bus.Subscribe(subscriberName, p.cfg.Subscriptions, 0)
	defer p.bus.Unsubscribe(sub)

	ticker := time.NewTicker(p.cfg.MaintenanceInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.maintenance(ctx)
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			p.handle(ctx, msg.Event)
		}
	}
}

func (p *persister) handle(ctx context.Context, ev logapi.Event) {
	if ev.Voice != nil {
		p.handleVoice(ev)
		return
	}

	var err error
	switch rec := ev.Record.(type) {
	case logapi.KeepAlive:
		err = p.store.UpsertKeepAlive(ctx, &LogServerStatus{
			LogServerNo:    rec.LogServerNo,
			LastHeartbeat:  ev.At,
			Timeout:        rec.Timeout,
			SwVer:          rec.Version(),
			SwVerString:    rec.VersionText(),
			LogServerDescr: rec.DescrString(),
		})

	case logapi.DuplexCallChange:
		if rec.Action == logapi.IndiNewCallSetup {
			p.logger.Debug("duplex call begins", "call_id", rec.CallID)
			err = p.store.CreateIndiCall(ctx, indiCallRow(ev.At, rec.CallID, rec.SequenceCounter,
				rec.Timeout, rec.A, rec.B, true))
			p.registry.open(rec.CallID, KindDuplex, p.clock())
		} else {
			err = p.store.CreateIndiStatusChange(ctx, indiStatusRow(ev.At, rec.CallID,
				rec.SequenceCounter, uint8(rec.Action), rec.Timeout, rec.A, rec.B))
		}

	case logapi.DuplexCallRelease:
		err = p.store.CloseIndiCall(ctx, rec.CallID, ev.At, rec.SequenceCounter, uint8(rec.Cause))
		p.finalize(ctx, rec.CallID)

	case logapi.SimplexCallStartChange:
		if rec.Action == logapi.IndiNewCallSetup {
			p.logger.Debug("simplex call begins", "call_id", rec.CallID)
			err = p.store.CreateIndiCall(ctx, indiCallRow(ev.At, rec.CallID, rec.SequenceCounter,
				rec.Timeout, rec.A, rec.B, false))
			p.registry.open(rec.CallID, KindSimplex, p.clock())
		} else {
			err = p.store.CreateIndiStatusChange(ctx, indiStatusRow(ev.At, rec.CallID,
				rec.SequenceCounter, uint8(rec.Action), rec.Timeout, rec.A, rec.B))
		}

	case logapi.SimplexCallPttChange:
		err = p.store.CreateIndiPtt(ctx, &IndiCallPtt{
			CallID:       rec.CallID,
			SeqNo:        rec.SequenceCounter,
			ReceivedAt:   ev.At,
			TalkingParty: uint8(rec.TalkingParty),
		})

	case logapi.SimplexCallRelease:
		err = p.store.CloseIndiCall(ctx, rec.CallID, ev.At, rec.SequenceCounter, uint8(rec.Cause))
		p.finalize(ctx, rec.CallID)

	case logapi.GroupCallStartChange:
		if rec.Action == logapi.GroupNewCallSetup {
			p.logger.Debug("group call begins", "call_id", rec.CallID)
			err = p.store.CreateGroupCall(ctx, &GroupCall{
				CallID:     rec.CallID,
				Timeout:    rec.Timeout,
				CallBegin:  ev.At,
				SeqNoBegin: rec.SequenceCounter,
				GroupSSI:   rec.Group.TSI.SSI,
				GroupMNC:   rec.Group.TSI.MNC,
				GroupMCC:   rec.Group.TSI.MCC,
				GroupESN:   rec.Group.Number.String(),
				GroupDescr: rec.Group.DescrString(),
			})
			p.registry.open(rec.CallID, KindGroup, p.clock())
		} else {
			err = p.store.CreateGroupStatusChange(ctx, &GroupCallStatusChange{
				CallID:     rec.CallID,
				Timeout:    rec.Timeout,
				SeqNo:      rec.SequenceCounter,
				ReceivedAt: ev.At,
				MessageID:  uint8(rec.MsgID),
				ActionID:   uint8(rec.Action),
				GroupSSI:   rec.Group.TSI.SSI,
				GroupMNC:   rec.Group.TSI.MNC,
				GroupMCC:   rec.Group.TSI.MCC,
				GroupESN:   rec.Group.Number.String(),
				GroupDescr: rec.Group.DescrString(),
			})
		}

	case logapi.GroupCallPttActive:
		tp := rec.TalkingParty
		esn, descr := tp.Number.String(), tp.DescrString()
		err = p.store.CreateGroupPtt(ctx, &GroupCallPtt{
			CallID:     rec.CallID,
			SeqNo:      rec.SequenceCounter,
			ReceivedAt: ev.At,
			MessageID:  uint8(rec.MsgID),
			TpSSI:      &tp.TSI.SSI,
			TpMNC:      &tp.TSI.MNC,
			TpMCC:      &tp.TSI.MCC,
			TpESN:      &esn,
			TpDescr:    &descr,
		})

	case logapi.GroupCallPttIdle:
		err = p.store.CreateGroupPtt(ctx, &GroupCallPtt{
			CallID:     rec.CallID,
			SeqNo:      rec.SequenceCounter,
			ReceivedAt: ev.At,
			MessageID:  uint8(rec.MsgID),
		})

	case logapi.GroupCallRelease:
		err = p.store.CloseGroupCall(ctx, rec.CallID, ev.At, rec.SequenceCounter, uint8(rec.Cause))
		p.finalize(ctx, rec.CallID)

	case logapi.TextSDS:
		text := rec.TextString()
		err = p.store.CreateTextSDS(ctx, &SDSData{
			ReceivedAt:     ev.At,
			CallingSSI:     rec.A.TSI.SSI,
			CallingMNC:     rec.A.TSI.MNC,
			CallingMCC:     rec.A.TSI.MCC,
			CallingESN:     rec.A.Number.String(),
			CallingDescr:   rec.A.DescrString(),
			CalledSSI:      rec.B.TSI.SSI,
			CalledMNC:      rec.B.TSI.MNC,
			CalledMCC:      rec.B.TSI.MCC,
			CalledESN:      rec.B.Number.String(),
			CalledDescr:    rec.B.DescrString(),
			UserDataLength: len(text),
			UserData:       text,
		})

	case logapi.StatusSDS:
		err = p.store.CreateStatusSDS(ctx, &SDSStatus{
			ReceivedAt:          ev.At,
			CallingSSI:          rec.A.TSI.SSI,
			CallingMNC:          rec.A.TSI.MNC,
			CallingMCC:          rec.A.TSI.MCC,
			CallingESN:          rec.A.Number.String(),
			CallingDescr:        rec.A.DescrString(),
			CalledSSI:           rec.B.TSI.SSI,
			CalledMNC:           rec.B.TSI.MNC,
			CalledMCC:           rec.B.TSI.MCC,
			CalledESN:           rec.B.Number.String(),
			CalledDescr:         rec.B.DescrString(),
			PrecodedStatusValue: rec.PrecodedStatus,
		})

	default:
		p.logger.Debug("unhandled record", "topic", ev.Topic())
	}

	if err != nil {
		p.logger.Error("database write failed", "topic", ev.Topic(), "error", err)
		p.notifier.Raise("Unable to record voice call")
	}
}

func (p *persister) handleVoice(ev logapi.Event) {
	vf := ev.Voice
	call := p.registry.lookup(vf.CallID)
	if call == nil {
		p.logger.Warn("voice frame without previous call setup", "call_id", vf.CallID)
		return
	}
	call.append(vf.StreamOriginator, vf.Payload, p.clock())
}

// finalize renders and stores the recording of a finished or stale
// call, then forgets the call.
func (p *persister) finalize(ctx context.Context, callID uint32) {
	call := p.registry.lookup(callID)
	if call == nil {
		p.logger.Debug("no voice data for call", "call_id", callID)
		return
	}
	defer p.registry.remove(callID)

	blob, duration, dropped := call.assemble()
	if dropped > 0 {
		p.logger.Warn("duplex frames without counterpart discarded",
			"call_id", callID, "frames", dropped)
	}

	if p.mp3Mode {
		var err error
		blob, err = p.convertToMP3(ctx, callID, blob)
		if err != nil {
			p.logger.Error("mp3 conversion failed", "call_id", callID, "error", err)
			p.notifier.Raise("Unable to record voice call")
			return
		}
	}

	if err := p.store.SaveVoiceRecording(ctx, call.kind, callID, blob, duration); err != nil {
		p.logger.Error("voice recording not stored", "call_id", callID, "error", err)
		p.notifier.Raise("Unable to record voice call")
		return
	}
	p.logger.Info("voice recording stored",
		"call_id", callID, "bytes", len(blob), "duration", duration.String())
}

// convertToMP3 round-trips the WAVE blob through the configured
// converter command. The template receives the wav path, the mp3 path
// and a log name, in that order.
func (p *persister) convertToMP3(ctx context.Context, callID uint32, wavBlob []byte) ([]byte, error) {
	wavFile := filepath.Join(p.tempDir, fmt.Sprintf("voice_%d.wav", callID))
	mp3File := filepath.Join(p.tempDir, fmt.Sprintf("voice_%d.mp3", callID))
	logName := fmt.Sprintf("voice_%d", callID)
	defer os.Remove(wavFile)
	defer os.Remove(mp3File)

	if err := os.WriteFile(wavFile, wavBlob, 0o644); err != nil {
		return nil, err
	}

	command := fmt.Sprintf(p.cfg.MP3ConverterCommandTemplate, wavFile, mp3File, logName)
	runCtx, cancel := context.WithTimeout(ctx, converterTimeout)
	defer cancel()
	if out, err := p.convert(runCtx, command); err != nil {
		return nil, fmt.Errorf("converter: %w (output: %s)", err, out)
	}

	return os.ReadFile(mp3File)
}

// maintenance finalizes calls whose voice stream has gone quiet for
// longer than the inactivity period. Their release was lost or never
// sent, and the recording must not be held forever.
func (p *persister) maintenance(ctx context.Context) {
	deadline := p.clock().Add(-p.cfg.InactivityPeriod())
	for _, callID := range p.registry.inactiveSince(deadline) {
		p.logger.Warn("finalizing inactive call", "call_id", callID)
		p.finalize(ctx, callID)
	}
}

func indiCallRow(at time.Time, callID uint32, seqNo uint16, timeout uint8,
	a, b logapi.Party, duplex bool) *IndiCall {
	simplexDuplex := 0
	if duplex {
		simplexDuplex = 1
	}
	return &IndiCall{
		CallID:        callID,
		Timeout:       timeout,
		CallBegin:     at,
		SeqNoBegin:    seqNo,
		CallingSSI:    a.TSI.SSI,
		CallingMNC:    a.TSI.MNC,
		CallingMCC:    a.TSI.MCC,
		CallingESN:    a.Number.String(),
		CallingDescr:  a.DescrString(),
		CalledSSI:     b.TSI.SSI,
		CalledMNC:     b.TSI.MNC,
		CalledMCC:     b.TSI.MCC,
		CalledESN:     b.Number.String(),
		CalledDescr:   b.DescrString(),
		SimplexDuplex: simplexDuplex,
	}
}

func indiStatusRow(at time.Time, callID uint32, seqNo uint16, action, timeout uint8,
	a, b logapi.Party) *IndiCallStatusChange {
	return &IndiCallStatusChange{
		CallID:       callID,
		SeqNo:        seqNo,
		ReceivedAt:   at,
		ActionID:     action,
		Timeout:      timeout,
		CallingSSI:   a.TSI.SSI,
		CallingMNC:   a.TSI.MNC,
		CallingMCC:   a.TSI.MCC,
		CallingESN:   a.Number.String(),
		CallingDescr: a.DescrString(),
		CalledSSI:    b.TSI.SSI,
		CalledMNC:    b.TSI.MNC,
		CalledMCC:    b.TSI.MCC,
		CalledESN:    b.Number.String(),
		CalledDescr:  b.DescrString(),
	}
}
