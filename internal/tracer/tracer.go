// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package tracer is the diagnostic worker: it renders every bus event as
// a pipe-delimited trace line and publishes a JSON document per event on
// a Redis channel. Voice traces can be decimated to keep the channel
// usable under full load.
package tracer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/bus"
	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/pkg/commons"
	"github.com/tetraops/callstream/pkg/connectors"
)

const subscriberName = "tracer"

// Tracer is the tracing worker.
type Tracer interface {
	Run(ctx context.Context) error
}

type tracer struct {
	cfg    config.TracerConfig
	redis  connectors.RedisConnector
	bus    bus.Bus
	logger commons.Logger

	// Consecutive voice frames seen since the last published voice
	// trace. Only the worker loop touches it.
	voiceCounter int
}

// New builds the tracer worker.
func New(cfg config.TracerConfig, redis connectors.RedisConnector, b bus.Bus,
	logger commons.Logger) Tracer {
	return &tracer{cfg: cfg, redis: redis, bus: b, logger: logger}
}

// Run consumes bus messages until the context is cancelled.
func (t *tracer) Run(ctx context.Context) error {
	sub := t.bus.Subscribe(subscriberName, t.cfg.Subscriptions, 0)
	defer t.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			t.handle(ctx, msg.Event)
		}
	}
}

func (t *tracer) handle(ctx context.Context, ev logapi.Event) {
	if ev.Voice != nil {
		t.handleVoice(ctx, ev)
		return
	}

	line, doc := buildSignalingTrace(ev)
	if doc == nil {
		return
	}
	t.logger.Debug(line)
	t.publish(ctx, doc)
}

// handleVoice always emits the trace line but publishes only every
// publish_one_json_voice_msg_every-th JSON document.
func (t *tracer) handleVoice(ctx context.Context, ev logapi.Event) {
	vf := ev.Voice
	line := fmt.Sprintf("|V|%d|%x|%d|%d|%d|%d|%d|%d|%d|%d|",
		ev.At.Unix(), vf.Signature, vf.APIVersion, vf.StreamOriginator,
		vf.OriginatingNode, vf.CallID, vf.SourceAndIndex, vf.StreamRandomID,
		vf.PacketSeq, vf.Payload1Kind)
	t.logger.Debug(line)

	t.voiceCounter++
	if t.voiceCounter <= t.cfg.PublishOneJSONVoiceMsgEvery {
		return
	}
	t.voiceCounter = 0

	t.publish(ctx, voiceTrace{
		Type:              "V",
		Timestamp:         fmt.Sprintf("%d", ev.At.Unix()),
		MessageType:       typeVoice,
		ProtocolSignature: fmt.Sprintf("%x", vf.Signature),
		APIVersion:        fmt.Sprintf("%d", vf.APIVersion),
		StreamOriginator:  fmt.Sprintf("%d", vf.StreamOriginator),
		OriginatingNode:   fmt.Sprintf("%d", vf.OriginatingNode),
		CallID:            fmt.Sprintf("%d", vf.CallID),
		SourceAndIndex:    fmt.Sprintf("%d", vf.SourceAndIndex),
		StreamRandomID:    fmt.Sprintf("%d", vf.StreamRandomID),
		PacketSeq:         fmt.Sprintf("%d", vf.PacketSeq),
		Payload1Info:      fmt.Sprintf("%d", vf.Payload1Kind),
	})
}

func (t *tracer) publish(ctx context.Context, doc any) {
	payload, err := json.Marshal(doc)
	if err != nil {
		t.logger.Error("trace not encodable", "error", err)
		return
	}
	if err := t.redis.Client().Publish(ctx, t.cfg.JSONChannel, payload).Err(); err != nil {
		t.logger.Warn("trace not published", "channel", t.cfg.JSONChannel, "error", err)
	}
}

// buildSignalingTrace renders one signaling record into its trace line
// and JSON document. Unknown records yield a nil document.
func buildSignalingTrace(ev logapi.Event) (string, any) {
	at := ev.At
	header := ev.Record.RecordHeader()
	ph := pipeHeader(at, header)

	switch rec := ev.Record.(type) {
	case logapi.KeepAlive:
		fields := []string{typeKeepAlive,
			fmt.Sprintf("%d", rec.LogServerNo),
			fmt.Sprintf("%d", rec.Timeout),
			rec.Version(), rec.VersionText(), rec.DescrString()}
		return pipeLine(ph, fields...), keepAliveTrace{
			traceHeader:    newTraceHeader(at, header, typeKeepAlive),
			LogServerNo:    fmt.Sprintf("%d", rec.LogServerNo),
			Timeout:        fmt.Sprintf("%d", rec.Timeout),
			SwVer:          rec.Version(),
			SwVerString:    rec.VersionText(),
			LogServerDescr: rec.DescrString(),
		}

	case logapi.DuplexCallChange:
		return indiChangeTrace(at, header, typeDuplexCallChange,
			rec.CallID, rec.Action, rec.Timeout, rec.A, rec.B)

	case logapi.DuplexCallRelease:
		return indiReleaseTrace(at, header, typeDuplexCallRelease, rec.CallID, rec.Cause)

	case logapi.SimplexCallStartChange:
		return indiChangeTrace(at, header, typeSimplexCallStartChange,
			rec.CallID, rec.Action, rec.Timeout, rec.A, rec.B)

	case logapi.SimplexCallPttChange:
		fields := []string{typeSimplexCallPttChange,
			fmt.Sprintf("%d", rec.CallID),
			fmt.Sprintf("%d", rec.TalkingParty),
			rec.TalkingParty.String()}
		return pipeLine(ph, fields...), simplexPttTrace{
			traceHeader:   newTraceHeader(at, header, typeSimplexCallPttChange),
			CallID:        fmt.Sprintf("%d", rec.CallID),
			TalkingParty:  fmt.Sprintf("%d", rec.TalkingParty),
			TalkingPartyS: rec.TalkingParty.String(),
		}

	case logapi.SimplexCallRelease:
		return indiReleaseTrace(at, header, typeSimplexCallRelease, rec.CallID, rec.Cause)

	case logapi.GroupCallStartChange:
		group := partyFields(rec.Group)
		fields := append([]string{typeGroupCallStartChange,
			fmt.Sprintf("%d", rec.CallID),
			fmt.Sprintf("%d", rec.Action),
			rec.Action.String(),
			fmt.Sprintf("%d", rec.Timeout)},
			group...)
		return pipeLine(ph, fields...), groupCallChangeTrace{
			traceHeader: newTraceHeader(at, header, typeGroupCallStartChange),
			CallID:      fmt.Sprintf("%d", rec.CallID),
			Action:      fmt.Sprintf("%d", rec.Action),
			ActionS:     rec.Action.String(),
			Timeout:     fmt.Sprintf("%d", rec.Timeout),
			GroupMNC:    group[0],
			GroupMCC:    group[1],
			GroupSSI:    group[2],
			DigitsA:     group[3],
			GroupDescr:  group[4],
		}

	case logapi.GroupCallPttActive:
		tp := partyFields(rec.TalkingParty)
		fields := append([]string{typeGroupCallPttActive,
			fmt.Sprintf("%d", rec.CallID)}, tp...)
		return pipeLine(ph, fields...), groupPttActiveTrace{
			traceHeader: newTraceHeader(at, header, typeGroupCallPttActive),
			CallID:      fmt.Sprintf("%d", rec.CallID),
			TPMNC:       tp[0],
			TPMCC:       tp[1],
			TPSSI:       tp[2],
			DigitsA:     tp[3],
			TPDescr:     tp[4],
		}

	case logapi.GroupCallPttIdle:
		fields := []string{typeGroupCallPttIdle, fmt.Sprintf("%d", rec.CallID)}
		return pipeLine(ph, fields...), groupPttIdleTrace{
			traceHeader: newTraceHeader(at, header, typeGroupCallPttIdle),
			CallID:      fmt.Sprintf("%d", rec.CallID),
		}

	case logapi.GroupCallRelease:
		fields := []string{typeGroupCallRelease,
			fmt.Sprintf("%d", rec.CallID),
			fmt.Sprintf("%d", rec.Cause),
			rec.Cause.String()}
		return pipeLine(ph, fields...), groupCallReleaseTrace{
			traceHeader:   newTraceHeader(at, header, typeGroupCallRelease),
			CallID:        fmt.Sprintf("%d", rec.CallID),
			ReleaseCause:  fmt.Sprintf("%d", rec.Cause),
			ReleaseCauseS: rec.Cause.String(),
		}

	case logapi.StatusSDS:
		a, b := partyFields(rec.A), partyFields(rec.B)
		fields := append([]string{typeStatusSDS}, a...)
		fields = append(fields, b...)
		fields = append(fields, fmt.Sprintf("%d", rec.PrecodedStatus))
		return pipeLine(ph, fields...), statusSDSTrace{
			traceHeader:    newTraceHeader(at, header, typeStatusSDS),
			AMNC:           a[0],
			AMCC:           a[1],
			ASSI:           a[2],
			DigitsA:        a[3],
			ADescr:         a[4],
			BMNC:           b[0],
			BMCC:           b[1],
			BSSI:           b[2],
			DigitsB:        b[3],
			BDescr:         b[4],
			PrecodedStatus: fmt.Sprintf("%d", rec.PrecodedStatus),
		}

	case logapi.TextSDS:
		a, b := partyFields(rec.A), partyFields(rec.B)
		fields := append([]string{typeTextSDS}, a...)
		fields = append(fields, b...)
		fields = append(fields, rec.TextString())
		return pipeLine(ph, fields...), textSDSTrace{
			traceHeader: newTraceHeader(at, header, typeTextSDS),
			AMNC:        a[0],
			AMCC:        a[1],
			ASSI:        a[2],
			DigitsA:     a[3],
			ADescr:      a[4],
			BMNC:        b[0],
			BMCC:        b[1],
			BSSI:        b[2],
			DigitsB:     b[3],
			BDescr:      b[4],
			TextData:    rec.TextString(),
		}
	}
	return "", nil
}

func indiChangeTrace(at time.Time, header logapi.Header, messageType string,
	callID uint32, action logapi.IndividualCallAction, timeout uint8,
	a, b logapi.Party) (string, any) {
	pa, pb := partyFields(a), partyFields(b)
	fields := append([]string{messageType,
		fmt.Sprintf("%d", callID),
		fmt.Sprintf("%d", action),
		action.String(),
		fmt.Sprintf("%d", timeout)},
		pa...)
	fields = append(fields, pb...)
	return pipeLine(pipeHeader(at, header), fields...), indiCallChangeTrace{
		traceHeader: newTraceHeader(at, header, messageType),
		CallID:      fmt.Sprintf("%d", callID),
		Action:      fmt.Sprintf("%d", action),
		ActionS:     action.String(),
		Timeout:     fmt.Sprintf("%d", timeout),
		AMNC:        pa[0],
		AMCC:        pa[1],
		ASSI:        pa[2],
		DigitsA:     pa[3],
		ADescr:      pa[4],
		BMNC:        pb[0],
		BMCC:        pb[1],
		BSSI:        pb[2],
		DigitsB:     pb[3],
		BDescr:      pb[4],
	}
}

func indiReleaseTrace(at time.Time, header logapi.Header, messageType string,
	callID uint32, cause logapi.IndiReleaseCause) (string, any) {
	fields := []string{messageType,
		fmt.Sprintf("%d", callID),
		fmt.Sprintf("%d", cause),
		cause.String()}
	return pipeLine(pipeHeader(at, header), fields...), indiCallReleaseTrace{
		traceHeader:   newTraceHeader(at, header, messageType),
		CallID:        fmt.Sprintf("%d", callID),
		ReleaseCause:  fmt.Sprintf("%d", cause),
		ReleaseCauseS: cause.String(),
	}
}
