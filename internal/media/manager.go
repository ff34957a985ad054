// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package media is the interception and playback worker: it mirrors the
// live call state from the bus, forwards intercepted voice to media
// server feeders, and materializes stored recordings for playback. It
// is driven by commands arriving over the HTTP listener.
package media

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/bus"
	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/internal/wav"
	"github.com/tetraops/callstream/pkg/commons"
)

const subscriberName = "media"

// Commands understood by the worker.
const (
	CmdPing                  = "PING"
	CmdStartCallInterception = "START_CALL_INTERCEPTION"
	CmdStopCallInterception  = "STOP_CALL_INTERCEPTION"
	CmdGetActiveCalls        = "GET_ACTIVE_CALLS"
	CmdStartPlayCall         = "START_PLAY_CALL"
	CmdStopPlayCall          = "STOP_PLAY_CALL"
)

// Reply statuses.
const (
	StatusOK  = "OK"
	StatusNok = "NOK"
)

// Reply is the answer to one command: a status and the response parts
// of the legacy multi-frame protocol.
type Reply struct {
	Status string   `json:"status"`
	Parts  []string `json:"parts"`
}

func ok(parts ...string) Reply { return Reply{Status: StatusOK, Parts: parts} }

func nok(reason string) Reply { return Reply{Status: StatusNok, Parts: []string{reason}} }

type request struct {
	command string
	args    []string
	reply   chan Reply
}

// Manager is the media worker. Execute is safe for concurrent use; the
// command is handled by the worker loop.
type Manager interface {
	Run(ctx context.Context) error
	Execute(ctx context.Context, command string, args []string) Reply
}

type manager struct {
	cfg    config.MediaConfig
	bus    bus.Bus
	logger commons.Logger

	feeders  *feederPool
	calls    *liveRegistry
	player   player
	requests chan *request

	clock func() time.Time
}

// New builds the media worker, connecting one UDP socket per configured
// feeder.
func New(cfg config.MediaConfig, voice VoiceSource, b bus.Bus,
	logger commons.Logger) (Manager, error) {
	feeders, err := newFeederPool(cfg.Feeders)
	if err != nil {
		return nil, err
	}

	var pl player
	if cfg.Player.Mode == "child" {
		pl = newChildPlayer(cfg.Player, cfg.MediaServerEndpoint, voice, logger)
	} else {
		pl = newStaticPlayer(cfg.Player, voice, logger)
	}

	return &manager{
		cfg:      cfg,
		bus:      b,
		logger:   logger,
		feeders:  feeders,
		calls:    newLiveRegistry(),
		player:   pl,
		requests: make(chan *request),
		clock:    time.Now,
	}, nil
}

// Run consumes call signaling and commands until the context is
// cancelled, dropping inactive calls on every maintenance tick.
func (m *manager) Run(ctx context.Context) error {
	sub := m.bus.Subscribe(subscriberName, m.cfg.Subscriptions, 0)
	defer m.bus.Unsubscribe(sub)
	defer m.shutdown()

	ticker := time.NewTicker(m.cfg.MaintenanceInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.maintenance()
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			m.handleSignaling(msg.Event)
		case req := <-m.requests:
			req.reply <- m.dispatch(ctx, req)
		}
	}
}

// Execute forwards a command to the worker loop and waits for its reply.
func (m *manager) Execute(ctx context.Context, command string, args []string) Reply {
	req := &request{command: command, args: args, reply: make(chan Reply, 1)}
	select {
	case m.requests <- req:
	case <-ctx.Done():
		return nok("Worker not available")
	}
	select {
	case reply := <-req.reply:
		return reply
	case <-ctx.Done():
		return nok("Worker not available")
	}
}

func (m *manager) dispatch(ctx context.Context, req *request) Reply {
	m.logger.Debug("command received", "command", req.command, "args", req.args)

	switch req.command {
	case CmdPing:
		if len(req.args) > 0 {
			return ok(req.args[0])
		}
		return ok()

	case CmdStartCallInterception:
		if len(req.args) != 2 {
			return nok("Invalid arguments")
		}
		callID, err := parseCallID(req.args[0])
		if err != nil {
			return nok("Invalid arguments")
		}
		return m.startInterception(callID, req.args[1])

	case CmdStopCallInterception:
		if len(req.args) != 1 {
			return nok("Invalid arguments")
		}
		callID, err := parseCallID(req.args[0])
		if err != nil {
			return nok("Invalid arguments")
		}
		return m.stopInterception(callID)

	case CmdGetActiveCalls:
		return m.activeCalls()

	case CmdStartPlayCall:
		preq, err := parsePlayRequest(req.args)
		if err != nil {
			return nok("Invalid arguments")
		}
		return m.player.start(ctx, preq)

	case CmdStopPlayCall:
		preq, err := parsePlayRequest(req.args)
		if err != nil {
			return nok("Invalid arguments")
		}
		return m.player.stop(ctx, preq)

	default:
		m.logger.Error("invalid command", "command", req.command)
		return nok("Invalid command")
	}
}

// startInterception attaches a free feeder to a live call and begins
// forwarding its voice. Intercepting an already intercepted call just
// returns the stream URL again.
func (m *manager) startInterception(callID uint32, format string) Reply {
	call := m.calls.lookup(callID)
	if call == nil {
		return nok(fmt.Sprintf("Call <%d> not found", callID))
	}
	if call.intercepted() {
		return ok(m.streamURL(call.feeder, format))
	}

	f := m.feeders.acquire(call.kind)
	if f == nil {
		m.logger.Error("no available feeder for call", "call_id", callID)
		return nok("Feeder not available")
	}

	call.feeder = f
	call.sub = m.bus.Subscribe(fmt.Sprintf("media-call-%d", callID),
		[]string{fmt.Sprintf("V_%d", callID)}, 0)
	call.done = make(chan struct{})
	go m.forward(call, f, call.sub)

	m.logger.Info("call interception started", "call_id", callID, "stream", f.cfg.Stream)
	return ok(m.streamURL(f, format))
}

func (m *manager) stopInterception(callID uint32) Reply {
	call := m.calls.lookup(callID)
	if call == nil {
		return nok(fmt.Sprintf("Call <%d> not found", callID))
	}
	if !call.intercepted() {
		return nok(fmt.Sprintf("Call <%d> not intercepted", callID))
	}
	m.detach(call)
	m.logger.Info("call interception stopped", "call_id", callID)
	return ok(StatusOK)
}

func (m *manager) activeCalls() Reply {
	ids := m.calls.ids()
	if len(ids) == 0 {
		return ok("0")
	}
	parts := make([]string, 0, len(ids)+1)
	parts = append(parts, strconv.Itoa(len(ids)))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return Reply{Status: StatusOK, Parts: parts}
}

func (m *manager) streamURL(f *feeder, format string) string {
	return fmt.Sprintf("%s/%s.%s", m.cfg.MediaServerEndpoint, f.cfg.Stream, format)
}

// forward pushes the voice of one intercepted call to its feeder. For
// duplex calls the A frame is held until its B counterpart arrives and
// both are interleaved into one stereo frame; a B frame with no pending
// A is dropped. The loop ends when the subscription is closed.
func (m *manager) forward(call *liveCall, f *feeder, sub *bus.Subscription) {
	defer close(call.done)
	var pendingA []byte

	for msg := range sub.C {
		vf := msg.Event.Voice
		if vf == nil || vf.CallID != call.id {
			continue
		}
		call.touch(m.clock())

		if call.kind != kindDuplex {
			if _, err := f.conn.Write(vf.Payload); err != nil {
				m.logger.Warn("feeder write failed", "stream", f.cfg.Stream, "error", err)
			}
			continue
		}

		if vf.StreamOriginator == logapi.OriginatorSubA {
			pendingA = append(pendingA[:0], vf.Payload...)
			continue
		}
		// Only the two subscriber legs feed a stereo stream.
		if vf.StreamOriginator != logapi.OriginatorSubB || len(pendingA) == 0 {
			continue
		}
		frame, err := wav.Interleave(pendingA, vf.Payload)
		pendingA = pendingA[:0]
		if err != nil {
			m.logger.Warn("unpairable duplex frames", "call_id", call.id, "error", err)
			continue
		}
		if _, err := f.conn.Write(frame); err != nil {
			m.logger.Warn("feeder write failed", "stream", f.cfg.Stream, "error", err)
		}
	}
}

// detach ends the forwarding of an intercepted call and frees its
// feeder.
func (m *manager) detach(call *liveCall) {
	m.bus.Unsubscribe(call.sub)
	<-call.done
	m.feeders.release(call.feeder)
	call.feeder = nil
	call.sub = nil
	call.done = nil
}

func (m *manager) handleSignaling(ev logapi.Event) {
	now := m.clock()

	switch rec := ev.Record.(type) {
	case logapi.DuplexCallChange:
		if rec.Action == logapi.IndiNewCallSetup {
			m.calls.insert(rec.CallID, kindDuplex, now)
		} else {
			m.refresh(rec.CallID, now)
		}
	case logapi.DuplexCallRelease:
		m.removeLiveCall(rec.CallID)

	case logapi.SimplexCallStartChange:
		if rec.Action == logapi.IndiNewCallSetup {
			m.calls.insert(rec.CallID, kindSimplex, now)
		} else {
			m.refresh(rec.CallID, now)
		}
	case logapi.SimplexCallPttChange:
		m.refresh(rec.CallID, now)
	case logapi.SimplexCallRelease:
		m.removeLiveCall(rec.CallID)

	case logapi.GroupCallStartChange:
		if rec.Action == logapi.GroupNewCallSetup {
			m.calls.insert(rec.CallID, kindGroup, now)
		} else {
			m.refresh(rec.CallID, now)
		}
	case logapi.GroupCallPttActive:
		m.refresh(rec.CallID, now)
	case logapi.GroupCallPttIdle:
		m.refresh(rec.CallID, now)
	case logapi.GroupCallRelease:
		m.removeLiveCall(rec.CallID)
	}
}

func (m *manager) refresh(callID uint32, now time.Time) {
	if call := m.calls.lookup(callID); call != nil {
		call.touch(now)
	}
}

func (m *manager) removeLiveCall(callID uint32) {
	call := m.calls.remove(callID)
	if call == nil {
		return
	}
	if call.intercepted() {
		m.detach(call)
	}
	m.logger.Debug("live call removed", "call_id", callID)
}

// maintenance drops live calls whose signaling and voice have gone
// quiet for longer than the inactivity period. Their release was lost
// and the feeder must not be held forever.
func (m *manager) maintenance() {
	deadline := m.clock().Add(-m.cfg.InactivityPeriod())
	for _, callID := range m.calls.inactiveSince(deadline) {
		m.logger.Warn("removing inactive call", "call_id", callID)
		m.removeLiveCall(callID)
	}
}

func (m *manager) shutdown() {
	for _, id := range m.calls.ids() {
		m.removeLiveCall(id)
	}
	m.player.shutdown()
	m.feeders.close()
}

func parseCallID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	return uint32(id), err
}

func parsePlayRequest(args []string) (playRequest, error) {
	if len(args) != 5 {
		return playRequest{}, fmt.Errorf("media: want 5 arguments, got %d", len(args))
	}
	dbID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return playRequest{}, err
	}
	callID, err := parseCallID(args[1])
	if err != nil {
		return playRequest{}, err
	}
	return playRequest{
		DBID:     dbID,
		CallID:   callID,
		CallType: args[2],
		Format:   args[3],
		Session:  args[4],
	}, nil
}
