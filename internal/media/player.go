// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/childproc"
	"github.com/tetraops/callstream/pkg/commons"
)

const playerStopGrace = 5 * time.Second

// playRequest carries the arguments of the playback commands.
type playRequest struct {
	DBID     int64
	CallID   uint32
	CallType string
	Format   string
	Session  string
}

// player turns a stored recording into something the media server can
// stream.
type player interface {
	start(ctx context.Context, req playRequest) Reply
	stop(ctx context.Context, req playRequest) Reply
	shutdown()
}

// playbackFileName is the session-scoped name a materialized recording
// is published under. Hashing keeps database ids and sessions out of
// the public URL.
func playbackFileName(dbID int64, callID uint32, session, format string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("voice_%d_%d_%s", dbID, callID, session)))
	return fmt.Sprintf("%x.%s", sum, format)
}

// staticPlayer writes the recording into the web-served repository and
// answers with its URL. Stopping just removes the file.
type staticPlayer struct {
	cfg    config.PlayerConfig
	voice  VoiceSource
	logger commons.Logger
}

func newStaticPlayer(cfg config.PlayerConfig, voice VoiceSource, logger commons.Logger) player {
	return &staticPlayer{cfg: cfg, voice: voice, logger: logger}
}

func (p *staticPlayer) start(ctx context.Context, req playRequest) Reply {
	blob, err := p.voice.VoiceData(ctx, req.CallType, req.DBID)
	if err != nil {
		if !errors.Is(err, ErrRecordingNotFound) {
			p.logger.Error("recording lookup failed", "db_id", req.DBID, "error", err)
		}
		return nok(fmt.Sprintf("Call <%d> not found", req.CallID))
	}

	name := playbackFileName(req.DBID, req.CallID, req.Session, req.Format)
	path := filepath.Join(p.cfg.VoicerecRepo, name)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		p.logger.Error("recording not materialized", "path", path, "error", err)
		return nok(fmt.Sprintf("Call <%d> not found", req.CallID))
	}
	p.logger.Debug("recording materialized", "db_id", req.DBID, "path", path)

	return ok(fmt.Sprintf("/%s/%s", p.cfg.VoicerecURL, name))
}

func (p *staticPlayer) stop(_ context.Context, req playRequest) Reply {
	path := filepath.Join(p.cfg.VoicerecRepo,
		playbackFileName(req.DBID, req.CallID, req.Session, req.Format))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("recording not removed", "path", path, "error", err)
	}
	return ok(StatusOK)
}

func (p *staticPlayer) shutdown() {}

// playerSlot is one child-player instance of the legacy mode, bound to
// a fixed feeder of the media server.
type playerSlot struct {
	cfg    config.PlayerInstanceConfig
	busy   bool
	proc   *childproc.Process
	file   string
	dbID   int64
	callID uint32
}

// childPlayer streams recordings through external player processes, one
// per configured instance. A slot frees itself when its child exits.
type childPlayer struct {
	cfg      config.PlayerConfig
	endpoint string
	voice    VoiceSource
	logger   commons.Logger

	mu    sync.Mutex
	slots []*playerSlot
}

func newChildPlayer(cfg config.PlayerConfig, endpoint string, voice VoiceSource,
	logger commons.Logger) player {
	p := &childPlayer{cfg: cfg, endpoint: endpoint, voice: voice, logger: logger}
	for _, inst := range cfg.Instances {
		p.slots = append(p.slots, &playerSlot{cfg: inst})
	}
	return p
}

func (p *childPlayer) start(ctx context.Context, req playRequest) Reply {
	p.mu.Lock()
	defer p.mu.Unlock()

	var slot *playerSlot
	for _, s := range p.slots {
		if !s.busy {
			slot = s
			break
		}
	}
	if slot == nil {
		return nok("Player unavailable")
	}

	blob, err := p.voice.VoiceData(ctx, req.CallType, req.DBID)
	if err != nil {
		if !errors.Is(err, ErrRecordingNotFound) {
			p.logger.Error("recording lookup failed", "db_id", req.DBID, "error", err)
		}
		return nok(fmt.Sprintf("Call <%d> not found", req.CallID))
	}

	file := fmt.Sprintf(p.cfg.FilenameTemplate, req.DBID, req.CallID, slot.cfg.Feeder, req.Format)
	if err := os.WriteFile(file, blob, 0o644); err != nil {
		p.logger.Error("recording not materialized", "path", file, "error", err)
		return nok(fmt.Sprintf("Call <%d> not found", req.CallID))
	}

	// The command template embeds the filename template, so expansion
	// happens in two passes.
	aux := fmt.Sprintf(p.cfg.CommandTemplate, p.cfg.FilenameTemplate,
		slot.cfg.Feeder, slot.cfg.Feeder)
	command := fmt.Sprintf(aux, req.DBID, req.CallID, slot.cfg.Feeder, req.Format)

	proc, err := childproc.Start(command, p.logger)
	if err != nil {
		os.Remove(file)
		p.logger.Error("player not started", "command", command, "error", err)
		return nok("Player unavailable")
	}

	slot.busy = true
	slot.proc = proc
	slot.file = file
	slot.dbID = req.DBID
	slot.callID = req.CallID

	go func() {
		<-proc.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if slot.proc == proc {
			p.logger.Debug("player finished", "stream", slot.cfg.Stream)
			p.free(slot)
		}
	}()

	return ok(fmt.Sprintf("%s/%s.%s", p.endpoint, slot.cfg.Stream, req.Format))
}

func (p *childPlayer) stop(_ context.Context, req playRequest) Reply {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, slot := range p.slots {
		if slot.busy && slot.dbID == req.DBID && slot.callID == req.CallID {
			if err := slot.proc.Stop(); err != nil {
				p.logger.Warn("player not stopped", "stream", slot.cfg.Stream, "error", err)
			}
			os.Remove(slot.file)
			return ok(StatusOK)
		}
	}
	return nok("Call player not found")
}

// free releases a slot and its playback file. Callers hold the mutex.
func (p *childPlayer) free(slot *playerSlot) {
	slot.busy = false
	slot.proc = nil
	if slot.file != "" {
		os.Remove(slot.file)
		slot.file = ""
	}
}

func (p *childPlayer) shutdown() {
	p.mu.Lock()
	procs := make([]*childproc.Process, 0, len(p.slots))
	for _, slot := range p.slots {
		if slot.busy {
			procs = append(procs, slot.proc)
			p.free(slot)
		}
	}
	p.mu.Unlock()

	for _, proc := range procs {
		proc.StopWait(playerStopGrace)
	}
}
