// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package collector ingests the log server's UDP stream, runs it
// through the frame parser and publishes every extracted record on the
// bus. It is the only component that touches the ingest socket.
package collector

import (
	"context"
	"fmt"
	"net"
	"path/filepath"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/bus"
	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/internal/wav"
	"github.com/tetraops/callstream/pkg/commons"
)

// readBufferSize bounds one UDP read. Larger than any datagram the log
// server emits.
const readBufferSize = 2048

// Collector is the ingest worker.
type Collector interface {
	// Run reads datagrams until the context is cancelled. A parser
	// overflow is fatal: it means a record larger than the rolling
	// buffer, which no amount of retrying fixes.
	Run(ctx context.Context) error
	// Addr is the bound ingest address, resolved after New.
	Addr() net.Addr
	Close() error
}

type collector struct {
	cfg      config.CollectorConfig
	workPath string
	logger   commons.Logger
	bus      bus.Bus

	conn   *net.UDPConn
	parser *logapi.Parser
}

// New binds the ingest socket. The returned collector owns the socket
// until Close.
func New(cfg config.CollectorConfig, workPath string, b bus.Bus, logger commons.Logger) (Collector, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.LogServerEndpoint.Addr())
	if err != nil {
		return nil, fmt.Errorf("collector: resolve %s: %w", cfg.LogServerEndpoint.Addr(), err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("collector: bind %s: %w", addr, err)
	}
	logger.Info("collector listening", "addr", conn.LocalAddr().String())

	return &collector{
		cfg:      cfg,
		workPath: workPath,
		logger:   logger,
		bus:      b,
		conn:     conn,
		parser:   logapi.NewParser(logapi.DefaultBufferSize),
	}, nil
}

func (c *collector) Addr() net.Addr { return c.conn.LocalAddr() }

func (c *collector) Close() error { return c.conn.Close() }

func (c *collector) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("collector: read: %w", err)
		}

		events, err := c.parser.Feed(buf[:n])
		if err != nil {
			return fmt.Errorf("collector: %w", err)
		}

		for _, ev := range events {
			if ev.Voice != nil && c.cfg.GenerateWavFiles {
				c.writeDebugWav(ev.Voice)
			}
			c.bus.Publish(ev)
		}
	}
}

// writeDebugWav appends the frame to a per-call WAV under the work
// path. Failures are logged and skipped; the debug output never stalls
// ingest.
func (c *collector) writeDebugWav(vf *logapi.VoiceFrame) {
	path := filepath.Join(c.workPath, fmt.Sprintf("voice_%d.wav", vf.CallID))
	if err := wav.AppendFrame(path, vf.Payload); err != nil {
		c.logger.Warn("debug wav write failed", "path", path, "error", err)
	}
}
