// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"fmt"
	"net"

	"github.com/tetraops/callstream/config"
)

// feeder is one media-server input channel. The UDP socket is connected
// at pool construction and reused for the lifetime of the worker.
type feeder struct {
	cfg  config.FeederConfig
	conn *net.UDPConn
	busy bool
}

func (f *feeder) stereo() bool { return f.cfg.Type == "S" }

// feederPool hands out feeders to intercepted calls. It is owned by the
// manager loop; only the connected sockets are shared with forwarders.
type feederPool struct {
	feeders []*feeder
}

func newFeederPool(cfgs []config.FeederConfig) (*feederPool, error) {
	pool := &feederPool{}
	for _, fc := range cfgs {
		addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", fc.IP, fc.Port))
		if err != nil {
			pool.close()
			return nil, fmt.Errorf("media: feeder %s: %w", fc.Stream, err)
		}
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			pool.close()
			return nil, fmt.Errorf("media: feeder %s: %w", fc.Stream, err)
		}
		pool.feeders = append(pool.feeders, &feeder{cfg: fc, conn: conn})
	}
	return pool, nil
}

// acquire hands out the first free feeder able to carry the call:
// stereo for duplex calls, mono for simplex and group calls.
func (p *feederPool) acquire(kind callKind) *feeder {
	for _, f := range p.feeders {
		if f.busy {
			continue
		}
		if (kind == kindDuplex) == f.stereo() {
			f.busy = true
			return f
		}
	}
	return nil
}

func (p *feederPool) release(f *feeder) {
	if f != nil {
		f.busy = false
	}
}

func (p *feederPool) close() {
	for _, f := range p.feeders {
		f.conn.Close()
	}
}
