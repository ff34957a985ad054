// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"sync/atomic"
	"time"

	"github.com/tetraops/callstream/internal/bus"
)

// callKind is the on-air flavor of a live call, as learned from its
// setup record.
type callKind byte

const (
	kindDuplex  callKind = 'D'
	kindSimplex callKind = 'S'
	kindGroup   callKind = 'G'
)

// liveCall is a call currently on the air. feeder, sub and done are set
// while the call is being intercepted; all three are mutated only by
// the manager loop. lastActivity is also refreshed by the forwarder, so
// it is atomic.
type liveCall struct {
	id   uint32
	kind callKind

	feeder *feeder
	sub    *bus.Subscription
	done   chan struct{}

	lastActivity atomic.Int64
}

func (c *liveCall) touch(t time.Time) { c.lastActivity.Store(t.UnixNano()) }

func (c *liveCall) intercepted() bool { return c.feeder != nil }

// liveRegistry tracks calls on the air in setup order. It is owned by
// the manager loop and needs no locking.
type liveRegistry struct {
	calls map[uint32]*liveCall
	order []uint32
}

func newLiveRegistry() *liveRegistry {
	return &liveRegistry{calls: make(map[uint32]*liveCall)}
}

func (r *liveRegistry) insert(id uint32, kind callKind, now time.Time) *liveCall {
	if c, ok := r.calls[id]; ok {
		c.touch(now)
		return c
	}
	c := &liveCall{id: id, kind: kind}
	c.touch(now)
	r.calls[id] = c
	r.order = append(r.order, id)
	return c
}

func (r *liveRegistry) lookup(id uint32) *liveCall { return r.calls[id] }

func (r *liveRegistry) remove(id uint32) *liveCall {
	c, ok := r.calls[id]
	if !ok {
		return nil
	}
	delete(r.calls, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return c
}

// ids lists the live calls in setup order.
func (r *liveRegistry) ids() []uint32 {
	return append([]uint32(nil), r.order...)
}

func (r *liveRegistry) inactiveSince(deadline time.Time) []uint32 {
	var stale []uint32
	for _, id := range r.order {
		if r.calls[id].lastActivity.Load() < deadline.UnixNano() {
			stale = append(stale, id)
		}
	}
	return stale
}
