// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package persistence

import (
	"time"

	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/internal/wav"
)

// voiceCall accumulates the voice frames of one active call between
// setup and finalization. Duplex calls keep the two legs apart so they
// can be interleaved into a stereo recording at the end.
type voiceCall struct {
	kind         CallKind
	legA         [][]byte
	legB         [][]byte
	lastActivity time.Time
}

// callRegistry tracks every call currently accumulating voice. The
// persister's event loop is the only accessor, so no locking.
type callRegistry struct {
	calls map[uint32]*voiceCall
}

func newCallRegistry() *callRegistry {
	return &callRegistry{calls: make(map[uint32]*voiceCall)}
}

func (r *callRegistry) open(callID uint32, kind CallKind, now time.Time) {
	r.calls[callID] = &voiceCall{kind: kind, lastActivity: now}
}

func (r *callRegistry) lookup(callID uint32) *voiceCall {
	return r.calls[callID]
}

func (r *callRegistry) remove(callID uint32) {
	delete(r.calls, callID)
}

// inactiveSince lists calls with no voice activity at or before the
// deadline. The maintenance pass finalizes them.
func (r *callRegistry) inactiveSince(deadline time.Time) []uint32 {
	var ids []uint32
	for id, c := range r.calls {
		if c.lastActivity.Before(deadline) {
			ids = append(ids, id)
		}
	}
	return ids
}

// append stores one voice frame on the right leg and refreshes the
// call's activity clock. Only duplex calls route the B subscriber's
// frames to the second leg.
func (c *voiceCall) append(originator logapi.StreamOriginator, payload []byte, now time.Time) {
	frame := append([]byte(nil), payload...)
	if c.kind == KindDuplex && originator == logapi.OriginatorSubB {
		c.legB = append(c.legB, frame)
	} else {
		c.legA = append(c.legA, frame)
	}
	c.lastActivity = now
}

// assemble renders the accumulated frames as a complete WAVE file and
// its play time. Duplex legs are merged frame by frame in lockstep;
// trailing frames without a counterpart are dropped, and the count of
// dropped frames is returned so the caller can log it.
func (c *voiceCall) assemble() (blob []byte, duration time.Duration, dropped int) {
	var data []byte
	if c.kind == KindDuplex {
		pairs := len(c.legA)
		if len(c.legB) < pairs {
			pairs = len(c.legB)
		}
		dropped = len(c.legA) + len(c.legB) - 2*pairs
		for i := 0; i < pairs; i++ {
			merged, err := wav.Interleave(c.legA[i], c.legB[i])
			if err != nil {
				// Frames are fixed-size on the wire; a mismatch here
				// means a corrupt frame, skip the pair.
				dropped += 2
				continue
			}
			data = append(data, merged...)
		}
	} else {
		for _, frame := range c.legA {
			data = append(data, frame...)
		}
	}

	blob = wav.File(c.kind.Stereo(), data)
	duration = wav.Duration(c.kind.Stereo(), len(blob))
	return blob, duration, dropped
}
