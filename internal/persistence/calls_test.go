// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/internal/wav"
)

func TestAssembleMono(t *testing.T) {
	now := time.Now()
	r := newCallRegistry()
	r.open(1, KindSimplex, now)
	c := r.lookup(1)
	require.NotNil(t, c)

	c.append(logapi.OriginatorSubA, []byte{1, 1}, now)
	c.append(logapi.OriginatorSubB, []byte{2, 2}, now) // simplex: same leg
	blob, duration, dropped := c.assemble()

	assert.Zero(t, dropped)
	require.Len(t, blob, wav.HeaderLen+4)
	assert.Equal(t, []byte{1, 1, 2, 2}, blob[wav.HeaderLen:])
	assert.Greater(t, duration, time.Duration(0))
}

func TestAssembleDuplexInterleaves(t *testing.T) {
	now := time.Now()
	r := newCallRegistry()
	r.open(2, KindDuplex, now)
	c := r.lookup(2)

	c.append(logapi.OriginatorSubA, []byte{1, 3}, now)
	c.append(logapi.OriginatorSubB, []byte{2, 4}, now)
	blob, _, dropped := c.assemble()

	assert.Zero(t, dropped)
	require.Len(t, blob, wav.HeaderLen+4)
	assert.Equal(t, []byte{1, 2, 3, 4}, blob[wav.HeaderLen:])
}

func TestAssembleDuplexDropsUnpairedTail(t *testing.T) {
	now := time.Now()
	r := newCallRegistry()
	r.open(3, KindDuplex, now)
	c := r.lookup(3)

	c.append(logapi.OriginatorSubA, []byte{1}, now)
	c.append(logapi.OriginatorSubB, []byte{2}, now)
	c.append(logapi.OriginatorSubA, []byte{9}, now)
	c.append(logapi.OriginatorSubA, []byte{9}, now)
	blob, _, dropped := c.assemble()

	assert.Equal(t, 2, dropped)
	assert.Equal(t, []byte{1, 2}, blob[wav.HeaderLen:])
}

func TestAssembleEmptyCall(t *testing.T) {
	r := newCallRegistry()
	r.open(4, KindGroup, time.Now())
	blob, _, dropped := r.lookup(4).assemble()

	assert.Zero(t, dropped)
	assert.Len(t, blob, wav.HeaderLen)
}

func TestInactiveSince(t *testing.T) {
	base := time.Now()
	r := newCallRegistry()
	r.open(1, KindGroup, base.Add(-10*time.Minute))
	r.open(2, KindGroup, base)
	r.lookup(2).append(logapi.OriginatorGroup, []byte{0}, base)

	stale := r.inactiveSince(base.Add(-5 * time.Minute))
	require.Len(t, stale, 1)
	assert.Equal(t, uint32(1), stale[0])

	r.remove(1)
	assert.Nil(t, r.lookup(1))
	assert.Empty(t, r.inactiveSince(base.Add(-5*time.Minute)))
}
