// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraops/callstream/config"
)

func TestFeederPoolMatching(t *testing.T) {
	pool, err := newFeederPool([]config.FeederConfig{
		{Stream: "stereo1", IP: "127.0.0.1", Port: 40001, Type: "S"},
		{Stream: "mono1", IP: "127.0.0.1", Port: 40002, Type: "M"},
	})
	require.NoError(t, err)
	t.Cleanup(pool.close)

	stereo := pool.acquire(kindDuplex)
	require.NotNil(t, stereo)
	assert.Equal(t, "stereo1", stereo.cfg.Stream)

	// The one stereo feeder is taken.
	assert.Nil(t, pool.acquire(kindDuplex))

	mono := pool.acquire(kindGroup)
	require.NotNil(t, mono)
	assert.Equal(t, "mono1", mono.cfg.Stream)
	assert.Nil(t, pool.acquire(kindSimplex))

	pool.release(stereo)
	assert.Same(t, stereo, pool.acquire(kindDuplex))
}

func TestFeederPoolRejectsBadAddress(t *testing.T) {
	_, err := newFeederPool([]config.FeederConfig{
		{Stream: "bad", IP: "not-an-address", Port: 40001, Type: "M"},
	})
	assert.Error(t, err)
}
