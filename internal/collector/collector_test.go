// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package collector

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/bus"
	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/internal/logapi/logapitest"
	"github.com/tetraops/callstream/internal/wav"
	"github.com/tetraops/callstream/pkg/commons"
)

func startCollector(t *testing.T, genWav bool, workPath string) (bus.Bus, *net.UDPConn, context.CancelFunc) {
	t.Helper()

	b := bus.New(commons.NewNopLogger())
	cfg := config.CollectorConfig{
		LogServerEndpoint: config.EndpointConfig{IP: "127.0.0.1", Port: 0},
		GenerateWavFiles:  genWav,
	}
	col, err := New(cfg, workPath, b, commons.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = col.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		b.Close()
	})

	client, err := net.DialUDP("udp", nil, col.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return b, client, cancel
}

func recvMessage(t *testing.T, sub *bus.Subscription) bus.Message {
	t.Helper()
	select {
	case msg := <-sub.C:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message from collector")
		return bus.Message{}
	}
}

func TestCollectorPublishesSignaling(t *testing.T) {
	b, client, _ := startCollector(t, false, t.TempDir())
	sub := b.Subscribe("test", []string{"S_"}, 8)

	wire := logapitest.Encode(logapi.GroupCallStartChange{
		CallID: 12,
		Action: logapi.GroupNewCallSetup,
		Group:  logapitest.Party(9000, 17, 214, "9000", "Dispatch"),
	})
	_, err := client.Write(wire)
	require.NoError(t, err)

	msg := recvMessage(t, sub)
	assert.Equal(t, "S_30", msg.Topic)
	gc, ok := msg.Event.Record.(logapi.GroupCallStartChange)
	require.True(t, ok)
	assert.Equal(t, uint32(12), gc.CallID)
}

func TestCollectorReassemblesAcrossDatagrams(t *testing.T) {
	b, client, _ := startCollector(t, false, t.TempDir())
	sub := b.Subscribe("test", []string{"S_"}, 8)

	wire := logapitest.Encode(logapi.SimplexCallStartChange{
		CallID: 5,
		Action: logapi.IndiNewCallSetup,
		A:      logapitest.Party(1, 17, 214, "1", "a"),
		B:      logapitest.Party(2, 17, 214, "2", "b"),
	})
	for _, frag := range [][]byte{wire[:60], wire[60:120], wire[120:]} {
		_, err := client.Write(frag)
		require.NoError(t, err)
		// Ordered arrival matters here; loopback UDP preserves it but
		// give the reader a moment between fragments.
		time.Sleep(10 * time.Millisecond)
	}

	msg := recvMessage(t, sub)
	assert.Equal(t, "S_20", msg.Topic)
}

func TestCollectorDebugWav(t *testing.T) {
	dir := t.TempDir()
	b, client, _ := startCollector(t, true, dir)
	sub := b.Subscribe("test", []string{"V_"}, 8)

	payload := make([]byte, logapi.G711FrameLen)
	for i := range payload {
		payload[i] = 0x55
	}
	wire := logapitest.EncodeVoice(&logapi.VoiceFrame{
		CallID:       33,
		Payload1Kind: logapi.PayloadG711Alaw,
	}, payload)
	_, err := client.Write(wire)
	require.NoError(t, err)

	msg := recvMessage(t, sub)
	assert.Equal(t, "V_33", msg.Topic)

	path := filepath.Join(dir, "voice_33.wav")
	require.Eventually(t, func() bool {
		fi, err := os.Stat(path)
		return err == nil && fi.Size() == int64(wav.HeaderLen+logapi.G711FrameLen)
	}, 2*time.Second, 20*time.Millisecond)
}
