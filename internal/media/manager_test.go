// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zaf/g711"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/bus"
	"github.com/tetraops/callstream/internal/logapi"
	"github.com/tetraops/callstream/pkg/commons"
)

type fakeVoice struct {
	recordings map[int64][]byte
	callTypes  []string
}

func (f *fakeVoice) VoiceData(_ context.Context, callType string, dbID int64) ([]byte, error) {
	f.callTypes = append(f.callTypes, callType)
	blob, ok := f.recordings[dbID]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	return blob, nil
}

func newUDPListener(t *testing.T, stream, feederType string) (*net.UDPConn, config.FeederConfig) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, config.FeederConfig{
		Stream: stream,
		IP:     "127.0.0.1",
		Port:   conn.LocalAddr().(*net.UDPAddr).Port,
		Type:   feederType,
	}
}

func readFrame(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n]
}

func newTestManager(t *testing.T, feeders ...config.FeederConfig) (*manager, bus.Bus) {
	t.Helper()
	b := bus.New(commons.NewNopLogger())
	t.Cleanup(b.Close)

	cfg := config.MediaConfig{
		MediaServerEndpoint:     "http://media.local:8000",
		CommandListenerEndpoint: "127.0.0.1:0",
		CallInactivityPeriod:    300,
		MaintenanceFrequency:    60,
		Feeders:                 feeders,
		Subscriptions:           []string{"S_"},
	}
	mgr, err := New(cfg, &fakeVoice{}, b, commons.NewNopLogger())
	require.NoError(t, err)
	m := mgr.(*manager)
	t.Cleanup(m.shutdown)
	return m, b
}

func sigEvent(rec logapi.Record) logapi.Event {
	return logapi.Event{At: time.Now(), Record: rec}
}

func voiceEvent(callID uint32, origin logapi.StreamOriginator, payload []byte) logapi.Event {
	return logapi.Event{At: time.Now(), Voice: &logapi.VoiceFrame{
		CallID:           callID,
		StreamOriginator: origin,
		Payload1Kind:     logapi.PayloadG711Alaw,
		Payload:          payload,
	}}
}

func execute(m *manager, command string, args ...string) Reply {
	return m.dispatch(context.Background(), &request{command: command, args: args})
}

// alawFrame synthesizes one 60 ms A-law frame from a 1 kHz sine.
func alawFrame(t *testing.T) []byte {
	t.Helper()
	pcm := make([]byte, 2*logapi.G711FrameLen)
	for i := 0; i < logapi.G711FrameLen; i++ {
		sample := int16(10000 * math.Sin(2*math.Pi*1000*float64(i)/8000))
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(sample))
	}
	frame := g711.EncodeAlaw(pcm)
	require.Len(t, frame, logapi.G711FrameLen)
	return frame
}

func TestPingEchoesArgument(t *testing.T) {
	m, _ := newTestManager(t)

	reply := execute(m, CmdPing, "healthcheck")
	assert.Equal(t, StatusOK, reply.Status)
	assert.Equal(t, []string{"healthcheck"}, reply.Parts)
}

func TestActiveCallsListing(t *testing.T) {
	m, _ := newTestManager(t)

	reply := execute(m, CmdGetActiveCalls)
	assert.Equal(t, []string{"0"}, reply.Parts)

	m.handleSignaling(sigEvent(logapi.GroupCallStartChange{CallID: 7, Action: logapi.GroupNewCallSetup}))
	m.handleSignaling(sigEvent(logapi.SimplexCallStartChange{CallID: 9, Action: logapi.IndiNewCallSetup}))

	reply = execute(m, CmdGetActiveCalls)
	assert.Equal(t, StatusOK, reply.Status)
	assert.Equal(t, []string{"2", "7", "9"}, reply.Parts)

	m.handleSignaling(sigEvent(logapi.GroupCallRelease{CallID: 7}))
	reply = execute(m, CmdGetActiveCalls)
	assert.Equal(t, []string{"1", "9"}, reply.Parts)
}

func TestInterceptionForwardsMonoVoice(t *testing.T) {
	listener, feederCfg := newUDPListener(t, "live1", "M")
	m, b := newTestManager(t, feederCfg)

	m.handleSignaling(sigEvent(logapi.GroupCallStartChange{CallID: 7, Action: logapi.GroupNewCallSetup}))

	reply := execute(m, CmdStartCallInterception, "7", "mp3")
	require.Equal(t, StatusOK, reply.Status)
	require.Equal(t, []string{"http://media.local:8000/live1.mp3"}, reply.Parts)

	payload := alawFrame(t)
	b.Publish(voiceEvent(7, logapi.OriginatorGroup, payload))
	assert.Equal(t, payload, readFrame(t, listener))

	// Intercepting again only repeats the stream URL.
	reply = execute(m, CmdStartCallInterception, "7", "mp3")
	assert.Equal(t, StatusOK, reply.Status)
	assert.Equal(t, []string{"http://media.local:8000/live1.mp3"}, reply.Parts)

	reply = execute(m, CmdStopCallInterception, "7")
	assert.Equal(t, StatusOK, reply.Status)
	assert.Equal(t, []string{"OK"}, reply.Parts)

	reply = execute(m, CmdStopCallInterception, "7")
	assert.Equal(t, StatusNok, reply.Status)
	assert.Equal(t, []string{"Call <7> not intercepted"}, reply.Parts)
}

func TestInterceptionPairsDuplexLegs(t *testing.T) {
	listener, feederCfg := newUDPListener(t, "stereo1", "S")
	m, b := newTestManager(t, feederCfg)

	m.handleSignaling(sigEvent(logapi.DuplexCallChange{CallID: 11, Action: logapi.IndiNewCallSetup}))
	reply := execute(m, CmdStartCallInterception, "11", "mp3")
	require.Equal(t, StatusOK, reply.Status)

	// A B leg frame before any A leg frame has nothing to pair with,
	// and a non-subscriber originator never counts as a B leg.
	b.Publish(voiceEvent(11, logapi.OriginatorSubB, []byte{9, 9}))
	b.Publish(voiceEvent(11, logapi.OriginatorSubA, []byte{1, 3}))
	b.Publish(voiceEvent(11, logapi.OriginatorGroup, []byte{8, 8}))
	b.Publish(voiceEvent(11, logapi.OriginatorSubB, []byte{2, 4}))

	assert.Equal(t, []byte{1, 2, 3, 4}, readFrame(t, listener))
}

func TestInterceptionUnknownCall(t *testing.T) {
	m, _ := newTestManager(t)

	reply := execute(m, CmdStartCallInterception, "5", "mp3")
	assert.Equal(t, StatusNok, reply.Status)
	assert.Equal(t, []string{"Call <5> not found"}, reply.Parts)

	reply = execute(m, CmdStopCallInterception, "5")
	assert.Equal(t, StatusNok, reply.Status)
	assert.Equal(t, []string{"Call <5> not found"}, reply.Parts)
}

func TestInterceptionWithoutMatchingFeeder(t *testing.T) {
	_, stereoCfg := newUDPListener(t, "stereo1", "S")
	m, _ := newTestManager(t, stereoCfg)

	// A simplex call needs a mono feeder; only a stereo one exists.
	m.handleSignaling(sigEvent(logapi.SimplexCallStartChange{CallID: 3, Action: logapi.IndiNewCallSetup}))
	reply := execute(m, CmdStartCallInterception, "3", "mp3")
	assert.Equal(t, StatusNok, reply.Status)
	assert.Equal(t, []string{"Feeder not available"}, reply.Parts)
}

func TestReleaseFreesFeeder(t *testing.T) {
	_, feederCfg := newUDPListener(t, "live1", "M")
	m, _ := newTestManager(t, feederCfg)

	m.handleSignaling(sigEvent(logapi.SimplexCallStartChange{CallID: 1, Action: logapi.IndiNewCallSetup}))
	require.Equal(t, StatusOK, execute(m, CmdStartCallInterception, "1", "mp3").Status)

	m.handleSignaling(sigEvent(logapi.SimplexCallRelease{CallID: 1}))

	m.handleSignaling(sigEvent(logapi.SimplexCallStartChange{CallID: 2, Action: logapi.IndiNewCallSetup}))
	reply := execute(m, CmdStartCallInterception, "2", "mp3")
	assert.Equal(t, StatusOK, reply.Status)
}

func TestMaintenanceRemovesQuietCalls(t *testing.T) {
	m, _ := newTestManager(t)

	base := time.Now()
	m.clock = func() time.Time { return base }
	m.handleSignaling(sigEvent(logapi.GroupCallStartChange{CallID: 42, Action: logapi.GroupNewCallSetup}))

	m.clock = func() time.Time { return base.Add(10 * time.Minute) }
	m.maintenance()

	assert.Equal(t, []string{"0"}, execute(m, CmdGetActiveCalls).Parts)
}

func TestStatusChangeRefreshesActivity(t *testing.T) {
	m, _ := newTestManager(t)

	base := time.Now()
	m.clock = func() time.Time { return base }
	m.handleSignaling(sigEvent(logapi.GroupCallStartChange{CallID: 42, Action: logapi.GroupNewCallSetup}))

	m.clock = func() time.Time { return base.Add(4 * time.Minute) }
	m.handleSignaling(sigEvent(logapi.GroupCallPttIdle{CallID: 42}))

	m.clock = func() time.Time { return base.Add(6 * time.Minute) }
	m.maintenance()

	assert.Equal(t, []string{"1", "42"}, execute(m, CmdGetActiveCalls).Parts)
}

func TestInvalidCommands(t *testing.T) {
	m, _ := newTestManager(t)

	assert.Equal(t, nok("Invalid command"), execute(m, "REWIND"))
	assert.Equal(t, nok("Invalid arguments"), execute(m, CmdStartCallInterception, "7"))
	assert.Equal(t, nok("Invalid arguments"), execute(m, CmdStartCallInterception, "abc", "mp3"))
	assert.Equal(t, nok("Invalid arguments"), execute(m, CmdStartPlayCall, "1", "2"))
}

func TestRunServesCommands(t *testing.T) {
	b := bus.New(commons.NewNopLogger())
	t.Cleanup(b.Close)

	cfg := config.MediaConfig{
		MediaServerEndpoint:  "http://media.local:8000",
		CallInactivityPeriod: 300,
		MaintenanceFrequency: 60,
		Subscriptions:        []string{"S_"},
	}
	mgr, err := New(cfg, &fakeVoice{}, b, commons.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()

	reply := mgr.Execute(ctx, CmdPing, []string{"up"})
	assert.Equal(t, ok("up"), reply)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStreamURLFormat(t *testing.T) {
	_, feederCfg := newUDPListener(t, "live9", "M")
	m, _ := newTestManager(t, feederCfg)

	url := m.streamURL(m.feeders.feeders[0], "wav")
	assert.Equal(t, fmt.Sprintf("%s/%s.%s", "http://media.local:8000", "live9", "wav"), url)
}
