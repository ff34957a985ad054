// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/pkg/commons"
)

func TestStaticPlayerMaterializesRecording(t *testing.T) {
	repo := t.TempDir()
	voice := &fakeVoice{recordings: map[int64][]byte{9: {1, 2, 3, 4}}}
	p := newStaticPlayer(config.PlayerConfig{
		VoicerecRepo: repo,
		VoicerecURL:  "voicerec",
	}, voice, commons.NewNopLogger())

	req := playRequest{DBID: 9, CallID: 55, CallType: CallTypeGroup, Format: "wav", Session: "sess1"}
	reply := p.start(context.Background(), req)
	require.Equal(t, StatusOK, reply.Status)

	name := playbackFileName(9, 55, "sess1", "wav")
	require.Equal(t, []string{"/voicerec/" + name}, reply.Parts)
	assert.Equal(t, []string{CallTypeGroup}, voice.callTypes)

	blob, err := os.ReadFile(filepath.Join(repo, name))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, blob)

	reply = p.stop(context.Background(), req)
	assert.Equal(t, ok(StatusOK), reply)
	assert.NoFileExists(t, filepath.Join(repo, name))
}

func TestStaticPlayerSessionsDoNotCollide(t *testing.T) {
	a := playbackFileName(9, 55, "sess1", "wav")
	b := playbackFileName(9, 55, "sess2", "wav")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32+len(".wav"))
}

func TestStaticPlayerUnknownRecording(t *testing.T) {
	p := newStaticPlayer(config.PlayerConfig{
		VoicerecRepo: t.TempDir(),
		VoicerecURL:  "voicerec",
	}, &fakeVoice{}, commons.NewNopLogger())

	reply := p.start(context.Background(), playRequest{DBID: 1, CallID: 55, CallType: CallTypeIndividual})
	assert.Equal(t, nok("Call <55> not found"), reply)
}

func TestChildPlayerLifecycle(t *testing.T) {
	dir := t.TempDir()
	voice := &fakeVoice{recordings: map[int64][]byte{9: {1, 2, 3}}}
	cfg := config.PlayerConfig{
		Mode:             "child",
		CommandTemplate:  "read line # %s %s %s",
		FilenameTemplate: filepath.Join(dir, "play_%d_%d_%s.%s"),
		Instances:        []config.PlayerInstanceConfig{{Stream: "play1", Feeder: "feeder1"}},
	}
	p := newChildPlayer(cfg, "http://media.local:8000", voice, commons.NewNopLogger()).(*childPlayer)
	t.Cleanup(p.shutdown)

	req := playRequest{DBID: 9, CallID: 55, CallType: CallTypeGroup, Format: "wav", Session: "s"}
	reply := p.start(context.Background(), req)
	require.Equal(t, StatusOK, reply.Status)
	require.Equal(t, []string{"http://media.local:8000/play1.wav"}, reply.Parts)

	file := filepath.Join(dir, "play_9_55_feeder1.wav")
	assert.FileExists(t, file)

	// The single slot is taken.
	reply = p.start(context.Background(), playRequest{DBID: 9, CallID: 56})
	assert.Equal(t, nok("Player unavailable"), reply)

	reply = p.stop(context.Background(), req)
	assert.Equal(t, ok(StatusOK), reply)

	// The slot frees itself once the player exits.
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return !p.slots[0].busy
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoFileExists(t, file)
}

func TestChildPlayerUnknownRecordingKeepsSlotFree(t *testing.T) {
	cfg := config.PlayerConfig{
		Mode:             "child",
		CommandTemplate:  "read line # %s %s %s",
		FilenameTemplate: filepath.Join(t.TempDir(), "play_%d_%d_%s.%s"),
		Instances:        []config.PlayerInstanceConfig{{Stream: "play1", Feeder: "feeder1"}},
	}
	p := newChildPlayer(cfg, "http://media.local:8000", &fakeVoice{}, commons.NewNopLogger()).(*childPlayer)

	reply := p.start(context.Background(), playRequest{DBID: 1, CallID: 7})
	assert.Equal(t, nok("Call <7> not found"), reply)
	assert.False(t, p.slots[0].busy)

	reply = p.stop(context.Background(), playRequest{DBID: 1, CallID: 7})
	assert.Equal(t, nok("Call player not found"), reply)
}
