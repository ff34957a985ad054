// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraops/callstream/internal/media"
	"github.com/tetraops/callstream/pkg/commons"
)

func newCommandServer(t *testing.T, reply media.Reply) (*httptest.Server, *media.CommandRequest) {
	t.Helper()
	var got media.CommandRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/command", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestStartCallInterceptionRoundTrip(t *testing.T) {
	reply := media.Reply{Status: media.StatusOK, Parts: []string{"http://media.local:8000/live1.mp3"}}
	server, got := newCommandServer(t, reply)

	client := NewMediaServiceClient(server.URL, commons.NewNopLogger())
	out, err := client.StartCallInterception(context.Background(), "7", "mp3")
	require.NoError(t, err)
	assert.Equal(t, reply, out)
	assert.Equal(t, media.CmdStartCallInterception, got.Command)
	assert.Equal(t, []string{"7", "mp3"}, got.Args)
}

func TestGetActiveCallsSendsNoArguments(t *testing.T) {
	server, got := newCommandServer(t, media.Reply{Status: media.StatusOK, Parts: []string{"0"}})

	client := NewMediaServiceClient(server.URL, commons.NewNopLogger())
	out, err := client.GetActiveCalls(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, out.Parts)
	assert.Equal(t, media.CmdGetActiveCalls, got.Command)
	assert.Empty(t, got.Args)
}

func TestCommandAgainstStoppedServer(t *testing.T) {
	server, _ := newCommandServer(t, media.Reply{})
	server.Close()

	client := NewMediaServiceClient(server.URL, commons.NewNopLogger())
	_, err := client.Ping(context.Background(), "probe")
	assert.Error(t, err)
}
