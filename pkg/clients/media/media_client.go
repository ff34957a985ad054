// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package media_client talks to the media manager command listener over
// HTTP. It is the programmatic counterpart of POST /command.
package media_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tetraops/callstream/internal/media"
	"github.com/tetraops/callstream/pkg/commons"
)

const requestTimeout = 10 * time.Second

// MediaServiceClient drives live interception and recorded playback on a
// running call stream server.
type MediaServiceClient interface {
	Ping(ctx context.Context, token string) (media.Reply, error)
	GetActiveCalls(ctx context.Context) (media.Reply, error)
	StartCallInterception(ctx context.Context, callID, format string) (media.Reply, error)
	StopCallInterception(ctx context.Context, callID string) (media.Reply, error)
	StartPlayCall(ctx context.Context, dbID, callID, callType, format, session string) (media.Reply, error)
	StopPlayCall(ctx context.Context, dbID, callID, callType, format, session string) (media.Reply, error)
}

type mediaServiceClient struct {
	baseURL string
	http    *http.Client
	logger  commons.Logger
}

// NewMediaServiceClient builds a client for the command listener at
// baseURL, e.g. "http://127.0.0.1:5571".
func NewMediaServiceClient(baseURL string, logger commons.Logger) MediaServiceClient {
	return &mediaServiceClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

func (c *mediaServiceClient) Ping(ctx context.Context, token string) (media.Reply, error) {
	return c.command(ctx, media.CmdPing, token)
}

func (c *mediaServiceClient) GetActiveCalls(ctx context.Context) (media.Reply, error) {
	return c.command(ctx, media.CmdGetActiveCalls)
}

func (c *mediaServiceClient) StartCallInterception(ctx context.Context, callID, format string) (media.Reply, error) {
	return c.command(ctx, media.CmdStartCallInterception, callID, format)
}

func (c *mediaServiceClient) StopCallInterception(ctx context.Context, callID string) (media.Reply, error) {
	return c.command(ctx, media.CmdStopCallInterception, callID)
}

func (c *mediaServiceClient) StartPlayCall(ctx context.Context, dbID, callID, callType, format, session string) (media.Reply, error) {
	return c.command(ctx, media.CmdStartPlayCall, dbID, callID, callType, format, session)
}

func (c *mediaServiceClient) StopPlayCall(ctx context.Context, dbID, callID, callType, format, session string) (media.Reply, error) {
	return c.command(ctx, media.CmdStopPlayCall, dbID, callID, callType, format, session)
}

func (c *mediaServiceClient) command(ctx context.Context, command string, args ...string) (media.Reply, error) {
	body, err := json.Marshal(media.CommandRequest{Command: command, Args: args})
	if err != nil {
		return media.Reply{}, fmt.Errorf("media client: encode %s: %w", command, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/command", bytes.NewReader(body))
	if err != nil {
		return media.Reply{}, fmt.Errorf("media client: %s: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return media.Reply{}, fmt.Errorf("media client: %s: %w", command, err)
	}
	defer resp.Body.Close()

	var reply media.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return media.Reply{}, fmt.Errorf("media client: decode %s reply: %w", command, err)
	}
	c.logger.Debug("command round trip", "command", command, "status", reply.Status,
		"http_status", resp.StatusCode)
	return reply, nil
}
