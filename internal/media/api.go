// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tetraops/callstream/pkg/commons"
)

const shutdownGrace = 5 * time.Second

// CommandRequest is the body of POST /command: the legacy multi-frame
// command flattened into JSON.
type CommandRequest struct {
	Command string   `json:"command" binding:"required"`
	Args    []string `json:"args"`
}

// NewRouter builds the HTTP command listener around the media worker.
func NewRouter(m Manager, logger commons.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/command", func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Header("X-Request-Id", requestID)

		var req CommandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("malformed command request", "request_id", requestID, "error", err)
			c.JSON(http.StatusBadRequest, nok("Invalid request"))
			return
		}
		reply := m.Execute(c.Request.Context(), req.Command, req.Args)
		logger.Debug("command served", "request_id", requestID,
			"command", req.Command, "status", reply.Status)
		c.JSON(http.StatusOK, reply)
	})
	return engine
}

// Serve runs the command listener until the context is cancelled.
func Serve(ctx context.Context, addr string, m Manager, logger commons.Logger) error {
	server := &http.Server{Addr: addr, Handler: NewRouter(m, logger)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("command listener started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
