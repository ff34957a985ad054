// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package childproc runs external helpers through the shell: one-shot
// commands such as the MP3 converter and the alarm CLI, and supervised
// long-running children such as stream player instances.
package childproc

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/tetraops/callstream/pkg/commons"
)

// Run executes a shell command to completion and returns its combined
// output. The context bounds the run; commands are templates from
// configuration, so the shell is the contract.
func Run(ctx context.Context, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("childproc: %q: %w", command, err)
	}
	return out, nil
}

// Process is a supervised long-running child with an attached stdin.
type Process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	done chan struct{}

	mu  sync.Mutex
	err error
}

// Start launches a shell command and begins supervising it. Done is
// closed when the child exits for any reason.
func Start(command string, logger commons.Logger) (*Process, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("childproc: stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("childproc: start %q: %w", command, err)
	}
	logger.Info("child started", "pid", cmd.Process.Pid, "command", command)

	p := &Process{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
		if err != nil {
			logger.Warn("child exited", "pid", cmd.Process.Pid, "error", err)
		} else {
			logger.Info("child exited", "pid", cmd.Process.Pid)
		}
	}()
	return p, nil
}

// Done is closed once the child has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err reports the child's exit error, valid after Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Pid is the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Stop asks the child to quit by writing the conventional "q" line to
// its stdin. Players honor it; the caller decides whether to escalate.
func (p *Process) Stop() error {
	_, err := io.WriteString(p.stdin, "q\n")
	return err
}

// StopWait stops the child and waits up to the grace period before
// killing it outright.
func (p *Process) StopWait(grace time.Duration) {
	_ = p.Stop()
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}
