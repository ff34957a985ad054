// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Package alarm raises operator alarms through the NMS alarm CLI.
package alarm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tetraops/callstream/internal/childproc"
	"github.com/tetraops/callstream/pkg/commons"
)

const (
	alarmType  = "CALLSTREAM_RECORD"
	runTimeout = 30 * time.Second
)

// Notifier raises operator-visible alarms.
type Notifier interface {
	Raise(text string)
}

type notifier struct {
	httpdHome string
	apli      string
	hostname  string
	logger    commons.Logger

	run func(ctx context.Context, command string) ([]byte, error)
}

// New builds a notifier for the web server rooted at httpdHome and the
// application directory apli, both captured from the environment at
// startup.
func New(httpdHome, apli string, logger commons.Logger) Notifier {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &notifier{
		httpdHome: httpdHome,
		apli:      apli,
		hostname:  hostname,
		logger:    logger,
		run:       childproc.Run,
	}
}

// Raise fires the alarm event. Failures are logged; an alarm that
// cannot be delivered must never take the caller down with it.
func (n *notifier) Raise(text string) {
	command := n.command(text)
	n.logger.Warn("raising alarm", "text", text)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if out, err := n.run(ctx, command); err != nil {
		n.logger.Error("alarm delivery failed", "error", err, "output", string(out))
	}
}

func (n *notifier) command(text string) string {
	return fmt.Sprintf(
		"%s/html/%s/aplicaciones/ALARMS/createAlarmEvent.pl %s %s "+
			"--event ACT --object TeNMS --text \"%s\" --source - "+
			"--type %s --subtype %s#%s --priority 1 --externalKey -",
		n.httpdHome, n.apli, n.httpdHome, n.apli,
		text, alarmType, alarmType, n.hostname,
	)
}
