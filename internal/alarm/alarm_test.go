// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package alarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraops/callstream/pkg/commons"
)

func TestRaiseBuildsAlarmCommand(t *testing.T) {
	n := New("/srv/httpd", "tenms", commons.NewNopLogger()).(*notifier)
	n.hostname = "site-a"

	var got string
	n.run = func(_ context.Context, command string) ([]byte, error) {
		got = command
		return nil, nil
	}

	n.Raise("Unable to record voice call")

	require.NotEmpty(t, got)
	assert.Contains(t, got, "/srv/httpd/html/tenms/aplicaciones/ALARMS/createAlarmEvent.pl /srv/httpd tenms")
	assert.Contains(t, got, "--event ACT")
	assert.Contains(t, got, "--object TeNMS")
	assert.Contains(t, got, `--text "Unable to record voice call"`)
	assert.Contains(t, got, "--type CALLSTREAM_RECORD")
	assert.Contains(t, got, "--subtype CALLSTREAM_RECORD#site-a")
	assert.Contains(t, got, "--priority 1")
}
