//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairhome/fairhome/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)

	runs := []store.SyncRun{
		{ID: 2, Status: store.RunStatusFailed, StartedAt: started, CompletedAt: &completed,
			Error: "sync: fetch feed: http 503 from data.cityofchicago.org plus a very long tail that gets truncated in the table"},
		{ID: 1, Status: store.RunStatusComplete, StartedAt: started, CompletedAt: &completed, RowsSynced: 312},
		{ID: 3, Status: store.RunStatusRunning, StartedAt: started},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "312")
	assert.Contains(t, out, "...")

	// A still-running run has no duration.
	assert.Contains(t, lines[3], "-")
}
