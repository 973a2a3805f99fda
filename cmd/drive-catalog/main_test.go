package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmenanno/drive-catalog/internal/config"
	"github.com/mmenanno/drive-catalog/internal/scanner"
)

func TestCommandTree(t *testing.T) {
	want := []string{"scan", "drives", "jobs", "shard", "dupes", "stats", "export", "presets", "mounts", "tools", "config"}
	cmds := []*cobra.Command{
		newScanCmd(), newDrivesCmd(), newJobsCmd(), newShardCmd(), newDupesCmd(), newStatsCmd(),
		newExportCmd(), newPresetsCmd(), newMountsCmd(), newToolsCmd(), newConfigCmd(),
	}
	for i, c := range cmds {
		assert.Equal(t, want[i], c.Name())
	}

	drives := newDrivesCmd()
	var names []string
	for _, c := range drives.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "edit", "delete"}, names)
}

func TestScanFlags(t *testing.T) {
	cmd := newScanCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--type", "SSD NVMe", "--hash", "-w", "8", "--json-progress"}))

	driveType, _ := cmd.Flags().GetString("type")
	assert.Equal(t, "SSD NVMe", driveType)
	assert.True(t, cmd.Flags().Changed("hash"))
	workers, _ := cmd.Flags().GetInt("workers")
	assert.Equal(t, 8, workers)
	jsonProgress, _ := cmd.Flags().GetBool("json-progress")
	assert.True(t, jsonProgress)
	assert.Error(t, cmd.Args(cmd, []string{"only-label"}))
}

func TestReadControlsIdleScanner(t *testing.T) {
	s := scanner.NewScanner(config.Default(), nil, nil, scanner.Options{})

	// Controls are no-ops without a running scan; the reader must just drain input
	done := make(chan struct{})
	go func() {
		readControls(strings.NewReader("p\nr\n  S \nbogus\n"), s)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("readControls did not return at EOF")
	}
	assert.False(t, s.Paused())
	assert.Equal(t, scanner.StateIdle, s.State())
}

func TestStatusLine(t *testing.T) {
	snap := scanner.ProgressSnapshot{
		Phase:    scanner.StateEnumerating,
		TotalAll: 120,
		TotalAV:  40,
		Elapsed:  5 * time.Second,
	}
	assert.Equal(t, "Enumerating: 120 files, 0/40 audio/video, 0 failed, elapsed 5s", statusLine(snap))

	snap.Phase = scanner.StateEnriching
	snap.Enumerated = true
	snap.DoneAV = 16
	snap.Failed = 2
	snap.Elapsed = time.Minute
	snap.PercentComplete = 40
	snap.ETA = 90 * time.Second
	line := statusLine(snap)
	assert.Contains(t, line, "16/40 audio/video, 2 failed")
	assert.Contains(t, line, "40.0%")
	assert.True(t, strings.HasSuffix(line, "ETA 1m30s"), line)
}

func TestWriteProgressJSON(t *testing.T) {
	var buf bytes.Buffer
	writeProgressJSON(&buf, scanner.ProgressSnapshot{
		Label:           "ARCHIVE01",
		Phase:           scanner.StateEnriching,
		Enumerated:      true,
		TotalAV:         10,
		DoneAV:          5,
		PercentComplete: 50,
		ETA:             2 * time.Minute,
	})

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	assert.Equal(t, 1, strings.Count(out, "\n"))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ARCHIVE01", got["Label"])
	assert.Equal(t, "2m0s", got["ETA"])
	assert.Equal(t, 50.0, got["PercentComplete"])
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
	assert.Equal(t, "", deref(nil))

	assert.Equal(t, "-", formatTime(nil))
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local)
	assert.Equal(t, "2024-03-01 12:30:00", formatTime(&ts))

	assert.Equal(t, "not found (mediainfo)", availability(false, "mediainfo"))
	assert.Equal(t, "available (smartctl)", availability(true, "smartctl"))
}
