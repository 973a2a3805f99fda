package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

// ErrNotRecognized is returned when the prober ran but could not describe the file
var ErrNotRecognized = errors.New("prober did not recognize the file")

// Prober describes one media file as a JSON document
type Prober interface {
	Probe(ctx context.Context, path string) (json.RawMessage, error)
}

// MediaInfo runs `mediainfo --Output=JSON <path>`
type MediaInfo struct {
	tool    *Tool
	runner  CommandRunner
	timeout time.Duration
}

// NewMediaInfo creates a MediaInfo prober
func NewMediaInfo(tool *Tool, runner CommandRunner, timeout time.Duration) *MediaInfo {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &MediaInfo{tool: tool, runner: runner, timeout: timeout}
}

// Available reports whether the mediainfo binary can be used
func (m *MediaInfo) Available() bool {
	return m.tool.Available()
}

type mediaInfoDoc struct {
	Media *struct {
		Track []json.RawMessage `json:"track"`
	} `json:"media"`
}

// Probe invokes MediaInfo under the configured timeout. Timeouts, non-zero
// exits, empty output and unparseable JSON are all returned as errors. A
// binary that disappeared since the last lookup invalidates the tool cache
// and is reported as ErrToolUnavailable.
func (m *MediaInfo) Probe(ctx context.Context, path string) (json.RawMessage, error) {
	if !m.tool.Available() {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, m.tool.Name())
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.runner.Run(ctx, m.tool.Path(), "--Output=JSON", path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			m.tool.Invalidate()
			return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
		}
		return nil, err
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("mediainfo produced no output")
	}

	var doc mediaInfoDoc
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse mediainfo output: %w", err)
	}
	if doc.Media == nil || len(doc.Media.Track) == 0 {
		return nil, ErrNotRecognized
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, out); err != nil {
		return nil, fmt.Errorf("failed to compact mediainfo output: %w", err)
	}
	return compact.Bytes(), nil
}
