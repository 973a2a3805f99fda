package disk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	gdisk "github.com/shirou/gopsutil/v4/disk"
)

// MountInfo describes one mounted filesystem
type MountInfo struct {
	Device     string
	Mountpoint string
	Fstype     string
}

// ListMounts returns the physical partitions currently mounted
func ListMounts(ctx context.Context) ([]MountInfo, error) {
	parts, err := gdisk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	mounts := make([]MountInfo, 0, len(parts))
	for _, p := range parts {
		mounts = append(mounts, MountInfo{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
		})
	}
	return mounts, nil
}

// MatchMount returns the mount whose mountpoint is the longest prefix of path
func MatchMount(mounts []MountInfo, path string) (MountInfo, bool) {
	target := foldPath(path)

	var best MountInfo
	bestLen := -1
	for _, m := range mounts {
		mp := foldPath(m.Mountpoint)
		if mp == "" || !hasPathPrefix(target, mp) {
			continue
		}
		if len(mp) > bestLen {
			best = m
			bestLen = len(mp)
		}
	}
	return best, bestLen >= 0
}

// DeviceForMount resolves the block device backing path, if any
func DeviceForMount(ctx context.Context, path string) (string, error) {
	mounts, err := ListMounts(ctx)
	if err != nil {
		return "", err
	}
	m, ok := MatchMount(mounts, path)
	if !ok {
		return "", fmt.Errorf("no mounted partition contains %s", path)
	}
	return m.Device, nil
}

// foldPath folds Windows paths so that "e:\" and "E:/" compare equal
func foldPath(p string) string {
	if IsWindowsStyle(p) {
		return strings.ToUpper(strings.ReplaceAll(p, "/", `\`))
	}
	return filepath.Clean(p)
}

func hasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if strings.HasSuffix(prefix, "/") || strings.HasSuffix(prefix, `\`) {
		return true
	}
	next := path[len(prefix)]
	return next == '/' || next == '\\'
}
