package disk

import (
	"context"
	"fmt"
	"strings"

	gdisk "github.com/shirou/gopsutil/v4/disk"
)

// SpaceInfo contains disk space statistics
type SpaceInfo struct {
	TotalBytes  int64   // Total disk capacity
	FreeBytes   int64   // Free space available to the user
	UsedBytes   int64   // Used space
	UsedPercent float64 // Percentage used
}

// GetSpace queries filesystem capacity for a mount path.
// Works for drive roots, UNC shares and POSIX mount points.
func GetSpace(ctx context.Context, path string) (*SpaceInfo, error) {
	usage, err := gdisk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("disk usage failed for %s: %w", path, err)
	}

	return &SpaceInfo{
		TotalBytes:  int64(usage.Total),
		FreeBytes:   int64(usage.Free),
		UsedBytes:   int64(usage.Used),
		UsedPercent: usage.UsedPercent,
	}, nil
}

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
		PB = TB * 1024
	)

	absBytes := bytes
	if bytes < 0 {
		absBytes = -bytes
	}

	switch {
	case absBytes >= PB:
		return fmt.Sprintf("%.2f PB", float64(bytes)/float64(PB))
	case absBytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case absBytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case absBytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case absBytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// ParseSize converts human-readable size strings to bytes
// Supports formats: "4MB", "10GB", "512KB", "2TB", or plain numbers (bytes)
func ParseSize(sizeStr string) (int64, error) {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
		PB = TB * 1024
	)

	sizeStr = strings.TrimSpace(sizeStr)
	if sizeStr == "" {
		return 0, fmt.Errorf("size string cannot be empty")
	}

	var value float64
	var unit string
	n, err := fmt.Sscanf(sizeStr, "%f%s", &value, &unit)
	if n == 0 {
		return 0, fmt.Errorf("invalid size format: %s (expected format like '4MB', '10GB', or '1024')", sizeStr)
	}
	if n == 2 && err != nil {
		return 0, fmt.Errorf("invalid size format: %s: %w", sizeStr, err)
	}

	if value < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
	}

	// No unit means bytes
	if n == 1 {
		return int64(value), nil
	}

	switch strings.ToUpper(unit) {
	case "B":
		return int64(value), nil
	case "KB":
		return int64(value * KB), nil
	case "MB":
		return int64(value * MB), nil
	case "GB":
		return int64(value * GB), nil
	case "TB":
		return int64(value * TB), nil
	case "PB":
		return int64(value * PB), nil
	default:
		return 0, fmt.Errorf("unsupported unit: %s (supported: B, KB, MB, GB, TB, PB)", strings.ToUpper(unit))
	}
}

// UsageSummary returns a one-line summary for a drive
func UsageSummary(info *SpaceInfo) string {
	return fmt.Sprintf("%s used / %s total (%.1f%% full)",
		FormatBytes(info.UsedBytes),
		FormatBytes(info.TotalBytes),
		info.UsedPercent)
}
