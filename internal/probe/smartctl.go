package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// SmartInfo is the hardware identity reported by smartctl
type SmartInfo struct {
	Device        string
	Serial        string
	Model         string
	CapacityBytes int64
	Raw           json.RawMessage
}

// Smartctl queries drive identity with `smartctl -i -j`
type Smartctl struct {
	tool      *Tool
	runner    CommandRunner
	timeout   time.Duration
	tolerance float64
	logger    hclog.Logger
}

// NewSmartctl creates a smartctl client. tolerance is the relative capacity
// difference accepted when matching devices by size.
func NewSmartctl(tool *Tool, runner CommandRunner, timeout time.Duration, tolerance float64, logger hclog.Logger) *Smartctl {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Smartctl{
		tool:      tool,
		runner:    runner,
		timeout:   timeout,
		tolerance: tolerance,
		logger:    logger.Named("smartctl"),
	}
}

// Available reports whether smartctl can be used
func (s *Smartctl) Available() bool {
	return s.tool.Available()
}

type smartInfoDoc struct {
	ModelName    string `json:"model_name"`
	ModelFamily  string `json:"model_family"`
	SerialNumber string `json:"serial_number"`
	UserCapacity struct {
		Bytes int64 `json:"bytes"`
	} `json:"user_capacity"`
	NVMeTotalCapacity int64 `json:"nvme_total_capacity"`
}

type smartScanDoc struct {
	Devices []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"devices"`
}

// smartctl exit status bits 0 and 1 mean the command never reached the device
const smartFatalBits = 0x3

// Info reads identity for one device
func (s *Smartctl) Info(ctx context.Context, device string) (*SmartInfo, error) {
	if !s.tool.Available() {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, s.tool.Name())
	}

	out, err := s.run(ctx, "-i", "-j", device)
	if err != nil {
		return nil, err
	}

	var doc smartInfoDoc
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse smartctl output for %s: %w", device, err)
	}

	capacity := doc.UserCapacity.Bytes
	if capacity == 0 {
		capacity = doc.NVMeTotalCapacity
	}

	model := strings.TrimSpace(doc.ModelName)
	if model == "" {
		model = strings.TrimSpace(doc.ModelFamily)
	}

	return &SmartInfo{
		Device:        device,
		Serial:        strings.TrimSpace(doc.SerialNumber),
		Model:         model,
		CapacityBytes: capacity,
		Raw:           out,
	}, nil
}

// ScanDevices lists the devices smartctl can see
func (s *Smartctl) ScanDevices(ctx context.Context) ([]string, error) {
	if !s.tool.Available() {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, s.tool.Name())
	}

	out, err := s.run(ctx, "--scan", "-j")
	if err != nil {
		return nil, err
	}

	var doc smartScanDoc
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse smartctl scan output: %w", err)
	}

	devices := make([]string, 0, len(doc.Devices))
	for _, d := range doc.Devices {
		if d.Name != "" {
			devices = append(devices, d.Name)
		}
	}
	return devices, nil
}

// Identify finds the serial and model for a drive. The partition's device is
// tried first; otherwise every scanned device is compared by capacity and the
// closest one within tolerance wins. Returns nil, nil when nothing matches.
func (s *Smartctl) Identify(ctx context.Context, device string, capacity int64) (*SmartInfo, error) {
	if !s.tool.Available() {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, s.tool.Name())
	}

	if device != "" {
		info, err := s.Info(ctx, ParentDevice(device))
		if err == nil && info.Serial != "" {
			return info, nil
		}
		if err != nil {
			s.logger.Debug("direct device lookup failed", "device", device, "error", err)
		}
	}

	if capacity <= 0 {
		return nil, nil
	}

	devices, err := s.ScanDevices(ctx)
	if err != nil {
		return nil, err
	}

	var best *SmartInfo
	bestDiff := math.MaxFloat64
	for _, dev := range devices {
		info, err := s.Info(ctx, dev)
		if err != nil || info.CapacityBytes <= 0 {
			continue
		}
		diff := capacityDiff(info.CapacityBytes, capacity)
		if diff <= s.tolerance && diff < bestDiff {
			best = info
			bestDiff = diff
		}
	}
	return best, nil
}

func (s *Smartctl) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Run(ctx, s.tool.Path(), args...)
	if err != nil {
		var exitErr *ExitError
		// Higher bits report SMART health findings; the JSON is still valid
		if !errors.As(err, &exitErr) || exitErr.Code&smartFatalBits != 0 || len(out) == 0 {
			return nil, err
		}
	}
	return out, nil
}

// capacityDiff returns the relative difference between a device size and a filesystem size
func capacityDiff(device, filesystem int64) float64 {
	if device <= 0 {
		return math.MaxFloat64
	}
	return math.Abs(float64(device-filesystem)) / float64(device)
}

var (
	nvmePartition = regexp.MustCompile(`^(/dev/nvme\d+n\d+)p\d+$`)
	mmcPartition  = regexp.MustCompile(`^(/dev/mmcblk\d+)p\d+$`)
	sdPartition   = regexp.MustCompile(`^(/dev/[sh]d[a-z]+)\d+$`)
	diskPartition = regexp.MustCompile(`^(/dev/disk\d+)s\d+$`)
)

// ParentDevice strips a partition suffix: /dev/sdb1 becomes /dev/sdb
func ParentDevice(device string) string {
	for _, re := range []*regexp.Regexp{nvmePartition, mmcPartition, sdPartition, diskPartition} {
		if m := re.FindStringSubmatch(device); m != nil {
			return m[1]
		}
	}
	return device
}
