package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmenanno/drive-catalog/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	CatalogPath string `yaml:"catalog_path"`
	ShardDir    string `yaml:"shard_dir"`
	PresetsPath string `yaml:"presets_path"`
	ExportDir   string `yaml:"export_dir"`

	// Scan pipeline
	Workers           int           `yaml:"workers"`
	QueueSize         int           `yaml:"queue_size"`
	BatchSize         int           `yaml:"batch_size"`
	ProgressEvery     int           `yaml:"progress_every"`
	ProgressInterval  time.Duration `yaml:"progress_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleJobAfter     time.Duration `yaml:"stale_job_after"`
	VacuumOnFinish    bool          `yaml:"vacuum_on_finish"`

	// Enrichment
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	SmartTimeout      time.Duration `yaml:"smart_timeout"`
	HashEnabled       bool          `yaml:"hash_enabled"`
	HashBufferSize    int           `yaml:"hash_buffer_size"`
	MediaInfoPath     string        `yaml:"mediainfo_path"`
	SmartctlPath      string        `yaml:"smartctl_path"`
	ToolCheckInterval time.Duration `yaml:"tool_check_interval"`

	AudioExtensions []string `yaml:"audio_extensions"`
	VideoExtensions []string `yaml:"video_extensions"`
	SkipDirs        []string `yaml:"skip_dirs"`

	// Shard deletion
	DeleteRetries    int           `yaml:"delete_retries"`
	DeleteRetryDelay time.Duration `yaml:"delete_retry_delay"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	avOnce sync.Once           `yaml:"-"`
	avSet  map[string]struct{} `yaml:"-"`
}

// DefaultAudioExtensions lists every audio container and codec extension the
// scanner enriches. Keep it exhaustive: a missing entry means files of that
// kind are never probed.
var DefaultAudioExtensions = []string{
	".mp3", ".mp2", ".mpa", ".flac", ".wav", ".w64", ".rf64", ".aac", ".m4a", ".m4b",
	".m4p", ".ogg", ".oga", ".opus", ".spx", ".wma", ".aiff", ".aif", ".aifc", ".alac",
	".ape", ".wv", ".mka", ".mpc", ".ac3", ".eac3", ".dts", ".dsf", ".dff", ".amr",
	".3ga", ".au", ".snd", ".ra", ".ram", ".mid", ".midi", ".caf", ".tta", ".tak",
	".ofr", ".weba", ".gsm", ".voc", ".aa", ".aax", ".xm", ".s3m", ".it",
}

// DefaultVideoExtensions lists every video container extension the scanner enriches.
var DefaultVideoExtensions = []string{
	".mp4", ".m4v", ".mkv", ".mk3d", ".avi", ".mov", ".qt", ".wmv", ".asf", ".flv",
	".f4v", ".f4p", ".webm", ".mpg", ".mpeg", ".mpe", ".mpv", ".m1v", ".m2v", ".m2p",
	".ps", ".ts", ".m2ts", ".mts", ".m2t", ".tp", ".trp", ".vob", ".evo", ".vro",
	".3gp", ".3g2", ".ogv", ".ogm", ".rm", ".rmvb", ".divx", ".dv", ".mxf", ".nut",
	".y4m", ".h264", ".h265", ".264", ".265", ".hevc", ".ivf", ".wtv", ".dvr-ms",
	".tod", ".bik", ".amv", ".nsv", ".mjpeg", ".mjpg", ".r3d", ".braw",
}

// DefaultSkipDirs lists directory names that are never descended into.
var DefaultSkipDirs = []string{
	"$RECYCLE.BIN",
	"System Volume Information",
	".Trashes",
	".Spotlight-V100",
	".fseventsd",
	"lost+found",
}

// BaseDir returns the directory holding the default config and databases
func BaseDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "drive-catalog")
	}
	return ".drive-catalog"
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return filepath.Join(BaseDir(), "config.yaml")
}

// Default returns a default configuration
func Default() *Config {
	base := BaseDir()
	return &Config{
		CatalogPath:       filepath.Join(base, "catalog.db"),
		ShardDir:          filepath.Join(base, "shards"),
		PresetsPath:       filepath.Join(base, "drive_types.json"),
		ExportDir:         filepath.Join(base, "exports"),
		Workers:           constants.DefaultWorkerCount,
		QueueSize:         constants.DefaultQueueSize,
		BatchSize:         constants.DefaultBatchSize,
		ProgressEvery:     constants.DefaultProgressEvery,
		ProgressInterval:  constants.DefaultProgressInterval,
		HeartbeatInterval: constants.DefaultHeartbeatInterval,
		StaleJobAfter:     constants.DefaultStaleJobAfter,
		VacuumOnFinish:    false,
		ProbeTimeout:      constants.DefaultProbeTimeout,
		SmartTimeout:      constants.DefaultSmartTimeout,
		HashEnabled:       false,
		HashBufferSize:    constants.DefaultHashBufferSize,
		MediaInfoPath:     "mediainfo",
		SmartctlPath:      "smartctl",
		ToolCheckInterval: constants.DefaultToolCheckInterval,
		AudioExtensions:   append([]string(nil), DefaultAudioExtensions...),
		VideoExtensions:   append([]string(nil), DefaultVideoExtensions...),
		SkipDirs:          append([]string(nil), DefaultSkipDirs...),
		DeleteRetries:     constants.DefaultDeleteRetries,
		DeleteRetryDelay:  constants.DefaultDeleteRetryDelay,
		LogLevel:          "info",
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsAV reports whether path has an audio or video extension.
// Matching is case-insensitive on the final extension only.
func (c *Config) IsAV(path string) bool {
	c.avOnce.Do(func() {
		c.avSet = make(map[string]struct{}, len(c.AudioExtensions)+len(c.VideoExtensions))
		for _, list := range [][]string{c.AudioExtensions, c.VideoExtensions} {
			for _, ext := range list {
				c.avSet[normalizeExt(ext)] = struct{}{}
			}
		}
	})

	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := c.avSet[ext]
	return ok
}

// IsAudio reports whether path has an audio extension
func (c *Config) IsAudio(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.AudioExtensions {
		if normalizeExt(e) == ext {
			return true
		}
	}
	return false
}

// ShouldSkipDir reports whether a directory base name is on the skip list
func (c *Config) ShouldSkipDir(name string) bool {
	for _, skip := range c.SkipDirs {
		if strings.EqualFold(skip, name) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}

	if c.ShardDir == "" {
		return fmt.Errorf("shard_dir is required")
	}

	if c.PresetsPath == "" {
		return fmt.Errorf("presets_path is required")
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}

	if c.ProgressEvery < 1 {
		return fmt.Errorf("progress_every must be at least 1")
	}

	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval cannot be negative")
	}

	if c.HeartbeatInterval < time.Second {
		return fmt.Errorf("heartbeat_interval must be at least 1 second")
	}

	if c.StaleJobAfter <= c.HeartbeatInterval {
		return fmt.Errorf("stale_job_after must be longer than heartbeat_interval")
	}

	if c.ProbeTimeout < time.Second {
		return fmt.Errorf("probe_timeout must be at least 1 second")
	}

	if c.SmartTimeout < time.Second {
		return fmt.Errorf("smart_timeout must be at least 1 second")
	}

	if c.HashBufferSize < 4096 {
		return fmt.Errorf("hash_buffer_size must be at least 4096 bytes")
	}

	if c.DeleteRetries < 1 {
		return fmt.Errorf("delete_retries must be at least 1")
	}

	if c.DeleteRetryDelay < 0 {
		return fmt.Errorf("delete_retry_delay cannot be negative")
	}

	if len(c.AudioExtensions)+len(c.VideoExtensions) == 0 {
		return fmt.Errorf("at least one audio or video extension is required")
	}

	for _, ext := range append(append([]string(nil), c.AudioExtensions...), c.VideoExtensions...) {
		if strings.TrimSpace(ext) == "" || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("invalid extension %q", ext)
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of trace, debug, info, warn, error (got: %s)", c.LogLevel)
	}

	return nil
}
