package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/mmenanno/drive-catalog/internal/catalog"
	"github.com/mmenanno/drive-catalog/internal/config"
	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/mmenanno/drive-catalog/internal/logger"
	"github.com/mmenanno/drive-catalog/internal/probe"
	"github.com/mmenanno/drive-catalog/internal/shard"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	log    hclog.Logger
	db     *catalog.DB
	shards *shard.Manager
)

func main() {
	// Ensure the catalog is closed even on panic
	defer func() {
		if r := recover(); r != nil {
			if db != nil {
				db.Close()
			}
			panic(r)
		}
	}()

	rootCmd := &cobra.Command{
		Use:   "drive-catalog",
		Short: "Drive Catalog - inventory offline drives into searchable databases",
		Long: `Drive Catalog scans a drive (local root, mount point or network share),
records every file in a per-drive shard database and enriches audio/video
files with MediaInfo metadata and optional BLAKE3 hashes. A central catalog
keeps the known drives and the history of scan jobs.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			level := cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			log = logger.New(logger.Options{Level: level, JSON: cfg.LogJSON, Output: os.Stderr})

			// Auto-generate config file if it doesn't exist
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				log.Info("config file not found, creating default", "path", configPath)
				if err := cfg.Save(configPath); err != nil {
					log.Warn("failed to save default config", "error", err)
				}
			}

			if err := cfg.Validate(); err != nil && cmd.Name() != "validate" {
				return fmt.Errorf("invalid config %s: %w", configPath, err)
			}

			db, err = catalog.Open(cfg.CatalogPath, log)
			if err != nil {
				return fmt.Errorf("failed to open catalog: %w", err)
			}
			shards = shard.NewManager(cfg.ShardDir, cfg.DeleteRetries, cfg.DeleteRetryDelay, log)

			// Jobs left Running by a crashed process
			n, err := db.RecoverStaleJobs(cmd.Context(), cfg.StaleJobAfter, time.Now().UTC())
			if err != nil {
				return err
			}
			if n > 0 {
				log.Warn("closed interrupted jobs", "count", n)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		newScanCmd(),
		newDrivesCmd(),
		newJobsCmd(),
		newShardCmd(),
		newDupesCmd(),
		newStatsCmd(),
		newExportCmd(),
		newPresetsCmd(),
		newMountsCmd(),
		newToolsCmd(),
		newConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if db != nil {
			db.Close()
		}
		os.Exit(1)
	}
}

// tools builds the external tool clients from config
func tools() (*probe.MediaInfo, *probe.Smartctl) {
	media := probe.NewMediaInfo(
		probe.NewTool(cfg.MediaInfoPath, cfg.ToolCheckInterval),
		probe.ExecRunner{},
		cfg.ProbeTimeout,
	)
	smart := probe.NewSmartctl(
		probe.NewTool(cfg.SmartctlPath, cfg.ToolCheckInterval),
		probe.ExecRunner{},
		cfg.SmartTimeout,
		constants.SmartCapacityTolerance,
		log,
	)
	return media, smart
}
