package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmenanno/drive-catalog/internal/disk"
	"github.com/mmenanno/drive-catalog/internal/presets"
)

const timeLayout = "2006-01-02 15:04:05"

func newPresetsCmd() *cobra.Command {
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage drive type presets",
	}

	presetsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List drive type presets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := presets.Load(cfg.PresetsPath)
				if err != nil {
					return err
				}
				for _, t := range store.Sorted() {
					fmt.Println(t)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <type>",
			Short: "Add a drive type preset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := presets.Load(cfg.PresetsPath)
				if err != nil {
					return err
				}
				added, err := store.Add(args[0])
				if err != nil {
					return err
				}
				if !added {
					fmt.Printf("%q is already a preset\n", args[0])
					return nil
				}
				return store.Save()
			},
		},
		&cobra.Command{
			Use:   "remove <type>",
			Short: "Remove a drive type preset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := presets.Load(cfg.PresetsPath)
				if err != nil {
					return err
				}
				if !store.Remove(args[0]) {
					return fmt.Errorf("no preset named %q", args[0])
				}
				return store.Save()
			},
		},
	)
	return presetsCmd
}

func newMountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mounts",
		Short: "List mounted filesystems that can be scanned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mounts, err := disk.ListMounts(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%-28s %-20s %-8s %s\n", "MOUNT", "DEVICE", "FS", "USAGE")
			for _, m := range mounts {
				usage := "-"
				if info, err := disk.GetSpace(ctx, m.Mountpoint); err == nil {
					usage = disk.UsageSummary(info)
				}
				fmt.Printf("%-28s %-20s %-8s %s\n", m.Mountpoint, m.Device, m.Fstype, usage)
			}
			return nil
		},
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Report which external tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			media, smart := tools()

			fmt.Printf("mediainfo:  %s\n", availability(media.Available(), cfg.MediaInfoPath))
			fmt.Printf("smartctl:   %s\n", availability(smart.Available(), cfg.SmartctlPath))
			if !media.Available() {
				fmt.Println("\nWithout mediainfo, audio files are read with the built-in tag reader and video files are stored unprobed.")
			}
			return nil
		},
	}
}

func availability(ok bool, path string) string {
	if ok {
		return "available (" + path + ")"
	}
	return "not found (" + path + ")"
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Validate configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := cfg.Validate(); err != nil {
					fmt.Printf("Configuration is INVALID: %v\n", err)
					return err
				}
				fmt.Println("Configuration is valid")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				fmt.Printf("# %s\n%s", configPath, data)
				return nil
			},
		},
	)
	return configCmd
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// confirm asks a yes/no question on stdin
func confirm(question string) bool {
	fmt.Printf("%s (yes/no): ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
