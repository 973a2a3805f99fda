package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/mmenanno/drive-catalog/internal/disk"
	"github.com/mmenanno/drive-catalog/internal/presets"
	"github.com/mmenanno/drive-catalog/internal/probe"
	"github.com/mmenanno/drive-catalog/internal/scanner"
	"github.com/mmenanno/drive-catalog/internal/stats"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <label> <mount-path>",
		Short: "Scan a drive into its shard and record a job",
		Long: `Scan enumerates every file under the mount path, then enriches audio and
video files with MediaInfo. A bare drive letter such as "E:" is scanned as
the drive root "E:\".

While the scan runs, type p, r or s followed by Enter to pause, resume or
stop, and ? for a status line with percent done and ETA. Ctrl+C stops cooperatively; a second Ctrl+C aborts in-flight probes.`,
		Args: cobra.ExactArgs(2),
		RunE: runScan,
	}
	cmd.Flags().StringP("type", "t", "", "Drive type (e.g. \"HDD 3.5\"); kept from the last scan when empty")
	cmd.Flags().StringP("notes", "n", "", "Free-text notes; kept from the last scan when empty")
	cmd.Flags().Bool("hash", false, "Compute BLAKE3 hashes of audio/video files (default from hash_enabled)")
	cmd.Flags().IntP("workers", "w", 0, "Enrichment workers (default from config)")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	cmd.Flags().Bool("json-progress", false, "Write progress snapshots to stderr as JSON lines instead of a bar")
	cmd.Flags().Bool("no-stdin", false, "Do not read pause/resume/stop commands from stdin")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	driveType, _ := cmd.Flags().GetString("type")
	notes, _ := cmd.Flags().GetString("notes")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	jsonProgress, _ := cmd.Flags().GetBool("json-progress")
	noStdin, _ := cmd.Flags().GetBool("no-stdin")

	hash := cfg.HashEnabled
	if cmd.Flags().Changed("hash") {
		hash, _ = cmd.Flags().GetBool("hash")
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}

	media, smart := tools()

	var bar *progressbar.ProgressBar
	var onProgress func(scanner.ProgressSnapshot)
	switch {
	case jsonProgress:
		onProgress = func(snap scanner.ProgressSnapshot) { writeProgressJSON(os.Stderr, snap) }
	case !noProgress:
		bar = newScanBar()
		onProgress = func(snap scanner.ProgressSnapshot) { updateBar(bar, snap) }
	}

	s := scanner.NewScanner(cfg, db, shards, scanner.Options{
		Media:      media,
		Tags:       probe.TagProber{},
		Smart:      smart,
		Logger:     log,
		OnProgress: onProgress,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Info("received interrupt, stopping scan (press Ctrl+C again to abort)")
		s.Stop()

		select {
		case <-sigChan:
			log.Warn("second interrupt, aborting")
			cancel()
		case <-ctx.Done():
		}
	}()

	if !noStdin {
		go readControls(os.Stdin, s)
	}

	req := scanner.Request{
		Label:     args[0],
		MountPath: args[1],
		DriveType: driveType,
		Notes:     notes,
		Hash:      hash,
	}
	res, err := s.Scan(ctx, req)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if driveType != "" {
		rememberDriveType(driveType)
	}

	if res == nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printResult(res)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// readControls maps stdin lines to scanner controls until EOF
func readControls(r io.Reader, s *scanner.Scanner) {
	lines := bufio.NewScanner(r)
	for lines.Scan() {
		switch strings.ToLower(strings.TrimSpace(lines.Text())) {
		case "p", "pause":
			if s.Pause() {
				fmt.Fprintln(os.Stderr, "paused; r to resume, s to stop")
			}
		case "r", "resume":
			if s.Resume() {
				fmt.Fprintln(os.Stderr, "resumed")
			}
		case "s", "stop":
			if s.Stop() {
				fmt.Fprintln(os.Stderr, "stopping after in-flight files")
			}
		case "?", "status":
			if snap := s.GetProgress(); snap != nil {
				fmt.Fprintln(os.Stderr, statusLine(*snap))
			}
		}
	}
}

// statusLine renders a snapshot for the ? control
func statusLine(snap scanner.ProgressSnapshot) string {
	line := fmt.Sprintf("%s: %d files, %d/%d audio/video, %d failed, elapsed %s",
		snap.Phase, snap.TotalAll, snap.DoneAV, snap.TotalAV, snap.Failed, stats.FormatDuration(snap.Elapsed))
	if !snap.Enumerated {
		return line
	}
	line += fmt.Sprintf(", %.1f%%", snap.PercentComplete)
	if snap.ETA > 0 {
		line += ", ETA " + stats.FormatDuration(snap.ETA)
	}
	return line
}

func writeProgressJSON(w io.Writer, snap scanner.ProgressSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Warn("failed to encode progress", "error", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

func newScanBar() *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("enumerating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func updateBar(bar *progressbar.ProgressBar, snap scanner.ProgressSnapshot) {
	desc := string(snap.Phase)
	if snap.Paused {
		desc += " (paused)"
	}

	if !snap.Enumerated {
		bar.Describe(fmt.Sprintf("%s %s", desc, disk.FormatBytes(snap.Bytes)))
		_ = bar.Set64(snap.TotalAll)
		return
	}

	if bar.GetMax64() != snap.TotalAV {
		bar.ChangeMax64(snap.TotalAV)
	}
	bar.Describe(fmt.Sprintf("%s (%d failed)", desc, snap.Failed))
	_ = bar.Set64(snap.DoneAV)
}

func rememberDriveType(driveType string) {
	store, err := presets.Load(cfg.PresetsPath)
	if err != nil {
		log.Warn("failed to load drive type presets", "error", err)
		return
	}
	added, err := store.Add(driveType)
	if err != nil || !added {
		return
	}
	if err := store.Save(); err != nil {
		log.Warn("failed to save drive type presets", "error", err)
	}
}

func printResult(res *scanner.Result) {
	fmt.Printf("\n=== Scan %s: %s ===\n\n", res.Label, res.Status)
	fmt.Printf("Job:            #%d\n", res.JobID)
	fmt.Printf("Mount path:     %s\n", res.MountPath)
	fmt.Printf("Files:          %d\n", res.Counts.TotalAll)
	fmt.Printf("Audio/video:    %d of %d enriched\n", res.Counts.DoneAV, res.Counts.TotalAV)
	fmt.Printf("Failed:         %d\n", res.Failed)
	if res.Pruned > 0 {
		fmt.Printf("Removed rows:   %d (files no longer on the drive)\n", res.Pruned)
	}
	fmt.Printf("Duration:       %s\n", stats.FormatDuration(res.Duration))
	fmt.Printf("Message:        %s\n", res.Message)
	if res.Warning != "" {
		fmt.Printf("WARNING:        %s\n", res.Warning)
	}
	if res.Status == constants.JobCanceled {
		fmt.Println("\nRun the same scan again to finish the remaining files.")
	}
	fmt.Println()
}
