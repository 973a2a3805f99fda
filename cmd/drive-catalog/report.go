package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmenanno/drive-catalog/internal/disk"
	"github.com/mmenanno/drive-catalog/internal/stats"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [label]",
		Short: "Show catalog-wide or per-drive statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStats,
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	calc := stats.NewCalculator(db, shards)
	asJSON, _ := cmd.Flags().GetBool("json")

	if len(args) == 1 {
		ds, err := calc.Drive(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(ds)
		}

		fmt.Printf("\n=== Drive %s ===\n\n", ds.Drive.Label)
		fmt.Printf("Capacity:    %s (%s free)\n", disk.FormatBytes(ds.Drive.TotalBytes), disk.FormatBytes(ds.Drive.FreeBytes))
		if ds.Summary == nil {
			fmt.Println("Shard:       missing")
		} else {
			printSummary(ds.Summary)
		}
		if ds.LastJob != nil {
			fmt.Printf("Last job:    #%d %s (%s)\n", ds.LastJob.ID, ds.LastJob.Status, ds.LastJob.StartedAt.Local().Format(timeLayout))
		}
		fmt.Println()
		return nil
	}

	st, err := calc.Calculate(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(st)
	}

	fmt.Printf("\n=== Drive Catalog Statistics ===\n\n")
	fmt.Printf("Drives:            %d\n", len(st.Drives))
	fmt.Printf("Capacity:          %s (%s free)\n", disk.FormatBytes(st.CapacityBytes), disk.FormatBytes(st.FreeBytes))
	fmt.Printf("Total Files:       %d\n", st.TotalFiles)
	fmt.Printf("Total Size:        %s\n", disk.FormatBytes(st.TotalBytes))
	fmt.Printf("Failed Files:      %d\n", st.FailedFiles)
	fmt.Printf("Pending Files:     %d\n", st.PendingFiles)
	fmt.Printf("Hashed Files:      %d\n", st.HashedFiles)
	fmt.Printf("Duplicate Sets:    %d (%s reclaimable)\n", st.DuplicateSets, disk.FormatBytes(st.ReclaimableDup))

	if len(st.JobStatus) > 0 {
		fmt.Printf("\nJobs:\n")
		statuses := make([]string, 0, len(st.JobStatus))
		for s := range st.JobStatus {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Printf("  %-10s %d\n", s+":", st.JobStatus[s])
		}
	}

	if len(st.MissingShards) > 0 {
		fmt.Printf("\nDrives without a shard: %v\n", st.MissingShards)
	}
	fmt.Println()
	return nil
}

func newDupesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dupes",
		Short: "List files with identical BLAKE3 hashes across drives",
		Long: `Dupes groups hashed audio/video files by BLAKE3 digest across every shard.
Only files scanned with --hash take part.`,
		Args: cobra.NoArgs,
		RunE: runDupes,
	}
	cmd.Flags().StringP("label", "l", "", "Only sets with a copy on this drive")
	cmd.Flags().Int("min", 2, "Minimum copies per set")
	cmd.Flags().String("min-size", "", "Ignore files smaller than this (e.g. 100MB)")
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func runDupes(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	minCount, _ := cmd.Flags().GetInt("min")
	if minCount < 2 {
		minCount = 2
	}

	var minSize int64
	if v, _ := cmd.Flags().GetString("min-size"); v != "" {
		size, err := disk.ParseSize(v)
		if err != nil {
			return fmt.Errorf("invalid --min-size: %w", err)
		}
		minSize = size
	}

	sets, err := stats.NewCalculator(db, shards).Duplicates(cmd.Context(), minCount)
	if err != nil {
		return err
	}

	if label != "" || minSize > 0 {
		filtered := sets[:0]
		for _, set := range sets {
			if set.SizeBytes < minSize {
				continue
			}
			if label == "" {
				filtered = append(filtered, set)
				continue
			}
			for _, loc := range set.Locations {
				if loc.Label == label {
					filtered = append(filtered, set)
					break
				}
			}
		}
		sets = filtered
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(sets)
	}
	if len(sets) == 0 {
		fmt.Println("No duplicates found")
		return nil
	}

	var reclaimable int64
	for _, set := range sets {
		fmt.Printf("%s  %s x%d\n", set.Hash, disk.FormatBytes(set.SizeBytes), len(set.Locations))
		for _, loc := range set.Locations {
			fmt.Printf("    [%s] %s\n", loc.Label, loc.Path)
		}
		reclaimable += set.Reclaimable()
	}
	fmt.Printf("\n%d set(s), %s reclaimable\n", len(sets), disk.FormatBytes(reclaimable))
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the catalog database to a timestamped file",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().StringP("dest", "d", "", "Destination directory (default from export_dir)")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	dest, _ := cmd.Flags().GetString("dest")
	if dest == "" {
		dest = cfg.ExportDir
	}

	path, err := db.Export(cmd.Context(), dest, time.Now())
	if err != nil {
		return err
	}
	log.Info("catalog exported", "path", path)
	fmt.Println(path)
	return nil
}
