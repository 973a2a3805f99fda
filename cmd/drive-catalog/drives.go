package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmenanno/drive-catalog/internal/catalog"
	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/mmenanno/drive-catalog/internal/disk"
	"github.com/mmenanno/drive-catalog/internal/shard"
)

func newDrivesCmd() *cobra.Command {
	drivesCmd := &cobra.Command{
		Use:   "drives",
		Short: "Manage cataloged drives",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged drives",
		Args:  cobra.NoArgs,
		RunE:  runDrivesList,
	}
	listCmd.Flags().Bool("json", false, "Print as JSON")

	showCmd := &cobra.Command{
		Use:   "show <label>",
		Short: "Show one drive and its latest jobs",
		Args:  cobra.ExactArgs(1),
		RunE:  runDrivesShow,
	}

	editCmd := &cobra.Command{
		Use:   "edit <label>",
		Short: "Change a drive's type or notes",
		Args:  cobra.ExactArgs(1),
		RunE:  runDrivesEdit,
	}
	editCmd.Flags().StringP("type", "t", "", "New drive type")
	editCmd.Flags().StringP("notes", "n", "", "New notes (empty string clears them)")

	deleteCmd := &cobra.Command{
		Use:   "delete <label>",
		Short: "Remove a drive from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runDrivesDelete,
	}
	deleteCmd.Flags().Bool("shard", false, "Also delete the drive's shard database")
	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	drivesCmd.AddCommand(listCmd, showCmd, editCmd, deleteCmd)
	return drivesCmd
}

func runDrivesList(cmd *cobra.Command, args []string) error {
	drives, err := db.ListDrives(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(drives)
	}

	if len(drives) == 0 {
		fmt.Println("No drives cataloged yet. Run `drive-catalog scan <label> <mount-path>`.")
		return nil
	}

	fmt.Printf("%-20s %-14s %-24s %10s %10s  %s\n", "LABEL", "TYPE", "MOUNT", "TOTAL", "FREE", "LAST SCAN")
	for _, d := range drives {
		fmt.Printf("%-20s %-14s %-24s %10s %10s  %s\n",
			d.Label, orDash(d.DriveType), d.MountPath,
			disk.FormatBytes(d.TotalBytes), disk.FormatBytes(d.FreeBytes),
			formatTime(d.ScannedAt))
	}
	return nil
}

func runDrivesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := db.GetDrive(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Drive %s ===\n\n", d.Label)
	fmt.Printf("Type:        %s\n", orDash(d.DriveType))
	fmt.Printf("Notes:       %s\n", orDash(d.Notes))
	fmt.Printf("Mount path:  %s\n", d.MountPath)
	fmt.Printf("Capacity:    %s (%s free)\n", disk.FormatBytes(d.TotalBytes), disk.FormatBytes(d.FreeBytes))
	fmt.Printf("Serial:      %s\n", orDash(deref(d.Serial)))
	fmt.Printf("Model:       %s\n", orDash(deref(d.Model)))
	fmt.Printf("Last scan:   %s\n", formatTime(d.ScannedAt))
	fmt.Printf("Shard:       %s", shards.Path(d.Label))
	if !shards.Exists(d.Label) {
		fmt.Print(" (missing)")
	}
	fmt.Println()

	jobs, err := db.ListJobs(ctx, d.Label, 5)
	if err != nil {
		return err
	}
	if len(jobs) > 0 {
		fmt.Printf("\nRecent jobs:\n")
		printJobs(jobs)
	}
	fmt.Println()
	return nil
}

func runDrivesEdit(cmd *cobra.Command, args []string) error {
	var driveType, notes *string
	if cmd.Flags().Changed("type") {
		v, _ := cmd.Flags().GetString("type")
		v = strings.TrimSpace(v)
		driveType = &v
	}
	if cmd.Flags().Changed("notes") {
		v, _ := cmd.Flags().GetString("notes")
		notes = &v
	}
	if driveType == nil && notes == nil {
		return fmt.Errorf("nothing to change: pass --type and/or --notes")
	}

	if err := db.UpdateDriveMeta(cmd.Context(), args[0], driveType, notes); err != nil {
		return err
	}
	if driveType != nil && *driveType != "" {
		rememberDriveType(*driveType)
	}

	log.Info("drive updated", "label", args[0])
	return nil
}

func runDrivesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	label := args[0]
	withShard, _ := cmd.Flags().GetBool("shard")
	yes, _ := cmd.Flags().GetBool("yes")

	if _, err := db.GetDrive(ctx, label); err != nil {
		return err
	}
	if job, err := db.RunningJobForLabel(ctx, label); err != nil {
		return err
	} else if job != nil {
		return fmt.Errorf("%w: job #%d is still running", shard.ErrShardBusy, job.ID)
	}

	if !yes && !confirm(fmt.Sprintf("Remove drive %q from the catalog?", label)) {
		fmt.Println("Aborted")
		return nil
	}

	if withShard {
		if err := shards.Delete(ctx, label); err != nil && !errors.Is(err, shard.ErrShardNotFound) {
			return fmt.Errorf("failed to delete shard: %w", err)
		}
	}
	if err := db.DeleteDrive(ctx, label); err != nil {
		return err
	}

	log.Info("drive deleted", "label", label, "shard_deleted", withShard)
	return nil
}

func newShardCmd() *cobra.Command {
	shardCmd := &cobra.Command{
		Use:   "shard",
		Short: "Inspect and manage per-drive shard databases",
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <label>",
		Short: "Delete a drive's shard database, keeping the catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runShardDelete,
	}
	deleteCmd.Flags().Bool("force", false, "Delete even if the catalog shows a running job")
	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	failedCmd := &cobra.Command{
		Use:   "failed <label>",
		Short: "List files whose enrichment failed",
		Args:  cobra.ExactArgs(1),
		RunE:  runShardFailed,
	}
	failedCmd.Flags().Int("limit", constants.DefaultFailedListLimit, "Maximum rows to show")

	infoCmd := &cobra.Command{
		Use:   "info <label>",
		Short: "Summarize a drive's shard",
		Args:  cobra.ExactArgs(1),
		RunE:  runShardInfo,
	}

	shardCmd.AddCommand(deleteCmd, failedCmd, infoCmd)
	return shardCmd
}

func runShardDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	label := args[0]
	force, _ := cmd.Flags().GetBool("force")
	yes, _ := cmd.Flags().GetBool("yes")

	if !force {
		job, err := db.RunningJobForLabel(ctx, label)
		if err != nil {
			return err
		}
		if job != nil {
			return fmt.Errorf("%w: job #%d is still running (use --force if it crashed)", shard.ErrShardBusy, job.ID)
		}
	}

	if !yes && !confirm(fmt.Sprintf("Delete shard %s?", shards.Path(label))) {
		fmt.Println("Aborted")
		return nil
	}

	if err := shards.Delete(ctx, label); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", shards.Path(label))
	return nil
}

func runShardFailed(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := shards.OpenExisting(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.Failed(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No failed files")
		return nil
	}

	for _, r := range rows {
		fmt.Printf("%s\n    %s\n", r.Path, r.MediaJSON.String)
	}
	fmt.Printf("\n%d file(s) shown\n", len(rows))
	return nil
}

func runShardInfo(cmd *cobra.Command, args []string) error {
	store, err := shards.OpenExisting(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Summary(cmd.Context())
	if err != nil {
		return err
	}

	groups, err := store.DuplicateGroups(cmd.Context(), 2)
	if err != nil {
		return err
	}
	var reclaimable int64
	for _, g := range groups {
		reclaimable += int64(len(g.Paths)-1) * g.SizeBytes
	}

	fmt.Printf("\n=== Shard %s ===\n\n", store.Path())
	printSummary(sum)
	fmt.Printf("Duplicates:  %d set(s), %s reclaimable on this drive\n", len(groups), disk.FormatBytes(reclaimable))
	fmt.Println()
	return nil
}

func printSummary(sum *shard.Summary) {
	fmt.Printf("Files:       %d (%s)\n", sum.Rows, disk.FormatBytes(sum.TotalBytes))
	fmt.Printf("Non-AV:      %d\n", sum.Skipped)
	fmt.Printf("Enriched:    %d\n", sum.Enriched)
	fmt.Printf("Pending:     %d\n", sum.Pending)
	fmt.Printf("Failed:      %d\n", sum.Failed)
	fmt.Printf("Hashed:      %d\n", sum.Hashed)
}

func printJobs(jobs []*catalog.Job) {
	fmt.Printf("%6s %-16s %-9s %-20s %12s %14s  %s\n", "ID", "DRIVE", "STATUS", "STARTED", "FILES", "AV", "MESSAGE")
	for _, j := range jobs {
		fmt.Printf("%6d %-16s %-9s %-20s %12d %14s  %s\n",
			j.ID, j.DriveLabel, j.Status, j.StartedAt.Local().Format(timeLayout),
			j.TotalAll, fmt.Sprintf("%d/%d", j.DoneAV, j.TotalAV), j.Message)
	}
}
