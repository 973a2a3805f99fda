package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/mmenanno/drive-catalog/internal/stats"
)

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show scan job history",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runJobsList,
	}
	listCmd.Flags().StringP("label", "l", "", "Only jobs for this drive")
	listCmd.Flags().Int("limit", constants.DefaultJobsListLimit, "Maximum jobs to show")
	listCmd.Flags().Bool("json", false, "Print as JSON")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobsShow,
	}

	jobsCmd.AddCommand(listCmd, showCmd)
	return jobsCmd
}

func runJobsList(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	limit, _ := cmd.Flags().GetInt("limit")

	jobs, err := db.ListJobs(cmd.Context(), label, limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(jobs)
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs recorded")
		return nil
	}
	printJobs(jobs)
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid job id %q", args[0])
	}

	j, err := db.GetJob(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Job #%d ===\n\n", j.ID)
	fmt.Printf("Drive:       %s\n", j.DriveLabel)
	fmt.Printf("Run ID:      %s\n", j.RunID)
	fmt.Printf("Status:      %s\n", j.Status)
	fmt.Printf("Started:     %s\n", j.StartedAt.Local().Format(timeLayout))
	fmt.Printf("Finished:    %s\n", formatTime(j.FinishedAt))
	fmt.Printf("Heartbeat:   %s\n", formatTime(j.HeartbeatAt))
	if j.DurationSec != nil {
		fmt.Printf("Duration:    %s\n", stats.FormatDuration(time.Duration(*j.DurationSec*float64(time.Second))))
	}
	fmt.Printf("Files:       %d/%d\n", j.DoneAll, j.TotalAll)
	fmt.Printf("Audio/video: %d/%d\n", j.DoneAV, j.TotalAV)
	fmt.Printf("Message:     %s\n\n", j.Message)
	return nil
}
