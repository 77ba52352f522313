package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and cancel bulk jobs",
	RunE:  runJobList,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bulk jobs, newest first",
	RunE:  runJobList,
}

var jobGetCmd = &cobra.Command{
	Use:   "get [job-id]",
	Short: "Show a job's state and failures",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobGet,
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Request cooperative cancellation",
	Long: `Requests cancellation of a running or queued job. In-flight items
complete; queued items are skipped. Terminal jobs cannot be cancelled.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobCancel,
}

func init() {
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobGetCmd)
	jobCmd.AddCommand(jobCancelCmd)
	rootCmd.AddCommand(jobCmd)
}

func runJobList(cmd *cobra.Command, _ []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	jobs, err := jobService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}

	for i := range jobs {
		job := &jobs[i]
		cmd.Printf("  %s  %-8s %-10s %d/%d",
			job.ID, job.Kind, job.Status, job.Processed, job.Total)
		if len(job.FailedItems) > 0 {
			cmd.Printf(" (%d failed)", len(job.FailedItems))
		}
		cmd.Println()
	}

	cmd.Printf("\nTotal: %d jobs\n", len(jobs))
	return nil
}

func runJobGet(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	job, err := jobService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	cmd.Printf("Job: %s\n\n", job.ID)
	cmd.Printf("  Kind:      %s\n", job.Kind)
	cmd.Printf("  Status:    %s\n", job.Status)
	cmd.Printf("  Progress:  %d/%d\n", job.Processed, job.Total)
	cmd.Printf("  Created:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:   %s\n", job.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(job.FailedItems) > 0 {
		cmd.Println("\n  Failures:")
		for i := range job.FailedItems {
			cmd.Printf("    %s: %s\n", job.FailedItems[i].ItemID, job.FailedItems[i].Error)
		}
	}

	return nil
}

func runJobCancel(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	if err := jobService.Cancel(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	cmd.Printf("Cancellation requested for job %s.\n", args[0])
	return nil
}
