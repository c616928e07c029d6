package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goa.design/swarmassistant/coordinator"
	"goa.design/swarmassistant/swarmtask"
)

const pollInterval = 200 * time.Millisecond

func newRunCmd(configPath *string) *cobra.Command {
	var (
		title       string
		description string
		runID       string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "submit a single task and wait for its terminal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			taskID := newTaskID()
			assigned := coordinator.TaskAssigned{TaskID: taskID, Title: title, Description: description, RunID: runID}
			if err := a.dispatcher.Submit(ctx, assigned); err != nil {
				return fmt.Errorf("submit task: %w", err)
			}

			snap, err := awaitTerminal(ctx, a.tasks, taskID)
			if err != nil {
				return err
			}

			if snap.Status == swarmtask.StatusBlocked {
				fmt.Printf("task %s blocked: %s\n", taskID, snap.Error)
				return fmt.Errorf("task blocked")
			}
			fmt.Printf("task %s done\n", taskID)
			if snap.Summary != "" {
				fmt.Println(snap.Summary)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&runID, "run-id", "", "group this task under an existing runId")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for a terminal status before giving up")
	cmd.MarkFlagRequired("title")

	return cmd
}

// awaitTerminal polls tasks for taskID's snapshot until it reaches Done or
// Blocked, or ctx is done. Polling (rather than a push channel) keeps
// this CLI-only code independent of the coordinator's internal inbox
// wiring.
func awaitTerminal(ctx context.Context, tasks *swarmtask.Registry, taskID string) (swarmtask.Snapshot, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		snap, err := tasks.Get(taskID)
		if err == nil && (snap.Status == swarmtask.StatusDone || snap.Status == swarmtask.StatusBlocked) {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return swarmtask.Snapshot{}, fmt.Errorf("waiting for task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		}
	}
}
