package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/swarmassistant/eventlog"
	"goa.design/swarmassistant/eventlog/mongostore"
)

// newReplayCmd reconstructs a task or run's event timeline from a durable
// EventRepository and prints it in sequence order, the debugging
// counterpart to running the coordination mesh live. Grounded on the
// teacher's cmd/regolden and cmd/regolden-deep, which are themselves
// cmd-only reconstruction tools rather than library packages; the actual
// reconstruction logic here is eventlog's own ListByTask/ListByRun paging
// contract, since regolden's codegen-golden-file diffing has no
// equivalent in this domain.
func newReplayCmd(_ *string) *cobra.Command {
	var (
		taskID   string
		runID    string
		mongoURI string
		database string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "reconstruct a task or run's event timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" && runID == "" {
				return fmt.Errorf("replay: one of --task-id or --run-id is required")
			}

			ctx := cmd.Context()
			repo, closeRepo, err := openReplayRepository(ctx, mongoURI, database)
			if err != nil {
				return err
			}
			defer closeRepo()

			var events []eventlog.Event
			if taskID != "" {
				events, err = repo.ListByTask(ctx, taskID, 0, limit)
			} else {
				events, err = repo.ListByRun(ctx, runID, 0, limit)
			}
			if err != nil {
				return fmt.Errorf("replay: list events: %w", err)
			}

			for _, e := range events {
				fmt.Printf("[%d] %s task=%s run=%s %s\n", e.TaskSequence, e.OccurredAt.Format("15:04:05.000"), e.TaskID, e.RunID, e.EventType)
				if e.Payload != "" {
					fmt.Printf("    %s\n", e.Payload)
				}
			}
			if len(events) == 0 {
				fmt.Println("replay: no events found")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "replay the timeline for a single task")
	cmd.Flags().StringVar(&runID, "run-id", "", "replay the timeline for every task in a run")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI backing the event log (omit to replay against an empty in-memory log)")
	cmd.Flags().StringVar(&database, "mongo-database", "swarmassistant", "MongoDB database name holding the event collection")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of events to print")

	return cmd
}

func openReplayRepository(ctx context.Context, mongoURI, database string) (eventlog.Repository, func(), error) {
	if mongoURI == "" {
		// No durable store configured: useful only for smoke-testing the
		// command itself, since a fresh in-memory log is always empty.
		return eventlog.NewMemoryRepository(), func() {}, nil
	}

	client, err := mongodriver.Connect(options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("replay: connect to %s: %w", mongoURI, err)
	}

	store, err := mongostore.NewStore(ctx, mongostore.Options{Client: client, Database: database})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("replay: open store: %w", err)
	}

	return store, func() { _ = client.Disconnect(ctx) }, nil
}
