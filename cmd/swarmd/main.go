// Package main implements swarmd, the SwarmAssistant coordination node
// CLI: submit a one-shot task (run), host the actor-mesh dispatcher and
// its A2A surface (serve), or reconstruct an executed task's event
// timeline (replay). Grounded on the teacher's example/cmd/assistant and
// the pack's cmd/semspec cobra-root shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "swarmd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "swarmd",
		Short: "SwarmAssistant coordination node",
		Long:  "swarmd runs a GOAP-driven task coordination node for an AI-agent swarm: submit tasks, serve the agent-to-agent surface, or replay a task's event timeline.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the runtime config YAML (defaults baked in if omitted)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newReplayCmd(&configPath))
	return root
}
