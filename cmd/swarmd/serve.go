package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"goa.design/swarmassistant/a2a"
	"goa.design/swarmassistant/capability"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr         string
		agentID      string
		agentName    string
		endpointURL  string
		capabilities []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "host the dispatcher and its agent-to-agent surface",
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

			if endpointURL == "" {
				endpointURL = "http://" + addr
			}
			card := a2a.NewCard(agentID, agentName, "0.1.0", capabilities, capability.Provider{Type: capability.ProviderAPI}, capability.BareCli, endpointURL)
			srv := a2a.NewServer(card, a.dispatcher, a.logger)

			fmt.Printf("swarmd serving %s on %s\n", agentID, addr)
			return http.ListenAndServe(addr, srv.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "HTTP listen address for the agent-to-agent surface")
	cmd.Flags().StringVar(&agentID, "agent-id", "swarmd", "this node's agentId, advertised in its agent card")
	cmd.Flags().StringVar(&agentName, "agent-name", "SwarmAssistant node", "human-readable name advertised in the agent card")
	cmd.Flags().StringVar(&endpointURL, "endpoint-url", "", "externally reachable endpoint advertised in the agent card (defaults to http://<addr>)")
	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "roles this node advertises (repeatable)")

	return cmd
}
