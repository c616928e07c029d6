// Package a2a implements the agent-to-agent surface (spec.md §6): the
// discoverable agent card, peer task submission, and health contract
// that let one swarm node hand work to another. Grounded on the
// teacher's runtime/a2a (AgentCard shape, Server method set), narrowed
// from the full A2A protocol's tasks/send+sendSubscribe+JSON-RPC surface
// to the three plain-HTTP endpoints spec.md §6 names.
package a2a

import "goa.design/swarmassistant/capability"

// Protocol is the fixed protocol identifier every agent card advertises.
const Protocol = "a2a"

// Card is the discoverable JSON document served at
// /.well-known/agent-card.json (spec.md §6 "Agent card").
type Card struct {
	AgentID      string                  `json:"agentId"`
	Name         string                  `json:"name"`
	Version      string                  `json:"version"`
	Protocol     string                  `json:"protocol"`
	Capabilities []string                `json:"capabilities"`
	Provider     capability.Provider     `json:"provider"`
	SandboxLevel capability.SandboxLevel `json:"sandboxLevel"`
	EndpointURL  string                  `json:"endpointUrl"`
}

// NewCard builds the agent card for a locally hosted agent.
func NewCard(agentID, name, version string, capabilities []string, provider capability.Provider, sandbox capability.SandboxLevel, endpointURL string) Card {
	return Card{
		AgentID:      agentID,
		Name:         name,
		Version:      version,
		Protocol:     Protocol,
		Capabilities: capabilities,
		Provider:     provider,
		SandboxLevel: sandbox,
		EndpointURL:  endpointURL,
	}
}
