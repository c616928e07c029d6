package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client submits tasks to, and fetches cards/health from, a peer agent's
// A2A endpoints. It is the outbound half of the contract Server serves
// (spec.md §6); the CapabilityRegistry resolves which endpoint a Client
// should target, this package performs the actual HTTP exchange.
type Client struct {
	httpClient *http.Client
}

// NewClient constructs a Client. A zero timeout falls back to 30s, wide
// enough for a peer's synchronous task-accept round trip without hanging
// forever on a dead peer.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// SubmitTask posts {title, description, runId?} to endpoint + /a2a/tasks
// and returns the taskId the peer assigned.
func (c *Client) SubmitTask(ctx context.Context, endpoint, title, description, runID string) (string, error) {
	body, err := json.Marshal(submitTaskRequest{Title: title, Description: description, RunID: runID})
	if err != nil {
		return "", fmt.Errorf("a2a: encode submit request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/a2a/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("a2a: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("a2a: submit task to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("a2a: peer %s rejected task submission with status %d", endpoint, resp.StatusCode)
	}

	var out submitTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("a2a: decode submit response: %w", err)
	}
	return out.TaskID, nil
}

// FetchCard retrieves the peer's discoverable agent card.
func (c *Client) FetchCard(ctx context.Context, endpoint string) (Card, error) {
	var card Card
	if err := c.getJSON(ctx, endpoint+"/.well-known/agent-card.json", &card); err != nil {
		return Card{}, err
	}
	return card, nil
}

// CheckHealth retrieves the peer's health snapshot.
func (c *Client) CheckHealth(ctx context.Context, endpoint string) (agentID string, capabilities []string, err error) {
	var h healthResponse
	if err := c.getJSON(ctx, endpoint+"/a2a/health", &h); err != nil {
		return "", nil, err
	}
	return h.AgentID, h.Capabilities, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("a2a: build request for %s: %w", url, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("a2a: request %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("a2a: %s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
