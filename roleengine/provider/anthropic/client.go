// Package anthropic implements roleengine.Provider against the Anthropic
// Claude Messages API, simplified from the teacher's
// features/model/anthropic.Client (which also translates tool calls,
// thinking streams, and multi-turn conversations) down to roleengine's
// single prompt-in/text-out contract (spec.md §6): one user message in,
// every text content block joined with "\n" out.
package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"goa.design/swarmassistant/roleengine"
)

const defaultThinkingBudget = 2048

// probeModel is a small, inexpensive model identifier used only for the
// Probe liveness check, independent of whichever model callers pass to
// Execute.
const probeModel = "claude-3-5-haiku-latest"

// Client implements roleengine.Provider on top of the Anthropic Messages
// API.
type Client struct {
	msg            *sdk.MessageService
	defaultMaxTok  int
	thinkingBudget int64
}

// Options configures a Client.
type Options struct {
	// DefaultMaxTokens is used when ModelOptions.MaxTokens is zero.
	DefaultMaxTokens int
	// ThinkingBudget is the token budget used when ModelOptions.Reasoning
	// is set (default 2048).
	ThinkingBudget int64
}

// New constructs a Client from an API key (spec.md §6: `x-api-key` and
// `anthropic-version: 2023-06-01` headers, handled by the SDK's default
// client options).
func New(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	budget := opts.ThinkingBudget
	if budget <= 0 {
		budget = defaultThinkingBudget
	}
	return &Client{msg: &ac.Messages, defaultMaxTok: opts.DefaultMaxTokens, thinkingBudget: budget}, nil
}

// Probe issues a minimal request to confirm the provider is reachable and
// authenticated.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.msg.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(probeModel),
		MaxTokens: 1,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock("ping"))},
	})
	return err == nil
}

// Execute sends prompt as a single user message and returns every text
// content block joined with "\n".
func (c *Client) Execute(ctx context.Context, spec roleengine.ModelSpec, prompt string, opts roleengine.ModelOptions) (roleengine.ModelResponse, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTok
	}
	if maxTokens <= 0 {
		return roleengine.ModelResponse{}, errors.New("anthropic: max_tokens must be positive")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(spec.ModelID),
		MaxTokens: int64(maxTokens),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	}
	if opts.Reasoning {
		budget := c.thinkingBudget
		if budget >= int64(maxTokens) {
			budget = int64(maxTokens) / 2
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
	}

	start := time.Now()
	msg, err := c.msg.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return roleengine.ModelResponse{}, err
	}

	var texts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
		}
	}

	return roleengine.ModelResponse{
		Output:  strings.Join(texts, "\n"),
		ModelID: string(msg.Model),
		Usage: roleengine.Usage{
			InputTokens:      uint64(msg.Usage.InputTokens),
			OutputTokens:     uint64(msg.Usage.OutputTokens),
			CacheReadTokens:  uint64(msg.Usage.CacheReadInputTokens),
			CacheWriteTokens: uint64(msg.Usage.CacheCreationInputTokens),
		},
		Latency: latency,
	}, nil
}
