// Package openai implements roleengine.Provider against an
// OpenAI-compatible Chat Completions endpoint. Grounded on the pack's
// 2389-research-mammoth/llm/openai_compat.go (github.com/openai/openai-go
// Chat.Completions.New, custom base URL support for OpenAI-compatible
// providers), simplified to roleengine's single prompt-in/text-out
// contract: `choices[0].message.content`, reading
// `usage.prompt_tokens_details.cached_tokens` when present (spec.md §6).
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"goa.design/swarmassistant/roleengine"
)

// Client implements roleengine.Provider via Chat Completions.
type Client struct {
	client           openai.Client
	defaultMaxTokens int
	probeModel       string
}

// Options configures a Client.
type Options struct {
	BaseURL          string // empty uses the default OpenAI endpoint
	DefaultMaxTokens int
	ProbeModel       string
}

const defaultProbeModel = "gpt-4o-mini"

// New constructs a Client. apiKey is sent as the standard OpenAI bearer
// token; BaseURL lets callers target OpenAI-compatible providers
// (Cerebras, OpenRouter, Azure OpenAI, etc.).
func New(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	probeModel := opts.ProbeModel
	if probeModel == "" {
		probeModel = defaultProbeModel
	}
	return &Client{
		client:           openai.NewClient(reqOpts...),
		defaultMaxTokens: opts.DefaultMaxTokens,
		probeModel:       probeModel,
	}, nil
}

// Probe issues a minimal chat completion to confirm reachability and
// authentication.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.probeModel,
		MaxCompletionTokens: openai.Int(1),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
	})
	return err == nil
}

// Execute sends prompt as a single user message and returns
// choices[0].message.content.
func (c *Client) Execute(ctx context.Context, spec roleengine.ModelSpec, prompt string, opts roleengine.ModelOptions) (roleengine.ModelResponse, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:    spec.ModelID,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return roleengine.ModelResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return roleengine.ModelResponse{}, errors.New("openai: empty choices in response")
	}

	var cacheRead uint64
	if resp.Usage.PromptTokensDetails.CachedTokens > 0 {
		cacheRead = uint64(resp.Usage.PromptTokensDetails.CachedTokens)
	}

	return roleengine.ModelResponse{
		Output:  resp.Choices[0].Message.Content,
		ModelID: resp.Model,
		Usage: roleengine.Usage{
			InputTokens:     uint64(resp.Usage.PromptTokens),
			OutputTokens:    uint64(resp.Usage.CompletionTokens),
			CacheReadTokens: cacheRead,
		},
		Latency: latency,
	}, nil
}
