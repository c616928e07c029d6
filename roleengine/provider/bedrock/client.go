// Package bedrock implements roleengine.Provider against the AWS Bedrock
// Converse API. Grounded on the teacher's features/model/bedrock.Client
// (Converse request/response shape, text content blocks), simplified to
// roleengine's single prompt-in/text-out contract.
package bedrock

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"goa.design/swarmassistant/roleengine"
)

// Client implements roleengine.Provider via the Bedrock Converse API.
type Client struct {
	runtime          *bedrockruntime.Client
	defaultMaxTokens int
	probeModelID     string
}

// Options configures a Client.
type Options struct {
	DefaultMaxTokens int
	// ProbeModelID is used only by Probe's liveness check.
	ProbeModelID string
}

// New wraps a connected Bedrock runtime client.
func New(runtime *bedrockruntime.Client, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.ProbeModelID == "" {
		return nil, errors.New("bedrock: probe model id is required")
	}
	return &Client{runtime: runtime, defaultMaxTokens: opts.DefaultMaxTokens, probeModelID: opts.ProbeModelID}, nil
}

// Probe issues a minimal Converse call to confirm reachability.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	maxTok := int32(1)
	_, err := c.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.probeModelID),
		Messages:        []brtypes.Message{userMessage("ping")},
		InferenceConfig: &brtypes.InferenceConfiguration{MaxTokens: &maxTok},
	})
	return err == nil
}

// Execute sends prompt as a single user-role Converse message and
// concatenates every returned text content block.
func (c *Client) Execute(ctx context.Context, spec roleengine.ModelSpec, prompt string, opts roleengine.ModelOptions) (roleengine.ModelResponse, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(spec.ModelID),
		Messages: []brtypes.Message{userMessage(prompt)},
	}
	if maxTokens > 0 {
		mt := int32(maxTokens)
		input.InferenceConfig = &brtypes.InferenceConfiguration{MaxTokens: &mt}
	}

	start := time.Now()
	output, err := c.runtime.Converse(ctx, input)
	latency := time.Since(start)
	if err != nil {
		return roleengine.ModelResponse{}, err
	}

	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return roleengine.ModelResponse{}, errors.New("bedrock: response carries no message")
	}

	var text string
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok && t.Value != "" {
			if text != "" {
				text += "\n"
			}
			text += t.Value
		}
	}

	resp := roleengine.ModelResponse{Output: text, ModelID: spec.ModelID, Latency: latency}
	if output.Usage != nil {
		if output.Usage.InputTokens != nil {
			resp.Usage.InputTokens = uint64(*output.Usage.InputTokens)
		}
		if output.Usage.OutputTokens != nil {
			resp.Usage.OutputTokens = uint64(*output.Usage.OutputTokens)
		}
	}
	return resp, nil
}

func userMessage(text string) brtypes.Message {
	return brtypes.Message{
		Role:    brtypes.ConversationRoleUser,
		Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
	}
}
