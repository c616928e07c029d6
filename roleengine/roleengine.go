// Package roleengine implements RoleEngine: a single role invocation is
// resolved to a model provider or CLI adapter, a prompt is assembled, the
// adapter/provider is invoked, and the response is normalised (spec.md
// §4.4). Provider dispatch by ModelSpec.Provider prefix mirrors the
// teacher's per-backend model.Client split (features/model/anthropic,
// openai, bedrock); CLI process invocation is grounded on
// features/mcp/runtime/stdiocaller.go's exec.CommandContext usage.
package roleengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goa.design/swarmassistant/swarmrole"
	"goa.design/swarmassistant/telemetry"
)

// ExecutionMode selects RoleEngine.Execute's dispatch strategy.
type ExecutionMode string

const (
	ModeAPIDirect               ExecutionMode = "api-direct"
	ModeSubscriptionCLIFallback ExecutionMode = "subscription-cli-fallback"
	ModeHybrid                  ExecutionMode = "hybrid"
)

// Usage reports token accounting for a single provider call.
type Usage struct {
	InputTokens      uint64
	OutputTokens     uint64
	CacheReadTokens  uint64
	CacheWriteTokens uint64
}

// ModelResponse is a model provider's normalised reply.
type ModelResponse struct {
	Output  string
	ModelID string
	Usage   Usage
	Latency time.Duration
}

// ModelOptions carries the per-call tunables a provider honours.
type ModelOptions struct {
	Reasoning bool
	MaxTokens int
}

// ModelSpec names a model within a provider's catalogue.
type ModelSpec struct {
	Provider string // prefix, e.g. "anthropic", "openai", "bedrock"
	ModelID  string
}

// Provider is the model-provider contract (spec.md §6).
type Provider interface {
	Probe(ctx context.Context) bool
	Execute(ctx context.Context, spec ModelSpec, prompt string, opts ModelOptions) (ModelResponse, error)
}

// ExecuteRoleTask is the input to RoleEngine.Execute.
type ExecuteRoleTask struct {
	TaskID      string
	Role        swarmrole.Role
	Title       string
	Description string
	// PriorPlan carries the implementation plan forward for Builder and
	// Reviewer invocations.
	PriorPlan string
	// StrategyAdvice is optional historical-learning guidance.
	StrategyAdvice string
	// CodeContext is optional code-context chunks, already rendered.
	CodeContext string
	// ProjectContext is optional project-context text.
	ProjectContext string
	// Skills are candidate skill bodies; Builder, Reviewer, Planner
	// honour these, other roles ignore them.
	Skills []Skill
	// GoapAnalysis is a pre-serialized GOAP plan/dead-end summary, used
	// only for the Orchestrator's distinct prompt shape.
	GoapAnalysis string
	// BlackboardDigest is a pre-rendered compact snapshot of relevant
	// blackboard facts, used only for the Orchestrator's prompt.
	BlackboardDigest string
	// SessionContext is an optional pre-rendered transcript of prior role
	// outputs across this run, carrying conversational continuity forward
	// for the Orchestrator and Planner.
	SessionContext string
	// IdempotencyKey, when set, dedups repeated Execute calls: a second
	// call with the same key returns the first call's successful result
	// instead of re-invoking a provider or CLI adapter.
	IdempotencyKey string
	Reasoning      bool
	MaxTokens      int
}

// Skill is a matched skill candidate considered for prompt inclusion.
type Skill struct {
	Name string
	Body string
}

// RoleResult is RoleEngine.Execute's successful outcome.
type RoleResult struct {
	Output    string
	AdapterID string
	Model     string
	Reasoning bool
	Latency   time.Duration
	Usage     Usage
}

// ErrNoModelProvider is returned by api-direct mode when the role-to-model
// mapping is empty or the resolved provider is not registered.
var ErrNoModelProvider = errors.New("roleengine: no model provider registered")

// ErrNoCLIAdapterSucceeded is returned by subscription-cli-fallback mode
// when every configured adapter fails, including when none are
// configured.
var ErrNoCLIAdapterSucceeded = errors.New("roleengine: no CLI adapter succeeded")

// Options configures a RoleEngine.
type Options struct {
	Mode ExecutionMode

	// RoleModels maps a role to the ModelSpec used in api-direct mode.
	RoleModels map[swarmrole.Role]ModelSpec
	// Providers maps a ModelSpec.Provider prefix to its Provider client.
	Providers map[string]Provider

	// CliAdapterOrder is the ordered list of adapter identifiers tried by
	// subscription-cli-fallback mode.
	CliAdapterOrder []string
	// Adapters maps an adapter id to its Adapter descriptor.
	Adapters map[string]Adapter
	// Sandbox wraps adapter commands per config.SandboxMode.
	Sandbox Sandbox

	SkillByteBudget int
	Logger          telemetry.Logger

	// OnAdapterDiagnostic, when set, is called once per failed adapter probe
	// or execution during subscription-cli-fallback iteration (spec.md §4.7
	// diagnostic.adapter), so a caller can record the per-adapter signal
	// without RoleEngine depending on eventlog directly.
	OnAdapterDiagnostic func(ctx context.Context, adapterID string, message string)
}

// RoleEngine executes a single role invocation end to end: prompt
// assembly, provider/adapter dispatch, output normalisation.
type RoleEngine struct {
	opts        Options
	idempotency *idempotencyCache
}

// New constructs a RoleEngine.
func New(opts Options) *RoleEngine {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.SkillByteBudget <= 0 {
		opts.SkillByteBudget = DefaultSkillByteBudget
	}
	return &RoleEngine{opts: opts, idempotency: newIdempotencyCache()}
}

// Execute resolves task per the engine's configured mode and returns a
// RoleResult. ctx cancellation aborts an in-flight adapter probe or
// execution (spec.md §5, "fully cancellable"). When task.IdempotencyKey
// is set and a prior call with the same key already succeeded, the cached
// RoleResult is returned without re-invoking a provider or CLI adapter,
// so an at-least-once delivery retry from the Dispatcher never repeats a
// side effect.
func (e *RoleEngine) Execute(ctx context.Context, task ExecuteRoleTask) (RoleResult, error) {
	if cached, ok := e.idempotency.get(task.IdempotencyKey); ok {
		return cached, nil
	}

	result, err := e.execute(ctx, task)
	if err == nil {
		e.idempotency.put(task.IdempotencyKey, result)
	}
	return result, err
}

func (e *RoleEngine) execute(ctx context.Context, task ExecuteRoleTask) (RoleResult, error) {
	prompt := BuildPrompt(task, e.opts.SkillByteBudget)

	switch e.opts.Mode {
	case ModeAPIDirect:
		return e.executeAPIDirect(ctx, task, prompt)
	case ModeSubscriptionCLIFallback:
		return e.executeCLIFallback(ctx, task, prompt)
	case ModeHybrid, "":
		result, err := e.executeAPIDirect(ctx, task, prompt)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrNoModelProvider) {
			return RoleResult{}, err
		}
		return e.executeCLIFallback(ctx, task, prompt)
	default:
		return RoleResult{}, fmt.Errorf("roleengine: unknown execution mode %q", e.opts.Mode)
	}
}

func (e *RoleEngine) executeAPIDirect(ctx context.Context, task ExecuteRoleTask, prompt string) (RoleResult, error) {
	spec, ok := e.opts.RoleModels[task.Role]
	if !ok {
		return RoleResult{}, ErrNoModelProvider
	}
	provider, ok := e.opts.Providers[spec.Provider]
	if !ok {
		return RoleResult{}, ErrNoModelProvider
	}

	maxTokens := task.MaxTokens
	resp, err := provider.Execute(ctx, spec, prompt, ModelOptions{Reasoning: task.Reasoning, MaxTokens: maxTokens})
	if err != nil {
		return RoleResult{}, fmt.Errorf("roleengine: api-direct %s: %w", spec.Provider, err)
	}
	return RoleResult{
		Output:    resp.Output,
		AdapterID: spec.Provider,
		Model:     resp.ModelID,
		Reasoning: task.Reasoning,
		Latency:   resp.Latency,
		Usage:     resp.Usage,
	}, nil
}

func (e *RoleEngine) executeCLIFallback(ctx context.Context, task ExecuteRoleTask, prompt string) (RoleResult, error) {
	for _, id := range e.opts.CliAdapterOrder {
		adapter, ok := e.opts.Adapters[id]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return RoleResult{}, err
		}

		start := time.Now()
		if !adapter.Probe(ctx, e.opts.Sandbox) {
			e.opts.Logger.Warn(ctx, "roleengine: adapter probe failed", "adapterId", id)
			e.reportAdapterDiagnostic(ctx, id, "probe failed")
			continue
		}
		output, err := adapter.Execute(ctx, e.opts.Sandbox, prompt)
		latency := time.Since(start)
		if err != nil {
			e.opts.Logger.Warn(ctx, "roleengine: adapter execution failed", "adapterId", id, "err", err.Error())
			e.reportAdapterDiagnostic(ctx, id, err.Error())
			continue
		}
		return RoleResult{
			Output:    NormalizeOutput(output),
			AdapterID: id,
			Latency:   latency,
		}, nil
	}
	return RoleResult{}, ErrNoCLIAdapterSucceeded
}

func (e *RoleEngine) reportAdapterDiagnostic(ctx context.Context, adapterID, message string) {
	if e.opts.OnAdapterDiagnostic != nil {
		e.opts.OnAdapterDiagnostic(ctx, adapterID, message)
	}
}
