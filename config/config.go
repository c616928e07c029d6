// Package config loads RuntimeConfig for a SwarmAssistant deployment from
// a YAML document plus .env overlay, and optionally hot-reloads a subset
// of tunables (CliAdapterOrder, circuit-breaker thresholds) on file
// change. Logging plumbing and the TUI configuration surface are out of
// scope per spec.md §1; this package only owns the coordination core's
// own tunables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SandboxMode enumerates how a CLI adapter's command is wrapped before
// execution (spec.md §6).
type SandboxMode string

const (
	SandboxHost           SandboxMode = "host"
	SandboxOSSandboxed    SandboxMode = "os-sandboxed"
	SandboxDocker         SandboxMode = "docker"
	SandboxAppleContainer SandboxMode = "apple-container"
)

// Valid reports whether m is one of the recognised sandbox modes.
func (m SandboxMode) Valid() bool {
	switch m {
	case SandboxHost, SandboxOSSandboxed, SandboxDocker, SandboxAppleContainer:
		return true
	default:
		return false
	}
}

// WrapperSpec describes the command used to wrap a sandboxed adapter
// invocation; {{command}}/{{args_joined}} placeholders are substituted by
// roleengine/sandbox.go.
type WrapperSpec struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// RuntimeConfig is the root configuration document for a SwarmAssistant
// deployment. Fields map 1:1 onto the tunables named across spec.md §4-§5.
type RuntimeConfig struct {
	// CliAdapterOrder is the ordered list of CLI adapter identifiers tried
	// by the subscription-cli-fallback RoleEngine mode.
	CliAdapterOrder []string `yaml:"cli_adapter_order"`

	// ExecutionMode selects RoleEngine.execute's strategy: api-direct,
	// subscription-cli-fallback, or hybrid.
	ExecutionMode string `yaml:"execution_mode"`

	// WorkerPoolSize and ReviewerPoolSize default to 2 and 1 (spec.md §5).
	WorkerPoolSize   int `yaml:"worker_pool_size"`
	ReviewerPoolSize int `yaml:"reviewer_pool_size"`

	// MaxCliConcurrency is loaded and defaulted (4), but no component in
	// this module reads it: adapter processes are not capped by it.
	MaxCliConcurrency int `yaml:"max_cli_concurrency"`

	// MaxRetriesPerTask bounds Supervisor retry classification (default 3).
	MaxRetriesPerTask int `yaml:"max_retries_per_task"`

	// AdapterCircuitThreshold is the rolling failure count that opens an
	// adapter's circuit breaker (default 3).
	AdapterCircuitThreshold int `yaml:"adapter_circuit_threshold"`

	// AdapterCircuitCooldown is how long an open circuit excludes an
	// adapter from selection before a retry is allowed to close it.
	AdapterCircuitCooldown time.Duration `yaml:"adapter_circuit_cooldown"`

	// MaxSubTaskDepth bounds sub-task recursion (capped in the single
	// digits per spec.md §4.2).
	MaxSubTaskDepth int `yaml:"max_subtask_depth"`

	// SandboxMode selects how adapter commands are wrapped.
	SandboxMode SandboxMode `yaml:"sandbox_mode"`
	// SandboxWrapper is required when SandboxMode is docker or
	// apple-container.
	SandboxWrapper *WrapperSpec `yaml:"sandbox_wrapper,omitempty"`
	// SandboxAllowedHosts is consulted for os-sandboxed mode.
	SandboxAllowedHosts []string `yaml:"sandbox_allowed_hosts,omitempty"`
	// AgentToAgentNetworking enables host-gateway mapping for container
	// sandboxes that need to reach sibling agents.
	AgentToAgentNetworking bool `yaml:"agent_to_agent_networking"`

	// AgentHeartbeatIntervalSeconds bounds CapabilityRegistry pruning: an
	// agent missing 3 consecutive heartbeats is pruned.
	AgentHeartbeatIntervalSeconds int `yaml:"agent_heartbeat_interval_seconds"`

	// SkillByteBudget bounds total skill-body bytes included in a prompt
	// (default 4000, headers excepted).
	SkillByteBudget int `yaml:"skill_byte_budget"`

	// SessionTranscriptByteBudget bounds the rendered session transcript
	// included in an Orchestrator/Planner prompt (default 2000).
	SessionTranscriptByteBudget int `yaml:"session_transcript_byte_budget"`

	// BlackboardPreviewRunes bounds a role's output as written to the
	// blackboard's "<role>.output" fact (default 140, matching the
	// teacher's UI preview length). Builder/Reviewer still see a role's
	// full output via PriorPlan/session history; only the blackboard
	// digest the Orchestrator rereads on every Rework iteration is
	// clamped, so a long rework loop doesn't re-consume every prior
	// attempt's full transcript.
	BlackboardPreviewRunes int `yaml:"blackboard_preview_runes"`

	// ModelProviders maps a model provider prefix (e.g. "anthropic",
	// "openai", "bedrock") to its connection settings.
	ModelProviders map[string]ModelProviderConfig `yaml:"model_providers"`
}

// ModelProviderConfig configures a single api-direct model provider.
type ModelProviderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Region    string `yaml:"region,omitempty"`
}

// Default returns a RuntimeConfig with every documented default applied
// (spec.md §5's pool sizes, §4.5's retry/circuit defaults, §4.4's skill
// byte budget).
func Default() RuntimeConfig {
	return RuntimeConfig{
		ExecutionMode:                 "hybrid",
		WorkerPoolSize:                2,
		ReviewerPoolSize:              1,
		MaxCliConcurrency:             4,
		MaxRetriesPerTask:             3,
		AdapterCircuitThreshold:       3,
		AdapterCircuitCooldown:        2 * time.Minute,
		MaxSubTaskDepth:               5,
		SandboxMode:                   SandboxHost,
		AgentHeartbeatIntervalSeconds: 30,
		SkillByteBudget:               4000,
		SessionTranscriptByteBudget:   2000,
		BlackboardPreviewRunes:        140,
	}
}

// Load reads a YAML document from path, applying Default() for any
// zero-valued field the document doesn't set, then overlays process
// environment variables loaded from a .env file in the working directory
// (if present).
// Returns a configuration fault (spec.md §7g) for an unknown sandbox mode;
// such faults are fatal at startup only.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	_ = godotenv.Overload() // best-effort; absence of .env is not an error

	if !cfg.SandboxMode.Valid() {
		return cfg, fmt.Errorf("config: unknown sandbox mode %q", cfg.SandboxMode)
	}
	if (cfg.SandboxMode == SandboxDocker || cfg.SandboxMode == SandboxAppleContainer) && cfg.SandboxWrapper == nil {
		return cfg, errors.New("config: docker/apple-container sandbox mode requires sandbox_wrapper")
	}
	return cfg, nil
}

// Watcher hot-reloads the subset of RuntimeConfig that is safe to change
// without a restart: CliAdapterOrder and the circuit-breaker thresholds.
// Grounded on fsnotify usage in the wider example pack's file-watching
// config loaders.
type Watcher struct {
	mu      sync.RWMutex
	path    string
	current RuntimeConfig
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching path for changes, applying Load on every
// write event. The initial configuration is loaded synchronously.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: start watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{path: path, current: cfg, watcher: fsw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

// Current returns the configuration loaded by NewWatcher, with
// CliAdapterOrder and the circuit-breaker thresholds taken from the most
// recent successful reload.
func (w *Watcher) Current() RuntimeConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching for changes.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if cfg, err := Load(w.path); err == nil {
				w.mu.Lock()
				w.current.CliAdapterOrder = cfg.CliAdapterOrder
				w.current.AdapterCircuitThreshold = cfg.AdapterCircuitThreshold
				w.current.AdapterCircuitCooldown = cfg.AdapterCircuitCooldown
				w.mu.Unlock()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
