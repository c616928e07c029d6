package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"goa.design/swarmassistant/blackboard"
	"goa.design/swarmassistant/capability"
	"goa.design/swarmassistant/config"
	"goa.design/swarmassistant/coordinator"
	"goa.design/swarmassistant/eventlog"
	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/roleengine/provider/anthropic"
	"goa.design/swarmassistant/roleengine/provider/openai"
	"goa.design/swarmassistant/session"
	"goa.design/swarmassistant/supervisor"
	"goa.design/swarmassistant/swarmtask"
	"goa.design/swarmassistant/telemetry"
	"goa.design/swarmassistant/uistream"
	"goa.design/swarmassistant/worldstate"
)

// app bundles every wired dependency a swarmd subcommand needs: the task
// registry, the blackboard, the event log, the UI stream, the capability
// registry, and the dispatcher that ties them together (the GOAP planner
// and the supervisor reach it through the dispatcher's Deps).
// Grounded on the production wiring coordinator_test.go's newTestDeps
// assembles for tests, generalized into a long-lived process.
type app struct {
	cfg        config.RuntimeConfig
	tasks      *swarmtask.Registry
	blackboard *blackboard.Store
	events     *eventlog.Recorder
	eventRepo  eventlog.Repository
	ui         *uistream.Stream
	caps       *capability.Registry
	dispatcher *coordinator.Dispatcher
	logger     telemetry.Logger
}

// newApp wires an app from cfg and repo. A nil repo falls back to an
// in-memory EventRepository, fine for run and serve but useless across
// process restarts for replay.
func newApp(cfg config.RuntimeConfig, repo eventlog.Repository) (*app, error) {
	logger := telemetry.NewClueLogger()

	if repo == nil {
		repo = eventlog.NewMemoryRepository()
	}

	bb := blackboard.New()
	tasks := swarmtask.New(swarmtask.NewInMemorySink())
	planner := worldstate.NewPlanner(worldstate.Actions...)
	events := eventlog.NewRecorder(repo, logger)
	ui := uistream.New(0)
	sessions := session.NewMemoryStore(0)

	sup := supervisor.New(supervisor.Options{
		MaxRetriesPerTask:       cfg.MaxRetriesPerTask,
		AdapterCircuitThreshold: cfg.AdapterCircuitThreshold,
		AdapterCircuitCooldown:  cfg.AdapterCircuitCooldown,
		Blackboard:              bb,
		Logger:                  logger,
		OnCircuitOpen: func(ctx context.Context, adapterID string) {
			events.Append(ctx, eventlog.Event{EventType: eventlog.TelemetryCircuit, Payload: adapterID})
		},
	})

	caps := capability.New(capability.Options{
		Circuits:        capability.BlackboardCircuitChecker{Store: bb},
		HeartbeatWindow: time.Duration(cfg.AgentHeartbeatIntervalSeconds) * 3 * time.Second,
	})

	engine, err := buildRoleEngine(cfg, logger, events)
	if err != nil {
		return nil, fmt.Errorf("swarmd: build role engine: %w", err)
	}

	deps := coordinator.Deps{
		Tasks:                       tasks,
		Blackboard:                  bb,
		Planner:                     planner,
		Supervisor:                  sup,
		Events:                      events,
		Executor:                    engine,
		Logger:                      logger,
		UI:                          ui,
		Session:                     sessions,
		SessionTranscriptByteBudget: cfg.SessionTranscriptByteBudget,
		BlackboardPreviewRunes:      cfg.BlackboardPreviewRunes,
		MaxSubTaskDepth:             cfg.MaxSubTaskDepth,
	}

	return &app{
		cfg:        cfg,
		tasks:      tasks,
		blackboard: bb,
		events:     events,
		eventRepo:  repo,
		ui:         ui,
		caps:       caps,
		dispatcher: coordinator.NewDispatcher(deps, caps),
		logger:     logger,
	}, nil
}

// buildRoleEngine constructs a RoleEngine in cfg.ExecutionMode (hybrid
// unless api-direct or subscription-cli-fallback is set), wiring an api-direct
// provider for every entry in cfg.ModelProviders whose API key env var is
// actually set. A provider whose key is absent from the environment is
// skipped rather than constructed with an empty key: hybrid mode then
// falls through to the CLI fallback path for that role, exactly the
// degradation spec.md §6 describes for a missing model provider.
func buildRoleEngine(cfg config.RuntimeConfig, logger telemetry.Logger, events *eventlog.Recorder) (*roleengine.RoleEngine, error) {
	mode := roleengine.ModeHybrid
	switch cfg.ExecutionMode {
	case "api-direct":
		mode = roleengine.ModeAPIDirect
	case "subscription-cli-fallback":
		mode = roleengine.ModeSubscriptionCLIFallback
	}

	providers := make(map[string]roleengine.Provider, len(cfg.ModelProviders))
	for name, pc := range cfg.ModelProviders {
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			continue
		}

		var (
			p   roleengine.Provider
			err error
		)
		switch name {
		case "anthropic":
			p, err = anthropic.New(apiKey, anthropic.Options{})
		case "openai":
			p, err = openai.New(apiKey, openai.Options{BaseURL: pc.BaseURL})
		default:
			// bedrock requires an AWS SDK runtime client rather than a bare
			// API key and is left to a deployment-specific wiring point;
			// any other unrecognised prefix is skipped the same way.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("model provider %q: %w", name, err)
		}
		providers[name] = p
	}

	sandbox := buildSandbox(cfg)

	opts := roleengine.Options{
		Mode:            mode,
		Providers:       providers,
		CliAdapterOrder: cfg.CliAdapterOrder,
		Sandbox:         sandbox,
		SkillByteBudget: cfg.SkillByteBudget,
		Logger:          logger,
	}
	if events != nil {
		opts.OnAdapterDiagnostic = func(ctx context.Context, adapterID, message string) {
			events.Append(ctx, eventlog.Event{EventType: eventlog.DiagnosticAdapter, Payload: fmt.Sprintf("%s: %s", adapterID, message)})
		}
	}
	return roleengine.New(opts), nil
}

func buildSandbox(cfg config.RuntimeConfig) roleengine.Sandbox {
	switch cfg.SandboxMode {
	case config.SandboxOSSandboxed:
		wrapper := ""
		if cfg.SandboxWrapper != nil {
			wrapper = cfg.SandboxWrapper.Command
		}
		return roleengine.OSSandbox{WrapperCommand: wrapper, AllowedHosts: cfg.SandboxAllowedHosts}
	default:
		// docker and apple-container wrapping is a deployment concern
		// (container runtime availability varies by host); host mode runs
		// unwrapped. Both fall back to NoSandbox here.
		return roleengine.NoSandbox{}
	}
}

// close releases resources held by app (currently just the event
// recorder's writer goroutine).
func (a *app) close() {
	a.events.Close()
}
