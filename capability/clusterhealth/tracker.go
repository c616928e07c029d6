// Package clusterhealth distributes agent heartbeat state across nodes
// in a multi-node SwarmAssistant deployment, so a capability.Registry on
// any node sees the same liveness picture. Grounded on the teacher's
// registry.HealthTracker (registry/health_tracker.go): two Pulse
// replicated maps (a registry map of tracked agents, a health map of
// last-pong timestamps) plus a distributed ticker so only one node pings
// a given agent at a time, with automatic failover.
package clusterhealth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"goa.design/pulse/pool"
	"goa.design/pulse/rmap"

	"goa.design/swarmassistant/capability"
	"goa.design/swarmassistant/telemetry"
)

const (
	healthKeyPrefix   = "capability:health:"
	registryKeyPrefix = "capability:tracked:"
)

// Pinger notifies an agent it should report liveness. Production
// deployments implement this over the a2a peer transport.
type Pinger interface {
	Ping(ctx context.Context, agentID string) error
}

// Tracker keeps a capability.Registry's heartbeat state in sync across
// nodes via two Pulse replicated maps and a distributed ticker.
type Tracker struct {
	registry     *capability.Registry
	pinger       Pinger
	healthMap    *rmap.Map
	trackedMap   *rmap.Map
	node         *pool.Node
	pingInterval time.Duration
	logger       telemetry.Logger

	mu      sync.Mutex
	tickers map[string]*pool.Ticker
	cancels map[string]context.CancelFunc

	closeOnce sync.Once
	closeCh   chan struct{}
}

// Option configures a Tracker.
type Option func(*options)

type options struct {
	pingInterval time.Duration
	logger       telemetry.Logger
}

// WithPingInterval overrides the default ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(o *options) { o.pingInterval = d }
}

// WithLogger overrides the tracker's logger.
func WithLogger(l telemetry.Logger) Option {
	return func(o *options) { o.logger = l }
}

const defaultPingInterval = 10 * time.Second

// New constructs a Tracker. healthMap and trackedMap must be distinct
// Pulse replicated maps; node provides the distributed ticker pool.
func New(registry *capability.Registry, pinger Pinger, healthMap, trackedMap *rmap.Map, node *pool.Node, opts ...Option) (*Tracker, error) {
	if registry == nil {
		return nil, fmt.Errorf("clusterhealth: registry is required")
	}
	if pinger == nil {
		return nil, fmt.Errorf("clusterhealth: pinger is required")
	}
	if healthMap == nil || trackedMap == nil {
		return nil, fmt.Errorf("clusterhealth: both replicated maps are required")
	}
	if node == nil {
		return nil, fmt.Errorf("clusterhealth: pool node is required")
	}

	cfg := &options{pingInterval: defaultPingInterval, logger: telemetry.NewNoopLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	events := trackedMap.Subscribe()

	t := &Tracker{
		registry:     registry,
		pinger:       pinger,
		healthMap:    healthMap,
		trackedMap:   trackedMap,
		node:         node,
		pingInterval: cfg.pingInterval,
		logger:       cfg.logger,
		tickers:      make(map[string]*pool.Ticker),
		cancels:      make(map[string]context.CancelFunc),
		closeCh:      make(chan struct{}),
	}

	go t.watch(events)
	t.resync()
	return t, nil
}

// Track registers agentID for cross-node heartbeat tracking.
func (t *Tracker) Track(ctx context.Context, agentID string) error {
	_, err := t.trackedMap.Set(ctx, trackedKey(agentID), strconv.FormatInt(time.Now().UnixNano(), 10))
	return err
}

// Untrack removes agentID from cross-node heartbeat tracking.
func (t *Tracker) Untrack(ctx context.Context, agentID string) {
	_, _ = t.trackedMap.Delete(ctx, trackedKey(agentID))
	_, _ = t.healthMap.Delete(ctx, healthKey(agentID))
	t.stopTicker(agentID)
}

// RecordPong records a pong response from agentID.
func (t *Tracker) RecordPong(ctx context.Context, agentID string) error {
	_, err := t.healthMap.Set(ctx, healthKey(agentID), strconv.FormatInt(time.Now().UnixNano(), 10))
	if err != nil {
		return err
	}
	return t.registry.Heartbeat(ctx, agentID, true)
}

// Close stops every local ticker without deleting shared map entries, so
// another node can keep pinging (mirrors the teacher's shutdown
// behaviour: a single node must never wipe distributed ticker state).
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.closeCh)
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, cancel := range t.cancels {
			cancel()
		}
		for _, ticker := range t.tickers {
			ticker.Close()
		}
		t.tickers = make(map[string]*pool.Ticker)
		t.cancels = make(map[string]context.CancelFunc)
	})
}

func (t *Tracker) watch(events <-chan rmap.EventKind) {
	defer t.trackedMap.Unsubscribe(events)
	for {
		select {
		case <-t.closeCh:
			return
		case <-events:
			t.resync()
		}
	}
}

func (t *Tracker) resync() {
	tracked := make(map[string]bool)
	for _, key := range t.trackedMap.Keys() {
		if agentID := agentIDFromTrackedKey(key); agentID != "" {
			tracked[agentID] = true
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for agentID := range tracked {
		if _, ok := t.tickers[agentID]; !ok {
			t.startTickerLocked(agentID)
		}
	}
	for agentID := range t.tickers {
		if !tracked[agentID] {
			t.stopTickerLocked(agentID)
		}
	}
}

func (t *Tracker) startTickerLocked(agentID string) {
	loopCtx, cancel := context.WithCancel(context.Background())
	ticker, err := t.node.NewTicker(loopCtx, "capability:ping:"+agentID, t.pingInterval)
	if err != nil {
		cancel()
		t.logger.Error(context.Background(), "clusterhealth: create ticker failed", "agentId", agentID, "err", err.Error())
		return
	}
	t.tickers[agentID] = ticker
	t.cancels[agentID] = cancel
	go t.pingLoop(loopCtx, agentID, ticker)
}

func (t *Tracker) stopTicker(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTickerLocked(agentID)
}

func (t *Tracker) stopTickerLocked(agentID string) {
	if cancel, ok := t.cancels[agentID]; ok {
		cancel()
		delete(t.cancels, agentID)
	}
	if ticker, ok := t.tickers[agentID]; ok {
		ticker.Stop()
		delete(t.tickers, agentID)
	}
}

func (t *Tracker) pingLoop(ctx context.Context, agentID string, ticker *pool.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.pinger.Ping(ctx, agentID); err != nil {
				t.logger.Warn(ctx, "clusterhealth: ping failed", "agentId", agentID, "err", err.Error())
			}
		}
	}
}

func healthKey(agentID string) string   { return healthKeyPrefix + agentID }
func trackedKey(agentID string) string  { return registryKeyPrefix + agentID }

func agentIDFromTrackedKey(key string) string {
	if !strings.HasPrefix(key, registryKeyPrefix) {
		return ""
	}
	return strings.TrimPrefix(key, registryKeyPrefix)
}
