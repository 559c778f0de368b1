package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/pihome/internal/entity"
	"github.com/nerrad567/pihome/internal/infrastructure/mqtt"
)

// WebSocket channels the automation package broadcasts on.
const (
	ChannelRuleState   = "rule.state"
	ChannelDeviceValue = "device.value"
	ChannelSensorRead  = "sensor.read"
)

// Defaults applied to a zero EngineConfig.
const (
	DefaultInterval = 5 * time.Second
	DefaultWorkers  = 4
)

// RuleSource lists the rules the engine evaluates.
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]*entity.Rule, error)
}

// MQTTClient is the interface for publishing state to MQTT.
type MQTTClient interface {
	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Recorder writes telemetry. Satisfied by *influxdb.Client.
type Recorder interface {
	WriteSensorReading(sensorID int64, pin string, value float64)
	WriteDeviceValue(deviceID int64, value bool)
	WriteRuleEvaluation(ruleID int64, satisfied bool, duration time.Duration)
}

// EngineConfig tunes the evaluation loop.
type EngineConfig struct {
	Interval time.Duration
	Workers  int
}

// RuleStateEvent is published when a rule changes state.
type RuleStateEvent struct {
	RuleID       int64     `json:"rule_id"`
	Label        string    `json:"label"`
	Satisfied    bool      `json:"satisfied"`
	EvaluationID string    `json:"evaluation_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// PassResult summarises one evaluation pass.
type PassResult struct {
	Evaluated   int
	Satisfied   int
	Failed      map[int64]error
	Transitions []RuleStateEvent
}

// Engine evaluates every enabled rule on an interval.
//
// Rules are evaluated concurrently on a bounded pool. A rule that fails
// to evaluate keeps its previous state. When a rule's state changes the
// engine publishes the new state retained on MQTT, broadcasts it to
// WebSocket clients and records it.
//
// Thread Safety: EvaluateAll and State are safe for concurrent use.
type Engine struct {
	rules     RuleSource
	evaluator *Evaluator
	mqtt      MQTTClient
	hub       WSHub
	recorder  Recorder
	logger    Logger
	cfg       EngineConfig

	mu     sync.Mutex
	states map[int64]bool
}

// NewEngine creates a rule engine.
//
// Parameters:
//   - rules: source of enabled rules
//   - evaluator: evaluates a single rule
//   - mqtt: client for rule state publication (may be nil)
//   - hub: WebSocket hub for transition events (may be nil)
//   - recorder: telemetry sink (may be nil)
//   - logger: Logger instance (may be nil)
//   - cfg: interval and worker count; zero values use the defaults
func NewEngine(rules RuleSource, evaluator *Evaluator, mqtt MQTTClient, hub WSHub, recorder Recorder, logger Logger, cfg EngineConfig) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Engine{
		rules:     rules,
		evaluator: evaluator,
		mqtt:      mqtt,
		hub:       hub,
		recorder:  recorder,
		logger:    logger,
		cfg:       cfg,
		states:    make(map[int64]bool),
	}
}

// Run evaluates all rules immediately and then on every tick until ctx
// is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("rule engine started", "interval", e.cfg.Interval.String(), "workers", e.cfg.Workers)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := e.EvaluateAll(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("rule evaluation pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			e.logger.Info("rule engine stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// EvaluateAll runs one pass over every enabled rule.
//
// Failing rules are reported in PassResult.Failed; the returned error is
// only set when the rules could not be listed.
func (e *Engine) EvaluateAll(ctx context.Context) (*PassResult, error) {
	rules, err := e.rules.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enabled rules: %w", err)
	}

	type outcome struct {
		rule *entity.Rule
		ev   *Evaluation
		err  error
	}
	outcomes := make([]outcome, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, rule := range rules {
		g.Go(func() error {
			ev, evalErr := e.evaluator.Inspect(gctx, rule)
			outcomes[i] = outcome{rule: rule, ev: ev, err: evalErr}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return an error

	result := &PassResult{Failed: make(map[int64]error)}
	seen := make(map[int64]bool, len(rules))
	for _, o := range outcomes {
		seen[o.rule.ID] = true
		if o.err != nil {
			result.Failed[o.rule.ID] = o.err
			e.logger.Warn("rule evaluation failed", "rule_id", o.rule.ID, "error", o.err)
			continue
		}

		result.Evaluated++
		if o.ev.Satisfied {
			result.Satisfied++
		}
		if event, changed := e.record(o.rule, o.ev); changed {
			result.Transitions = append(result.Transitions, event)
			e.announce(event, o.ev)
		}
	}
	e.prune(seen)

	e.logger.Debug("rule evaluation pass complete",
		"evaluated", result.Evaluated,
		"satisfied", result.Satisfied,
		"failed", len(result.Failed),
		"transitions", len(result.Transitions),
	)
	return result, nil
}

// State returns the last known state of a rule.
func (e *Engine) State(ruleID int64) (satisfied, known bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	satisfied, known = e.states[ruleID]
	return satisfied, known
}

// record stores the rule's new state. The first observation of a rule
// counts as a transition.
func (e *Engine) record(rule *entity.Rule, ev *Evaluation) (RuleStateEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, known := e.states[rule.ID]
	e.states[rule.ID] = ev.Satisfied
	if known && prev == ev.Satisfied {
		return RuleStateEvent{}, false
	}
	return RuleStateEvent{
		RuleID:       rule.ID,
		Label:        rule.Label,
		Satisfied:    ev.Satisfied,
		EvaluationID: ev.ID,
		Timestamp:    time.Now().UTC(),
	}, true
}

// prune forgets rules that were deleted or disabled.
func (e *Engine) prune(current map[int64]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.states {
		if !current[id] {
			delete(e.states, id)
		}
	}
}

func (e *Engine) announce(event RuleStateEvent, ev *Evaluation) {
	e.logger.Info("rule state changed", "rule_id", event.RuleID, "satisfied", event.Satisfied)

	if e.mqtt != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			err = e.mqtt.Publish(mqtt.Topics{}.RuleState(event.RuleID), payload, 1, true)
		}
		if err != nil {
			e.logger.Warn("failed to publish rule state", "rule_id", event.RuleID, "error", err)
		}
	}

	if e.hub != nil {
		e.hub.Broadcast(ChannelRuleState, event)
	}

	if e.recorder != nil {
		e.recorder.WriteRuleEvaluation(event.RuleID, event.Satisfied, time.Duration(ev.DurationMS)*time.Millisecond)
	}
}
