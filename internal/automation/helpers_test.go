package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pihome/internal/entity"
	"github.com/nerrad567/pihome/internal/gpio"
	"github.com/nerrad567/pihome/internal/infrastructure/config"
	"github.com/nerrad567/pihome/internal/infrastructure/database"
	"github.com/nerrad567/pihome/internal/infrastructure/mqtt"
	"github.com/nerrad567/pihome/migrations"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockMQTT captures all published messages.
type mockMQTT struct {
	messages []mqttMessage
	mu       sync.Mutex
	failOn   string // Topic to fail on (for error testing)
}

type mqttMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn != "" && topic == m.failOn {
		return errors.New("MQTT publish failed")
	}
	m.messages = append(m.messages, mqttMessage{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *mockMQTT) getMessages() []mqttMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]mqttMessage, len(m.messages))
	copy(cpy, m.messages)
	return cpy
}

// onTopic returns the messages published on topic.
func (m *mockMQTT) onTopic(topic string) []mqttMessage {
	var out []mqttMessage
	for _, msg := range m.getMessages() {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// mockWSHub captures all broadcasts.
type mockWSHub struct {
	broadcasts []wsBroadcast
	mu         sync.Mutex
}

type wsBroadcast struct {
	Channel string
	Payload any
}

func (m *mockWSHub) Broadcast(channel string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, wsBroadcast{Channel: channel, Payload: payload})
}

func (m *mockWSHub) onChannel(channel string) []wsBroadcast {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []wsBroadcast
	for _, b := range m.broadcasts {
		if b.Channel == channel {
			out = append(out, b)
		}
	}
	return out
}

// mockRecorder captures telemetry writes.
type mockRecorder struct {
	mu       sync.Mutex
	sensors  []float64
	devices  []bool
	ruleRuns map[int64][]bool
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{ruleRuns: make(map[int64][]bool)}
}

func (m *mockRecorder) WriteSensorReading(_ int64, _ string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensors = append(m.sensors, value)
}

func (m *mockRecorder) WriteDeviceValue(_ int64, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = append(m.devices, value)
}

func (m *mockRecorder) WriteRuleEvaluation(ruleID int64, satisfied bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleRuns[ruleID] = append(m.ruleRuns[ruleID], satisfied)
}

// mockSubscriber records subscriptions.
type mockSubscriber struct {
	topics   []string
	handlers []mqtt.MessageHandler
	err      error
}

func (m *mockSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if m.err != nil {
		return m.err
	}
	m.topics = append(m.topics, topic)
	m.handlers = append(m.handlers, handler)
	return nil
}

// ─── Harness ────────────────────────────────────────────────────────────────

// harness wires the real entity stack over an in-memory database and a
// static GPIO reader that counts reads per pin.
type harness struct {
	registry  *entity.Registry
	kinds     *entity.Kinds
	resolver  *entity.Resolver
	evaluator *Evaluator
	pins      *gpio.StaticReader

	readsMu sync.Mutex
	reads   map[string]int
}

func setupHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := &harness{
		pins:  gpio.NewStaticReader(nil),
		reads: make(map[string]int),
	}
	counted := gpio.WithObserver(h.pins, func(pin string, _ float64) {
		h.readsMu.Lock()
		h.reads[pin]++
		h.readsMu.Unlock()
	})

	store := entity.NewSQLiteStore(db.DB)
	h.kinds = entity.NewKinds(counted)
	h.registry = entity.NewRegistry(store)
	h.resolver = entity.NewResolver(store, h.kinds)
	h.evaluator = NewEvaluator(h.resolver, nil)
	if err := h.evaluator.RegisterSatisfied(h.kinds); err != nil {
		t.Fatalf("RegisterSatisfied: %v", err)
	}
	h.registry.SetConditionValidator(h.evaluator.Operators().ValidateCondition)
	return h
}

func (h *harness) readCount(pin string) int {
	h.readsMu.Lock()
	defer h.readsMu.Unlock()
	return h.reads[pin]
}

func (h *harness) sensor(t *testing.T, pin string, value float64) *entity.Sensor {
	t.Helper()
	h.pins.Set(pin, value)
	s := &entity.Sensor{Label: "sensor " + pin, Pin: pin}
	if err := h.registry.Create(context.Background(), s); err != nil {
		t.Fatalf("create sensor: %v", err)
	}
	return s
}

func (h *harness) device(t *testing.T, pin string, value bool) *entity.Device {
	t.Helper()
	d := &entity.Device{Label: "device " + pin, Pin: pin, Value: value}
	if err := h.registry.Create(context.Background(), d); err != nil {
		t.Fatalf("create device: %v", err)
	}
	return d
}

func (h *harness) rule(t *testing.T, label string, conds ...entity.Condition) *entity.Rule {
	t.Helper()
	r := entity.NewRule(label)
	r.Conditions = conds
	if err := h.registry.Create(context.Background(), r); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	return r
}

func ref(kind entity.Kind, id int64, member string) entity.Operand {
	return entity.Reference(entity.FormatKey(kind, id, member))
}

func lit(v any) entity.Operand {
	return entity.Literal(v)
}

func decodeRuleState(t *testing.T, payload []byte) RuleStateEvent {
	t.Helper()
	var ev RuleStateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("decode rule state %s: %v", payload, err)
	}
	return ev
}
