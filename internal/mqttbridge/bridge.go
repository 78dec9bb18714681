package mqttbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	brunt "github.com/tj-smith47/brunt-go"
)

// DefaultInterval is the default polling interval.
const DefaultInterval = time.Minute

// Controller is the part of the Brunt client the bridge drives.
type Controller interface {
	Things(ctx context.Context, force bool) ([]brunt.Thing, error)
	ChangeRequestPosition(ctx context.Context, position int, sel brunt.Selector) error
	Position(uri string) (int, bool)
	Thing(uri string) (brunt.Thing, bool)
}

// Broker is the part of the MQTT client the bridge uses.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

var (
	_ Controller = (*brunt.Client)(nil)
	_ Broker     = (*Client)(nil)
)

// StateMessage is the JSON document published on a state topic.
type StateMessage struct {
	Name            string    `json:"name"`
	Serial          string    `json:"serial"`
	URI             string    `json:"uri"`
	Model           string    `json:"model,omitempty"`
	Position        *int      `json:"position,omitempty"`
	CurrentPosition *int      `json:"current_position,omitempty"`
	RequestPosition *int      `json:"request_position,omitempty"`
	MoveState       *int      `json:"move_state,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Bridge mirrors Brunt things onto MQTT.
type Bridge struct {
	ctrl     Controller
	broker   Broker
	topics   Topics
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	serials map[string]string // serial -> thing URI
	runCtx  context.Context
}

// New creates a bridge. A non-positive interval uses DefaultInterval.
func New(ctrl Controller, broker Broker, topics Topics, interval time.Duration, logger *slog.Logger) *Bridge {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Bridge{
		ctrl:     ctrl,
		broker:   broker,
		topics:   topics,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		serials:  make(map[string]string),
		runCtx:   context.Background(),
	}
}

// Run subscribes to command topics, then publishes state every interval
// until ctx is done. A failed poll is logged and retried on the next tick.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	b.runCtx = ctx
	b.mu.Unlock()

	if err := b.broker.Subscribe(b.topics.AllSets(), b.handleMessage); err != nil {
		return err
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if err := b.PublishOnce(ctx); err != nil {
			b.log(ctx, slog.LevelWarn, "bridge_poll_failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PublishOnce refreshes the thing list and publishes every thing's state.
func (b *Bridge) PublishOnce(ctx context.Context) error {
	things, err := b.ctrl.Things(ctx, true)
	if err != nil {
		return err
	}

	var firstErr error
	for _, thing := range things {
		serial := serialOf(thing)
		if serial == "" {
			continue
		}
		b.mu.Lock()
		b.serials[serial] = thing.URI
		b.mu.Unlock()

		if err := b.publishState(serial, thing); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.log(ctx, slog.LevelDebug, "bridge_published", slog.Int("things", len(things)))
	return firstErr
}

func (b *Bridge) publishState(serial string, thing brunt.Thing) error {
	msg := StateMessage{
		Name:      thing.Name,
		Serial:    serial,
		URI:       thing.URI,
		Model:     thing.Model,
		UpdatedAt: b.now().UTC(),
	}
	if thing.Has(brunt.FieldCurrentPosition) {
		msg.CurrentPosition = intPtr(thing.CurrentPosition)
	}
	if thing.Has(brunt.FieldRequestPosition) {
		msg.RequestPosition = intPtr(thing.RequestPosition)
	}
	if thing.Has(brunt.FieldMoveState) {
		msg.MoveState = intPtr(thing.MoveState)
	}
	if pos, ok := b.ctrl.Position(thing.URI); ok {
		msg.Position = intPtr(pos)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return b.broker.Publish(b.topics.State(serial), payload, true)
}

func (b *Bridge) handleMessage(topic string, payload []byte) error {
	b.mu.RLock()
	ctx := b.runCtx
	b.mu.RUnlock()
	return b.HandleSet(ctx, topic, payload)
}

// HandleSet applies a position command received on a set topic and
// republishes the thing's state with the commanded position.
func (b *Bridge) HandleSet(ctx context.Context, topic string, payload []byte) error {
	serial, err := b.topics.SerialFromSet(topic)
	if err != nil {
		return err
	}
	position, err := parsePosition(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	uri, ok := b.serials[serial]
	b.mu.RUnlock()
	if !ok {
		uri = brunt.URIForSerial(serial)
	}

	if err := b.ctrl.ChangeRequestPosition(ctx, position, brunt.ByURI(uri)); err != nil {
		b.log(ctx, slog.LevelError, "bridge_command_failed",
			slog.String("serial", serial),
			slog.Int("position", position),
			slog.String("error", err.Error()),
		)
		return err
	}
	b.log(ctx, slog.LevelInfo, "bridge_command",
		slog.String("serial", serial),
		slog.Int("position", position),
	)

	thing, ok := b.ctrl.Thing(uri)
	if !ok {
		thing = brunt.Thing{URI: uri, Serial: serial}
	}
	return b.publishState(serial, thing)
}

// parsePosition accepts "40" or {"position":40}.
func parsePosition(payload []byte) (int, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var body struct {
			Position *int `json:"position"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil || body.Position == nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
		}
		return *body.Position, nil
	}
	p, err := strconv.Atoi(string(trimmed))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	return p, nil
}

func serialOf(thing brunt.Thing) string {
	if thing.Serial != "" {
		return thing.Serial
	}
	if s, ok := strings.CutPrefix(thing.URI, "/hub/"); ok && !strings.Contains(s, "/") {
		return s
	}
	return ""
}

func intPtr(v int) *int {
	return &v
}

func (b *Bridge) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if b.logger == nil {
		return
	}
	b.logger.LogAttrs(ctx, level, msg, attrs...)
}
