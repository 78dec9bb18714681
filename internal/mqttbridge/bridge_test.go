package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brunt "github.com/tj-smith47/brunt-go"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeBroker struct {
	mu        sync.Mutex
	messages  []published
	handlers  map[string]MessageHandler
	publishFn func(topic string) error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]MessageHandler)}
}

func (f *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishFn != nil {
		if err := f.publishFn(topic); err != nil {
			return err
		}
	}
	f.messages = append(f.messages, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

func (f *fakeBroker) handler(topic string) MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

type command struct {
	position int
	sel      brunt.Selector
}

type fakeController struct {
	mu        sync.Mutex
	things    []brunt.Thing
	positions map[string]int
	commands  []command
	listErr   error
	changeErr error
}

func (f *fakeController) Things(ctx context.Context, force bool) ([]brunt.Thing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.things, nil
}

func (f *fakeController) ChangeRequestPosition(ctx context.Context, position int, sel brunt.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.changeErr != nil {
		return f.changeErr
	}
	f.commands = append(f.commands, command{position: position, sel: sel})
	if f.positions == nil {
		f.positions = make(map[string]int)
	}
	f.positions[sel.URI] = position
	return nil
}

func (f *fakeController) Position(uri string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[uri]
	return p, ok
}

func (f *fakeController) Thing(uri string) (brunt.Thing, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.things {
		if t.URI == uri {
			return t, true
		}
	}
	return brunt.Thing{}, false
}

func decodeState(t *testing.T, payload []byte) StateMessage {
	t.Helper()
	var msg StateMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestBridge_PublishOnce(t *testing.T) {
	ctrl := &fakeController{
		things: []brunt.Thing{
			{Name: "Blind", Serial: "S1", URI: "/hub/S1"},
			{Name: "No serial", URI: "/hub/S2"},
			{Name: "Unaddressable", URI: "/other/x"},
		},
		positions: map[string]int{"/hub/S1": 40},
	}
	broker := newFakeBroker()
	bridge := New(ctrl, broker, Topics{}, time.Minute, nil)

	require.NoError(t, bridge.PublishOnce(context.Background()))

	sent := broker.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "brunt/S1/state", sent[0].topic)
	assert.True(t, sent[0].retained)
	assert.Equal(t, "brunt/S2/state", sent[1].topic)

	msg := decodeState(t, sent[0].payload)
	assert.Equal(t, "Blind", msg.Name)
	assert.Equal(t, "/hub/S1", msg.URI)
	require.NotNil(t, msg.Position)
	assert.Equal(t, 40, *msg.Position)

	assert.Nil(t, decodeState(t, sent[1].payload).Position)
}

func TestBridge_PublishOnceErrors(t *testing.T) {
	t.Run("list failure", func(t *testing.T) {
		ctrl := &fakeController{listErr: brunt.ErrProtocol}
		bridge := New(ctrl, newFakeBroker(), Topics{}, 0, nil)
		assert.ErrorIs(t, bridge.PublishOnce(context.Background()), brunt.ErrProtocol)
	})

	t.Run("publish failure still publishes the rest", func(t *testing.T) {
		ctrl := &fakeController{things: []brunt.Thing{
			{Serial: "S1", URI: "/hub/S1"},
			{Serial: "S2", URI: "/hub/S2"},
		}}
		broker := newFakeBroker()
		broker.publishFn = func(topic string) error {
			if topic == "brunt/S1/state" {
				return ErrNotConnected
			}
			return nil
		}
		bridge := New(ctrl, broker, Topics{}, 0, nil)

		assert.ErrorIs(t, bridge.PublishOnce(context.Background()), ErrNotConnected)
		require.Len(t, broker.sent(), 1)
		assert.Equal(t, "brunt/S2/state", broker.sent()[0].topic)
	})
}

func TestBridge_HandleSet(t *testing.T) {
	t.Run("bare integer", func(t *testing.T) {
		ctrl := &fakeController{things: []brunt.Thing{{Name: "Blind", Serial: "S1", URI: "/hub/S1"}}}
		broker := newFakeBroker()
		bridge := New(ctrl, broker, Topics{}, 0, nil)

		require.NoError(t, bridge.HandleSet(context.Background(), "brunt/S1/set", []byte(" 75\n")))
		require.Len(t, ctrl.commands, 1)
		assert.Equal(t, command{position: 75, sel: brunt.ByURI("/hub/S1")}, ctrl.commands[0])

		sent := broker.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "brunt/S1/state", sent[0].topic)
		msg := decodeState(t, sent[0].payload)
		assert.Equal(t, "Blind", msg.Name)
		require.NotNil(t, msg.Position)
		assert.Equal(t, 75, *msg.Position)
	})

	t.Run("json object", func(t *testing.T) {
		ctrl := &fakeController{}
		bridge := New(ctrl, newFakeBroker(), Topics{}, 0, nil)

		require.NoError(t, bridge.HandleSet(context.Background(), "brunt/S9/set", []byte(`{"position":0}`)))
		require.Len(t, ctrl.commands, 1)
		assert.Equal(t, 0, ctrl.commands[0].position)
		assert.Equal(t, "/hub/S9", ctrl.commands[0].sel.URI)
	})

	t.Run("invalid payloads", func(t *testing.T) {
		ctrl := &fakeController{}
		bridge := New(ctrl, newFakeBroker(), Topics{}, 0, nil)

		for _, payload := range []string{"", "up", "{}", `{"position":"x"}`, "4.5"} {
			err := bridge.HandleSet(context.Background(), "brunt/S1/set", []byte(payload))
			assert.ErrorIs(t, err, ErrInvalidPayload, payload)
		}
		assert.Empty(t, ctrl.commands)
	})

	t.Run("invalid topic", func(t *testing.T) {
		bridge := New(&fakeController{}, newFakeBroker(), Topics{}, 0, nil)
		err := bridge.HandleSet(context.Background(), "other/S1/set", []byte("1"))
		assert.ErrorIs(t, err, ErrInvalidTopic)
	})

	t.Run("controller rejects the position", func(t *testing.T) {
		ctrl := &fakeController{changeErr: brunt.ErrInvalidPosition}
		broker := newFakeBroker()
		bridge := New(ctrl, broker, Topics{}, 0, nil)

		err := bridge.HandleSet(context.Background(), "brunt/S1/set", []byte("250"))
		assert.ErrorIs(t, err, brunt.ErrInvalidPosition)
		assert.Empty(t, broker.sent())
	})
}

func TestBridge_Run(t *testing.T) {
	ctrl := &fakeController{things: []brunt.Thing{{Name: "Blind", Serial: "S1", URI: "/hub/S1"}}}
	broker := newFakeBroker()
	bridge := New(ctrl, broker, Topics{Prefix: "home/blinds"}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(broker.sent()) >= 2 && broker.handler("home/blinds/+/set") != nil
	}, time.Second, 5*time.Millisecond)

	handler := broker.handler("home/blinds/+/set")
	require.NotNil(t, handler)
	require.NoError(t, handler("home/blinds/S1/set", []byte("10")))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	require.Len(t, ctrl.commands, 1)
	assert.Equal(t, 10, ctrl.commands[0].position)
}

func TestParsePosition(t *testing.T) {
	for payload, want := range map[string]int{"0": 0, "100": 100, " 42 ": 42, `{"position":7}`: 7, "-3": -3} {
		got, err := parsePosition([]byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, want, got, payload)
	}

	_, err := parsePosition([]byte("nope"))
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}
