package mqttbridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Connection constants.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive  = 60 * time.Second
	maxReconnectDelay = 2 * time.Minute
	maxQoS            = 2
)

// Config describes the broker connection.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Prefix   string
}

// MessageHandler is the callback signature for received messages.
// Handlers run on paho's goroutines; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client wraps paho.mqtt.golang for the bridge. It is safe for concurrent
// use, and subscriptions are restored after a reconnect.
type Client struct {
	client pahomqtt.Client
	cfg    Config
	topics Topics
	logger *slog.Logger

	subscriptions map[string]MessageHandler
	subMu         sync.RWMutex
}

// NewClientID returns a unique client ID for a bridge instance.
func NewClientID() string {
	return "brunt-bridge-" + uuid.NewString()
}

// buildClientOptions creates paho options from the bridge config.
func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnectDelay)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// Retained offline status for unexpected disconnects
	topics := Topics{Prefix: cfg.Prefix}
	opts.SetWill(topics.Status(), statusPayload("offline", cfg.ClientID), 1, true)
	return opts
}

func statusPayload(status, clientID string) string {
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
		status, clientID, time.Now().UTC().Format(time.RFC3339))
}

// Connect establishes a connection to the MQTT broker and publishes the
// bridge's online status. An empty ClientID gets a generated one.
func Connect(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = NewClientID()
	}
	if cfg.QoS > maxQoS {
		cfg.QoS = 1
	}

	c := &Client{
		cfg:           cfg,
		topics:        Topics{Prefix: cfg.Prefix},
		logger:        logger,
		subscriptions: make(map[string]MessageHandler),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log(slog.LevelWarn, "mqtt_connection_lost", slog.String("error", err.Error()))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func (c *Client) handleConnect() {
	c.subMu.RLock()
	for topic, handler := range c.subscriptions {
		c.client.Subscribe(topic, c.cfg.QoS, c.wrapHandler(handler))
	}
	c.subMu.RUnlock()

	c.client.Publish(c.topics.Status(), 1, true, statusPayload("online", c.cfg.ClientID))
	c.log(slog.LevelInfo, "mqtt_connected", slog.String("broker", c.cfg.Broker))
}

// Publish sends payload to topic with the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.cfg.QoS, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler for topic. The subscription is tracked and
// restored after a reconnect.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = handler
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, c.cfg.QoS, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.client.IsConnected() {
		token := c.client.Publish(c.topics.Status(), 1, true, statusPayload("offline", c.cfg.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// wrapHandler adds panic recovery and error logging to a handler.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log(slog.LevelError, "mqtt_handler_panic",
					slog.String("topic", msg.Topic()),
					slog.Any("panic", r),
				)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log(slog.LevelWarn, "mqtt_handler_error",
				slog.String("topic", msg.Topic()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Client) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
