package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tj-smith47/brunt-go/internal/mqttbridge"
)

const (
	keyBroker       = "broker"
	keyInterval     = "interval"
	keyMQTTUsername = "mqtt-username"
	keyMQTTPassword = "mqtt-password"
	keyPrefix       = "prefix"
	keyClientID     = "client-id"
	keyQoS          = "qos"
)

func newBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Mirror things onto an MQTT broker",
		Long: `Publish each thing's state to <prefix>/<serial>/state and move blinds on
messages to <prefix>/<serial>/set. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cfg, logger, err := wireClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			broker := cfg.GetString(keyBroker)
			if broker == "" {
				return fmt.Errorf("%w: --broker is required", mqttbridge.ErrConnectionFailed)
			}
			topics := mqttbridge.Topics{Prefix: cfg.GetString(keyPrefix)}

			mqtt, err := mqttbridge.Connect(mqttbridge.Config{
				Broker:   broker,
				ClientID: cfg.GetString(keyClientID),
				Username: cfg.GetString(keyMQTTUsername),
				Password: cfg.GetString(keyMQTTPassword),
				QoS:      byte(cfg.GetUint(keyQoS)),
				Prefix:   topics.Prefix,
			}, logger)
			if err != nil {
				return err
			}
			defer mqtt.Close()

			bridge := mqttbridge.New(client, mqtt, topics, cfg.GetDuration(keyInterval), logger)
			return bridge.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String(keyBroker, "", "MQTT broker URL, e.g. tcp://localhost:1883")
	flags.Duration(keyInterval, mqttbridge.DefaultInterval, "Polling interval")
	flags.String(keyMQTTUsername, "", "MQTT username")
	flags.String(keyMQTTPassword, "", "MQTT password")
	flags.String(keyPrefix, mqttbridge.DefaultPrefix, "Topic prefix")
	flags.String(keyClientID, "", "MQTT client ID (default: random)")
	flags.Uint(keyQoS, 1, "MQTT QoS level (0-2)")
	return cmd
}
