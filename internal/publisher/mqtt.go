package publisher

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// BrokerOptions configures the MQTT connection
type BrokerOptions struct {
	URL            string
	ClientID       string
	Username       string
	Password       string
	StatusTopic    string
	ConnectTimeout time.Duration
}

// Broker publishes over a Paho client. The broker publishes a retained
// "offline" on StatusTopic if the engine drops without saying goodbye.
type Broker struct {
	client      mqtt.Client
	statusTopic string
	logger      zerolog.Logger
}

// Dial connects to the broker and announces the engine online
func Dial(opts BrokerOptions, logger zerolog.Logger) (*Broker, error) {
	b := &Broker{
		statusTopic: opts.StatusTopic,
		logger:      logger.With().Str("component", "mqtt").Str("broker", opts.URL).Logger(),
	}
	b.client = mqtt.NewClient(b.clientOptions(opts))

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	token := b.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", opts.URL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", opts.URL, err)
	}
	return b, nil
}

func (b *Broker) clientOptions(opts BrokerOptions) *mqtt.ClientOptions {
	co := mqtt.NewClientOptions().
		AddBroker(opts.URL).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(60 * time.Second).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.logger.Warn().Err(err).Msg("MQTT connection lost, reconnecting")
		})
	if opts.Username != "" {
		co.SetUsername(opts.Username).SetPassword(opts.Password)
	}
	if opts.StatusTopic != "" {
		co.SetWill(opts.StatusTopic, statusOffline, 1, true)
	}
	return co
}

// onConnect runs on the first connect and after every reconnect
func (b *Broker) onConnect(c mqtt.Client) {
	b.logger.Info().Msg("MQTT connected")
	if b.statusTopic == "" {
		return
	}
	// Paho callbacks must not block on tokens
	go func() {
		token := c.Publish(b.statusTopic, 1, true, statusOnline)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			b.logger.Warn().Err(token.Error()).Msg("failed to announce engine online")
		}
	}()
}

// Publish sends msg and waits for the broker acknowledgement or ctx
func (b *Broker) Publish(ctx context.Context, msg Message) error {
	token := b.client.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %s: %w", msg.Topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publishing to %s: %w", msg.Topic, ctx.Err())
	}
}

// Close announces the engine offline and disconnects
func (b *Broker) Close() error {
	if b.statusTopic != "" && b.client.IsConnected() {
		b.client.Publish(b.statusTopic, 1, true, statusOffline).WaitTimeout(time.Second)
	}
	b.client.Disconnect(250)
	return nil
}
