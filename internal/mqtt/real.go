package mqtt

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/config"
	"github.com/thatsimonsguy/tank-controller/internal/events"
)

const connectAttempts = 5

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topic  string
}

// NewRealPublisher connects to the broker, retrying with exponential backoff.
func NewRealPublisher(cfg config.MQTT) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("connection timeout")
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connect failed, retrying")
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, connectAttempts-1))
	if err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, err)
	}

	log.Info().Str("broker", cfg.Broker).Str("topic", Topic(cfg.Prefix)).Msg("Connected to MQTT broker")

	return &RealPublisher{
		client: client,
		topic:  Topic(cfg.Prefix),
	}, nil
}

func (p *RealPublisher) Publish(e events.Event) error {
	payload, err := FormatPayload(e)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
