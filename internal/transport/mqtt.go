package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/pkg/uid"
)

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ClientID       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// MQTTSubscriber subscribes to broker topics over MQTT.
// The client reconnects on its own once the first connection succeeded.
type MQTTSubscriber struct {
	client mqtt.Client

	mu     sync.Mutex
	topic  string
	active *pipe
}

// NewMQTTSubscriber connects to the broker. A failed initial connect returns ErrConnect.
func NewMQTTSubscriber(cfg MQTTConfig) (*MQTTSubscriber, error) {
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "dicelogger-" + uid.Short()
	}
	log := logging.Component("transport")
	s := &MQTTSubscriber{}

	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(s.onConnect)
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	log.Info().Str("broker", broker).Msg("connecting to broker")
	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("%w: timed out connecting to %s", ErrConnect, broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, broker, err)
	}
	return s, nil
}

// onConnect runs on the first connect and on every reconnect. Subscriptions
// do not survive a clean-session reconnect, so they are restored here.
func (s *MQTTSubscriber) onConnect(c mqtt.Client) {
	s.mu.Lock()
	topic, p := s.topic, s.active
	s.mu.Unlock()
	if p == nil {
		return
	}

	log := logging.Component("transport")
	log.Info().Str("topic", topic).Msg("MQTT reconnected, restoring subscription")
	// The reset must reach the consumer before any roll from the new session.
	p.send(Message{Reconnected: true})
	if token := c.Subscribe(topic, 0, s.handler(p)); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", topic).Msg("failed to restore subscription")
	}
}

func (s *MQTTSubscriber) handler(p *pipe) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		p.send(Message{Topic: msg.Topic(), Payload: msg.Payload()})
	}
}

// mqttTopic maps a topic root onto an MQTT multi-level wildcard.
func mqttTopic(root string) string {
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + "#"
}

// Subscribe delivers every message under root. An empty root subscribes to all topics.
func (s *MQTTSubscriber) Subscribe(root string) (<-chan Message, func(), error) {
	p := newPipe(deliveryBuffer)
	topic := mqttTopic(root)

	token := s.client.Subscribe(topic, 0, s.handler(p))
	if token.Wait() && token.Error() != nil {
		close(p.ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, token.Error())
	}

	s.mu.Lock()
	s.topic, s.active = topic, p
	s.mu.Unlock()
	logging.Component("transport").Info().Str("topic", topic).Msg("listening to root topic")

	cancel := func() {
		p.close(func() {
			s.mu.Lock()
			if s.active == p {
				s.active = nil
			}
			s.mu.Unlock()
			s.client.Unsubscribe(topic).WaitTimeout(time.Second)
		})
	}
	return p.ch, cancel, nil
}

// Close disconnects from the broker.
func (s *MQTTSubscriber) Close() error {
	s.client.Disconnect(250)
	return nil
}

var _ Subscriber = (*MQTTSubscriber)(nil)
