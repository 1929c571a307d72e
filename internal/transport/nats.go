package transport

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/axlan/dice-logger/internal/logging"
)

// NATSSubscriber subscribes to broker subjects over NATS. MQTT topics bridged
// by a NATS server arrive with "/" mapped to ".", so suffix matching still works.
type NATSSubscriber struct {
	conn   *nats.Conn
	active atomic.Pointer[pipe]

	// reconnects already announced on the active pipe
	mu         sync.Mutex
	reconnects uint64
}

// NewNATSSubscriber connects to NATS with automatic reconnection support.
// Extra nats.Option values (e.g. credentials) can be appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	s := &NATSSubscriber{}
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Component("transport").Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Component("transport").Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			if p := s.active.Load(); p != nil {
				s.announceReconnect(nc, p)
			}
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to NATS at %s: %v", ErrConnect, url, err)
	}
	s.conn = nc
	return s, nil
}

// NATSURL builds a client URL from host and port.
func NATSURL(host string, port int) string {
	return fmt.Sprintf("nats://%s:%d", host, port)
}

// NATSCredentials returns the user/password option when both are set.
func NATSCredentials(user, password string) []nats.Option {
	if user == "" || password == "" {
		return nil
	}
	return []nats.Option{nats.UserInfo(user, password)}
}

// natsSubject maps a topic root onto a NATS wildcard subject.
func natsSubject(root string) string {
	if root == "" {
		return ">"
	}
	root = strings.ReplaceAll(root, "/", ".")
	if !strings.HasSuffix(root, ".") {
		root += "."
	}
	return root + ">"
}

// Subscribe delivers every message under root. An empty root subscribes to all subjects.
func (s *NATSSubscriber) Subscribe(root string) (<-chan Message, func(), error) {
	p := newPipe(deliveryBuffer)
	subject := natsSubject(root)

	s.mu.Lock()
	s.reconnects = s.conn.Stats().Reconnects
	s.mu.Unlock()

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		s.announceReconnect(s.conn, p)
		p.send(Message{Topic: msg.Subject, Payload: msg.Data})
	})
	if err != nil {
		close(p.ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so that messages published on other connections are routed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(p.ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	s.active.Store(p)
	logging.Component("transport").Info().Str("subject", subject).Msg("listening to root subject")

	cancel := func() {
		p.close(func() { _ = sub.Unsubscribe() })
	}
	return p.ch, cancel, nil
}

// announceReconnect sends one Reconnected marker per completed reconnect.
// The reconnect callback and message delivery run on different goroutines,
// so whichever sees the new count first sends the marker, and a roll from
// the new session never overtakes it.
func (s *NATSSubscriber) announceReconnect(nc *nats.Conn, p *pipe) {
	n := nc.Stats().Reconnects
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= s.reconnects {
		return
	}
	s.reconnects = n
	p.send(Message{Reconnected: true})
}

// Close closes the NATS connection.
func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

var _ Subscriber = (*NATSSubscriber)(nil)
