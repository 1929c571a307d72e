// Package transport delivers broker messages to the ingestion loop as a channel.
package transport

import (
	"errors"
	"sync"
)

// ErrConnect is returned when the initial broker connection fails.
var ErrConnect = errors.New("transport: connection failure")

// Message is one inbound broker message.
type Message struct {
	Topic   string
	Payload []byte
	// Reconnected marks a control message emitted after the client
	// re-established a dropped connection. It carries no payload.
	Reconnected bool
}

// Subscriber receives messages from the broker.
type Subscriber interface {
	// Subscribe delivers every message under root on the returned channel,
	// in arrival order. Call the returned cancel function to unsubscribe
	// and close the channel.
	Subscribe(root string) (<-chan Message, func(), error)
	Close() error
}

// deliveryBuffer bounds how many messages may wait for a slow consumer. Once
// it is full, broker callbacks block: the MQTT client then stops routing
// inbound packets, and a consumer stalled for longer than the keepalive can
// cost the connection. The client reconnects on its own and emits Reconnected.
const deliveryBuffer = 1024

// pipe is the channel plumbing shared by the subscribers. Broker callbacks
// block until the consumer takes the message, so nothing is dropped, and a
// cancelled pipe never panics on send.
type pipe struct {
	ch     chan Message
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newPipe(buffer int) *pipe {
	return &pipe{
		ch:   make(chan Message, buffer),
		done: make(chan struct{}),
	}
}

func (p *pipe) send(msg Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- msg:
	case <-p.done:
	}
}

// close unblocks pending senders, runs unsubscribe and closes the channel.
func (p *pipe) close(unsubscribe func()) {
	p.once.Do(func() {
		close(p.done)
		if unsubscribe != nil {
			unsubscribe()
		}
		p.mu.Lock()
		p.closed = true
		close(p.ch)
		p.mu.Unlock()
	})
}
