package transport

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// testBroker is an embedded MQTT broker. Publishing goes through the
// broker's inline client.
type testBroker struct {
	*mochi.Server
	once sync.Once
}

func (b *testBroker) stop() {
	b.once.Do(func() { _ = b.Close() })
}

func startTestMQTT(t *testing.T, port int) *testBroker {
	t.Helper()
	b := &testBroker{Server: mochi.New(&mochi.Options{InlineClient: true})}
	require.NoError(t, b.AddHook(new(auth.AllowHook), nil))
	tcp := listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
	})
	require.NoError(t, b.AddListener(tcp))
	require.NoError(t, b.Serve())
	t.Cleanup(b.stop)
	return b
}

func newTestMQTTSubscriber(t *testing.T, port int) *MQTTSubscriber {
	t.Helper()
	sub, err := NewMQTTSubscriber(MQTTConfig{
		Host:           "127.0.0.1",
		Port:           port,
		KeepAlive:      5 * time.Second,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func TestMQTTSubscriber_WildcardInOrder(t *testing.T) {
	port := freePort(t)
	srv := startTestMQTT(t, port)
	sub := newTestMQTTSubscriber(t, port)

	ch, cancel, err := sub.Subscribe("wled/e5a658/dice")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, srv.Publish("other/roll", []byte("ignored"), false, 0))
	require.NoError(t, srv.Publish("wled/e5a658/dice/roll_label", []byte("goblins"), false, 0))
	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, srv.Publish("wled/e5a658/dice/roll", []byte(v), false, 0))
	}

	first := receive(t, ch)
	assert.Equal(t, "wled/e5a658/dice/roll_label", first.Topic)
	assert.Equal(t, "goblins", string(first.Payload))
	for _, v := range []string{"1", "2", "3"} {
		msg := receive(t, ch)
		assert.Equal(t, "wled/e5a658/dice/roll", msg.Topic)
		assert.Equal(t, v, string(msg.Payload))
	}

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message outside root: %q", msg.Topic)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMQTTSubscriber_EmptyRootReceivesEverything(t *testing.T) {
	port := freePort(t)
	srv := startTestMQTT(t, port)
	sub := newTestMQTTSubscriber(t, port)

	ch, cancel, err := sub.Subscribe("")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, srv.Publish("a/b/roll", []byte("x"), false, 0))
	assert.Equal(t, "a/b/roll", receive(t, ch).Topic)
}

func TestMQTTSubscriber_ResubscribesAfterRestart(t *testing.T) {
	port := freePort(t)
	srv := startTestMQTT(t, port)
	sub := newTestMQTTSubscriber(t, port)

	ch, cancel, err := sub.Subscribe("dice")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, srv.Publish("dice/roll", []byte("before"), false, 0))
	assert.Equal(t, "before", string(receive(t, ch).Payload))

	srv.stop()
	restarted := startTestMQTT(t, port)

	first := firstAfter(t, ch, func() {
		_ = restarted.Publish("dice/roll", []byte("after"), false, 0)
	})
	assert.Equal(t, Message{Reconnected: true}, first)

	next := receive(t, ch)
	assert.False(t, next.Reconnected)
	assert.Equal(t, "dice/roll", next.Topic)
	assert.Equal(t, "after", string(next.Payload))
}

func TestMQTTSubscriber_CancelClosesChannel(t *testing.T) {
	port := freePort(t)
	startTestMQTT(t, port)
	sub := newTestMQTTSubscriber(t, port)

	ch, cancel, err := sub.Subscribe("dice")
	require.NoError(t, err)
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "expected channel to be closed after cancel")
}

func TestNewMQTTSubscriber_ConnectFailure(t *testing.T) {
	_, err := NewMQTTSubscriber(MQTTConfig{Host: "127.0.0.1", Port: freePort(t), ConnectTimeout: time.Second})
	assert.ErrorIs(t, err, ErrConnect)
}
