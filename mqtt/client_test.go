package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pilot-bridge/feature"
	"pilot-bridge/pilotingitf"
)

// MockMQTTClient для тестирования
type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) Connect() mqttLib.Token {
	args := m.Called()
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqttLib.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) mqttLib.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback mqttLib.MessageHandler) mqttLib.Token {
	args := m.Called(filters, callback)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) Unsubscribe(topics ...string) mqttLib.Token {
	args := m.Called(topics)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) AddRoute(topic string, callback mqttLib.MessageHandler) {
	m.Called(topic, callback)
}

func (m *MockMQTTClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) IsConnectionOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func (m *MockMQTTClient) OptionsReader() mqttLib.ClientOptionsReader {
	args := m.Called()
	return args.Get(0).(mqttLib.ClientOptionsReader)
}

// MockHandler записывает вызовы DeviceHandler
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) LinkUp()                      { m.Called() }
func (m *MockHandler) LinkDown()                    { m.Called() }
func (m *MockHandler) HandleEvent(ev feature.Event) { m.Called(ev) }

// doneToken: завершенный токен paho
type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

// mockMessage: входящее сообщение MQTT
type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func newTestClient(t *testing.T, snapshots <-chan pilotingitf.Snapshot) (*Client, *MockMQTTClient, *MockHandler) {
	t.Helper()
	broker := &MockMQTTClient{}
	handler := &MockHandler{}
	broker.On("Connect").Return(doneToken{})

	config := DefaultConfig()
	client := NewClient(config)
	if snapshots != nil {
		client.PublishStates(snapshots)
	}
	client.factory = func(*mqttLib.ClientOptions) mqttLib.Client { return broker }
	require.NoError(t, client.Start(handler))
	return client, broker, handler
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "tcp://localhost:1883", config.Broker)
	assert.True(t, strings.HasPrefix(config.ClientID, "pilot-bridge-"))
	assert.Equal(t, byte(1), config.QoS)
	assert.True(t, config.AutoReconnect)
}

func TestGenerateClientID(t *testing.T) {
	id1 := generateClientID()
	id2 := generateClientID()
	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, len("pilot-bridge-")+8)
}

func TestNewClientFillsClientID(t *testing.T) {
	client := NewClient(Config{Broker: "tcp://broker:1883"})
	assert.NotEmpty(t, client.config.ClientID)
	assert.False(t, client.IsConnected())
}

func TestTopics(t *testing.T) {
	config := Config{TopicPrefix: "fleet/d1"}
	assert.Equal(t, "fleet/d1/command", config.commandTopic())
	assert.Equal(t, "fleet/d1/pcmd", config.pcmdTopic())
	assert.Equal(t, "fleet/d1/event", config.eventTopic())
	assert.Equal(t, "fleet/d1/state/followme", config.stateTopic(pilotingitf.KindFollowMe))
}

func TestStartRequiresHandler(t *testing.T) {
	client := NewClient(DefaultConfig())
	assert.Error(t, client.Start(nil))
}

func TestStartConnectFailure(t *testing.T) {
	broker := &MockMQTTClient{}
	broker.On("Connect").Return(doneToken{err: errors.New("connection refused")})

	client := NewClient(DefaultConfig())
	client.factory = func(*mqttLib.ClientOptions) mqttLib.Client { return broker }
	err := client.Start(&MockHandler{})
	assert.ErrorContains(t, err, "connection refused")
}

func TestLinkLifecycle(t *testing.T) {
	client, broker, handler := newTestClient(t, nil)

	broker.On("Subscribe", "drone/event", byte(1), mock.Anything).Return(doneToken{})
	handler.On("LinkUp").Once()
	client.onConnectHandler(broker)

	handler.On("LinkDown").Once()
	client.onConnectionLostHandler(broker, errors.New("EOF"))

	broker.AssertExpectations(t)
	handler.AssertExpectations(t)
}

func TestSubscribeFailureKeepsLinkDown(t *testing.T) {
	client, broker, handler := newTestClient(t, nil)

	broker.On("Subscribe", "drone/event", byte(1), mock.Anything).Return(doneToken{err: errors.New("not authorized")})
	client.onConnectHandler(broker)

	handler.AssertNotCalled(t, "LinkUp")
}

func TestEventReceived(t *testing.T) {
	client, _, handler := newTestClient(t, nil)

	payload, err := feature.EncodeEvent(feature.FlyingStateChanged{State: feature.StateFlying})
	require.NoError(t, err)
	handler.On("HandleEvent", feature.FlyingStateChanged{State: feature.StateFlying}).Once()
	client.onEventReceived(nil, &mockMessage{topic: "drone/event", payload: payload})

	// недекодируемые сообщения отбрасываются
	client.onEventReceived(nil, &mockMessage{topic: "drone/event", payload: []byte{0xFF, 0xFF}})
	client.onEventReceived(nil, &mockMessage{topic: "drone/event", payload: []byte{0x01}})

	handler.AssertExpectations(t)
	handler.AssertNumberOfCalls(t, "HandleEvent", 1)
}

func TestSendCommands(t *testing.T) {
	client, broker, _ := newTestClient(t, nil)
	broker.On("IsConnected").Return(true)

	takeOff, err := feature.EncodeCommand(feature.TakeOff{})
	require.NoError(t, err)
	broker.On("Publish", "drone/command", byte(1), false, takeOff).Return(doneToken{}).Once()
	assert.True(t, client.SendCommand(feature.TakeOff{}))

	pcmd := feature.PCMD{Flag: 1, Pitch: -10, Seq: 3}
	encoded, err := feature.EncodeCommand(pcmd)
	require.NoError(t, err)
	broker.On("Publish", "drone/pcmd", byte(0), false, encoded).Return(doneToken{}).Once()
	assert.True(t, client.SendNoAckCommand(pcmd))

	broker.AssertExpectations(t)
}

func TestSendWithoutConnection(t *testing.T) {
	client, broker, _ := newTestClient(t, nil)
	broker.On("IsConnected").Return(false)

	assert.False(t, client.SendCommand(feature.Landing{}))
	assert.False(t, client.SendNoAckCommand(feature.PCMD{}))
	broker.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSnapshotPublishing(t *testing.T) {
	snapshots := make(chan pilotingitf.Snapshot, 1)
	client, broker, _ := newTestClient(t, snapshots)
	broker.On("IsConnected").Return(true)

	published := make(chan []byte, 1)
	broker.On("Publish", "drone/state/manual", byte(1), true, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(doneToken{})

	snapshots <- pilotingitf.Snapshot{Kind: pilotingitf.KindManual, Published: true, State: pilotingitf.Active, Version: 2}

	select {
	case payload := <-published:
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, "manual", decoded["kind"])
		assert.Equal(t, "active", decoded["state"])
		assert.EqualValues(t, 2, decoded["version"])
	case <-time.After(time.Second):
		t.Fatal("snapshot was not published")
	}

	broker.On("Disconnect", uint(1000)).Once()
	require.NoError(t, client.Stop())
	broker.AssertExpectations(t)
}
