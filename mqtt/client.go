package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"pilot-bridge/common"
	"pilot-bridge/feature"
	"pilot-bridge/pilotingitf"
)

// ErrNotConnected возвращается при публикации без соединения с брокером
var ErrNotConnected = errors.New("MQTT client not connected")

// Config представляет конфигурацию MQTT клиента
type Config struct {
	Broker         string        `mapstructure:"broker"`          // Адрес брокера, например "tcp://localhost:1883"
	Username       string        `mapstructure:"username"`        // Имя пользователя (опционально)
	Password       string        `mapstructure:"password"`        // Пароль (опционально)
	ClientID       string        `mapstructure:"client_id"`       // ID клиента (опционально, генерируется если пустой)
	TopicPrefix    string        `mapstructure:"topic_prefix"`    // Базовый топик дрона
	QoS            byte          `mapstructure:"qos"`             // Quality of Service для команд с подтверждением
	KeepAlive      int           `mapstructure:"keep_alive"`      // Интервал keep alive в секундах
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // Таймаут подключения
	AutoReconnect  bool          `mapstructure:"auto_reconnect"`  // Автоматическое переподключение
}

// generateClientID генерирует случайный ID клиента
func generateClientID() string {
	return "pilot-bridge-" + uuid.NewString()[:8]
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       generateClientID(),
		TopicPrefix:    "drone",
		QoS:            1,
		KeepAlive:      60,
		ConnectTimeout: 10 * time.Second,
		AutoReconnect:  true,
	}
}

// Топики относительно TopicPrefix
func (c Config) commandTopic() string { return c.TopicPrefix + "/command" }
func (c Config) pcmdTopic() string    { return c.TopicPrefix + "/pcmd" }
func (c Config) eventTopic() string   { return c.TopicPrefix + "/event" }
func (c Config) stateTopic(kind pilotingitf.Kind) string {
	return fmt.Sprintf("%s/state/%s", c.TopicPrefix, kind)
}

// Client: транспорт через MQTT брокер. Команды публикуются в <prefix>/command
// и <prefix>/pcmd, события приходят из <prefix>/event.
type Client struct {
	config     Config
	mqttClient mqttLib.Client
	factory    func(*mqttLib.ClientOptions) mqttLib.Client
	handler    common.DeviceHandler
	snapshots  <-chan pilotingitf.Snapshot // Снимки интерфейсов для публикации (может быть nil)
	stopChan   chan struct{}
	wg         sync.WaitGroup
	logger     *log.Logger
}

var _ common.Transport = (*Client)(nil)

// NewClient создает нового MQTT клиента
func NewClient(config Config) *Client {
	if config.ClientID == "" {
		config.ClientID = generateClientID()
	}
	return &Client{
		config:   config,
		factory:  mqttLib.NewClient,
		stopChan: make(chan struct{}),
		logger:   log.New(os.Stdout, "[MQTT-Client] ", log.LstdFlags|log.Lshortfile),
	}
}

// PublishStates задает канал снимков, публикуемых в <prefix>/state/<kind>.
// Вызывается до Start.
func (c *Client) PublishStates(snapshots <-chan pilotingitf.Snapshot) {
	c.snapshots = snapshots
}

// options собирает опции подключения paho
func (c *Client) options() *mqttLib.ClientOptions {
	opts := mqttLib.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetKeepAlive(time.Duration(c.config.KeepAlive) * time.Second)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetAutoReconnect(c.config.AutoReconnect)

	// Устанавливаем аутентификацию если задана
	if c.config.Username != "" && c.config.Password != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
		c.logger.Println("MQTT authentication: ENABLED")
	} else {
		c.logger.Println("MQTT authentication: DISABLED (anonymous mode)")
	}

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.onConnectionLostHandler)
	opts.SetReconnectingHandler(c.onReconnectingHandler)
	return opts
}

// Start подключается к брокеру; события передаются handler
func (c *Client) Start(handler common.DeviceHandler) error {
	if handler == nil {
		return errors.New("device handler is required")
	}
	c.handler = handler
	c.logger.Printf("Starting MQTT client, broker: %s", c.config.Broker)

	c.mqttClient = c.factory(c.options())
	if token := c.mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	if c.snapshots != nil {
		c.wg.Add(1)
		go c.publishSnapshotsLoop()
	}

	c.logger.Println("MQTT client started successfully")
	return nil
}

// Stop останавливает MQTT клиента
func (c *Client) Stop() error {
	c.logger.Println("Stopping MQTT client...")

	close(c.stopChan)
	c.wg.Wait()

	if c.mqttClient != nil && c.mqttClient.IsConnected() {
		c.mqttClient.Disconnect(1000)
		c.logger.Println("MQTT client disconnected")
	}
	return nil
}

// IsConnected возвращает true если клиент подключен к брокеру
func (c *Client) IsConnected() bool {
	return c.mqttClient != nil && c.mqttClient.IsConnected()
}

// onConnectHandler вызывается при успешном подключении к брокеру
func (c *Client) onConnectHandler(client mqttLib.Client) {
	c.logger.Println("Connected to MQTT broker")

	topic := c.config.eventTopic()
	if token := client.Subscribe(topic, c.config.QoS, c.onEventReceived); token.Wait() && token.Error() != nil {
		c.logger.Printf("Failed to subscribe to event topic %s: %v", topic, token.Error())
		return
	}
	c.logger.Printf("Subscribed to event topic: %s", topic)

	c.handler.LinkUp()
}

// onConnectionLostHandler вызывается при потере соединения
func (c *Client) onConnectionLostHandler(client mqttLib.Client, err error) {
	c.logger.Printf("Connection lost: %v", err)
	c.handler.LinkDown()
}

// onReconnectingHandler вызывается при попытке переподключения
func (c *Client) onReconnectingHandler(client mqttLib.Client, opts *mqttLib.ClientOptions) {
	c.logger.Println("Attempting to reconnect to MQTT broker...")
}

// onEventReceived декодирует событие дрона
func (c *Client) onEventReceived(client mqttLib.Client, msg mqttLib.Message) {
	ev, err := feature.DecodeEvent(msg.Payload())
	if err != nil {
		feature.LogUnknown(msg.Payload(), err)
		return
	}
	c.handler.HandleEvent(ev)
}

// SendCommand публикует команду с подтверждением
func (c *Client) SendCommand(cmd feature.Command) bool {
	return c.publishCommand(c.config.commandTopic(), c.config.QoS, cmd)
}

// SendNoAckCommand публикует команду без подтверждения (QoS 0)
func (c *Client) SendNoAckCommand(cmd feature.Command) bool {
	return c.publishCommand(c.config.pcmdTopic(), 0, cmd)
}

func (c *Client) publishCommand(topic string, qos byte, cmd feature.Command) bool {
	if !c.IsConnected() {
		return false
	}
	payload, err := feature.EncodeCommand(cmd)
	if err != nil {
		c.logger.Printf("Failed to encode command: %v", err)
		return false
	}
	// paho ставит сообщение в свою очередь, ожидание токена не нужно
	c.mqttClient.Publish(topic, qos, false, payload)
	return true
}

// publishSnapshotsLoop публикует снимки интерфейсов
func (c *Client) publishSnapshotsLoop() {
	defer c.wg.Done()
	c.logger.Println("Starting state publish loop")

	for {
		select {
		case <-c.stopChan:
			c.logger.Println("State publish loop stopped")
			return
		case snap, ok := <-c.snapshots:
			if !ok {
				c.logger.Println("Snapshot channel closed")
				return
			}
			if err := c.publishSnapshot(snap); err != nil {
				c.logger.Printf("Failed to publish state: %v", err)
			}
		}
	}
}

// publishSnapshot публикует снимок как retained JSON
func (c *Client) publishSnapshot(snap pilotingitf.Snapshot) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	topic := c.config.stateTopic(snap.Kind)
	token := c.mqttClient.Publish(topic, 1, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}
