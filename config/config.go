package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"

	"pilot-bridge/flightlog"
	"pilot-bridge/link"
	"pilot-bridge/mqtt"
	"pilot-bridge/pilotingitf"
	"pilot-bridge/server"
	"pilot-bridge/updater"
)

var logger = log.New(os.Stdout, "[Config] ", log.LstdFlags|log.Lshortfile)

// EnvPrefix: префикс переменных окружения, например PILOT_MQTT_BROKER
const EnvPrefix = "PILOT"

// Транспорты связи с дроном
const (
	TransportSerial = "serial"
	TransportMQTT   = "mqtt"
)

// DeviceConfig выбирает транспорт и настраивает последовательный канал
type DeviceConfig struct {
	Transport   string `mapstructure:"transport"`
	link.Config `mapstructure:",squash"`
}

// Config: полная конфигурация моста
type Config struct {
	Device    DeviceConfig       `mapstructure:"device"`
	MQTT      mqtt.Config        `mapstructure:"mqtt"`
	Piloting  pilotingitf.Config `mapstructure:"piloting"`
	Updater   updater.Config     `mapstructure:"updater"`
	Server    server.Config      `mapstructure:"server"`
	FlightLog flightlog.Config   `mapstructure:"flightlog"`
}

func setDefaults(v *viper.Viper) {
	dev := link.DefaultConfig()
	v.SetDefault("device.transport", TransportSerial)
	v.SetDefault("device.device_path", dev.DevicePath)
	v.SetDefault("device.reconnect_interval", dev.ReconnectInterval)
	v.SetDefault("device.write_queue", dev.WriteQueue)

	// client_id пустой: клиент сгенерирует его при создании
	m := mqtt.DefaultConfig()
	v.SetDefault("mqtt.broker", m.Broker)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic_prefix", m.TopicPrefix)
	v.SetDefault("mqtt.qos", m.QoS)
	v.SetDefault("mqtt.keep_alive", m.KeepAlive)
	v.SetDefault("mqtt.connect_timeout", m.ConnectTimeout)
	v.SetDefault("mqtt.auto_reconnect", m.AutoReconnect)

	p := pilotingitf.DefaultConfig()
	v.SetDefault("piloting.pcmd_period", p.PCMDPeriod)
	v.SetDefault("piloting.setting_rollback_timeout", p.SettingTimeout)
	v.SetDefault("piloting.max_pitch_roll_min", p.MaxPitchRollMin)
	v.SetDefault("piloting.max_pitch_roll_max", p.MaxPitchRollMax)

	u := updater.DefaultConfig()
	v.SetDefault("updater.base_url", u.BaseURL)
	v.SetDefault("updater.segment_size", u.SegmentSize)
	v.SetDefault("updater.timeout", u.Timeout)

	s := server.DefaultConfig()
	v.SetDefault("server.addr", s.Addr)
	v.SetDefault("server.stream_buffer", s.StreamBuffer)
	v.SetDefault("server.shutdown_timeout", s.ShutdownTimeout)
	v.SetDefault("server.upload_dir", s.UploadDir)
	v.SetDefault("server.upload_retention", s.UploadRetention)

	v.SetDefault("flightlog.dsn", flightlog.DefaultConfig().DSN)
}

// Load читает конфигурацию из path. Пустой path ищет config.yaml в текущем
// каталоге; если файла нет, используются значения по умолчанию.
// Переменные окружения PILOT_* имеют приоритет над файлом.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		logger.Println("No config.yaml found, using defaults")
	} else {
		logger.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет значения, без которых мост не может работать
func (c Config) Validate() error {
	switch c.Device.Transport {
	case TransportSerial:
		if c.Device.DevicePath == "" {
			return errors.New("device.device_path is required for serial transport")
		}
	case TransportMQTT:
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.broker is required for mqtt transport")
		}
	default:
		return fmt.Errorf("unknown device.transport %q", c.Device.Transport)
	}
	if c.Piloting.PCMDPeriod <= 0 {
		return errors.New("piloting.pcmd_period must be positive")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Updater.SegmentSize <= 0 {
		return errors.New("updater.segment_size must be positive")
	}
	return nil
}
