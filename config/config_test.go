package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, TransportSerial, cfg.Device.Transport)
	assert.Equal(t, "/dev/rfcomm0", cfg.Device.DevicePath)
	assert.Equal(t, 5*time.Second, cfg.Device.ReconnectInterval)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Empty(t, cfg.MQTT.ClientID)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, 50*time.Millisecond, cfg.Piloting.PCMDPeriod)
	assert.Zero(t, cfg.Piloting.SettingTimeout)
	assert.Equal(t, "http://192.168.42.1", cfg.Updater.BaseURL)
	assert.Equal(t, 8192, cfg.Updater.SegmentSize)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Server.UploadRetention)
	assert.Empty(t, cfg.FlightLog.DSN)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
device:
  transport: mqtt
mqtt:
  broker: tcp://broker.local:1883
  topic_prefix: fleet/anafi-1
  qos: 0
piloting:
  pcmd_period: 25ms
  setting_rollback_timeout: 2s
updater:
  segment_size: 4096
server:
  addr: 127.0.0.1:9090
flightlog:
  dsn: postgres://pilot@localhost/flights
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportMQTT, cfg.Device.Transport)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, "fleet/anafi-1", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
	assert.True(t, cfg.MQTT.AutoReconnect)
	assert.Equal(t, 25*time.Millisecond, cfg.Piloting.PCMDPeriod)
	assert.Equal(t, 2*time.Second, cfg.Piloting.SettingTimeout)
	assert.Equal(t, 4096, cfg.Updater.SegmentSize)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://pilot@localhost/flights", cfg.FlightLog.DSN)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "mqtt:\n  broker: tcp://from-file:1883\n")
	t.Setenv("PILOT_MQTT_BROKER", "tcp://from-env:1883")
	t.Setenv("PILOT_PILOTING_PCMD_PERIOD", "100ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://from-env:1883", cfg.MQTT.Broker)
	assert.Equal(t, 100*time.Millisecond, cfg.Piloting.PCMDPeriod)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name    string
		content string
	}{
		{"unknown transport", "device:\n  transport: carrier-pigeon\n"},
		{"zero pcmd period", "piloting:\n  pcmd_period: 0s\n"},
		{"bad qos", "mqtt:\n  qos: 3\n"},
		{"bad segment size", "updater:\n  segment_size: 0\n"},
		{"malformed yaml", "device: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
