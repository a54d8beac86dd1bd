package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by ApplyEnv. They override the YAML file.
const (
	EnvDeviceHost   = "TASMOTA_HOST"
	EnvMQTTEnabled  = "ENABLE_MQTT"
	EnvTimezone     = "TZ"
	EnvMQTTHost     = "MQTT_HOST"
	EnvMQTTTopic    = "MQTT_TOPIC"
	EnvMQTTPort     = "MQTT_PORT"
	EnvMQTTUsername = "MQTT_USERNAME"
	EnvMQTTPassword = "MQTT_PASSWORD"
)

const (
	defaultDeviceHost     = "192.168.1.103"
	defaultDeviceCommand  = "SerialSend2"
	defaultDeviceTimeout  = 2000
	defaultTimezone       = "Europe/Paris"
	defaultMQTTHost       = "localhost"
	defaultMQTTTopic      = "clock"
	defaultMQTTPort       = 1883
	defaultQueueSize      = 64
	defaultPublishTimeout = 2000
	defaultMaxPayload     = 1024
	defaultTickMillis     = 1000
	defaultLogDir         = "logs"
	defaultRetentionDays  = 7
	defaultStatsInterval  = 300
)

// Config represents the complete display service configuration
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Clock   ClockConfig   `yaml:"clock"`
	Logging LoggingConfig `yaml:"logging"`
	Stats   StatsConfig   `yaml:"stats"`

	// LoadedFrom records where the configuration came from (file path or "defaults").
	LoadedFrom string `yaml:"-"`
}

// DeviceConfig describes the Tasmota serial bridge driving the display
type DeviceConfig struct {
	Host      string `yaml:"host"`
	Command   string `yaml:"command"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// MQTTConfig contains broker settings for command input and state output
type MQTTConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Topic            string `yaml:"topic"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	ClientID         string `yaml:"client_id"`
	QueueSize        int    `yaml:"queue_size"`
	PublishTimeoutMS int    `yaml:"publish_timeout_ms"`
	MaxPayloadBytes  int    `yaml:"max_payload_bytes"`
}

// ClockConfig controls the refresh cadence and timezone of clock-driven modes
type ClockConfig struct {
	Timezone string `yaml:"timezone"`
	TickMS   int    `yaml:"tick_ms"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// StatsConfig controls the periodic status line.
type StatsConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Default returns the configuration used when no file or env is present.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Host:      defaultDeviceHost,
			Command:   defaultDeviceCommand,
			TimeoutMS: defaultDeviceTimeout,
		},
		MQTT: MQTTConfig{
			Enabled:          true,
			Host:             defaultMQTTHost,
			Port:             defaultMQTTPort,
			Topic:            defaultMQTTTopic,
			QueueSize:        defaultQueueSize,
			PublishTimeoutMS: defaultPublishTimeout,
			MaxPayloadBytes:  defaultMaxPayload,
		},
		Clock: ClockConfig{
			Timezone: defaultTimezone,
			TickMS:   defaultTickMillis,
		},
		Logging: LoggingConfig{
			Dir:           defaultLogDir,
			RetentionDays: defaultRetentionDays,
		},
		Stats: StatsConfig{
			IntervalSeconds: defaultStatsInterval,
		},
		LoadedFrom: "defaults",
	}
}

// Load loads configuration from a YAML file layered over Default. An empty
// filename returns the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(filename) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.LoadedFrom = filename
	return cfg, nil
}

// Purpose: Overlay environment variables on the loaded configuration.
// Key aspects: Unset or blank variables leave values untouched; malformed
// values are logged and ignored.
// Upstream: main startup after Load.
// Downstream: lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			*dst = strings.TrimSpace(raw)
		}
	}
	str(EnvDeviceHost, &c.Device.Host)
	str(EnvTimezone, &c.Clock.Timezone)
	str(EnvMQTTHost, &c.MQTT.Host)
	str(EnvMQTTTopic, &c.MQTT.Topic)

	// Credentials are taken verbatim; an explicitly empty value clears them.
	if raw, ok := lookup(EnvMQTTUsername); ok {
		c.MQTT.Username = raw
	}
	if raw, ok := lookup(EnvMQTTPassword); ok {
		c.MQTT.Password = raw
	}

	if raw, ok := lookup(EnvMQTTEnabled); ok && strings.TrimSpace(raw) != "" {
		c.MQTT.Enabled = strings.EqualFold(strings.TrimSpace(raw), "true")
	}
	if raw, ok := lookup(EnvMQTTPort); ok && strings.TrimSpace(raw) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			log.Printf("Config: ignoring invalid %s=%q; using %d", EnvMQTTPort, raw, c.MQTT.Port)
		} else {
			c.MQTT.Port = port
		}
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device.Host) == "" {
		return fmt.Errorf("device.host must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if !c.MQTT.Enabled {
		return nil
	}
	if strings.TrimSpace(c.MQTT.Host) == "" {
		return fmt.Errorf("mqtt.host must not be empty")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port %d out of range", c.MQTT.Port)
	}
	if strings.Trim(strings.TrimSpace(c.MQTT.Topic), "/") == "" {
		return fmt.Errorf("mqtt.topic must not be empty")
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Clock.Timezone))
	if err != nil {
		return nil, fmt.Errorf("clock.timezone %q: %w", c.Clock.Timezone, err)
	}
	return loc, nil
}

// TickInterval returns the refresh cadence, falling back to one second.
func (c *Config) TickInterval() time.Duration {
	return millis(c.Clock.TickMS, defaultTickMillis)
}

// DeviceTimeout returns the per-request device timeout.
func (c *Config) DeviceTimeout() time.Duration {
	return millis(c.Device.TimeoutMS, defaultDeviceTimeout)
}

// PublishTimeout returns how long a bus publish may wait.
func (c *Config) PublishTimeout() time.Duration {
	return millis(c.MQTT.PublishTimeoutMS, defaultPublishTimeout)
}

// StatsInterval returns the status line cadence; zero disables it.
func (c *Config) StatsInterval() time.Duration {
	if c.Stats.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Stats.IntervalSeconds) * time.Second
}

func millis(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Millisecond
}

// Print displays the configuration
func (c *Config) Print() {
	fmt.Printf("Device: %s (%s, timeout %s)\n", c.Device.Host, c.Device.Command, c.DeviceTimeout())
	fmt.Printf("Clock: %s (tick %s)\n", c.Clock.Timezone, c.TickInterval())
	if c.MQTT.Enabled {
		auth := "anonymous"
		if c.MQTT.Username != "" {
			auth = "user " + c.MQTT.Username
		}
		fmt.Printf("MQTT: %s:%d (topic: %s, %s)\n", c.MQTT.Host, c.MQTT.Port, c.MQTT.Topic, auth)
	} else {
		fmt.Println("MQTT: disabled")
	}
	if c.Logging.Enabled {
		fmt.Printf("Logging: %s (retention %d days)\n", c.Logging.Dir, c.Logging.RetentionDays)
	}
}
