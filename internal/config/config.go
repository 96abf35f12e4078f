// Package config loads daemon settings from YAML, .env and LAMP_* variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/lamp-controller/internal/gpio"
)

const (
	// DefaultFilename is read when no --config flag is given. It may be absent.
	DefaultFilename = "lamp-controller.yaml"

	// DefaultEnvFile is loaded into the environment before overrides are applied.
	DefaultEnvFile = ".env"

	// DefaultPollInterval matches the sensor polling cadence of the firmware.
	DefaultPollInterval = 100 * time.Millisecond

	DefaultStorePath    = "/var/lib/lamp-controller/state.db"
	DefaultStoreTimeout = 2 * time.Second
	DefaultBroker       = "tcp://localhost:1883"
	DefaultBufferSize   = 16
	DefaultHTTPAddr     = ":8080"
	DefaultChip         = gpio.DefaultChip
	DefaultRelayPin     = gpio.DefaultPinRelay
	DefaultSensorPin    = gpio.DefaultPinSensor
)

// Environment variable names. Each overrides the matching YAML field.
const (
	EnvLogLevel     = "LAMP_LOG_LEVEL"
	EnvBroker       = "LAMP_MQTT_BROKER"
	EnvUsername     = "LAMP_MQTT_USERNAME"
	EnvPassword     = "LAMP_MQTT_PASSWORD"
	EnvClientID     = "LAMP_MQTT_CLIENT_ID"
	EnvStorePath    = "LAMP_STORE_PATH"
	EnvHTTPAddr     = "LAMP_HTTP"
	EnvPollInterval = "LAMP_POLL"
	EnvDebounce     = "LAMP_DEBOUNCE"
	EnvHeartbeat    = "LAMP_HEARTBEAT"
	EnvRelayPin     = "LAMP_RELAY_PIN"
	EnvSensorPin    = "LAMP_SENSOR_PIN"
)

var (
	errBrokerRequired = errors.New("mqtt broker must be provided")
	errInvalidPoll    = errors.New("poll interval must be positive")
	errSamePins       = errors.New("relay and sensor pins must differ")
	errNegativePin    = errors.New("gpio pins must not be negative")
)

// Config is the root configuration for the daemon.
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	Poll      time.Duration `yaml:"poll"`
	Debounce  time.Duration `yaml:"debounce"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	HTTPAddr  string        `yaml:"http"`
	GPIO      GPIOConfig    `yaml:"gpio"`
	Store     StoreConfig   `yaml:"store"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
}

// GPIOConfig selects the chip and BCM line offsets.
type GPIOConfig struct {
	Chip            string `yaml:"chip"`
	RelayPin        int    `yaml:"relay_pin"`
	SensorPin       int    `yaml:"sensor_pin"`
	RelayActiveLow  bool   `yaml:"relay_active_low"`
	SensorActiveLow bool   `yaml:"sensor_active_low"`
}

// StoreConfig contains the SQLite flag store settings.
type StoreConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

// RetryConfig controls retries of failed flag writes.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int           `yaml:"attempts"`
	Initial  time.Duration `yaml:"initial"`
	Max      time.Duration `yaml:"max"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	// BufferSize is how many attribute publishes are kept while offline.
	BufferSize int `yaml:"buffer_size"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{HTTPAddr: DefaultHTTPAddr}
	applyDefaults(cfg)

	return cfg
}

// Load reads the YAML file at path, then applies .env and LAMP_* overrides.
// A missing file is only an error when path is not the default filename.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFilename
	}

	// Start from defaults so YAML can clear a field such as http explicitly.
	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultFilename:
		// Run on defaults and environment only.
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := loadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fills defaults and checks the fields the daemon cannot run without.
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	if cfg.MQTT.Broker == "" {
		return errBrokerRequired
	}

	if _, err := url.Parse(cfg.MQTT.Broker); err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}

	if cfg.Poll <= 0 {
		return errInvalidPoll
	}

	if cfg.GPIO.RelayPin < 0 || cfg.GPIO.SensorPin < 0 {
		return errNegativePin
	}

	if cfg.GPIO.RelayPin == cfg.GPIO.SensorPin {
		return errSamePins
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Poll == 0 {
		cfg.Poll = DefaultPollInterval
	}

	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}

	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = DefaultChip
	}

	if cfg.GPIO.RelayPin == 0 && cfg.GPIO.SensorPin == 0 {
		cfg.GPIO.RelayPin = DefaultRelayPin
		cfg.GPIO.SensorPin = DefaultSensorPin
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}

	if cfg.Store.Timeout <= 0 {
		cfg.Store.Timeout = DefaultStoreTimeout
	}

	if cfg.Store.Retry.Attempts <= 0 {
		cfg.Store.Retry.Attempts = 3
	}

	if cfg.Store.Retry.Initial <= 0 {
		cfg.Store.Retry.Initial = 50 * time.Millisecond
	}

	if cfg.Store.Retry.Max <= 0 {
		cfg.Store.Retry.Max = 500 * time.Millisecond
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = DefaultBroker
	}

	if cfg.MQTT.BufferSize <= 0 {
		cfg.MQTT.BufferSize = DefaultBufferSize
	}
}

// loadEnvFile populates the environment from path. Variables already set win.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	stringVars := map[string]*string{
		EnvLogLevel:  &cfg.LogLevel,
		EnvBroker:    &cfg.MQTT.Broker,
		EnvUsername:  &cfg.MQTT.Username,
		EnvPassword:  &cfg.MQTT.Password,
		EnvClientID:  &cfg.MQTT.ClientID,
		EnvStorePath: &cfg.Store.Path,
		EnvHTTPAddr:  &cfg.HTTPAddr,
	}
	for name, dst := range stringVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	durationVars := map[string]*time.Duration{
		EnvPollInterval: &cfg.Poll,
		EnvDebounce:     &cfg.Debounce,
		EnvHeartbeat:    &cfg.Heartbeat,
	}
	for name, dst := range durationVars {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = d
	}

	intVars := map[string]*int{
		EnvRelayPin:  &cfg.GPIO.RelayPin,
		EnvSensorPin: &cfg.GPIO.SensorPin,
	}
	for name, dst := range intVars {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = n
	}

	return nil
}
