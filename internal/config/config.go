package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "smsbridge.toml"

// Config is the top-level smsbridge configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	SMS     SMSConfig     `toml:"sms"`
	Events  EventsConfig  `toml:"events"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ShutdownTimeout int    `toml:"shutdown_timeout"` // seconds
}

// SMSConfig selects the gateway and holds per-gateway settings.
type SMSConfig struct {
	Provider         string       `toml:"provider"` // "etxt", "twilio", "telnyx", "plivo", "sns" or "log"
	AllowedCountries []string     `toml:"allowed_countries"`
	RequestTimeout   int          `toml:"request_timeout"` // seconds, 0 disables the client timeout
	ETxt             ETxtConfig   `toml:"etxt"`
	Twilio           TwilioConfig `toml:"twilio"`
	Telnyx           TelnyxConfig `toml:"telnyx"`
	Plivo            PlivoConfig  `toml:"plivo"`
	SNS              SNSConfig    `toml:"sns"`
}

type ETxtConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	BaseURL   string `toml:"base_url"`
}

type TwilioConfig struct {
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
	From       string `toml:"from"`
	BaseURL    string `toml:"base_url"`
}

type TelnyxConfig struct {
	APIKey  string `toml:"api_key"`
	From    string `toml:"from"`
	BaseURL string `toml:"base_url"`
}

type PlivoConfig struct {
	AuthID    string `toml:"auth_id"`
	AuthToken string `toml:"auth_token"`
	From      string `toml:"from"`
	BaseURL   string `toml:"base_url"`
}

type SNSConfig struct {
	Region string `toml:"region"`
}

// EventsConfig controls the SQLite diagnostics event log.
type EventsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8095,
			ShutdownTimeout: 10,
		},
		SMS: SMSConfig{
			Provider:         "log",
			AllowedCountries: []string{"NZ", "AU"},
			RequestTimeout:   30,
		},
		Events: EventsConfig{
			Enabled: true,
			Path:    "./smsbridge_data/events.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration with priority: defaults → smsbridge.toml → env vars → CLI flags.
// The flags parameter allows CLI flag overrides to be passed in.
func Load(configPath string, flags map[string]string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = DefaultPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be non-negative, got %d", c.Server.ShutdownTimeout)
	}
	if c.SMS.RequestTimeout < 0 {
		return fmt.Errorf("sms.request_timeout must be non-negative, got %d", c.SMS.RequestTimeout)
	}
	switch c.SMS.Provider {
	case "log", "sns":
	case "etxt":
		if c.SMS.ETxt.APIKey == "" || c.SMS.ETxt.APISecret == "" {
			return fmt.Errorf("sms.etxt.api_key and sms.etxt.api_secret are required when sms.provider is \"etxt\"")
		}
		if err := checkBaseURL("sms.etxt.base_url", c.SMS.ETxt.BaseURL); err != nil {
			return err
		}
	case "twilio":
		tw := c.SMS.Twilio
		if tw.AccountSID == "" || tw.AuthToken == "" || tw.From == "" {
			return fmt.Errorf("sms.twilio.account_sid, sms.twilio.auth_token and sms.twilio.from are required when sms.provider is \"twilio\"")
		}
		if err := checkBaseURL("sms.twilio.base_url", tw.BaseURL); err != nil {
			return err
		}
	case "telnyx":
		tx := c.SMS.Telnyx
		if tx.APIKey == "" || tx.From == "" {
			return fmt.Errorf("sms.telnyx.api_key and sms.telnyx.from are required when sms.provider is \"telnyx\"")
		}
		if err := checkBaseURL("sms.telnyx.base_url", tx.BaseURL); err != nil {
			return err
		}
	case "plivo":
		pl := c.SMS.Plivo
		if pl.AuthID == "" || pl.AuthToken == "" || pl.From == "" {
			return fmt.Errorf("sms.plivo.auth_id, sms.plivo.auth_token and sms.plivo.from are required when sms.provider is \"plivo\"")
		}
		if err := checkBaseURL("sms.plivo.base_url", pl.BaseURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("sms.provider must be one of: etxt, twilio, telnyx, plivo, sns, log; got %q", c.SMS.Provider)
	}
	for _, code := range c.SMS.AllowedCountries {
		if len(code) != 2 {
			return fmt.Errorf("sms.allowed_countries entries must be ISO 3166-1 alpha-2 codes, got %q", code)
		}
	}
	if c.Events.Enabled && c.Events.Path == "" {
		return fmt.Errorf("events.path is required when events.enabled is true")
	}
	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", c.Logging.Level)
		}
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be \"json\" or \"text\"; got %q", c.Logging.Format)
	}
	return nil
}

// Address returns the host:port string for the server to listen on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RequestTimeoutDuration returns the per-request gateway timeout.
func (c *SMSConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GenerateDefault writes a commented default smsbridge.toml to the given path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultTOML), 0o644)
}

// ToTOML returns the config serialized as TOML.
func (c *Config) ToTOML() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// envInt reads an integer from the named environment variable.
// Returns an error if the value is set but not a valid integer.
func envString(name string, dest *string) {
	if v := os.Getenv(name); v != "" {
		*dest = v
	}
}

func envInt(name string, dest *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q is not an integer", name, v)
	}
	*dest = n
	return nil
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SMSBRIDGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("SMSBRIDGE_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := envInt("SMSBRIDGE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	if v := os.Getenv("SMSBRIDGE_SMS_PROVIDER"); v != "" {
		cfg.SMS.Provider = v
	}
	if v, ok := os.LookupEnv("SMSBRIDGE_SMS_ALLOWED_COUNTRIES"); ok {
		cfg.SMS.AllowedCountries = splitList(v)
	}
	if err := envInt("SMSBRIDGE_SMS_REQUEST_TIMEOUT", &cfg.SMS.RequestTimeout); err != nil {
		return err
	}
	if v := os.Getenv("SMSBRIDGE_ETXT_API_KEY"); v != "" {
		cfg.SMS.ETxt.APIKey = v
	}
	if v := os.Getenv("SMSBRIDGE_ETXT_API_SECRET"); v != "" {
		cfg.SMS.ETxt.APISecret = v
	}
	if v := os.Getenv("SMSBRIDGE_ETXT_BASE_URL"); v != "" {
		cfg.SMS.ETxt.BaseURL = v
	}
	envString("SMSBRIDGE_TWILIO_ACCOUNT_SID", &cfg.SMS.Twilio.AccountSID)
	envString("SMSBRIDGE_TWILIO_AUTH_TOKEN", &cfg.SMS.Twilio.AuthToken)
	envString("SMSBRIDGE_TWILIO_FROM", &cfg.SMS.Twilio.From)
	envString("SMSBRIDGE_TWILIO_BASE_URL", &cfg.SMS.Twilio.BaseURL)
	envString("SMSBRIDGE_TELNYX_API_KEY", &cfg.SMS.Telnyx.APIKey)
	envString("SMSBRIDGE_TELNYX_FROM", &cfg.SMS.Telnyx.From)
	envString("SMSBRIDGE_TELNYX_BASE_URL", &cfg.SMS.Telnyx.BaseURL)
	envString("SMSBRIDGE_PLIVO_AUTH_ID", &cfg.SMS.Plivo.AuthID)
	envString("SMSBRIDGE_PLIVO_AUTH_TOKEN", &cfg.SMS.Plivo.AuthToken)
	envString("SMSBRIDGE_PLIVO_FROM", &cfg.SMS.Plivo.From)
	envString("SMSBRIDGE_PLIVO_BASE_URL", &cfg.SMS.Plivo.BaseURL)
	if v := os.Getenv("SMSBRIDGE_SNS_REGION"); v != "" {
		cfg.SMS.SNS.Region = v
	}
	if v := os.Getenv("SMSBRIDGE_EVENTS_ENABLED"); v != "" {
		cfg.Events.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SMSBRIDGE_EVENTS_PATH"); v != "" {
		cfg.Events.Path = v
	}
	if v := os.Getenv("SMSBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SMSBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

func applyFlags(cfg *Config, flags map[string]string) {
	if flags == nil {
		return
	}
	if v, ok := flags["port"]; ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := flags["host"]; ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := flags["provider"]; ok && v != "" {
		cfg.SMS.Provider = v
	}
	if v, ok := flags["log-level"]; ok && v != "" {
		cfg.Logging.Level = v
	}
}

// checkBaseURL accepts an empty override or an http(s) URL.
func checkBaseURL(key, v string) error {
	if v == "" || strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return nil
	}
	return fmt.Errorf("%s must start with http:// or https://, got %q", key, v)
}

// validKeys is the complete set of dot-separated config keys.
var validKeys = map[string]bool{
	"server.host": true, "server.port": true, "server.shutdown_timeout": true,
	"sms.provider": true, "sms.allowed_countries": true, "sms.request_timeout": true,
	"sms.etxt.api_key": true, "sms.etxt.api_secret": true, "sms.etxt.base_url": true,
	"sms.twilio.account_sid": true, "sms.twilio.auth_token": true, "sms.twilio.from": true, "sms.twilio.base_url": true,
	"sms.telnyx.api_key": true, "sms.telnyx.from": true, "sms.telnyx.base_url": true,
	"sms.plivo.auth_id": true, "sms.plivo.auth_token": true, "sms.plivo.from": true, "sms.plivo.base_url": true,
	"sms.sns.region": true,
	"events.enabled": true, "events.path": true,
	"logging.level": true, "logging.format": true,
}

// IsValidKey returns true if the dotted key is a recognized config key.
func IsValidKey(key string) bool {
	return validKeys[key]
}

// GetValue returns the value for a dotted config key (e.g. "server.port").
func GetValue(cfg *Config, key string) (any, error) {
	switch key {
	case "server.host":
		return cfg.Server.Host, nil
	case "server.port":
		return cfg.Server.Port, nil
	case "server.shutdown_timeout":
		return cfg.Server.ShutdownTimeout, nil
	case "sms.provider":
		return cfg.SMS.Provider, nil
	case "sms.allowed_countries":
		return strings.Join(cfg.SMS.AllowedCountries, ","), nil
	case "sms.request_timeout":
		return cfg.SMS.RequestTimeout, nil
	case "sms.etxt.api_key":
		return cfg.SMS.ETxt.APIKey, nil
	case "sms.etxt.api_secret":
		return cfg.SMS.ETxt.APISecret, nil
	case "sms.etxt.base_url":
		return cfg.SMS.ETxt.BaseURL, nil
	case "sms.twilio.account_sid":
		return cfg.SMS.Twilio.AccountSID, nil
	case "sms.twilio.auth_token":
		return cfg.SMS.Twilio.AuthToken, nil
	case "sms.twilio.from":
		return cfg.SMS.Twilio.From, nil
	case "sms.twilio.base_url":
		return cfg.SMS.Twilio.BaseURL, nil
	case "sms.telnyx.api_key":
		return cfg.SMS.Telnyx.APIKey, nil
	case "sms.telnyx.from":
		return cfg.SMS.Telnyx.From, nil
	case "sms.telnyx.base_url":
		return cfg.SMS.Telnyx.BaseURL, nil
	case "sms.plivo.auth_id":
		return cfg.SMS.Plivo.AuthID, nil
	case "sms.plivo.auth_token":
		return cfg.SMS.Plivo.AuthToken, nil
	case "sms.plivo.from":
		return cfg.SMS.Plivo.From, nil
	case "sms.plivo.base_url":
		return cfg.SMS.Plivo.BaseURL, nil
	case "sms.sns.region":
		return cfg.SMS.SNS.Region, nil
	case "events.enabled":
		return cfg.Events.Enabled, nil
	case "events.path":
		return cfg.Events.Path, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	default:
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
}

// SetValue reads the existing TOML file, updates a single key, and writes it back.
// Creates the file with just the key if it doesn't exist. Keys may be nested
// more than one level deep (sms.etxt.api_key).
func SetValue(configPath, key, value string) error {
	var data map[string]any
	if raw, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}
	if data == nil {
		data = make(map[string]any)
	}

	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return fmt.Errorf("invalid key format: %s (expected section.field)", key)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid key format: %s (expected section.field)", key)
		}
	}

	table := data
	for _, section := range parts[:len(parts)-1] {
		next, ok := table[section].(map[string]any)
		if !ok {
			next = make(map[string]any)
			table[section] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = coerceValue(key, value)

	out, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(configPath, out, 0o644)
}

// coerceValue converts a string value to the appropriate Go type for TOML serialization.
func coerceValue(key, value string) any {
	switch key {
	case "events.enabled":
		return value == "true" || value == "1"
	case "sms.allowed_countries":
		return splitList(value)
	case "server.port", "server.shutdown_timeout", "sms.request_timeout":
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return value
}

const defaultTOML = `# smsbridge configuration

[server]
# Address the bridge HTTP API listens on.
host = "0.0.0.0"
port = 8095

# Seconds to wait for in-flight requests during shutdown.
shutdown_timeout = 10

[sms]
# Gateway used for outbound messages: "etxt", "twilio", "telnyx", "plivo",
# "sns" or "log".
# "log" only writes messages to the log and is meant for development.
provider = "log"

# ISO 3166-1 alpha-2 regions the API accepts destination numbers for.
# An empty list allows every region.
allowed_countries = ["NZ", "AU"]

# Seconds before a single gateway request is abandoned. 0 disables the limit.
request_timeout = 30

[sms.etxt]
# Credentials issued by eTXT. Sent as HTTP Basic auth on every request.
# api_key = ""
# api_secret = ""

# Override the gateway URL (testing only).
# base_url = "http://api.etxtservice.co.nz"

[sms.twilio]
# account_sid = ""
# auth_token = ""
# Sender number in E.164 format.
# from = ""
# base_url = "https://api.twilio.com"

[sms.telnyx]
# API v2 key, sent as a bearer token.
# api_key = ""
# from = ""
# base_url = "https://api.telnyx.com"

[sms.plivo]
# auth_id = ""
# auth_token = ""
# from = ""
# base_url = "https://api.plivo.com"

[sms.sns]
# AWS region for SNS. Credentials come from the default AWS chain.
# region = "ap-southeast-2"

[events]
# Keep provider warnings and errors in a local SQLite database.
enabled = true
path = "./smsbridge_data/events.db"

[logging]
# Log level: debug, info, warn, error.
level = "info"

# Log format: json or text.
format = "json"
`
