package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smsbridge/smsbridge/internal/testutil"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	testutil.Equal(t, "0.0.0.0", cfg.Server.Host)
	testutil.Equal(t, 8095, cfg.Server.Port)
	testutil.Equal(t, 10, cfg.Server.ShutdownTimeout)
	testutil.Equal(t, "log", cfg.SMS.Provider)
	testutil.SliceLen(t, cfg.SMS.AllowedCountries, 2)
	testutil.Equal(t, 30, cfg.SMS.RequestTimeout)
	testutil.Equal(t, "", cfg.SMS.ETxt.BaseURL)
	testutil.True(t, cfg.Events.Enabled)
	testutil.Equal(t, "./smsbridge_data/events.db", cfg.Events.Path)
	testutil.Equal(t, "info", cfg.Logging.Level)
	testutil.Equal(t, "json", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "port zero",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be between 1 and 65535",
		},
		{
			name:    "port too high",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535",
		},
		{
			name:   "port 65535 valid",
			modify: func(c *Config) { c.Server.Port = 65535 },
		},
		{
			name:    "negative shutdown timeout",
			modify:  func(c *Config) { c.Server.ShutdownTimeout = -1 },
			wantErr: "server.shutdown_timeout must be non-negative",
		},
		{
			name:    "negative request timeout",
			modify:  func(c *Config) { c.SMS.RequestTimeout = -5 },
			wantErr: "sms.request_timeout must be non-negative",
		},
		{
			name:   "zero request timeout valid",
			modify: func(c *Config) { c.SMS.RequestTimeout = 0 },
		},
		{
			name:    "unknown provider",
			modify:  func(c *Config) { c.SMS.Provider = "vonage" },
			wantErr: "sms.provider must be one of: etxt, twilio, telnyx, plivo, sns, log",
		},
		{
			name:    "etxt without credentials",
			modify:  func(c *Config) { c.SMS.Provider = "etxt" },
			wantErr: "sms.etxt.api_key and sms.etxt.api_secret are required",
		},
		{
			name: "etxt without secret",
			modify: func(c *Config) {
				c.SMS.Provider = "etxt"
				c.SMS.ETxt.APIKey = "key"
			},
			wantErr: "sms.etxt.api_key and sms.etxt.api_secret are required",
		},
		{
			name: "etxt with credentials",
			modify: func(c *Config) {
				c.SMS.Provider = "etxt"
				c.SMS.ETxt.APIKey = "key"
				c.SMS.ETxt.APISecret = "secret"
			},
		},
		{
			name: "etxt bad base url",
			modify: func(c *Config) {
				c.SMS.Provider = "etxt"
				c.SMS.ETxt.APIKey = "key"
				c.SMS.ETxt.APISecret = "secret"
				c.SMS.ETxt.BaseURL = "api.etxtservice.co.nz"
			},
			wantErr: "sms.etxt.base_url must start with http:// or https://",
		},
		{
			name: "twilio without from",
			modify: func(c *Config) {
				c.SMS.Provider = "twilio"
				c.SMS.Twilio.AccountSID = "ACtest"
				c.SMS.Twilio.AuthToken = "token"
			},
			wantErr: "sms.twilio.account_sid, sms.twilio.auth_token and sms.twilio.from are required",
		},
		{
			name: "twilio with credentials",
			modify: func(c *Config) {
				c.SMS.Provider = "twilio"
				c.SMS.Twilio = TwilioConfig{AccountSID: "ACtest", AuthToken: "token", From: "+15550000000"}
			},
		},
		{
			name: "twilio bad base url",
			modify: func(c *Config) {
				c.SMS.Provider = "twilio"
				c.SMS.Twilio = TwilioConfig{AccountSID: "ACtest", AuthToken: "token", From: "+15550000000", BaseURL: "api.twilio.com"}
			},
			wantErr: "sms.twilio.base_url must start with http:// or https://",
		},
		{
			name:    "telnyx without credentials",
			modify:  func(c *Config) { c.SMS.Provider = "telnyx" },
			wantErr: "sms.telnyx.api_key and sms.telnyx.from are required",
		},
		{
			name: "telnyx with credentials",
			modify: func(c *Config) {
				c.SMS.Provider = "telnyx"
				c.SMS.Telnyx = TelnyxConfig{APIKey: "KEY", From: "+15550000000", BaseURL: "https://api.telnyx.test"}
			},
		},
		{
			name: "plivo without token",
			modify: func(c *Config) {
				c.SMS.Provider = "plivo"
				c.SMS.Plivo = PlivoConfig{AuthID: "MA1", From: "+15550000000"}
			},
			wantErr: "sms.plivo.auth_id, sms.plivo.auth_token and sms.plivo.from are required",
		},
		{
			name: "plivo bad base url",
			modify: func(c *Config) {
				c.SMS.Provider = "plivo"
				c.SMS.Plivo = PlivoConfig{AuthID: "MA1", AuthToken: "t", From: "+15550000000", BaseURL: "ftp://plivo"}
			},
			wantErr: "sms.plivo.base_url must start with http:// or https://",
		},
		{
			name:   "sns needs no credentials",
			modify: func(c *Config) { c.SMS.Provider = "sns" },
		},
		{
			name:    "bad country code",
			modify:  func(c *Config) { c.SMS.AllowedCountries = []string{"NZL"} },
			wantErr: "sms.allowed_countries entries must be ISO 3166-1 alpha-2 codes",
		},
		{
			name:   "empty allowed countries",
			modify: func(c *Config) { c.SMS.AllowedCountries = nil },
		},
		{
			name: "events enabled without path",
			modify: func(c *Config) {
				c.Events.Enabled = true
				c.Events.Path = ""
			},
			wantErr: "events.path is required",
		},
		{
			name: "events disabled without path",
			modify: func(c *Config) {
				c.Events.Enabled = false
				c.Events.Path = ""
			},
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level must be one of",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				testutil.NoError(t, err)
			} else {
				testutil.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 3000
	testutil.Equal(t, "127.0.0.1:3000", cfg.Address())
}

func TestRequestTimeoutDuration(t *testing.T) {
	cfg := Default()
	testutil.Equal(t, 30*time.Second, cfg.SMS.RequestTimeoutDuration())
	cfg.SMS.RequestTimeout = 0
	testutil.Equal(t, time.Duration(0), cfg.SMS.RequestTimeoutDuration())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/smsbridge.toml", nil)
	testutil.NoError(t, err)
	testutil.Equal(t, 8095, cfg.Server.Port)
	testutil.Equal(t, "log", cfg.SMS.Provider)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")

	content := `
[server]
host = "127.0.0.1"
port = 3000

[sms]
provider = "etxt"
allowed_countries = ["NZ"]
request_timeout = 5

[sms.etxt]
api_key = "key"
api_secret = "secret"
base_url = "http://localhost:9999"

[logging]
level = "debug"
format = "text"
`
	err := os.WriteFile(tomlPath, []byte(content), 0o644)
	testutil.NoError(t, err)

	cfg, err := Load(tomlPath, nil)
	testutil.NoError(t, err)

	testutil.Equal(t, "127.0.0.1", cfg.Server.Host)
	testutil.Equal(t, 3000, cfg.Server.Port)
	testutil.Equal(t, "etxt", cfg.SMS.Provider)
	testutil.SliceLen(t, cfg.SMS.AllowedCountries, 1)
	testutil.Equal(t, "NZ", cfg.SMS.AllowedCountries[0])
	testutil.Equal(t, 5, cfg.SMS.RequestTimeout)
	testutil.Equal(t, "key", cfg.SMS.ETxt.APIKey)
	testutil.Equal(t, "secret", cfg.SMS.ETxt.APISecret)
	testutil.Equal(t, "http://localhost:9999", cfg.SMS.ETxt.BaseURL)
	testutil.Equal(t, "debug", cfg.Logging.Level)
	testutil.Equal(t, "text", cfg.Logging.Format)

	// Defaults preserved for unset fields.
	testutil.Equal(t, 10, cfg.Server.ShutdownTimeout)
	testutil.True(t, cfg.Events.Enabled)
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")
	err := os.WriteFile(tomlPath, []byte("[server\nport = "), 0o644)
	testutil.NoError(t, err)

	_, err = Load(tomlPath, nil)
	testutil.ErrorContains(t, err, "parsing")
}

func TestLoadValidationError(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")
	err := os.WriteFile(tomlPath, []byte("[sms]\nprovider = \"etxt\"\n"), 0o644)
	testutil.NoError(t, err)

	_, err = Load(tomlPath, nil)
	testutil.ErrorContains(t, err, "config validation")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SMSBRIDGE_SERVER_HOST", "envhost")
	t.Setenv("SMSBRIDGE_SERVER_PORT", "9999")
	t.Setenv("SMSBRIDGE_SMS_PROVIDER", "etxt")
	t.Setenv("SMSBRIDGE_SMS_ALLOWED_COUNTRIES", "NZ, AU ,GB")
	t.Setenv("SMSBRIDGE_SMS_REQUEST_TIMEOUT", "7")
	t.Setenv("SMSBRIDGE_ETXT_API_KEY", "envkey")
	t.Setenv("SMSBRIDGE_ETXT_API_SECRET", "envsecret")
	t.Setenv("SMSBRIDGE_ETXT_BASE_URL", "https://gateway.test")
	t.Setenv("SMSBRIDGE_SNS_REGION", "ap-southeast-2")
	t.Setenv("SMSBRIDGE_EVENTS_ENABLED", "false")
	t.Setenv("SMSBRIDGE_EVENTS_PATH", "/tmp/events.db")
	t.Setenv("SMSBRIDGE_LOG_LEVEL", "warn")
	t.Setenv("SMSBRIDGE_LOG_FORMAT", "text")

	cfg, err := Load("/nonexistent/smsbridge.toml", nil)
	testutil.NoError(t, err)

	testutil.Equal(t, "envhost", cfg.Server.Host)
	testutil.Equal(t, 9999, cfg.Server.Port)
	testutil.Equal(t, "etxt", cfg.SMS.Provider)
	testutil.SliceLen(t, cfg.SMS.AllowedCountries, 3)
	testutil.Equal(t, "AU", cfg.SMS.AllowedCountries[1])
	testutil.Equal(t, 7, cfg.SMS.RequestTimeout)
	testutil.Equal(t, "envkey", cfg.SMS.ETxt.APIKey)
	testutil.Equal(t, "envsecret", cfg.SMS.ETxt.APISecret)
	testutil.Equal(t, "https://gateway.test", cfg.SMS.ETxt.BaseURL)
	testutil.Equal(t, "ap-southeast-2", cfg.SMS.SNS.Region)
	testutil.False(t, cfg.Events.Enabled)
	testutil.Equal(t, "/tmp/events.db", cfg.Events.Path)
	testutil.Equal(t, "warn", cfg.Logging.Level)
	testutil.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnvGatewayCredentials(t *testing.T) {
	t.Setenv("SMSBRIDGE_TWILIO_ACCOUNT_SID", "ACenv")
	t.Setenv("SMSBRIDGE_TWILIO_AUTH_TOKEN", "twtoken")
	t.Setenv("SMSBRIDGE_TWILIO_FROM", "+15550000001")
	t.Setenv("SMSBRIDGE_TWILIO_BASE_URL", "https://twilio.test")
	t.Setenv("SMSBRIDGE_TELNYX_API_KEY", "txkey")
	t.Setenv("SMSBRIDGE_TELNYX_FROM", "+15550000002")
	t.Setenv("SMSBRIDGE_PLIVO_AUTH_ID", "MAenv")
	t.Setenv("SMSBRIDGE_PLIVO_AUTH_TOKEN", "pltoken")
	t.Setenv("SMSBRIDGE_PLIVO_FROM", "+15550000003")

	cfg, err := Load("/nonexistent/smsbridge.toml", nil)
	testutil.NoError(t, err)

	testutil.Equal(t, TwilioConfig{AccountSID: "ACenv", AuthToken: "twtoken", From: "+15550000001", BaseURL: "https://twilio.test"}, cfg.SMS.Twilio)
	testutil.Equal(t, "txkey", cfg.SMS.Telnyx.APIKey)
	testutil.Equal(t, "+15550000002", cfg.SMS.Telnyx.From)
	testutil.Equal(t, "MAenv", cfg.SMS.Plivo.AuthID)
	testutil.Equal(t, "pltoken", cfg.SMS.Plivo.AuthToken)
	testutil.Equal(t, "+15550000003", cfg.SMS.Plivo.From)
}

func TestLoadEnvEmptyAllowedCountries(t *testing.T) {
	t.Setenv("SMSBRIDGE_SMS_ALLOWED_COUNTRIES", "")

	cfg, err := Load("/nonexistent/smsbridge.toml", nil)
	testutil.NoError(t, err)
	testutil.SliceLen(t, cfg.SMS.AllowedCountries, 0)
}

func TestLoadEnvInvalidInt(t *testing.T) {
	t.Setenv("SMSBRIDGE_SERVER_PORT", "not-a-port")

	_, err := Load("/nonexistent/smsbridge.toml", nil)
	testutil.ErrorContains(t, err, "SMSBRIDGE_SERVER_PORT")
}

func TestLoadFlagOverrides(t *testing.T) {
	flags := map[string]string{
		"port":      "7777",
		"host":      "flaghost",
		"provider":  "sns",
		"log-level": "debug",
	}

	cfg, err := Load("/nonexistent/smsbridge.toml", flags)
	testutil.NoError(t, err)

	testutil.Equal(t, 7777, cfg.Server.Port)
	testutil.Equal(t, "flaghost", cfg.Server.Host)
	testutil.Equal(t, "sns", cfg.SMS.Provider)
	testutil.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadPriority(t *testing.T) {
	// File sets port=3000, env sets port=4000, flag sets port=5000.
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")
	err := os.WriteFile(tomlPath, []byte("[server]\nport = 3000\n"), 0o644)
	testutil.NoError(t, err)

	t.Setenv("SMSBRIDGE_SERVER_PORT", "4000")
	flags := map[string]string{"port": "5000"}

	cfg, err := Load(tomlPath, flags)
	testutil.NoError(t, err)
	testutil.Equal(t, 5000, cfg.Server.Port)

	// Without flag, env wins over file.
	cfg, err = Load(tomlPath, nil)
	testutil.NoError(t, err)
	testutil.Equal(t, 4000, cfg.Server.Port)
}

func TestApplyFlagsNilSafe(t *testing.T) {
	cfg := Default()
	applyFlags(cfg, nil)
	testutil.Equal(t, 8095, cfg.Server.Port)
}

func TestApplyFlagsIgnoresBadPort(t *testing.T) {
	cfg := Default()
	applyFlags(cfg, map[string]string{"port": "abc"})
	testutil.Equal(t, 8095, cfg.Server.Port)
}

func TestGenerateDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "smsbridge.toml")

	err := GenerateDefault(path)
	testutil.NoError(t, err)

	data, err := os.ReadFile(path)
	testutil.NoError(t, err)
	content := string(data)

	testutil.Contains(t, content, "[server]")
	testutil.Contains(t, content, "[sms]")
	testutil.Contains(t, content, "[sms.etxt]")
	testutil.Contains(t, content, "[sms.sns]")
	testutil.Contains(t, content, "[events]")
	testutil.Contains(t, content, "[logging]")
	testutil.Contains(t, content, "port = 8095")
	testutil.Contains(t, content, `provider = "log"`)
}

func TestGenerateDefaultMatchesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smsbridge.toml")
	testutil.NoError(t, GenerateDefault(path))

	cfg, err := Load(path, nil)
	testutil.NoError(t, err)
	want := Default()
	testutil.Equal(t, want.Server, cfg.Server)
	testutil.Equal(t, want.Events, cfg.Events)
	testutil.Equal(t, want.Logging, cfg.Logging)
	testutil.Equal(t, want.SMS.Provider, cfg.SMS.Provider)
	testutil.Equal(t, want.SMS.RequestTimeout, cfg.SMS.RequestTimeout)
}

func TestToTOML(t *testing.T) {
	cfg := Default()
	s, err := cfg.ToTOML()
	testutil.NoError(t, err)
	testutil.Contains(t, s, "host = '0.0.0.0'")
	testutil.Contains(t, s, "port = 8095")
	testutil.Contains(t, s, "[sms.etxt]")

	var back Config
	testutil.NoError(t, toml.Unmarshal([]byte(s), &back))
	testutil.Equal(t, cfg.Server, back.Server)
}

func TestIsValidKey(t *testing.T) {
	testutil.True(t, IsValidKey("server.port"))
	testutil.True(t, IsValidKey("sms.etxt.api_key"))
	testutil.True(t, IsValidKey("events.path"))
	testutil.False(t, IsValidKey("sms.etxt"))
	testutil.False(t, IsValidKey("database.url"))
	testutil.False(t, IsValidKey(""))
}

func TestGetValue(t *testing.T) {
	cfg := Default()
	cfg.SMS.ETxt.APIKey = "key"

	v, err := GetValue(cfg, "server.port")
	testutil.NoError(t, err)
	testutil.Equal(t, any(8095), v)

	v, err = GetValue(cfg, "sms.allowed_countries")
	testutil.NoError(t, err)
	testutil.Equal(t, any("NZ,AU"), v)

	v, err = GetValue(cfg, "sms.etxt.api_key")
	testutil.NoError(t, err)
	testutil.Equal(t, any("key"), v)

	v, err = GetValue(cfg, "events.enabled")
	testutil.NoError(t, err)
	testutil.Equal(t, any(true), v)

	_, err = GetValue(cfg, "nope.nope")
	testutil.ErrorContains(t, err, "unknown configuration key")
}

func TestGetValueCoversEveryKey(t *testing.T) {
	cfg := Default()
	for key := range validKeys {
		_, err := GetValue(cfg, key)
		testutil.NoError(t, err)
	}
}

func TestSetValue(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")

	err := SetValue(tomlPath, "server.port", "3000")
	testutil.NoError(t, err)

	data, err := os.ReadFile(tomlPath)
	testutil.NoError(t, err)
	testutil.Contains(t, string(data), "port = 3000")

	err = SetValue(tomlPath, "server.host", "127.0.0.1")
	testutil.NoError(t, err)

	cfg, err := Load(tomlPath, nil)
	testutil.NoError(t, err)
	testutil.Equal(t, 3000, cfg.Server.Port)
	testutil.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestSetValueNested(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")

	testutil.NoError(t, SetValue(tomlPath, "sms.provider", "etxt"))
	testutil.NoError(t, SetValue(tomlPath, "sms.etxt.api_key", "key"))
	testutil.NoError(t, SetValue(tomlPath, "sms.etxt.api_secret", "secret"))
	testutil.NoError(t, SetValue(tomlPath, "sms.allowed_countries", "NZ,GB"))

	cfg, err := Load(tomlPath, nil)
	testutil.NoError(t, err)
	testutil.Equal(t, "etxt", cfg.SMS.Provider)
	testutil.Equal(t, "key", cfg.SMS.ETxt.APIKey)
	testutil.Equal(t, "secret", cfg.SMS.ETxt.APISecret)
	testutil.SliceLen(t, cfg.SMS.AllowedCountries, 2)
	testutil.Equal(t, "GB", cfg.SMS.AllowedCountries[1])
}

func TestSetValueBoolean(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")

	err := SetValue(tomlPath, "events.enabled", "false")
	testutil.NoError(t, err)

	data, err := os.ReadFile(tomlPath)
	testutil.NoError(t, err)
	testutil.Contains(t, string(data), "enabled = false")
}

func TestSetValueInvalidKey(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")

	err := SetValue(tomlPath, "invalid", "value")
	testutil.ErrorContains(t, err, "invalid key format")

	err = SetValue(tomlPath, "sms..api_key", "value")
	testutil.ErrorContains(t, err, "invalid key format")
}

func TestSetValuePreservesExisting(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "smsbridge.toml")

	err := os.WriteFile(tomlPath, []byte("[server]\nhost = '0.0.0.0'\nport = 8095\n"), 0o644)
	testutil.NoError(t, err)

	err = SetValue(tomlPath, "server.port", "3000")
	testutil.NoError(t, err)

	cfg, err := Load(tomlPath, nil)
	testutil.NoError(t, err)
	testutil.Equal(t, 3000, cfg.Server.Port)
	testutil.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"server.port", "3000", 3000},
		{"server.shutdown_timeout", "15", 15},
		{"sms.request_timeout", "0", 0},
		{"events.enabled", "true", true},
		{"events.enabled", "1", true},
		{"events.enabled", "false", false},
		{"sms.provider", "etxt", "etxt"},
		{"sms.etxt.api_key", "1234", "1234"},
		{"server.port", "notanumber", "notanumber"}, // falls through to string
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got := coerceValue(tt.key, tt.value)
			testutil.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceValueList(t *testing.T) {
	got, ok := coerceValue("sms.allowed_countries", " NZ, AU,,").([]string)
	testutil.True(t, ok)
	testutil.SliceLen(t, got, 2)
	testutil.Equal(t, "NZ", got[0])
	testutil.Equal(t, "AU", got[1])
}
