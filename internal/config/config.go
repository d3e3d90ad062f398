package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the service.
type Config struct {
	HTTPPort      int    `json:"http_port" validate:"gte=0"`
	MetricsPort   int    `json:"metrics_port" validate:"gte=0"`
	LogLevel      string `json:"log_level" validate:"oneof=debug info warn error"`
	DBPath        string `json:"db_path" validate:"required"`
	EncryptionKey string `json:"encryption_key" validate:"required,len=32"`

	OAuth2 struct {
		Enabled        bool     `json:"enabled"`
		ClientID       string   `json:"client_id" validate:"required"`
		ClientSecret   string   `json:"client_secret" validate:"required"`
		AuthorizeURL   string   `json:"authorize_url" validate:"required,url"`
		TokenURL       string   `json:"token_url" validate:"required,url"`
		TokenMethod    string   `json:"token_url_method" validate:"oneof=GET POST"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"oauth2"`
}

// Duration is a wrapper around time.Duration that implements JSON
// marshaling/unmarshaling.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads configuration from a file and overrides with environment
// variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OAuth2.TokenMethod == "" {
		c.OAuth2.TokenMethod = "POST"
	}
	if c.OAuth2.RequestTimeout.Duration == 0 {
		c.OAuth2.RequestTimeout = Duration{15 * time.Second}
	}
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		var err error
		c.HTTPPort, err = strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing HTTP_PORT: %w", err)
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var err error
		c.MetricsPort, err = strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing METRICS_PORT: %w", err)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}

	if v := os.Getenv("OAUTH2_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing OAUTH2_ENABLED: %w", err)
		}
		c.OAuth2.Enabled = enabled
	}
	if v := os.Getenv("OAUTH2_CLIENT_ID"); v != "" {
		c.OAuth2.ClientID = v
	}
	if v := os.Getenv("OAUTH2_CLIENT_SECRET"); v != "" {
		c.OAuth2.ClientSecret = v
	}
	if v := os.Getenv("OAUTH2_AUTHORIZE_URL"); v != "" {
		c.OAuth2.AuthorizeURL = v
	}
	if v := os.Getenv("OAUTH2_TOKEN_URL"); v != "" {
		c.OAuth2.TokenURL = v
	}
	if v := os.Getenv("OAUTH2_TOKEN_URL_METHOD"); v != "" {
		c.OAuth2.TokenMethod = v
	}
	if v := os.Getenv("OAUTH2_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing OAUTH2_REQUEST_TIMEOUT: %w", err)
		}
		c.OAuth2.RequestTimeout = Duration{d}
	}

	return nil
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
