// Package config loads application configuration from LANGUA_-prefixed
// environment variables.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/languatalk/langua-go/internal/logger"
	"github.com/spf13/viper"
)

const (
	EnvProd = "production"
	EnvDev  = "development"
	EnvTest = "test"
)

// Config holds the CLI's settings. Field defaults come from the `default`
// tag, env keys from the `mapstructure` tag (snake-cased field name when
// absent), and `secret:"true"` fields are redacted by String.
type Config struct {
	AppEnv     string `mapstructure:"app_env" default:"development" validate:"required"`
	APIBaseURL string `mapstructure:"api_base_url" default:"https://app.languatalk.com/api/v1" validate:"required,url"`

	// Credential storage
	StorageBackend string `mapstructure:"storage_backend" default:"file" validate:"oneof=file memory sqlite redis"`
	StoragePath    string `mapstructure:"storage_path"`
	RedisAddr      string `mapstructure:"redis_addr" default:"localhost:6379"`

	// Social sign-in
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `secret:"true" mapstructure:"google_client_secret"`

	// Logging
	LogLevel string `default:"INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// Load builds a Config from defaults overlaid with LANGUA_* environment
// variables. There is no config-file search: a credential-handling CLI
// keeps its configuration surface to the environment.
func Load() *Config {
	cfg := Config{}
	if err := defaults.Set(&cfg); err != nil {
		panic("failed to set struct defaults: " + err.Error())
	}

	v := viper.New()
	v.SetEnvPrefix("LANGUA")
	v.AutomaticEnv()
	for _, key := range envKeys(reflect.TypeOf(cfg)) {
		v.BindEnv(key)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		logger.Warn("Could not unmarshal config", "error", err)
	}

	logger.Debug("Loaded config", "config", cfg.String())
	return &cfg
}

// envKeys derives the bindable key for every config field.
func envKeys(t reflect.Type) []string {
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			key = toSnakeCase(field.Name)
		}
		keys = append(keys, key)
	}
	return keys
}

func Validate(cfg *Config) error {
	validate := validator.New()
	return validate.Struct(cfg)
}

// String renders the config with secret fields redacted; safe to log.
func (c *Config) String() string {
	v := reflect.ValueOf(*c)
	t := reflect.TypeOf(*c)

	parts := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := fmt.Sprintf("%v", v.Field(i).Interface())
		if field.Tag.Get("secret") == "true" {
			value = "***REDACTED***"
		}
		parts = append(parts, field.Name+": "+value)
	}
	return "Config{" + strings.Join(parts, ", ") + "}"
}

// toSnakeCase converts CamelCase to snake_case, keeping initialisms intact
// (APIBaseURL becomes api_base_url).
func toSnakeCase(str string) string {
	runes := []rune(str)
	var out []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				out = append(out, '_')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}
