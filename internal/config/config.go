package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "fpdash"

type Config struct {
	APIBaseURL string
	APITimeout time.Duration

	ServerAddr  string
	WaitTimeout time.Duration
	SessionTTL  time.Duration

	QueryCapacity   int
	QueryRetries    int
	QueryRetryDelay time.Duration

	LogLevel  string
	LogFormat string

	DevAPIAddr   string
	DatabasePath string
	MaxRows      int
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("server.addr", "127.0.0.1:3000")
	v.SetDefault("server.wait_timeout", 25*time.Second)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("query.capacity", 64)
	v.SetDefault("query.retries", 0)
	v.SetDefault("query.retry_delay", 500*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("devapi.addr", ":8080")
	v.SetDefault("devapi.database_path", "fingerprints.db")
	v.SetDefault("devapi.max_rows", 300)
}

// Load reads the process-wide viper instance, which cmd/root.go points at
// the config file.
func Load() (*Config, error) {
	godotenv.Load()
	return FromViper(viper.GetViper())
}

func FromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		APIBaseURL:      v.GetString("api.base_url"),
		APITimeout:      v.GetDuration("api.timeout"),
		ServerAddr:      v.GetString("server.addr"),
		WaitTimeout:     v.GetDuration("server.wait_timeout"),
		SessionTTL:      v.GetDuration("session.ttl"),
		QueryCapacity:   v.GetInt("query.capacity"),
		QueryRetries:    v.GetInt("query.retries"),
		QueryRetryDelay: v.GetDuration("query.retry_delay"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
		DevAPIAddr:      v.GetString("devapi.addr"),
		DatabasePath:    v.GetString("devapi.database_path"),
		MaxRows:         v.GetInt("devapi.max_rows"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.APIBaseURL))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.WaitTimeout <= 0 {
		errs = append(errs, errors.New("server.wait_timeout must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.QueryCapacity < 0 {
		errs = append(errs, errors.New("query.capacity cannot be negative"))
	}
	if c.QueryRetries < 0 {
		errs = append(errs, errors.New("query.retries cannot be negative"))
	}
	if c.MaxRows < 1 {
		errs = append(errs, errors.New("devapi.max_rows must be at least 1"))
	}

	return errors.Join(errs...)
}
