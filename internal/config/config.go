package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the backend setting.
const (
	BackendCassandra = "cassandra"
	BackendPostgres  = "postgres"
	BackendPebble    = "pebble"
	BackendMemory    = "memory"
)

type Config struct {
	// Server configuration
	Port               int    `json:"port" yaml:"port" mapstructure:"port"`
	BearerToken        string `json:"bearer_token" yaml:"bearer_token" mapstructure:"bearer_token"`
	LogMode            string `json:"log_mode" yaml:"log_mode" mapstructure:"log_mode"`
	RequestTimeout     int    `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
	ReadTimeout        int    `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout       int    `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout        int    `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int    `json:"rate_limit_burst" yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`

	// Key index backend
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Cassandra
	CassandraHosts             []string `json:"cassandra_hosts" yaml:"cassandra_hosts" mapstructure:"cassandra_hosts"`
	CassandraKeyspace          string   `json:"cassandra_keyspace" yaml:"cassandra_keyspace" mapstructure:"cassandra_keyspace"`
	CassandraTable             string   `json:"cassandra_table" yaml:"cassandra_table" mapstructure:"cassandra_table"`
	CassandraConsistency       string   `json:"cassandra_consistency" yaml:"cassandra_consistency" mapstructure:"cassandra_consistency"`
	CassandraTimeout           int      `json:"cassandra_timeout" yaml:"cassandra_timeout" mapstructure:"cassandra_timeout"`
	CassandraConnectTimeout    int      `json:"cassandra_connect_timeout" yaml:"cassandra_connect_timeout" mapstructure:"cassandra_connect_timeout"`
	CassandraPageSize          int      `json:"cassandra_page_size" yaml:"cassandra_page_size" mapstructure:"cassandra_page_size"`
	CassandraReplicationFactor int      `json:"cassandra_replication_factor" yaml:"cassandra_replication_factor" mapstructure:"cassandra_replication_factor"`

	// PostgreSQL
	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn" mapstructure:"postgres_dsn"`

	// Pebble
	PebblePath string `json:"pebble_path" yaml:"pebble_path" mapstructure:"pebble_path"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Port:                       3000,
		LogMode:                    "production",
		RequestTimeout:             10,
		ReadTimeout:                30,
		WriteTimeout:               30,
		IdleTimeout:                120,
		RateLimitPerMinute:         600,
		RateLimitBurst:             50,
		Backend:                    BackendCassandra,
		CassandraHosts:             []string{"127.0.0.1"},
		CassandraKeyspace:          "james",
		CassandraTable:             "mailRepositoryKeys",
		CassandraConsistency:       "QUORUM",
		CassandraTimeout:           5000,
		CassandraConnectTimeout:    5000,
		CassandraPageSize:          5000,
		CassandraReplicationFactor: 1,
		PebblePath:                 "/var/lib/mailkeys/pebble",
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("port", d.Port)
	v.SetDefault("bearer_token", d.BearerToken)
	v.SetDefault("log_mode", d.LogMode)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("read_timeout", d.ReadTimeout)
	v.SetDefault("write_timeout", d.WriteTimeout)
	v.SetDefault("idle_timeout", d.IdleTimeout)
	v.SetDefault("rate_limit_per_minute", d.RateLimitPerMinute)
	v.SetDefault("rate_limit_burst", d.RateLimitBurst)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("cassandra_hosts", d.CassandraHosts)
	v.SetDefault("cassandra_keyspace", d.CassandraKeyspace)
	v.SetDefault("cassandra_table", d.CassandraTable)
	v.SetDefault("cassandra_consistency", d.CassandraConsistency)
	v.SetDefault("cassandra_timeout", d.CassandraTimeout)
	v.SetDefault("cassandra_connect_timeout", d.CassandraConnectTimeout)
	v.SetDefault("cassandra_page_size", d.CassandraPageSize)
	v.SetDefault("cassandra_replication_factor", d.CassandraReplicationFactor)
	v.SetDefault("postgres_dsn", d.PostgresDSN)
	v.SetDefault("pebble_path", d.PebblePath)
}

// Load reads configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadWith(viper.GetViper())
}

// LoadWith reads defaults, MAILKEYS_* environment variables and an optional
// mailkeys.yaml into a validated Config.
func LoadWith(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	setDefaults(v)

	v.SetEnvPrefix("MAILKEYS")
	v.AutomaticEnv()

	// An explicit file set via --config has already been given to viper
	configFile := v.GetString("config")
	if configFile != "/dev/null" {
		if configFile != "" {
			v.SetConfigFile(configFile)
		} else {
			v.SetConfigName("mailkeys")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
			v.AddConfigPath("/etc/mailkeys")
			v.AddConfigPath("$HOME/.mailkeys")
		}

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				if !os.IsPermission(err) {
					return nil, fmt.Errorf("failed to read config: %w", err)
				}
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the server settings and the fields the selected backend needs.
func (c *Config) Validate() error {
	v := NewSchemaValidator()

	v.validatePort(c.Port)
	v.validateLogMode(c.LogMode)
	v.validateTimeouts(c.RequestTimeout, c.ReadTimeout, c.WriteTimeout, c.IdleTimeout)
	v.validateRateLimiting(c.RateLimitPerMinute, c.RateLimitBurst)
	v.validateBackend(c)

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorMessage())
	}
	return nil
}

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.CassandraHosts = append([]string(nil), c.CassandraHosts...)
	if out.BearerToken != "" {
		out.BearerToken = "********"
	}
	if out.PostgresDSN != "" {
		out.PostgresDSN = redactDSN(out.PostgresDSN)
	}
	return &out
}

// YAML renders the configuration as a mailkeys.yaml document.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.YAML()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
