package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/gocql/gocql"
)

var cqlIdentifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

type SchemaValidator struct {
	errors []string
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		errors: make([]string, 0),
	}
}

func (v *SchemaValidator) addError(field, message string) {
	v.errors = append(v.errors, fmt.Sprintf("%s: %s", field, message))
}

func (v *SchemaValidator) Errors() []string {
	return v.errors
}

func (v *SchemaValidator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *SchemaValidator) ErrorMessage() string {
	if len(v.errors) == 0 {
		return ""
	}
	return "configuration validation failed:\n  - " + strings.Join(v.errors, "\n  - ")
}

func (v *SchemaValidator) validatePort(port int) {
	if port < 1 || port > 65535 {
		v.addError("port", fmt.Sprintf("must be between 1 and 65535, got %d", port))
	}
}

func (v *SchemaValidator) validateLogMode(mode string) {
	if mode != "production" && mode != "development" {
		v.addError("log_mode", fmt.Sprintf("must be 'production' or 'development', got '%s'", mode))
	}
}

func (v *SchemaValidator) validateTimeouts(request, read, write, idle int) {
	if request < 1 {
		v.addError("request_timeout", "must be at least 1 second")
	}
	if read < 0 {
		v.addError("read_timeout", "cannot be negative")
	}
	if write < 0 {
		v.addError("write_timeout", "cannot be negative")
	}
	if idle < 0 {
		v.addError("idle_timeout", "cannot be negative")
	}
	if write > 0 && request > write {
		v.addError("request_timeout", fmt.Sprintf("(%d) must not exceed write_timeout (%d)", request, write))
	}
}

func (v *SchemaValidator) validateRateLimiting(perMinute, burst int) {
	if perMinute < 0 {
		v.addError("rate_limit_per_minute", "cannot be negative")
	}
	if burst < 0 {
		v.addError("rate_limit_burst", "cannot be negative")
	}
	if perMinute > 0 && burst == 0 {
		v.addError("rate_limit_burst", "must be positive when rate limiting is enabled")
	}
}

func (v *SchemaValidator) validateBackend(c *Config) {
	switch c.Backend {
	case BackendCassandra:
		v.validateCassandra(c)
	case BackendPostgres:
		v.validatePostgresDSN(c.PostgresDSN)
	case BackendPebble:
		if c.PebblePath == "" {
			v.addError("pebble_path", "cannot be empty")
		}
	case BackendMemory:
	default:
		valid := []string{BackendCassandra, BackendPostgres, BackendPebble, BackendMemory}
		v.addError("backend", fmt.Sprintf("must be one of %v, got '%s'", valid, c.Backend))
	}
}

func (v *SchemaValidator) validateCassandra(c *Config) {
	if len(c.CassandraHosts) == 0 || slices.Contains(c.CassandraHosts, "") {
		v.addError("cassandra_hosts", "must list at least one non-empty host")
	}
	if !cqlIdentifier.MatchString(c.CassandraKeyspace) {
		v.addError("cassandra_keyspace", fmt.Sprintf("'%s' is not a valid CQL identifier", c.CassandraKeyspace))
	}
	if !cqlIdentifier.MatchString(c.CassandraTable) {
		v.addError("cassandra_table", fmt.Sprintf("'%s' is not a valid CQL identifier", c.CassandraTable))
	}
	if _, err := gocql.ParseConsistencyWrapper(c.CassandraConsistency); err != nil {
		v.addError("cassandra_consistency", fmt.Sprintf("unknown consistency '%s'", c.CassandraConsistency))
	}
	if c.CassandraTimeout < 1 {
		v.addError("cassandra_timeout", "must be at least 1 millisecond")
	}
	if c.CassandraConnectTimeout < 1 {
		v.addError("cassandra_connect_timeout", "must be at least 1 millisecond")
	}
	if c.CassandraPageSize < 1 {
		v.addError("cassandra_page_size", "must be positive")
	}
	if c.CassandraReplicationFactor < 1 {
		v.addError("cassandra_replication_factor", "must be positive")
	}
}

func (v *SchemaValidator) validatePostgresDSN(dsn string) {
	if dsn == "" {
		v.addError("postgres_dsn", "cannot be empty")
		return
	}
	// Keyword/value DSNs are accepted as-is, URLs must carry a postgres scheme
	if !strings.Contains(dsn, "://") {
		return
	}
	u, err := url.Parse(dsn)
	if err != nil {
		v.addError("postgres_dsn", "is not a valid URL")
		return
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		v.addError("postgres_dsn", fmt.Sprintf("scheme must be postgres or postgresql, got '%s'", u.Scheme))
	}
	if u.Host == "" {
		v.addError("postgres_dsn", "missing host in URL")
	}
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
