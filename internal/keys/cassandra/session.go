package cassandra

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

// Config describes how to reach the cluster.
type Config struct {
	Hosts          []string
	Keyspace       string
	Consistency    string
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

func (c Config) cluster() (*gocql.ClusterConfig, error) {
	if len(c.Hosts) == 0 {
		return nil, fmt.Errorf("no cassandra hosts configured")
	}

	cluster := gocql.NewCluster(c.Hosts...)
	cluster.Keyspace = c.Keyspace
	if c.Consistency != "" {
		consistency, err := gocql.ParseConsistencyWrapper(c.Consistency)
		if err != nil {
			return nil, fmt.Errorf("invalid consistency %q: %w", c.Consistency, err)
		}
		cluster.Consistency = consistency
	}
	if c.Timeout > 0 {
		cluster.Timeout = c.Timeout
	}
	if c.ConnectTimeout > 0 {
		cluster.ConnectTimeout = c.ConnectTimeout
	}
	return cluster, nil
}

// Connect opens a session on the configured keyspace. The caller owns the
// session and must Close it on shutdown.
func Connect(c Config) (*gocql.Session, error) {
	cluster, err := c.cluster()
	if err != nil {
		return nil, err
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, classify("connect", err)
	}
	return session, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

// EnsureSchema creates the keyspace and key index table if they do not exist.
func EnsureSchema(ctx context.Context, c Config, table string, replicationFactor int) error {
	if !identifier.MatchString(c.Keyspace) {
		return fmt.Errorf("invalid keyspace name %q", c.Keyspace)
	}
	if !identifier.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if replicationFactor < 1 {
		replicationFactor = 1
	}

	keyspace := c.Keyspace
	c.Keyspace = ""
	session, err := Connect(c)
	if err != nil {
		return err
	}
	defer session.Close()

	statements := schemaStatements(keyspace, table, replicationFactor)
	for _, stmt := range statements {
		if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return classify("ensure schema", err)
		}
	}
	return nil
}

func schemaStatements(keyspace, table string, replicationFactor int) []string {
	return []string{
		fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
			keyspace, replicationFactor),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s text, %s text, PRIMARY KEY (%s, %s))",
			keyspace, table, RepositoryName, MailKey, RepositoryName, MailKey),
	}
}
