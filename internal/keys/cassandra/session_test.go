package cassandra

import (
	"context"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterConfig(t *testing.T) {
	cfg := Config{
		Hosts:          []string{"10.0.0.1", "10.0.0.2"},
		Keyspace:       "mail",
		Consistency:    "LOCAL_QUORUM",
		Timeout:        2 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}

	cluster, err := cfg.cluster()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cluster.Hosts)
	assert.Equal(t, "mail", cluster.Keyspace)
	assert.Equal(t, gocql.LocalQuorum, cluster.Consistency)
	assert.Equal(t, 2*time.Second, cluster.Timeout)
	assert.Equal(t, 5*time.Second, cluster.ConnectTimeout)
}

func TestClusterConfigErrors(t *testing.T) {
	_, err := Config{}.cluster()
	assert.Error(t, err)

	_, err = Config{Hosts: []string{"localhost"}, Consistency: "MOSTLY"}.cluster()
	assert.Error(t, err)
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements("mail", "mailRepositoryKeys", 3)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE KEYSPACE IF NOT EXISTS mail")
	assert.Contains(t, stmts[0], "'replication_factor': 3")
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS mail.mailRepositoryKeys (name text, mailKey text, PRIMARY KEY (name, mailKey))",
		stmts[1])
}

func TestEnsureSchemaRejectsBadIdentifiers(t *testing.T) {
	cfg := Config{Hosts: []string{"localhost"}, Keyspace: "mail; DROP"}
	assert.Error(t, EnsureSchema(context.Background(), cfg, "keys", 1))

	cfg.Keyspace = "mail"
	assert.Error(t, EnsureSchema(context.Background(), cfg, "bad-table", 1))
}
