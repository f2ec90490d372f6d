//go:build database

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestTraeWithMySQL tests the trae CLI with a MySQL backend.
func TestTraeWithMySQL(t *testing.T) {
	ctx := context.Background()

	// Start MySQL container
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "trae",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	// Get connection details
	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	connStr := fmt.Sprintf("root:secret123@tcp(%s:%s)/trae?parseTime=true", host, port.Port())
	runDatabaseScenario(t, "mysql", connStr)
}

// TestTraeWithPostgres tests the trae CLI with a PostgreSQL backend.
func TestTraeWithPostgres(t *testing.T) {
	ctx := context.Background()

	// Start Postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()

	// Get connection details
	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
	runDatabaseScenario(t, "postgresql", connStr)
}

// runDatabaseScenario exercises cache and run history against one backend.
func runDatabaseScenario(t *testing.T, backend, connStr string) {
	root := sampleTree(t)

	// Set environment variables
	t.Setenv("TRAE_CACHE_BACKEND", backend)
	t.Setenv("TRAE_CACHE_DB_CONNECT", connStr)
	t.Setenv("TRAE_RUNS_BACKEND", backend)
	t.Setenv("TRAE_RUNS_DB_CONNECT", connStr)
	t.Setenv("TRAE_METRICS", "no")

	_, err := runTrae(t, root, "cache", "clear")
	require.NoError(t, err)

	_, err = runTrae(t, root, "runs", "clear")
	require.NoError(t, err)

	out, err := runTrae(t, root, "runs", "migrate")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	// First run fills the cache, the second is served from it
	_, err = runTrae(t, root, "analyze", "--limit", "5")
	require.NoError(t, err)
	out, err = runTrae(t, root, "analyze", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "hit rate: 100")

	out, err = runTrae(t, root, "cache", "status")
	require.NoError(t, err)
	assert.Contains(t, out, backend)

	out, err = runTrae(t, root, "runs", "status")
	require.NoError(t, err)
	assert.Contains(t, out, backend)

	_, err = runTrae(t, root, "cache", "sweep", "--cache-ttl-seconds", "3600")
	require.NoError(t, err)
}
