package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionOfIsStableAndInRange(t *testing.T) {
	for id := uint64(0); id < 200; id++ {
		p := PartitionOf(id, 4)
		assert.Less(t, p, uint32(4))
		assert.Equal(t, p, PartitionOf(id, 4))
	}
	assert.Equal(t, uint32(0), PartitionOf(42, 0))
}

func TestReadCoordConfigOverlaysEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "coord_config.json")
	require.NoError(t, WriteJSONConfig(configPath, CoordConfig{
		NumWorkers:    3,
		MaxSuperSteps: 10,
		Graph:         GraphConfig{Source: "sql", Driver: "sqlite3", TableName: "adjList"},
	}))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(ENV_DSN+"=file:graph.db\n"), 0644))
	t.Cleanup(func() { os.Unsetenv(ENV_DSN) })

	config, err := ReadCoordConfig(configPath, envPath)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), config.NumWorkers)
	assert.Equal(t, uint64(10), config.MaxSuperSteps)
	assert.Equal(t, "file:graph.db", config.Graph.DSN)
	assert.Equal(t, "adjList", config.Graph.TableName)
}

func TestReadCoordConfigDefaults(t *testing.T) {
	config, err := ReadCoordConfig("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), config.NumWorkers)
	assert.Equal(t, uint64(100), config.MaxSuperSteps)
}
