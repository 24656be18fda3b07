package datasources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/config"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supplier.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"s_suppkey\": 1}\n{\"s_suppkey\": 2}\n"), 0o644))

	ds, err := Open(context.Background(), &config.DataSourceConfig{
		Name:   "supplier",
		Type:   "json",
		Config: map[string]interface{}{"path": path, "splits": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Partitioning().PartitionCount())
	assert.Equal(t, "s_suppkey", ds.Schema().Field(0).Name)

	_, err = Open(context.Background(), &config.DataSourceConfig{Name: "supplier", Type: "excel"})
	assert.ErrorIs(t, err, execution.ErrConfiguration)

	_, err = Open(context.Background(), &config.DataSourceConfig{Name: "supplier", Type: "csv", Config: map[string]interface{}{}})
	assert.ErrorIs(t, err, execution.ErrConfiguration)
	assert.Contains(t, err.Error(), "supplier")
}
