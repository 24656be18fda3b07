package config

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

func TestRead(t *testing.T) {
	got, err := Read("fixtures/example.yaml")
	require.NoError(t, err)

	assert.Equal(t, ExecutionConfig{
		Partitions:    4,
		BatchSize:     execution.IdealBatchSize,
		QueueCapacity: 2,
		MaxGroups:     1000,
	}, got.Execution)
	assert.Equal(t, LoggingConfig{Level: "debug"}, got.Logging)
	assert.Equal(t, []DataSourceConfig{
		{
			Name: "part",
			Type: "csv",
			Config: map[string]interface{}{
				"path":              "data/part.tbl",
				"delimiter":         "|",
				"trailingDelimiter": true,
				"splits":            4,
				"columns": []interface{}{
					map[string]interface{}{"name": "p_partkey", "type": "int"},
					map[string]interface{}{"name": "p_brand", "type": "string"},
				},
			},
		},
		{
			Name: "supplier",
			Type: "json",
			Config: map[string]interface{}{
				"path": "data/supplier.json",
			},
		},
	}, got.DataSources)

	part, err := got.GetDataSourceConfig("part")
	require.NoError(t, err)
	assert.Equal(t, "csv", part.Type)
	_, err = got.GetDataSourceConfig("lineitem")
	assert.ErrorIs(t, err, ErrNotFound)

	options := got.ExecutionOptions()
	assert.Equal(t, 2, options.QueueCapacity)
	assert.Equal(t, 1000, options.MaxGroups)
}

func TestReadErrors(t *testing.T) {
	for _, path := range []string{"fixtures/invalid.yaml", "fixtures/missing.yaml"} {
		t.Run(path, func(t *testing.T) {
			_, err := Read(path)
			assert.ErrorIs(t, err, execution.ErrConfiguration)
		})
	}
}

func TestGetters(t *testing.T) {
	config := map[string]interface{}{
		"path":   "part.tbl",
		"splits": 3,
		"header": true,
		"nulls":  []interface{}{"", "NULL"},
		"nested": map[string]interface{}{
			"delimiter": "|",
		},
	}

	path, err := GetString(config, "path")
	require.NoError(t, err)
	assert.Equal(t, "part.tbl", path)

	delimiter, err := GetString(config, "nested.delimiter")
	require.NoError(t, err)
	assert.Equal(t, "|", delimiter)

	splits, err := GetInt(config, "splits")
	require.NoError(t, err)
	assert.Equal(t, 3, splits)

	header, err := GetBool(config, "header")
	require.NoError(t, err)
	assert.True(t, header)

	nulls, err := GetStringList(config, "nulls")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "NULL"}, nulls)

	batch, err := GetInt(config, "batchSize", WithDefault(1024))
	require.NoError(t, err)
	assert.Equal(t, 1024, batch)

	_, err = GetInt(config, "batchSize")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetInt(config, "path")
	assert.Error(t, err)

	_, err = GetString(config, "path.deeper")
	assert.Error(t, err)
}

func TestGetSchema(t *testing.T) {
	schema, err := GetSchema(map[string]interface{}{
		"columns": []interface{}{
			map[string]interface{}{"name": "p_partkey", "type": "int"},
			map[string]interface{}{"name": "p_retailprice", "type": "float"},
			map[string]interface{}{"name": "p_brand", "type": "string"},
		},
	}, "columns")
	require.NoError(t, err)
	assert.Equal(t, "p_partkey", schema.Field(0).Name)
	assert.Equal(t, arrow.FLOAT64, schema.Field(1).Type.ID())
	assert.Equal(t, arrow.STRING, schema.Field(2).Type.ID())
	assert.True(t, schema.Field(2).Nullable)

	_, err = GetSchema(map[string]interface{}{
		"columns": []interface{}{map[string]interface{}{"name": "d", "type": "date"}},
	}, "columns")
	assert.Error(t, err)

	_, err = GetSchema(map[string]interface{}{}, "columns")
	assert.Error(t, err)
}
