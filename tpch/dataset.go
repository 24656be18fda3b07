package tpch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
	"gopkg.in/yaml.v3"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/config"
	"github.com/cube2222/octopipe/datasources"
	memorytable "github.com/cube2222/octopipe/datasources/memory"
	"github.com/cube2222/octopipe/physical"
)

var tables = []string{PartTable, PartSuppTable, SupplierTable}

type Format string

const (
	// FormatTbl is the dbgen format: pipe separated values with a trailing pipe.
	FormatTbl Format = "tbl"
	// FormatJSON is newline delimited JSON objects.
	FormatJSON Format = "json"
	// FormatParquet is a parquet file per table.
	FormatParquet Format = "parquet"
)

// Formats lists the supported table file formats.
var Formats = []Format{FormatTbl, FormatJSON, FormatParquet}

func (f Format) extension() string {
	return "." + string(f)
}

// Write writes every table of the dataset into the directory, one file per table.
func (d *Dataset) Write(dir string, format Format) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "couldn't create directory")
	}
	for _, table := range tables {
		rows, err := d.Rows(table)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, table+format.extension())
		if format == FormatParquet {
			err = writeParquet(path, table, rows)
		} else {
			err = writeFile(path, Schemas[table].Fields(), rows, format)
		}
		if err != nil {
			return errors.Wrapf(err, "couldn't write %s", table)
		}
	}
	return nil
}

func writeFile(path string, fields []arrow.Field, rows [][]helpers.Value, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "couldn't create file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var arena fastjson.Arena
	for _, row := range rows {
		switch format {
		case FormatTbl:
			for _, value := range row {
				w.WriteString(formatValue(value))
				w.WriteByte('|')
			}
		case FormatJSON:
			obj := arena.NewObject()
			for i, value := range row {
				switch value.Type {
				case helpers.TypeInt:
					obj.Set(fields[i].Name, arena.NewNumberString(strconv.FormatInt(value.Int, 10)))
				case helpers.TypeFloat:
					// Always with a fractional part, so the schema inference picks floats.
					obj.Set(fields[i].Name, arena.NewNumberString(formatValue(value)))
				case helpers.TypeNull:
					obj.Set(fields[i].Name, arena.NewNull())
				default:
					obj.Set(fields[i].Name, arena.NewString(formatValue(value)))
				}
			}
			w.Write(obj.MarshalTo(nil))
			arena.Reset()
		default:
			return fmt.Errorf("unknown format %s", format)
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "couldn't flush file")
	}
	return f.Close()
}

func formatValue(value helpers.Value) string {
	switch value.Type {
	case helpers.TypeFloat:
		return strconv.FormatFloat(value.Float, 'f', 2, 64)
	case helpers.TypeString:
		return value.Str
	case helpers.TypeNull:
		return ""
	}
	return value.String()
}

// Config returns a configuration with data sources reading the tables written by Write.
// Every table is read in the given number of splits.
func (d *Dataset) Config(dir string, format Format, splits int) *config.Config {
	cfg := config.Default()
	for _, table := range tables {
		dsConfig := map[string]interface{}{
			"path":   filepath.Join(dir, table+format.extension()),
			"splits": splits,
		}
		if format == FormatTbl {
			dsConfig["delimiter"] = "|"
			dsConfig["trailingDelimiter"] = true
			dsConfig["columns"] = columnConfig(Schemas[table])
		}
		dsType := string(format)
		if format == FormatTbl {
			dsType = "csv"
		}
		cfg.DataSources = append(cfg.DataSources, config.DataSourceConfig{
			Name:   table,
			Type:   dsType,
			Config: dsConfig,
		})
	}
	return cfg
}

// WriteConfig writes the configuration returned by Config into the given file.
func (d *Dataset) WriteConfig(path, dir string, format Format, splits int) error {
	data, err := yaml.Marshal(d.Config(dir, format, splits))
	if err != nil {
		return errors.Wrap(err, "couldn't encode configuration")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "couldn't write configuration")
	}
	return nil
}

// MemoryTables returns the tables in memory, with the rows distributed round robin among the partitions,
// in records of at most batchSize rows.
func (d *Dataset) MemoryTables(partitions, batchSize int) (Sources, error) {
	var out [3]*memorytable.Table
	for i, table := range tables {
		rows, err := d.Rows(table)
		if err != nil {
			return Sources{}, err
		}
		partitionRows := make([][][]helpers.Value, partitions)
		for j, row := range rows {
			partitionRows[j%partitions] = append(partitionRows[j%partitions], row)
		}
		records := make([][]execution.Record, partitions)
		for partition, rows := range partitionRows {
			for offset := 0; offset < len(rows); offset += batchSize {
				end := offset + batchSize
				if end > len(rows) {
					end = len(rows)
				}
				record, err := helpers.NewRecord(memory.DefaultAllocator, Schemas[table], rows[offset:end])
				if err != nil {
					return Sources{}, errors.Wrapf(err, "couldn't build %s record", table)
				}
				records[partition] = append(records[partition], execution.Record{Record: record})
			}
		}
		out[i] = memorytable.NewTable(Schemas[table], records)
	}
	return Sources{Part: out[0], PartSupp: out[1], Supplier: out[2]}, nil
}

// OpenSources opens the part, partsupp and supplier data sources of the configuration.
func OpenSources(ctx context.Context, cfg *config.Config) (Sources, error) {
	var out [3]physical.Datasource
	for i, table := range tables {
		dsConfig, err := cfg.GetDataSourceConfig(table)
		if err != nil {
			return Sources{}, execution.NewConfigurationError(err)
		}
		if out[i], err = datasources.Open(ctx, dsConfig); err != nil {
			return Sources{}, errors.Wrapf(err, "couldn't open %s", table)
		}
	}
	return Sources{Part: out[0], PartSupp: out[1], Supplier: out[2]}, nil
}
