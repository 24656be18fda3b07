package parquet

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/segmentio/parquet-go"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// Table is a parquet file with a flat schema. Split i reads the i-th of equally sized row ranges.
// Columns of unsupported types are left out of the schema.
type Table struct {
	path   string
	schema *arrow.Schema
	// columns holds the parquet column index of every schema field.
	columns []int
	rows    int64
	splits  int
}

func openFile(path string) (*os.File, *parquet.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't open file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("couldn't stat file: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size(), &parquet.FileConfig{
		SkipPageIndex:    true,
		SkipBloomFilters: true,
	})
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("couldn't open parquet file: %w", err)
	}
	return f, pf, nil
}

func NewTable(path string, splits int) (*Table, error) {
	if splits < 1 {
		return nil, execution.NewConfigurationError(fmt.Errorf("splits must be positive, got %d", splits))
	}
	f, pf, err := openFile(path)
	if err != nil {
		return nil, execution.NewSourceError(err)
	}
	defer f.Close()

	var fields []arrow.Field
	var columns []int
	for i, field := range pf.Schema().Fields() {
		if !field.Leaf() {
			return nil, execution.NewConfigurationError(fmt.Errorf("nested field %s isn't supported", field.Name()))
		}
		dataType, ok := arrowType(field.Type().Kind())
		if !ok {
			continue
		}
		fields = append(fields, arrow.Field{Name: field.Name(), Type: dataType, Nullable: true})
		columns = append(columns, i)
	}
	if len(fields) == 0 {
		return nil, execution.NewConfigurationError(fmt.Errorf("%s has no supported columns", path))
	}

	return &Table{
		path:    path,
		schema:  arrow.NewSchema(fields, nil),
		columns: columns,
		rows:    parquet.NewReader(pf).NumRows(),
		splits:  splits,
	}, nil
}

func arrowType(kind parquet.Kind) (arrow.DataType, bool) {
	switch kind {
	case parquet.Boolean:
		return arrow.FixedWidthTypes.Boolean, true
	case parquet.Int32, parquet.Int64:
		return arrow.PrimitiveTypes.Int64, true
	case parquet.Float, parquet.Double:
		return arrow.PrimitiveTypes.Float64, true
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return arrow.BinaryTypes.String, true
	}
	return nil, false
}

func (t *Table) Schema() *arrow.Schema {
	return t.schema
}

func (t *Table) Partitioning() execution.Partitioning {
	return execution.RoundRobinPartitioning(t.splits)
}

func (t *Table) Materialize(ctx context.Context, projection []int) (execution.Node, error) {
	if projection == nil {
		projection = make([]int, len(t.schema.Fields()))
		for i := range projection {
			projection[i] = i
		}
	}
	fields := make([]arrow.Field, len(projection))
	columns := make([]int, len(projection))
	for i, index := range projection {
		if index < 0 || index >= len(t.schema.Fields()) {
			return nil, execution.NewConfigurationError(fmt.Errorf("projected column %d out of range", index))
		}
		fields[i] = t.schema.Field(index)
		columns[i] = t.columns[index]
	}
	return &scan{
		path:    t.path,
		schema:  arrow.NewSchema(fields, nil),
		columns: columns,
		rows:    t.rows,
		splits:  t.splits,
	}, nil
}

// rowRange returns the rows of the given split.
func rowRange(rows int64, split, splits int) (start, end int64) {
	return rows * int64(split) / int64(splits), rows * int64(split+1) / int64(splits)
}
