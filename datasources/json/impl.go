package json

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/valyala/fastjson"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// Table is a file of newline delimited JSON objects.
type Table struct {
	path   string
	schema *arrow.Schema
	splits int
}

func NewTable(path string, schema *arrow.Schema, splits int) (*Table, error) {
	if splits < 1 {
		return nil, execution.NewConfigurationError(fmt.Errorf("split count must be positive, got %d", splits))
	}
	for _, field := range schema.Fields() {
		if !supportedType(field.Type) {
			return nil, execution.NewConfigurationError(fmt.Errorf("field %s has unsupported type %s", field.Name, field.Type))
		}
	}
	return &Table{
		path:   path,
		schema: schema,
		splits: splits,
	}, nil
}

func (t *Table) Schema() *arrow.Schema {
	return t.schema
}

func (t *Table) Partitioning() execution.Partitioning {
	return execution.RoundRobinPartitioning(t.splits)
}

func (t *Table) Materialize(ctx context.Context, projection []int) (execution.Node, error) {
	schema := t.schema
	if projection != nil {
		for _, index := range projection {
			if index < 0 || index >= len(t.schema.Fields()) {
				return nil, execution.NewConfigurationError(fmt.Errorf("projected column %d out of range", index))
			}
		}
		// Only the projected fields get parsed at all.
		schema = execution.ProjectSchema(t.schema, projection)
	}
	return &scan{
		path:   t.path,
		schema: schema,
		splits: t.splits,
	}, nil
}

const inferenceSampleLines = 100

// InferSchema infers the schema out of the first lines of the file.
// Fields are sorted by name. Numbers are ints, unless any of them has a fractional part.
func InferSchema(path string) (*arrow.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, execution.NewSourceError(fmt.Errorf("couldn't open file: %w", err))
	}
	defer f.Close()

	fields := make(map[string]arrow.DataType)
	sc := bufio.NewScanner(bufio.NewReaderSize(f, 4096*1024))
	sc.Buffer(nil, 1024*1024*8)

	var p fastjson.Parser
	for i := 0; i < inferenceSampleLines && sc.Scan(); i++ {
		v, err := p.ParseBytes(sc.Bytes())
		if err != nil {
			return nil, execution.NewSourceError(fmt.Errorf("couldn't parse json: %w", err))
		}
		o, err := v.Object()
		if err != nil {
			return nil, execution.NewSourceError(fmt.Errorf("expected JSON object, got '%s'", sc.Text()))
		}

		var visitErr error
		o.Visit(func(key []byte, v *fastjson.Value) {
			t, ok := jsonType(v)
			if !ok || visitErr != nil {
				return
			}
			previous, seen := fields[string(key)]
			if !seen {
				fields[string(key)] = t
				return
			}
			merged, err := mergeTypes(previous, t)
			if err != nil {
				visitErr = fmt.Errorf("field %s: %w", key, err)
				return
			}
			fields[string(key)] = merged
		})
		if visitErr != nil {
			return nil, execution.NewConfigurationError(visitErr)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, execution.NewSourceError(fmt.Errorf("couldn't scan lines: %w", err))
	}
	if len(fields) == 0 {
		return nil, execution.NewConfigurationError(fmt.Errorf("couldn't infer any fields of %s", path))
	}

	schemaFields := make([]arrow.Field, 0, len(fields))
	for name, t := range fields {
		schemaFields = append(schemaFields, arrow.Field{Name: name, Type: t, Nullable: true})
	}
	sort.Slice(schemaFields, func(i, j int) bool {
		return schemaFields[i].Name < schemaFields[j].Name
	})
	return arrow.NewSchema(schemaFields, nil), nil
}

func jsonType(value *fastjson.Value) (arrow.DataType, bool) {
	switch value.Type() {
	case fastjson.TypeString:
		return arrow.BinaryTypes.String, true
	case fastjson.TypeNumber:
		if _, err := value.Int64(); err == nil {
			return arrow.PrimitiveTypes.Int64, true
		}
		return arrow.PrimitiveTypes.Float64, true
	case fastjson.TypeTrue, fastjson.TypeFalse:
		return arrow.FixedWidthTypes.Boolean, true
	}
	// NULLs don't tell anything about the type, nested values are unsupported.
	return nil, false
}

func mergeTypes(left, right arrow.DataType) (arrow.DataType, error) {
	if arrow.TypeEqual(left, right) {
		return left, nil
	}
	numeric := func(t arrow.DataType) bool {
		return t.ID() == arrow.INT64 || t.ID() == arrow.FLOAT64
	}
	if numeric(left) && numeric(right) {
		return arrow.PrimitiveTypes.Float64, nil
	}
	return nil, fmt.Errorf("conflicting types %s and %s", left, right)
}
