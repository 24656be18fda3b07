package config

import (
	"reflect"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/pkg/errors"
)

var columnTypes = map[string]arrow.DataType{
	"int":    arrow.PrimitiveTypes.Int64,
	"uint":   arrow.PrimitiveTypes.Uint64,
	"float":  arrow.PrimitiveTypes.Float64,
	"string": arrow.BinaryTypes.String,
	"bool":   arrow.FixedWidthTypes.Boolean,
}

// GetSchema gets a schema from the given field, which must be a list of {name, type} maps.
// All columns are nullable.
func GetSchema(config map[string]interface{}, field string) (*arrow.Schema, error) {
	columns, err := GetInterfaceList(config, field)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get column list")
	}
	if len(columns) == 0 {
		return nil, errors.Errorf("%s can't be empty", field)
	}

	fields := make([]arrow.Field, len(columns))
	for i := range columns {
		column, ok := columns[i].(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("expected map, got %v at index %d", reflect.TypeOf(columns[i]), i)
		}
		name, err := GetString(column, "name")
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't get name of column %d", i)
		}
		typeName, err := GetString(column, "type")
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't get type of column %s", name)
		}
		dataType, ok := columnTypes[typeName]
		if !ok {
			return nil, errors.Errorf("unknown type %s of column %s", typeName, name)
		}
		fields[i] = arrow.Field{Name: name, Type: dataType, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}
