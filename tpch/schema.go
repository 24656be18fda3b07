package tpch

import (
	"github.com/apache/arrow/go/v13/arrow"
)

// Table names, which are also the data source names the Q16 plan expects.
const (
	PartTable     = "part"
	PartSuppTable = "partsupp"
	SupplierTable = "supplier"
)

func field(name string, dataType arrow.DataType) arrow.Field {
	return arrow.Field{Name: name, Type: dataType, Nullable: true}
}

var PartSchema = arrow.NewSchema([]arrow.Field{
	field("p_partkey", arrow.PrimitiveTypes.Int64),
	field("p_name", arrow.BinaryTypes.String),
	field("p_mfgr", arrow.BinaryTypes.String),
	field("p_brand", arrow.BinaryTypes.String),
	field("p_type", arrow.BinaryTypes.String),
	field("p_size", arrow.PrimitiveTypes.Int64),
	field("p_container", arrow.BinaryTypes.String),
	field("p_retailprice", arrow.PrimitiveTypes.Float64),
	field("p_comment", arrow.BinaryTypes.String),
}, nil)

var PartSuppSchema = arrow.NewSchema([]arrow.Field{
	field("ps_partkey", arrow.PrimitiveTypes.Int64),
	field("ps_suppkey", arrow.PrimitiveTypes.Int64),
	field("ps_availqty", arrow.PrimitiveTypes.Int64),
	field("ps_supplycost", arrow.PrimitiveTypes.Float64),
	field("ps_comment", arrow.BinaryTypes.String),
}, nil)

var SupplierSchema = arrow.NewSchema([]arrow.Field{
	field("s_suppkey", arrow.PrimitiveTypes.Int64),
	field("s_name", arrow.BinaryTypes.String),
	field("s_address", arrow.BinaryTypes.String),
	field("s_nationkey", arrow.PrimitiveTypes.Int64),
	field("s_phone", arrow.BinaryTypes.String),
	field("s_acctbal", arrow.PrimitiveTypes.Float64),
	field("s_comment", arrow.BinaryTypes.String),
}, nil)

// Schemas maps table names to their schemas.
var Schemas = map[string]*arrow.Schema{
	PartTable:     PartSchema,
	PartSuppTable: PartSuppSchema,
	SupplierTable: SupplierSchema,
}

// columnConfig returns the column list of a csv data source configuration.
func columnConfig(schema *arrow.Schema) []interface{} {
	out := make([]interface{}, len(schema.Fields()))
	for i, f := range schema.Fields() {
		var typeName string
		switch f.Type.ID() {
		case arrow.INT64:
			typeName = "int"
		case arrow.FLOAT64:
			typeName = "float"
		default:
			typeName = "string"
		}
		out[i] = map[string]interface{}{"name": f.Name, "type": typeName}
	}
	return out
}
