package formats

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "p_brand", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "p_size", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "supplier_cnt", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
}, nil)

var rows = [][]helpers.Value{
	{helpers.NewString("Brand#14"), helpers.NewInt(45), helpers.NewUint(12)},
	{helpers.NewNull(), helpers.NewInt(-3), helpers.NewUint(0)},
}

func render(t *testing.T, name string) string {
	var buf bytes.Buffer
	constructor, err := Get(name)
	require.NoError(t, err)
	format := constructor(&buf)
	format.SetSchema(schema)
	for _, row := range rows {
		require.NoError(t, format.Write(row))
	}
	require.NoError(t, format.Close())
	return buf.String()
}

func TestTableFormat(t *testing.T) {
	out := render(t, "table")
	assert.Contains(t, out, "p_brand")
	assert.Contains(t, out, "supplier_cnt")
	assert.Contains(t, out, "Brand#14")
	assert.Contains(t, out, "NULL")
}

func TestCSVFormat(t *testing.T) {
	assert.Equal(t, "p_brand,p_size,supplier_cnt\nBrand#14,45,12\n,-3,0\n", render(t, "csv"))
}

func TestJSONFormat(t *testing.T) {
	assert.Equal(t, `{"p_brand":"Brand#14","p_size":45,"supplier_cnt":12}`+"\n"+`{"p_brand":null,"p_size":-3,"supplier_cnt":0}`+"\n", render(t, "json"))
}

func TestUnknownFormat(t *testing.T) {
	_, err := Get("xml")
	assert.Error(t, err)
}
