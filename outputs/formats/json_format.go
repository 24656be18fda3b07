package formats

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/valyala/fastjson"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// JSONFormatter writes one JSON object per line.
type JSONFormatter struct {
	buf    []byte
	arena  *fastjson.Arena
	w      io.Writer
	fields []arrow.Field
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{
		buf:   make([]byte, 0, 1024),
		arena: new(fastjson.Arena),
		w:     w,
	}
}

func (t *JSONFormatter) SetSchema(schema *arrow.Schema) {
	t.fields = schema.Fields()
}

func (t *JSONFormatter) Write(values []helpers.Value) error {
	obj := t.arena.NewObject()
	for i := range t.fields {
		obj.Set(t.fields[i].Name, ValueToJson(t.arena, values[i]))
	}

	t.buf = obj.MarshalTo(t.buf)
	t.buf = append(t.buf, '\n')
	_, err := t.w.Write(t.buf)
	t.buf = t.buf[:0]
	t.arena.Reset()
	return err
}

func ValueToJson(arena *fastjson.Arena, value helpers.Value) *fastjson.Value {
	switch value.Type {
	case helpers.TypeNull:
		return arena.NewNull()
	case helpers.TypeInt:
		return arena.NewNumberString(value.String())
	case helpers.TypeUint:
		return arena.NewNumberString(value.String())
	case helpers.TypeFloat:
		return arena.NewNumberFloat64(value.Float)
	case helpers.TypeBoolean:
		if value.Boolean {
			return arena.NewTrue()
		}
		return arena.NewFalse()
	case helpers.TypeString:
		return arena.NewString(value.Str)
	}
	panic(fmt.Sprintf("invalid value type to print: %d", value.Type))
}

func (t *JSONFormatter) Close() error {
	return nil
}
