package formats

import (
	"encoding/csv"
	"io"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// CSVFormatter writes NULLs as empty fields.
type CSVFormatter struct {
	writer *csv.Writer
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	writer := csv.NewWriter(w)

	return &CSVFormatter{
		writer: writer,
	}
}

func (t *CSVFormatter) SetSchema(schema *arrow.Schema) {
	fields := schema.Fields()
	header := make([]string, len(fields))
	for i := range fields {
		header[i] = fields[i].Name
	}
	t.writer.Write(header)
}

func (t *CSVFormatter) Write(values []helpers.Value) error {
	row := make([]string, len(values))
	for i := range values {
		if !values[i].IsNull() {
			row[i] = values[i].String()
		}
	}
	return t.writer.Write(row)
}

func (t *CSVFormatter) Close() error {
	t.writer.Flush()
	return t.writer.Error()
}
