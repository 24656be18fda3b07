package formats

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// Format writes result rows in some textual format.
type Format interface {
	SetSchema(schema *arrow.Schema)
	Write(values []helpers.Value) error
	Close() error
}

// Get returns the constructor of the named format: table, csv or json.
func Get(name string) (func(w io.Writer) Format, error) {
	switch name {
	case "table":
		return func(w io.Writer) Format { return NewTableFormatter(w) }, nil
	case "csv":
		return func(w io.Writer) Format { return NewCSVFormatter(w) }, nil
	case "json":
		return func(w io.Writer) Format { return NewJSONFormatter(w) }, nil
	}
	return nil, fmt.Errorf("unknown output format %s, available formats are table, csv and json", name)
}
