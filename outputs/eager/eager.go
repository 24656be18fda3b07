package eager

import (
	"bufio"
	"context"
	"io"

	"github.com/cube2222/octopipe/arrowexec/app"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/outputs/formats"
)

// OutputPrinter runs a plan and writes every row as soon as it's produced.
type OutputPrinter struct {
	source *execution.NodeWithMeta
	format func(io.Writer) formats.Format
}

func NewOutputPrinter(source *execution.NodeWithMeta, format func(io.Writer) formats.Format) *OutputPrinter {
	return &OutputPrinter{
		source: source,
		format: format,
	}
}

func (o *OutputPrinter) Run(ctx context.Context, opts app.Options, out io.Writer) error {
	w := bufio.NewWriterSize(out, 4096*1024)
	format := o.format(w)
	format.SetSchema(o.source.Schema)

	if err := app.Run(ctx, o.source, opts, func(produceCtx execution.ProduceContext, record execution.Record) error {
		for _, row := range helpers.RecordRows(record.Record) {
			if err := format.Write(row); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := format.Close(); err != nil {
		return err
	}
	return w.Flush()
}
