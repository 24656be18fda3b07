package live

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uilive"

	"github.com/cube2222/octopipe/arrowexec/app"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/outputs/formats"
)

// OutputPrinter runs a plan, redrawing all the rows received so far in place, at most once per interval.
type OutputPrinter struct {
	source   *execution.NodeWithMeta
	format   func(io.Writer) formats.Format
	interval time.Duration
}

func NewOutputPrinter(source *execution.NodeWithMeta, format func(io.Writer) formats.Format, interval time.Duration) *OutputPrinter {
	return &OutputPrinter{
		source:   source,
		format:   format,
		interval: interval,
	}
}

func (o *OutputPrinter) Run(ctx context.Context, opts app.Options, out io.Writer) error {
	liveWriter := uilive.New()
	liveWriter.Out = out

	var rows [][]helpers.Value
	redraw := func() error {
		var buf bytes.Buffer
		format := o.format(&buf)
		format.SetSchema(o.source.Schema)
		for _, row := range rows {
			if err := format.Write(row); err != nil {
				return fmt.Errorf("couldn't write row: %w", err)
			}
		}
		if err := format.Close(); err != nil {
			return fmt.Errorf("couldn't close format: %w", err)
		}
		if _, err := buf.WriteTo(liveWriter); err != nil {
			return fmt.Errorf("couldn't write table: %w", err)
		}
		return liveWriter.Flush()
	}

	lastUpdate := time.Now()
	if err := app.Run(ctx, o.source, opts, func(produceCtx execution.ProduceContext, record execution.Record) error {
		rows = append(rows, helpers.RecordRows(record.Record)...)
		if time.Since(lastUpdate) < o.interval {
			return nil
		}
		lastUpdate = time.Now()
		return redraw()
	}); err != nil {
		return err
	}
	return redraw()
}
