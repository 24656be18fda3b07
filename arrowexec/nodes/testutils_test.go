package nodes

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// makeRecord builds a record out of rows of Go values, ints are converted to the column type.
func makeRecord(schema *arrow.Schema, rows ...[]any) execution.Record {
	recordBuilder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer recordBuilder.Release()
	for _, row := range rows {
		for i, v := range row {
			if v == nil {
				recordBuilder.Field(i).AppendNull()
				continue
			}
			switch builder := recordBuilder.Field(i).(type) {
			case *array.Int64Builder:
				builder.Append(int64(v.(int)))
			case *array.Uint64Builder:
				builder.Append(uint64(v.(int)))
			case *array.Float64Builder:
				builder.Append(v.(float64))
			case *array.StringBuilder:
				builder.Append(v.(string))
			case *array.BooleanBuilder:
				builder.Append(v.(bool))
			default:
				panic(fmt.Sprintf("unsupported builder: %T", builder))
			}
		}
	}
	return execution.Record{Record: recordBuilder.NewRecord()}
}

// row converts Go values into a result row. Ints become Int values, use uint64 for Uint values.
func row(values ...any) []helpers.Value {
	out := make([]helpers.Value, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
			out[i] = helpers.NewNull()
		case int:
			out[i] = helpers.NewInt(int64(v))
		case uint64:
			out[i] = helpers.NewUint(v)
		case float64:
			out[i] = helpers.NewFloat(v)
		case string:
			out[i] = helpers.NewString(v)
		case bool:
			out[i] = helpers.NewBoolean(v)
		default:
			panic(fmt.Sprintf("unsupported value: %T", v))
		}
	}
	return out
}

func scanNode(schema *arrow.Schema, partitions ...[]execution.Record) *execution.NodeWithMeta {
	return &execution.NodeWithMeta{
		Node:         NewInMemoryScan(schema, partitions, nil),
		Schema:       schema,
		Partitioning: execution.UnknownPartitioning(len(partitions)),
	}
}

func exchangeNode(source *execution.NodeWithMeta, partitioning execution.Partitioning) *execution.NodeWithMeta {
	return &execution.NodeWithMeta{
		Node:         &Exchange{Source: source, Partitioning: partitioning},
		Schema:       source.Schema,
		Partitioning: partitioning,
	}
}

func column(schema *arrow.Schema, name string) *execution.RecordVariable {
	indices := schema.FieldIndices(name)
	if len(indices) != 1 {
		panic(fmt.Sprintf("no single column %s", name))
	}
	return execution.NewRecordVariable(name, indices[0])
}

// collect runs the node to completion and returns its output rows, with partitions merged in arrival order.
func collect(node *execution.NodeWithMeta, options execution.Options) ([][]helpers.Value, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	run, execCtx := execution.NewRunState(ctx, execution.WithOptions(options))

	root := node
	if node.Partitioning.PartitionCount() != 1 {
		root = &execution.NodeWithMeta{
			Node:         &CoalescePartitions{Source: node},
			Schema:       node.Schema,
			Partitioning: execution.SinglePartitioning(),
		}
	}

	var out [][]helpers.Value
	err := root.Node.Run(execCtx, 0, func(produceCtx execution.ProduceContext, record execution.Record) error {
		out = append(out, helpers.RecordRows(record.Record)...)
		return nil
	})
	cancel()
	if backgroundErr := run.Wait(); backgroundErr != nil && !errors.Is(backgroundErr, context.Canceled) {
		return nil, backgroundErr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// collectPartitions runs all output partitions of the node concurrently and returns the rows of each.
func collectPartitions(node *execution.NodeWithMeta, options execution.Options) ([][][]helpers.Value, error) {
	run, execCtx := execution.NewRunState(context.Background(), execution.WithOptions(options))

	out := make([][][]helpers.Value, node.Partitioning.PartitionCount())
	var g errgroup.Group
	for partition := range out {
		partition := partition
		g.Go(func() error {
			return node.Node.Run(execCtx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
				out[partition] = append(out[partition], helpers.RecordRows(record.Record)...)
				return nil
			})
		})
	}
	err := g.Wait()
	if backgroundErr := run.Wait(); backgroundErr != nil {
		return nil, backgroundErr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// endlessNode repeats its record forever, until cancelled or told to stop by produce.
type endlessNode struct {
	Record   execution.Record
	Produced int64
}

func (n *endlessNode) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	for {
		if err := ctx.Context.Err(); err != nil {
			return err
		}
		atomic.AddInt64(&n.Produced, 1)
		if err := produce(execution.ProduceContext{Context: ctx}, n.Record); err != nil {
			return err
		}
	}
}

// failingNode produces its records and then fails.
type failingNode struct {
	Records []execution.Record
	Err     error
}

func (n *failingNode) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	for _, record := range n.Records {
		if err := produce(execution.ProduceContext{Context: ctx}, record); err != nil {
			return err
		}
	}
	return n.Err
}

func flatten(partitions [][][]helpers.Value) [][]helpers.Value {
	var out [][]helpers.Value
	for _, rows := range partitions {
		out = append(out, rows...)
	}
	return out
}
