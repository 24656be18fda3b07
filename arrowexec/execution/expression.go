package execution

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/scalar"
)

type Expression interface {
	Evaluate(ctx Context, record Record) (arrow.Array, error)
	// String is the display form used by plan introspection and partitioning comparisons.
	String() string
}

type RecordVariable struct {
	name  string
	index int
}

func NewRecordVariable(name string, index int) *RecordVariable {
	return &RecordVariable{
		name:  name,
		index: index,
	}
}

func (r *RecordVariable) Index() int {
	return r.index
}

func (r *RecordVariable) Evaluate(ctx Context, record Record) (arrow.Array, error) {
	if r.index >= int(record.NumCols()) {
		return nil, NewEvaluationError(fmt.Errorf("column %s out of range for record with %d columns", r, record.NumCols()))
	}
	return record.Column(r.index), nil
}

func (r *RecordVariable) String() string {
	return fmt.Sprintf("%s@%d", r.name, r.index)
}

// ConstArray is mostly useful for testing.
type ConstArray struct {
	Array arrow.Array
}

func (c *ConstArray) Evaluate(ctx Context, record Record) (arrow.Array, error) {
	if c.Array.Len() != int(record.NumRows()) {
		return nil, NewEvaluationError(fmt.Errorf("const array length %d doesn't match record length %d", c.Array.Len(), record.NumRows()))
	}
	return c.Array, nil
}

func (c *ConstArray) String() string {
	return fmt.Sprintf("const_array(%s)", c.Array.DataType())
}

type FunctionCall struct {
	name     string
	function func([]arrow.Array) (arrow.Array, error)
	args     []Expression
}

func NewFunctionCall(name string, function func([]arrow.Array) (arrow.Array, error), args []Expression) *FunctionCall {
	return &FunctionCall{
		name:     name,
		function: function,
		args:     args,
	}
}

func (f *FunctionCall) Evaluate(ctx Context, record Record) (arrow.Array, error) {
	args := make([]arrow.Array, len(f.args))
	for i, arg := range f.args {
		arr, err := arg.Evaluate(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("couldn't evaluate argument %d: %w", i, err)
		}
		args[i] = arr
	}

	out, err := f.function(args)
	if err != nil {
		return nil, NewEvaluationError(fmt.Errorf("couldn't evaluate %s: %w", f.name, err))
	}
	return out, nil
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.args))
	for i := range f.args {
		args[i] = f.args[i].String()
	}
	return fmt.Sprintf("%s(%s)", f.name, strings.Join(args, ", "))
}

type Constant struct {
	Value scalar.Scalar
}

func (c *Constant) Evaluate(ctx Context, record Record) (arrow.Array, error) {
	// TODO: Cache this for the IdealBatchSize.
	arr, err := scalar.MakeArrayFromScalar(c.Value, int(record.NumRows()), ctx.Allocator())
	if err != nil {
		return nil, NewEvaluationError(fmt.Errorf("couldn't make array from constant: %w", err))
	}
	return arr, nil
}

func (c *Constant) String() string {
	if !c.Value.IsValid() {
		return "NULL"
	}
	if c.Value.DataType().ID() == arrow.STRING {
		return fmt.Sprintf("'%s'", c.Value.String())
	}
	return c.Value.String()
}
