package physical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/scalar"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/functions"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

type Expression struct {
	Type arrow.DataType

	ExpressionType ExpressionType
	// Only one of the below may be non-null.
	Column       *Column
	Constant     *Constant
	FunctionCall *FunctionCall
}

type ExpressionType int

const (
	ExpressionTypeColumn ExpressionType = iota
	ExpressionTypeConstant
	ExpressionTypeFunctionCall
)

// Column references a field of the input record by position. The name is only for display.
type Column struct {
	Name  string
	Index int
}

type Constant struct {
	Value helpers.Value
}

type FunctionName string

const (
	FunctionAnd     FunctionName = "AND"
	FunctionOr      FunctionName = "OR"
	FunctionNot     FunctionName = "NOT"
	FunctionIn      FunctionName = "IN"
	FunctionNotIn   FunctionName = "NOT IN"
	FunctionLike    FunctionName = "LIKE"
	FunctionNotLike FunctionName = "NOT LIKE"
)

type FunctionCall struct {
	// Name is one of the Function* names or a comparison operator.
	Name      FunctionName
	Arguments []Expression
	// List is the value list of IN and NOT IN.
	List []helpers.Value
	// Pattern is the pattern of LIKE and NOT LIKE.
	Pattern string
}

func NewColumn(schema *arrow.Schema, name string) (Expression, error) {
	indices := schema.FieldIndices(name)
	switch len(indices) {
	case 0:
		return Expression{}, execution.NewConfigurationError(fmt.Errorf("unknown column %s", name))
	case 1:
		return ColumnAt(schema, indices[0]), nil
	}
	return Expression{}, execution.NewConfigurationError(fmt.Errorf("ambiguous column %s", name))
}

// MustColumn is NewColumn for plans built in code, it panics on unknown columns.
func MustColumn(schema *arrow.Schema, name string) Expression {
	expr, err := NewColumn(schema, name)
	if err != nil {
		panic(err)
	}
	return expr
}

func ColumnAt(schema *arrow.Schema, index int) Expression {
	field := schema.Field(index)
	return Expression{
		Type:           field.Type,
		ExpressionType: ExpressionTypeColumn,
		Column:         &Column{Name: field.Name, Index: index},
	}
}

func NewConstant(value helpers.Value) Expression {
	return Expression{
		Type:           valueDataType(value.Type),
		ExpressionType: ExpressionTypeConstant,
		Constant:       &Constant{Value: value},
	}
}

func NewCompare(op functions.ComparisonOperator, left, right Expression) Expression {
	return newFunctionCall(FunctionCall{Name: FunctionName(op), Arguments: []Expression{left, right}})
}

func NewAnd(args ...Expression) Expression {
	return newFunctionCall(FunctionCall{Name: FunctionAnd, Arguments: args})
}

func NewOr(args ...Expression) Expression {
	return newFunctionCall(FunctionCall{Name: FunctionOr, Arguments: args})
}

func NewNot(arg Expression) Expression {
	return newFunctionCall(FunctionCall{Name: FunctionNot, Arguments: []Expression{arg}})
}

func NewIn(arg Expression, list []helpers.Value, negate bool) Expression {
	name := FunctionIn
	if negate {
		name = FunctionNotIn
	}
	return newFunctionCall(FunctionCall{Name: name, Arguments: []Expression{arg}, List: list})
}

func NewLike(arg Expression, pattern string, negate bool) Expression {
	name := FunctionLike
	if negate {
		name = FunctionNotLike
	}
	return newFunctionCall(FunctionCall{Name: name, Arguments: []Expression{arg}, Pattern: pattern})
}

func newFunctionCall(call FunctionCall) Expression {
	return Expression{
		Type:           arrow.FixedWidthTypes.Boolean,
		ExpressionType: ExpressionTypeFunctionCall,
		FunctionCall:   &call,
	}
}

func (expr Expression) String() string {
	switch expr.ExpressionType {
	case ExpressionTypeColumn:
		return fmt.Sprintf("%s@%d", expr.Column.Name, expr.Column.Index)
	case ExpressionTypeConstant:
		return formatValue(expr.Constant.Value)
	case ExpressionTypeFunctionCall:
		return expr.FunctionCall.String()
	}
	panic(fmt.Sprintf("unexhaustive expression type match: %d", expr.ExpressionType))
}

func (call *FunctionCall) String() string {
	switch call.Name {
	case FunctionAnd, FunctionOr:
		args := make([]string, len(call.Arguments))
		for i := range call.Arguments {
			args[i] = call.Arguments[i].String()
			if nested := call.Arguments[i].FunctionCall; nested != nil && (nested.Name == FunctionAnd || nested.Name == FunctionOr) {
				args[i] = "(" + args[i] + ")"
			}
		}
		return strings.Join(args, fmt.Sprintf(" %s ", call.Name))
	case FunctionNot:
		return fmt.Sprintf("NOT (%s)", call.Arguments[0])
	case FunctionIn, FunctionNotIn:
		values := make([]string, len(call.List))
		for i := range call.List {
			values[i] = formatValue(call.List[i])
		}
		return fmt.Sprintf("%s %s (%s)", call.Arguments[0], call.Name, strings.Join(values, ", "))
	case FunctionLike, FunctionNotLike:
		return fmt.Sprintf("%s %s '%s'", call.Arguments[0], call.Name, call.Pattern)
	}
	if len(call.Arguments) == 2 {
		return fmt.Sprintf("%s %s %s", call.Arguments[0], call.Name, call.Arguments[1])
	}
	args := make([]string, len(call.Arguments))
	for i := range call.Arguments {
		args[i] = call.Arguments[i].String()
	}
	return fmt.Sprintf("%s(%s)", call.Name, strings.Join(args, ", "))
}

func formatValue(value helpers.Value) string {
	if value.Type == helpers.TypeString {
		return fmt.Sprintf("'%s'", value.Str)
	}
	return value.String()
}

// Validate type checks the expression against the schema of the records it will be evaluated on.
func (expr Expression) Validate(schema *arrow.Schema) error {
	switch expr.ExpressionType {
	case ExpressionTypeColumn:
		if expr.Column.Index < 0 || expr.Column.Index >= len(schema.Fields()) {
			return fmt.Errorf("column %s out of range for schema with %d fields", expr, len(schema.Fields()))
		}
		field := schema.Field(expr.Column.Index)
		if field.Name != expr.Column.Name {
			return fmt.Errorf("column %s refers to field %s", expr, field.Name)
		}
		if !arrow.TypeEqual(field.Type, expr.Type) {
			return fmt.Errorf("column %s has type %s, field %s has type %s", expr, expr.Type, field.Name, field.Type)
		}
		return nil

	case ExpressionTypeConstant:
		return nil

	case ExpressionTypeFunctionCall:
		call := expr.FunctionCall
		for i := range call.Arguments {
			if err := call.Arguments[i].Validate(schema); err != nil {
				return fmt.Errorf("invalid argument %d of %s: %w", i, call.Name, err)
			}
		}
		return call.typeCheck()
	}
	panic(fmt.Sprintf("unexhaustive expression type match: %d", expr.ExpressionType))
}

func (call *FunctionCall) typeCheck() error {
	switch call.Name {
	case FunctionAnd, FunctionOr, FunctionNot:
		if len(call.Arguments) == 0 || (call.Name == FunctionNot && len(call.Arguments) != 1) {
			return fmt.Errorf("%s: invalid argument count %d", call.Name, len(call.Arguments))
		}
		for i := range call.Arguments {
			if call.Arguments[i].Type.ID() != arrow.BOOL {
				return fmt.Errorf("%s: argument %d must be boolean, got %s", call.Name, i, call.Arguments[i].Type)
			}
		}
		return nil
	case FunctionIn, FunctionNotIn:
		argType := valueType(call.Arguments[0].Type)
		for _, value := range call.List {
			if !value.IsNull() && value.Type != argType {
				return fmt.Errorf("%s: list value %s doesn't match argument type %s", call.Name, formatValue(value), call.Arguments[0].Type)
			}
		}
		return nil
	case FunctionLike, FunctionNotLike:
		if call.Arguments[0].Type.ID() != arrow.STRING {
			return fmt.Errorf("%s: argument must be a string, got %s", call.Name, call.Arguments[0].Type)
		}
		return nil
	}
	if _, err := functions.ParseComparisonOperator(string(call.Name)); err != nil {
		return err
	}
	if len(call.Arguments) != 2 {
		return fmt.Errorf("%s: invalid argument count %d", call.Name, len(call.Arguments))
	}
	if !arrow.TypeEqual(call.Arguments[0].Type, call.Arguments[1].Type) {
		return fmt.Errorf("can't compare %s with %s", call.Arguments[0].Type, call.Arguments[1].Type)
	}
	return nil
}

func (expr Expression) Materialize() (execution.Expression, error) {
	switch expr.ExpressionType {
	case ExpressionTypeColumn:
		return execution.NewRecordVariable(expr.Column.Name, expr.Column.Index), nil

	case ExpressionTypeConstant:
		value, err := valueScalar(expr.Constant.Value)
		if err != nil {
			return nil, execution.NewConfigurationError(err)
		}
		return &execution.Constant{Value: value}, nil

	case ExpressionTypeFunctionCall:
		call := expr.FunctionCall
		args := make([]execution.Expression, len(call.Arguments))
		for i := range call.Arguments {
			arg, err := call.Arguments[i].Materialize()
			if err != nil {
				return nil, fmt.Errorf("couldn't materialize argument %d of %s: %w", i, call.Name, err)
			}
			args[i] = arg
		}
		function, err := call.function()
		if err != nil {
			return nil, execution.NewConfigurationError(err)
		}
		return execution.NewFunctionCall(string(call.Name), function, args), nil
	}
	panic(fmt.Sprintf("unexhaustive expression type match: %d", expr.ExpressionType))
}

func (call *FunctionCall) function() (functions.Function, error) {
	switch call.Name {
	case FunctionAnd:
		return functions.And, nil
	case FunctionOr:
		return functions.Or, nil
	case FunctionNot:
		return functions.Not, nil
	case FunctionIn, FunctionNotIn:
		return functions.In(call.List, call.Name == FunctionNotIn), nil
	case FunctionLike, FunctionNotLike:
		return functions.Like(call.Pattern, call.Name == FunctionNotLike)
	}
	op, err := functions.ParseComparisonOperator(string(call.Name))
	if err != nil {
		return nil, err
	}
	return functions.Compare(op), nil
}

func materializeAll(exprs []Expression) ([]execution.Expression, error) {
	out := make([]execution.Expression, len(exprs))
	for i := range exprs {
		expr, err := exprs[i].Materialize()
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize expression %s: %w", exprs[i], err)
		}
		out[i] = expr
	}
	return out, nil
}

// mapColumns rewrites every column reference of the expression. If any mapping fails, the whole expression does.
func (expr Expression) mapColumns(mapping func(column Column) (Column, bool)) (Expression, bool) {
	switch expr.ExpressionType {
	case ExpressionTypeColumn:
		column, ok := mapping(*expr.Column)
		if !ok {
			return Expression{}, false
		}
		expr.Column = &column
		return expr, true
	case ExpressionTypeConstant:
		return expr, true
	case ExpressionTypeFunctionCall:
		call := *expr.FunctionCall
		call.Arguments = make([]Expression, len(expr.FunctionCall.Arguments))
		for i, arg := range expr.FunctionCall.Arguments {
			mapped, ok := arg.mapColumns(mapping)
			if !ok {
				return Expression{}, false
			}
			call.Arguments[i] = mapped
		}
		expr.FunctionCall = &call
		return expr, true
	}
	panic(fmt.Sprintf("unexhaustive expression type match: %d", expr.ExpressionType))
}

func valueType(dt arrow.DataType) helpers.ValueType {
	switch dt.ID() {
	case arrow.INT64:
		return helpers.TypeInt
	case arrow.UINT64:
		return helpers.TypeUint
	case arrow.FLOAT64:
		return helpers.TypeFloat
	case arrow.STRING:
		return helpers.TypeString
	case arrow.BOOL:
		return helpers.TypeBoolean
	}
	return helpers.TypeNull
}

func valueDataType(t helpers.ValueType) arrow.DataType {
	switch t {
	case helpers.TypeInt:
		return arrow.PrimitiveTypes.Int64
	case helpers.TypeUint:
		return arrow.PrimitiveTypes.Uint64
	case helpers.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case helpers.TypeString:
		return arrow.BinaryTypes.String
	case helpers.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	}
	return arrow.Null
}

func valueScalar(value helpers.Value) (scalar.Scalar, error) {
	switch value.Type {
	case helpers.TypeNull:
		return scalar.MakeNullScalar(arrow.Null), nil
	case helpers.TypeInt:
		return scalar.NewInt64Scalar(value.Int), nil
	case helpers.TypeUint:
		return scalar.NewUint64Scalar(value.Uint), nil
	case helpers.TypeFloat:
		return scalar.NewFloat64Scalar(value.Float), nil
	case helpers.TypeString:
		return scalar.NewStringScalar(value.Str), nil
	case helpers.TypeBoolean:
		return scalar.NewBooleanScalar(value.Boolean), nil
	}
	return nil, fmt.Errorf("unsupported constant type: %d", value.Type)
}
