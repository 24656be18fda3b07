package aggregates

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v13/arrow"
)

type Function string

const (
	FunctionCount Function = "count"
	FunctionSum   Function = "sum"
	FunctionMin   Function = "min"
	FunctionMax   Function = "max"
)

type Details struct {
	Description string
	// OutputType returns the type of both the partial state and the final value for the given argument type.
	OutputType func(argType arrow.DataType) (arrow.DataType, error)
	New        func(phase Phase, argType arrow.DataType) (Aggregate, error)
}

// All aggregates are associative and commutative,
// so partial states can be merged in any grouping and order.
var Aggregates = map[Function]Details{
	FunctionCount: {
		Description: "Counts all non-NULL values in the group, or all rows without an argument.",
		OutputType: func(argType arrow.DataType) (arrow.DataType, error) {
			return arrow.PrimitiveTypes.Uint64, nil
		},
		New: func(phase Phase, argType arrow.DataType) (Aggregate, error) {
			return NewCount(phase), nil
		},
	},
	FunctionSum: {
		Description: "Sums all non-NULL values in the group.",
		OutputType:  numericOutputType("sum"),
		New: func(phase Phase, argType arrow.DataType) (Aggregate, error) {
			return NewSum(argType)
		},
	},
	FunctionMin: {
		Description: "Returns the smallest non-NULL value in the group.",
		OutputType:  orderedOutputType("min"),
		New: func(phase Phase, argType arrow.DataType) (Aggregate, error) {
			return NewMin(argType)
		},
	},
	FunctionMax: {
		Description: "Returns the largest non-NULL value in the group.",
		OutputType:  orderedOutputType("max"),
		New: func(phase Phase, argType arrow.DataType) (Aggregate, error) {
			return NewMax(argType)
		},
	},
}

func numericOutputType(name string) func(argType arrow.DataType) (arrow.DataType, error) {
	return func(argType arrow.DataType) (arrow.DataType, error) {
		switch argType.ID() {
		case arrow.INT64, arrow.UINT64, arrow.FLOAT64:
			return argType, nil
		}
		return nil, fmt.Errorf("%s doesn't support argument type %s", name, argType)
	}
}

func orderedOutputType(name string) func(argType arrow.DataType) (arrow.DataType, error) {
	return func(argType arrow.DataType) (arrow.DataType, error) {
		switch argType.ID() {
		case arrow.INT64, arrow.UINT64, arrow.FLOAT64, arrow.STRING:
			return argType, nil
		}
		return nil, fmt.Errorf("%s doesn't support argument type %s", name, argType)
	}
}

func Lookup(function Function) (Details, error) {
	details, ok := Aggregates[function]
	if !ok {
		return Details{}, fmt.Errorf("unknown aggregate function: %s", function)
	}
	return details, nil
}

// Names returns the sorted names of all aggregate functions.
func Names() []string {
	out := make([]string, 0, len(Aggregates))
	for name := range Aggregates {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}
