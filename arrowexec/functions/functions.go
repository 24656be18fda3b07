package functions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/dgraph-io/ristretto"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

type Function func(args []arrow.Array) (arrow.Array, error)

type ComparisonOperator string

const (
	Equal          ComparisonOperator = "="
	NotEqual       ComparisonOperator = "<>"
	Less           ComparisonOperator = "<"
	LessOrEqual    ComparisonOperator = "<="
	Greater        ComparisonOperator = ">"
	GreaterOrEqual ComparisonOperator = ">="
)

func (op ComparisonOperator) matches(comp int) bool {
	switch op {
	case Equal:
		return comp == 0
	case NotEqual:
		return comp != 0
	case Less:
		return comp < 0
	case LessOrEqual:
		return comp <= 0
	case Greater:
		return comp > 0
	case GreaterOrEqual:
		return comp >= 0
	}
	panic(fmt.Sprintf("unexhaustive comparison operator match: %s", op))
}

func ParseComparisonOperator(s string) (ComparisonOperator, error) {
	switch op := ComparisonOperator(s); op {
	case Equal, NotEqual, Less, LessOrEqual, Greater, GreaterOrEqual:
		return op, nil
	}
	return "", fmt.Errorf("unknown comparison operator: %s", s)
}

// Compare is a null-propagating comparison of two arrays of the same type.
func Compare(op ComparisonOperator) Function {
	return func(args []arrow.Array) (arrow.Array, error) {
		if err := checkArgumentCount(args, 2); err != nil {
			return nil, err
		}
		left, right := args[0], args[1]
		if !arrow.TypeEqual(left.DataType(), right.DataType()) {
			return nil, fmt.Errorf("can't compare %s with %s", left.DataType(), right.DataType())
		}
		leftGetter, rightGetter := helpers.MakeValueGetter(left), helpers.MakeValueGetter(right)

		builder := array.NewBooleanBuilder(memory.DefaultAllocator)
		defer builder.Release()
		builder.Reserve(left.Len())
		for i := 0; i < left.Len(); i++ {
			if left.IsNull(i) || right.IsNull(i) {
				builder.AppendNull()
				continue
			}
			builder.Append(op.matches(leftGetter(i).Compare(rightGetter(i))))
		}
		return builder.NewArray(), nil
	}
}

// And follows SQL three-valued logic: FALSE wins over NULL.
func And(args []arrow.Array) (arrow.Array, error) {
	return logical(args, func(values []bool, valid []bool) (bool, bool) {
		anyNull := false
		for i := range values {
			if !valid[i] {
				anyNull = true
				continue
			}
			if !values[i] {
				return false, true
			}
		}
		return true, !anyNull
	})
}

// Or follows SQL three-valued logic: TRUE wins over NULL.
func Or(args []arrow.Array) (arrow.Array, error) {
	return logical(args, func(values []bool, valid []bool) (bool, bool) {
		anyNull := false
		for i := range values {
			if !valid[i] {
				anyNull = true
				continue
			}
			if values[i] {
				return true, true
			}
		}
		return false, !anyNull
	})
}

func Not(args []arrow.Array) (arrow.Array, error) {
	if err := checkArgumentCount(args, 1); err != nil {
		return nil, err
	}
	return logical(args, func(values []bool, valid []bool) (bool, bool) {
		return !values[0], valid[0]
	})
}

func logical(args []arrow.Array, combine func(values []bool, valid []bool) (value bool, isValid bool)) (arrow.Array, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected at least one argument")
	}
	typedArgs := make([]*array.Boolean, len(args))
	for i := range args {
		typed, ok := args[i].(*array.Boolean)
		if !ok {
			return nil, fmt.Errorf("argument %d: expected boolean, got %s", i, args[i].DataType())
		}
		typedArgs[i] = typed
	}

	builder := array.NewBooleanBuilder(memory.DefaultAllocator)
	defer builder.Release()
	length := typedArgs[0].Len()
	builder.Reserve(length)
	values := make([]bool, len(typedArgs))
	valid := make([]bool, len(typedArgs))
	for rowIndex := 0; rowIndex < length; rowIndex++ {
		for i := range typedArgs {
			valid[i] = typedArgs[i].IsValid(rowIndex)
			values[i] = valid[i] && typedArgs[i].Value(rowIndex)
		}
		value, isValid := combine(values, valid)
		if !isValid {
			builder.AppendNull()
			continue
		}
		builder.Append(value)
	}
	return builder.NewArray(), nil
}

// In checks set membership of the first argument. A NULL argument gives NULL.
func In(list []helpers.Value, negate bool) Function {
	return func(args []arrow.Array) (arrow.Array, error) {
		if err := checkArgumentCount(args, 1); err != nil {
			return nil, err
		}
		getter := helpers.MakeValueGetter(args[0])

		builder := array.NewBooleanBuilder(memory.DefaultAllocator)
		defer builder.Release()
		builder.Reserve(args[0].Len())
		for i := 0; i < args[0].Len(); i++ {
			if args[0].IsNull(i) {
				builder.AppendNull()
				continue
			}
			value := getter(i)
			found := false
			for j := range list {
				if value.Compare(list[j]) == 0 {
					found = true
					break
				}
			}
			builder.Append(found != negate)
		}
		return builder.NewArray(), nil
	}
}

// Like matches strings against a SQL pattern, where % matches any sequence and _ matches any single character.
func Like(pattern string, negate bool) (Function, error) {
	re, err := CompileLikePattern(pattern)
	if err != nil {
		return nil, err
	}
	return func(args []arrow.Array) (arrow.Array, error) {
		if err := checkArgumentCount(args, 1); err != nil {
			return nil, err
		}
		typed, ok := args[0].(*array.String)
		if !ok {
			return nil, fmt.Errorf("LIKE expects a string argument, got %s", args[0].DataType())
		}

		builder := array.NewBooleanBuilder(memory.DefaultAllocator)
		defer builder.Release()
		builder.Reserve(typed.Len())
		for i := 0; i < typed.Len(); i++ {
			if typed.IsNull(i) {
				builder.AppendNull()
				continue
			}
			builder.Append(re.MatchString(typed.Value(i)) != negate)
		}
		return builder.NewArray(), nil
	}, nil
}

// likePatterns caches compiled LIKE patterns, as the same predicates get materialized for every run.
var likePatterns = func() *ristretto.Cache {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 12,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		panic(fmt.Sprintf("couldn't create LIKE pattern cache: %s", err))
	}
	return cache
}()

// CompileLikePattern compiles a LIKE pattern, where % matches any sequence of characters and _ matches a single one.
func CompileLikePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := likePatterns.Get(pattern); ok {
		return re.(*regexp.Regexp), nil
	}

	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("couldn't compile LIKE pattern %s: %w", pattern, err)
	}
	likePatterns.Set(pattern, re, int64(len(pattern)))
	return re, nil
}

func checkArgumentCount(args []arrow.Array, count int) error {
	if len(args) != count {
		return fmt.Errorf("expected %d arguments, got %d", count, len(args))
	}
	return nil
}
