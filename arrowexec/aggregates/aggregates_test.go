package aggregates

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

func ints(values ...any) arrow.Array {
	builder := array.NewInt64Builder(memory.DefaultAllocator)
	for _, v := range values {
		if v == nil {
			builder.AppendNull()
		} else {
			builder.Append(int64(v.(int)))
		}
	}
	return builder.NewArray()
}

func values(arr arrow.Array) []helpers.Value {
	getter := helpers.MakeValueGetter(arr)
	out := make([]helpers.Value, arr.Len())
	for i := range out {
		out[i] = getter(i)
	}
	return out
}

// consume folds the rows of arr into the entries given by entries, entries[i] being the entry of row i.
func consume(agg Aggregate, arr arrow.Array, entries []uint) {
	maxEntry := uint(0)
	for _, entry := range entries {
		if entry > maxEntry {
			maxEntry = entry
		}
	}
	agg.Grow(int(maxEntry) + 1)
	consumer := agg.MakeColumnConsumer(arr)
	for rowIndex, entry := range entries {
		consumer(entry, uint(rowIndex))
	}
}

func TestCountHasNoNulls(t *testing.T) {
	for _, phase := range []Phase{PhaseRaw, PhaseMerge} {
		agg := NewCount(phase)
		agg.Grow(3)
		arr := agg.GetBatch(3, 0)
		assert.Equal(t, 0, arr.NullN())
		assert.Equal(t, 0, agg.GetBatch(2, 1).NullN())
		assert.Equal(t, []helpers.Value{helpers.NewUint(0), helpers.NewUint(0), helpers.NewUint(0)}, values(arr))
	}
}

func TestCountPhases(t *testing.T) {
	partialA := NewCount(PhaseRaw)
	consume(partialA, ints(1, nil, 3, 4), []uint{0, 0, 1, 1})
	partialB := NewCount(PhaseRaw)
	consume(partialB, ints(nil, 5), []uint{0, 1})

	final := NewCount(PhaseMerge)
	consume(final, partialA.GetBatch(2, 0), []uint{0, 1})
	consume(final, partialB.GetBatch(2, 0), []uint{0, 1})
	assert.Equal(t, []helpers.Value{helpers.NewUint(1), helpers.NewUint(3)}, values(final.GetBatch(2, 0)))
}

func TestCountStar(t *testing.T) {
	agg := NewCount(PhaseRaw)
	consume(agg, nil, []uint{0, 0, 0, 2})
	assert.Equal(t, []helpers.Value{helpers.NewUint(3), helpers.NewUint(0), helpers.NewUint(1)}, values(agg.GetBatch(3, 0)))
	assert.Equal(t, []helpers.Value{helpers.NewUint(0), helpers.NewUint(1)}, values(agg.GetBatch(2, 1)))
}

func TestSumMinMax(t *testing.T) {
	input := ints(3, nil, -2, 7, nil)
	entries := []uint{0, 1, 0, 0, 2}

	sum, err := NewSum(arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	consume(sum, input, entries)
	assert.Equal(t, []helpers.Value{helpers.NewInt(8), helpers.NewNull(), helpers.NewNull()}, values(sum.GetBatch(3, 0)))

	min, err := NewMin(arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	consume(min, input, entries)
	assert.Equal(t, []helpers.Value{helpers.NewInt(-2), helpers.NewNull(), helpers.NewNull()}, values(min.GetBatch(3, 0)))

	max, err := NewMax(arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	consume(max, input, entries)
	assert.Equal(t, []helpers.Value{helpers.NewInt(7), helpers.NewNull(), helpers.NewNull()}, values(max.GetBatch(3, 0)))

	_, err = NewSum(arrow.BinaryTypes.String)
	assert.Error(t, err)
}

func TestDistinct(t *testing.T) {
	agg := NewDistinct(NewCount(PhaseRaw))
	consume(agg, ints(1, 1, 2, nil, 1, 1), []uint{0, 0, 0, 0, 1, 1})
	assert.Equal(t, []helpers.Value{helpers.NewUint(2), helpers.NewUint(1)}, values(agg.GetBatch(2, 0)))
}

func TestLookup(t *testing.T) {
	details, err := Lookup(FunctionCount)
	require.NoError(t, err)
	outputType, err := details.OutputType(arrow.BinaryTypes.String)
	require.NoError(t, err)
	assert.Equal(t, arrow.PrimitiveTypes.Uint64, outputType)

	_, err = Lookup("median")
	assert.Error(t, err)
	assert.Equal(t, []string{"count", "max", "min", "sum"}, Names())
}
