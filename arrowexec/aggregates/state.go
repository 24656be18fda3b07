package aggregates

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/bitutil"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

// validity tracks which entries have seen at least one non-NULL value.
type validity struct {
	data *memory.Buffer // TODO: Release these buffers at some point.
	size int
}

func newValidity() validity {
	return validity{data: memory.NewResizableBuffer(memory.NewGoAllocator())} // TODO: Get allocator as argument.
}

func (v *validity) grow(entryCount int) {
	if entryCount <= v.size {
		return
	}
	v.size = bitutil.NextPowerOf2(entryCount)
	v.data.Resize(int(bitutil.BytesForBits(int64(v.size))))
}

func (v *validity) set(entryIndex uint) {
	bitutil.SetBit(v.data.Bytes(), int(entryIndex))
}

func (v *validity) isSet(entryIndex uint) bool {
	return bitutil.BitIsSet(v.data.Bytes(), int(entryIndex))
}

// nullCount is zero for states without a validity bitmap, which are never NULL.
func nullCount(validity *memory.Buffer) int {
	if validity == nil {
		return 0
	}
	return array.UnknownNullCount
}

type int64State struct {
	data  *memory.Buffer
	state []int64 // This uses the above data as the storage underneath.
}

func newInt64State() int64State {
	return int64State{data: memory.NewResizableBuffer(memory.NewGoAllocator())}
}

func (s *int64State) grow(entryCount int) {
	if entryCount <= len(s.state) {
		return
	}
	s.data.Resize(arrow.Int64Traits.BytesRequired(bitutil.NextPowerOf2(entryCount)))
	s.state = arrow.Int64Traits.CastFromBytes(s.data.Bytes())
}

func (s *int64State) array(validity *memory.Buffer, length, offset int) arrow.Array {
	return array.NewInt64Data(array.NewData(arrow.PrimitiveTypes.Int64, length, []*memory.Buffer{validity, s.data}, nil, nullCount(validity), offset))
}

type uint64State struct {
	data  *memory.Buffer
	state []uint64
}

func newUint64State() uint64State {
	return uint64State{data: memory.NewResizableBuffer(memory.NewGoAllocator())}
}

func (s *uint64State) grow(entryCount int) {
	if entryCount <= len(s.state) {
		return
	}
	s.data.Resize(arrow.Uint64Traits.BytesRequired(bitutil.NextPowerOf2(entryCount)))
	s.state = arrow.Uint64Traits.CastFromBytes(s.data.Bytes())
}

func (s *uint64State) array(validity *memory.Buffer, length, offset int) arrow.Array {
	return array.NewUint64Data(array.NewData(arrow.PrimitiveTypes.Uint64, length, []*memory.Buffer{validity, s.data}, nil, nullCount(validity), offset))
}

type float64State struct {
	data  *memory.Buffer
	state []float64
}

func newFloat64State() float64State {
	return float64State{data: memory.NewResizableBuffer(memory.NewGoAllocator())}
}

func (s *float64State) grow(entryCount int) {
	if entryCount <= len(s.state) {
		return
	}
	s.data.Resize(arrow.Float64Traits.BytesRequired(bitutil.NextPowerOf2(entryCount)))
	s.state = arrow.Float64Traits.CastFromBytes(s.data.Bytes())
}

func (s *float64State) array(validity *memory.Buffer, length, offset int) arrow.Array {
	return array.NewFloat64Data(array.NewData(arrow.PrimitiveTypes.Float64, length, []*memory.Buffer{validity, s.data}, nil, nullCount(validity), offset))
}
