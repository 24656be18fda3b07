package hashtable

import (
	"fmt"
	"runtime"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/brentp/intintmap"
	"github.com/twotwotwo/sorts"
	"golang.org/x/sync/errgroup"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// JoinTable is the build side of a hash join partition.
// It's built once by the unit owning the partition and only read afterwards.
//
// Rows are stored ordered by key hash, so all rows with a given hash are a contiguous range
// starting at the index stored in hashStartIndices.
type JoinTable struct {
	hashStartIndices *intintmap.Map
	hashes           []uint64
	// Build side columns, followed by the key columns.
	values      arrow.Record
	valueSchema *arrow.Schema
	keyColumns  []arrow.Array

	nullEqualsNull bool
}

type hashRowPosition struct {
	hash        uint64
	recordIndex int
	rowIndex    int
}

type sortHashPosition []hashRowPosition

func (h sortHashPosition) Len() int {
	return len(h)
}

func (h sortHashPosition) Less(i, j int) bool {
	return h[i].hash < h[j].hash
}

func (h sortHashPosition) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h sortHashPosition) Key(i int) uint64 {
	return h[i].hash
}

// BuildJoinTable builds a table out of the records of a single build partition.
// keyColumns[i] holds the evaluated join keys of records[i].
// Rows with a NULL key can never match, so they're left out, unless nullEqualsNull is set.
func BuildJoinTable(allocator memory.Allocator, schema *arrow.Schema, records []execution.Record, keyColumns [][]arrow.Array, keyTypes []arrow.DataType, nullEqualsNull bool) (*JoinTable, error) {
	if len(records) != len(keyColumns) {
		return nil, fmt.Errorf("record count %d doesn't match key column set count %d", len(records), len(keyColumns))
	}

	fields := append([]arrow.Field{}, schema.Fields()...)
	for i, keyType := range keyTypes {
		fields = append(fields, arrow.Field{Name: fmt.Sprintf("__key_%d", i), Type: keyType, Nullable: true})
	}
	tableSchema := arrow.NewSchema(fields, nil)

	var overallRowCount int
	for _, record := range records {
		overallRowCount += int(record.NumRows())
	}

	hashPositions := make([]hashRowPosition, 0, overallRowCount)
	for recordIndex, record := range records {
		keyHasher, err := helpers.MakeRowHasher(keyColumns[recordIndex])
		if err != nil {
			return nil, execution.NewConfigurationError(fmt.Errorf("couldn't hash join keys: %w", err))
		}
		isNull := helpers.MakeNullChecker(keyColumns[recordIndex])
		numRows := int(record.NumRows())
		for rowIndex := 0; rowIndex < numRows; rowIndex++ {
			if !nullEqualsNull && isNull(rowIndex) {
				continue
			}
			hashPositions = append(hashPositions, hashRowPosition{
				hash:        keyHasher(uint(rowIndex)),
				recordIndex: recordIndex,
				rowIndex:    rowIndex,
			})
		}
	}
	sorts.ByUint64(sortHashPosition(hashPositions))

	values := buildRecord(allocator, tableSchema, records, keyColumns, hashPositions)
	keys := make([]arrow.Array, len(keyTypes))
	for i := range keys {
		keys[i] = values.Column(len(schema.Fields()) + i)
	}
	hashes := make([]uint64, len(hashPositions))
	for i := range hashPositions {
		hashes[i] = hashPositions[i].hash
	}

	return &JoinTable{
		hashStartIndices: buildHashIndex(hashPositions),
		hashes:           hashes,
		values:           values,
		valueSchema:      schema,
		keyColumns:       keys,
		nullEqualsNull:   nullEqualsNull,
	}, nil
}

func buildHashIndex(hashPositionsOrdered []hashRowPosition) *intintmap.Map {
	if len(hashPositionsOrdered) == 0 {
		return intintmap.New(1, 0.6)
	}
	hashIndex := intintmap.New(len(hashPositionsOrdered), 0.6)
	hashIndex.Put(int64(hashPositionsOrdered[0].hash), 0)
	for i := 1; i < len(hashPositionsOrdered); i++ {
		if hashPositionsOrdered[i].hash != hashPositionsOrdered[i-1].hash {
			hashIndex.Put(int64(hashPositionsOrdered[i].hash), int64(i))
		}
	}
	return hashIndex
}

func buildRecord(allocator memory.Allocator, schema *arrow.Schema, records []execution.Record, keyColumns [][]arrow.Array, hashPositionsOrdered []hashRowPosition) arrow.Record {
	recordBuilder := array.NewRecordBuilder(allocator, schema)
	defer recordBuilder.Release()
	recordBuilder.Reserve(len(hashPositionsOrdered))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	columnCount := len(recordBuilder.Fields())
	for columnIndex := 0; columnIndex < columnCount; columnIndex++ {
		columnRewriters := make([]func(rowIndex int), len(records))
		for recordIndex, record := range records {
			var column arrow.Array
			if columnIndex < int(record.NumCols()) {
				column = record.Column(columnIndex)
			} else {
				column = keyColumns[recordIndex][columnIndex-int(record.NumCols())]
			}
			columnRewriters[recordIndex] = helpers.MakeColumnRewriter(recordBuilder.Field(columnIndex), column)
		}

		g.Go(func() error {
			for _, hashPosition := range hashPositionsOrdered {
				columnRewriters[hashPosition.recordIndex](hashPosition.rowIndex)
			}
			return nil
		})
	}
	g.Wait()
	return recordBuilder.NewRecord()
}

// Len returns the count of matchable rows in the table.
func (t *JoinTable) Len() int {
	return len(t.hashes)
}

// Values returns the build side columns of the table, without the key columns.
func (t *JoinTable) Values() arrow.Record {
	columnCount := len(t.valueSchema.Fields())
	columns := make([]int, columnCount)
	for i := range columns {
		columns[i] = i
	}
	return execution.ProjectRecord(t.valueSchema, t.values, columns)
}

// MakeProber returns a function which calls match with every table row matching the probe row,
// until match returns false.
func (t *JoinTable) MakeProber(probeKeys []arrow.Array) (func(probeRowIndex int, match func(tableRowIndex int) bool), error) {
	if len(t.hashes) == 0 {
		return func(probeRowIndex int, match func(tableRowIndex int) bool) {}, nil
	}
	if len(probeKeys) != len(t.keyColumns) {
		return nil, execution.NewConfigurationError(fmt.Errorf("probe key count %d doesn't match build key count %d", len(probeKeys), len(t.keyColumns)))
	}
	keyHasher, err := helpers.MakeRowHasher(probeKeys)
	if err != nil {
		return nil, execution.NewConfigurationError(fmt.Errorf("couldn't hash join keys: %w", err))
	}
	keysEqual, err := helpers.MakeRowEqualityChecker(probeKeys, t.keyColumns, t.nullEqualsNull)
	if err != nil {
		return nil, execution.NewConfigurationError(err)
	}
	isNull := helpers.MakeNullChecker(probeKeys)

	return func(probeRowIndex int, match func(tableRowIndex int) bool) {
		if !t.nullEqualsNull && isNull(probeRowIndex) {
			return
		}
		keyHash := keyHasher(uint(probeRowIndex))
		firstMatchingHashIndex, ok := t.hashStartIndices.Get(int64(keyHash))
		if !ok {
			return
		}

		for tableRowIndex := int(firstMatchingHashIndex); tableRowIndex < len(t.hashes); tableRowIndex++ {
			if t.hashes[tableRowIndex] != keyHash {
				break
			}
			if keysEqual(probeRowIndex, tableRowIndex) {
				if !match(tableRowIndex) {
					return
				}
			}
		}
	}, nil
}
