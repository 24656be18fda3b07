package physical

import (
	"fmt"
	"strings"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// Partitioning is the plan-time view of execution.Partitioning, hash keys are plan expressions.
type Partitioning struct {
	Type execution.PartitioningType
	// Count is the partition count. It's always 1 for Single.
	Count int
	// Keys are the hash partitioning expressions, only set for Hash.
	Keys []Expression
}

func UnknownPartitioning(count int) Partitioning {
	return Partitioning{Type: execution.PartitioningTypeUnknown, Count: count}
}

func SinglePartitioning() Partitioning {
	return Partitioning{Type: execution.PartitioningTypeSingle, Count: 1}
}

func RoundRobinPartitioning(count int) Partitioning {
	return Partitioning{Type: execution.PartitioningTypeRoundRobin, Count: count}
}

func HashPartitioning(keys []Expression, count int) Partitioning {
	return Partitioning{Type: execution.PartitioningTypeHash, Count: count, Keys: keys}
}

func (p Partitioning) PartitionCount() int {
	if p.Type == execution.PartitioningTypeSingle {
		return 1
	}
	return p.Count
}

// CoLocates reports whether rows with equal values of the given key expressions
// are guaranteed to be in the same partition.
// That's the case for a single partition, or for a hash partitioning on a subset of the keys.
func (p Partitioning) CoLocates(keys []Expression) bool {
	if p.PartitionCount() == 1 {
		return true
	}
	if p.Type != execution.PartitioningTypeHash || len(p.Keys) == 0 {
		return false
	}
	for _, partitionKey := range p.Keys {
		if indexOfExpression(keys, partitionKey) == -1 {
			return false
		}
	}
	return true
}

// HashCompatible reports whether two partitionings place rows with pairwise equal key tuples in the same partition index.
func (p Partitioning) HashCompatible(leftKeys []Expression, other Partitioning, rightKeys []Expression) bool {
	if p.PartitionCount() != other.PartitionCount() {
		return false
	}
	if p.PartitionCount() == 1 {
		return true
	}
	if p.Type != execution.PartitioningTypeHash || other.Type != execution.PartitioningTypeHash {
		return false
	}
	if len(p.Keys) != len(other.Keys) {
		return false
	}
	// Partition key i on the left must correspond to partition key i on the right through the join key pairs.
	for i := range p.Keys {
		matched := false
		for j := range leftKeys {
			if leftKeys[j].String() == p.Keys[i].String() && rightKeys[j].String() == other.Keys[i].String() {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (p Partitioning) String() string {
	switch p.Type {
	case execution.PartitioningTypeUnknown:
		return fmt.Sprintf("Unknown(%d)", p.Count)
	case execution.PartitioningTypeSingle:
		return "Single"
	case execution.PartitioningTypeRoundRobin:
		return fmt.Sprintf("RoundRobin(%d)", p.Count)
	case execution.PartitioningTypeHash:
		keys := make([]string, len(p.Keys))
		for i := range p.Keys {
			keys[i] = p.Keys[i].String()
		}
		return fmt.Sprintf("Hash([%s], %d)", strings.Join(keys, ", "), p.Count)
	}
	panic(fmt.Sprintf("unexhaustive partitioning type match: %d", p.Type))
}

func (p Partitioning) Materialize() (execution.Partitioning, error) {
	keys, err := materializeAll(p.Keys)
	if err != nil {
		return execution.Partitioning{}, fmt.Errorf("couldn't materialize partitioning keys: %w", err)
	}
	if len(keys) == 0 {
		keys = nil
	}
	return execution.Partitioning{Type: p.Type, Count: p.Count, Keys: keys}, nil
}

// mapKeys carries a hash partitioning through an operator which moves columns around.
// If a key can't be expressed over the output, only the partition count is known afterwards.
func (p Partitioning) mapKeys(mapping func(column Column) (Column, bool)) Partitioning {
	if p.Type != execution.PartitioningTypeHash {
		return p
	}
	keys := make([]Expression, len(p.Keys))
	for i := range p.Keys {
		mapped, ok := p.Keys[i].mapColumns(mapping)
		if !ok {
			return UnknownPartitioning(p.Count)
		}
		keys[i] = mapped
	}
	return HashPartitioning(keys, p.Count)
}

func fromExecutionPartitioning(p execution.Partitioning) Partitioning {
	switch p.Type {
	case execution.PartitioningTypeSingle:
		return SinglePartitioning()
	case execution.PartitioningTypeRoundRobin:
		return RoundRobinPartitioning(p.Count)
	}
	// Datasources can't declare hash keys in plan terms.
	return UnknownPartitioning(p.PartitionCount())
}

func indexOfExpression(exprs []Expression, expr Expression) int {
	for i := range exprs {
		if exprs[i].String() == expr.String() {
			return i
		}
	}
	return -1
}
