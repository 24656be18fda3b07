package execution

import (
	"fmt"
	"strings"
)

type PartitioningType int

const (
	PartitioningTypeUnknown PartitioningType = iota
	PartitioningTypeSingle
	PartitioningTypeRoundRobin
	PartitioningTypeHash
)

func (t PartitioningType) String() string {
	switch t {
	case PartitioningTypeUnknown:
		return "Unknown"
	case PartitioningTypeSingle:
		return "Single"
	case PartitioningTypeRoundRobin:
		return "RoundRobin"
	case PartitioningTypeHash:
		return "Hash"
	}
	panic(fmt.Sprintf("unexhaustive partitioning type match: %d", t))
}

// Partitioning describes how the rows of an operator's output are distributed across its partitions.
type Partitioning struct {
	Type PartitioningType
	// Count is the partition count. It's always 1 for Single.
	Count int
	// Keys are the hash partitioning expressions, only set for Hash.
	Keys []Expression
}

func UnknownPartitioning(count int) Partitioning {
	return Partitioning{Type: PartitioningTypeUnknown, Count: count}
}

func SinglePartitioning() Partitioning {
	return Partitioning{Type: PartitioningTypeSingle, Count: 1}
}

func RoundRobinPartitioning(count int) Partitioning {
	return Partitioning{Type: PartitioningTypeRoundRobin, Count: count}
}

func HashPartitioning(keys []Expression, count int) Partitioning {
	return Partitioning{Type: PartitioningTypeHash, Count: count, Keys: keys}
}

func (p Partitioning) PartitionCount() int {
	if p.Type == PartitioningTypeSingle {
		return 1
	}
	return p.Count
}

func (p Partitioning) String() string {
	switch p.Type {
	case PartitioningTypeUnknown:
		return fmt.Sprintf("Unknown(%d)", p.Count)
	case PartitioningTypeSingle:
		return "Single"
	case PartitioningTypeRoundRobin:
		return fmt.Sprintf("RoundRobin(%d)", p.Count)
	case PartitioningTypeHash:
		keys := make([]string, len(p.Keys))
		for i := range p.Keys {
			keys[i] = p.Keys[i].String()
		}
		return fmt.Sprintf("Hash([%s], %d)", strings.Join(keys, ", "), p.Count)
	}
	panic(fmt.Sprintf("unexhaustive partitioning type match: %d", p.Type))
}
