package physical

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/aggregates"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

// Validate checks the whole plan before execution. All problems found are configuration errors.
func Validate(node Node) error {
	for _, child := range node.children() {
		if err := Validate(child); err != nil {
			return err
		}
	}
	if err := node.validate(); err != nil {
		return execution.NewConfigurationError(fmt.Errorf("%s: %w", node.OperatorName(), err))
	}
	return nil
}

func (node Node) validate() error {
	if node.Schema == nil {
		return fmt.Errorf("missing schema")
	}
	derived, err := node.deriveSchema()
	if err != nil {
		return err
	}
	if err := execution.SchemasCompatible(derived, node.Schema); err != nil {
		return fmt.Errorf("schema mismatch: %w", err)
	}

	switch node.NodeType {
	case NodeTypeScan:
		if node.Scan.Datasource.Partitioning().PartitionCount() < 1 {
			return fmt.Errorf("table %s has no partitions", node.Scan.Table)
		}
		return nil

	case NodeTypeFilter:
		if err := node.Filter.Predicate.Validate(node.Filter.Source.Schema); err != nil {
			return fmt.Errorf("invalid predicate: %w", err)
		}
		if node.Filter.Predicate.Type.ID() != arrow.BOOL {
			return fmt.Errorf("predicate must be boolean, got %s", node.Filter.Predicate.Type)
		}
		return nil

	case NodeTypeProjection:
		for i, expr := range node.Projection.Expressions {
			if err := expr.Validate(node.Projection.Source.Schema); err != nil {
				return fmt.Errorf("invalid expression %d: %w", i, err)
			}
		}
		return nil

	case NodeTypeExchange:
		partitioning := node.Exchange.Partitioning
		if partitioning.PartitionCount() < 1 {
			return fmt.Errorf("invalid partition count %d", partitioning.PartitionCount())
		}
		switch partitioning.Type {
		case execution.PartitioningTypeRoundRobin, execution.PartitioningTypeSingle:
			return nil
		case execution.PartitioningTypeHash:
			if len(partitioning.Keys) == 0 {
				return fmt.Errorf("hash partitioning requires keys")
			}
			for i, key := range partitioning.Keys {
				if err := key.Validate(node.Exchange.Source.Schema); err != nil {
					return fmt.Errorf("invalid partitioning key %d: %w", i, err)
				}
			}
			return nil
		}
		return fmt.Errorf("can't repartition to %s partitioning", partitioning.Type)

	case NodeTypeCoalesce:
		if node.Coalesce.TargetBatchSize < 0 {
			return fmt.Errorf("invalid target batch size %d", node.Coalesce.TargetBatchSize)
		}
		return nil

	case NodeTypeCoalescePartitions:
		return nil

	case NodeTypeHashJoin:
		return node.HashJoin.validate()

	case NodeTypeAggregate:
		return node.Aggregate.validate()

	case NodeTypeSort:
		return validateSort(node.Sort.Source.Schema, node.Sort.Fields, node.Sort.Fetch)

	case NodeTypeSortPreservingMerge:
		return validateSort(node.SortPreservingMerge.Source.Schema, node.SortPreservingMerge.Fields, node.SortPreservingMerge.Fetch)

	case NodeTypeLimit:
		limit := node.Limit
		if limit.Fetch < 0 && limit.Fetch != nodes.NoFetch {
			return fmt.Errorf("invalid fetch %d", limit.Fetch)
		}
		switch limit.Type {
		case LimitTypeGlobal:
			if limit.Skip < 0 {
				return fmt.Errorf("invalid skip %d", limit.Skip)
			}
			if count := limit.Source.Partitioning().PartitionCount(); count != 1 {
				return fmt.Errorf("input must have a single partition, got %d", count)
			}
		case LimitTypeLocal:
			if limit.Skip != 0 {
				return fmt.Errorf("local limits can't skip rows")
			}
			if limit.Fetch == nodes.NoFetch {
				return fmt.Errorf("local limits require a fetch")
			}
		}
		return nil
	}
	panic(fmt.Sprintf("unexhaustive node type match: %d", node.NodeType))
}

func (join *HashJoin) validate() error {
	if len(join.BuildKeys) == 0 || len(join.BuildKeys) != len(join.ProbeKeys) {
		return fmt.Errorf("got %d build keys and %d probe keys", len(join.BuildKeys), len(join.ProbeKeys))
	}
	for i := range join.BuildKeys {
		if err := join.BuildKeys[i].Validate(join.Build.Schema); err != nil {
			return fmt.Errorf("invalid build key %d: %w", i, err)
		}
		if err := join.ProbeKeys[i].Validate(join.Probe.Schema); err != nil {
			return fmt.Errorf("invalid probe key %d: %w", i, err)
		}
		if !arrow.TypeEqual(join.BuildKeys[i].Type, join.ProbeKeys[i].Type) {
			return fmt.Errorf("key type mismatch: %s is %s, %s is %s", join.BuildKeys[i], join.BuildKeys[i].Type, join.ProbeKeys[i], join.ProbeKeys[i].Type)
		}
	}

	buildPartitioning, probePartitioning := join.Build.Partitioning(), join.Probe.Partitioning()
	if buildPartitioning.PartitionCount() != probePartitioning.PartitionCount() {
		return fmt.Errorf("partition count mismatch: build side has %d, probe side has %d", buildPartitioning.PartitionCount(), probePartitioning.PartitionCount())
	}
	if !buildPartitioning.HashCompatible(join.BuildKeys, probePartitioning, join.ProbeKeys) {
		return fmt.Errorf("inputs aren't co-located on the join keys: build side is %s, probe side is %s", buildPartitioning, probePartitioning)
	}
	return nil
}

func (agg *Aggregate) validate() error {
	for i, key := range agg.Keys {
		if err := key.Validate(agg.Source.Schema); err != nil {
			return fmt.Errorf("invalid key %d: %w", i, err)
		}
	}
	for _, aggExpr := range agg.Aggregates {
		if aggExpr.Argument != nil {
			if err := aggExpr.Argument.Validate(agg.Source.Schema); err != nil {
				return fmt.Errorf("invalid argument of %s: %w", aggExpr, err)
			}
		}
		if aggExpr.Distinct && agg.Mode != nodes.AggregateModeSingle {
			return fmt.Errorf("%s is only supported in the Single mode, got %s", aggExpr, agg.Mode)
		}
		if agg.Mode.Phase() == aggregates.PhaseMerge && aggExpr.Argument == nil {
			return fmt.Errorf("%s in the %s mode must refer to a partial state", aggExpr, agg.Mode)
		}
	}

	sourcePartitioning := agg.Source.Partitioning()
	switch agg.Mode {
	case nodes.AggregateModePartial:
		return nil
	case nodes.AggregateModeFinalPartitioned:
		if sourcePartitioning.PartitionCount() > 1 && (sourcePartitioning.Type != execution.PartitioningTypeHash || !sourcePartitioning.CoLocates(agg.Keys)) {
			return fmt.Errorf("input must be hash partitioned on the group keys, got %s", sourcePartitioning)
		}
		return nil
	case nodes.AggregateModeFinal:
		if sourcePartitioning.PartitionCount() != 1 {
			return fmt.Errorf("input must have a single partition, got %s", sourcePartitioning)
		}
		return nil
	case nodes.AggregateModeSingle:
		if !sourcePartitioning.CoLocates(agg.Keys) {
			return fmt.Errorf("input must have a single partition or be hash partitioned on the group keys, got %s", sourcePartitioning)
		}
		return nil
	}
	return fmt.Errorf("unknown aggregate mode %s", agg.Mode)
}

func validateSort(schema *arrow.Schema, fields []SortField, fetch int) error {
	if len(fields) == 0 {
		return fmt.Errorf("no sort fields")
	}
	for _, field := range fields {
		if field.Column < 0 || field.Column >= len(schema.Fields()) {
			return fmt.Errorf("sort column %d out of range for schema with %d fields", field.Column, len(schema.Fields()))
		}
	}
	if fetch < 0 && fetch != nodes.NoFetch {
		return fmt.Errorf("invalid fetch %d", fetch)
	}
	return nil
}
