package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

type Metrics struct {
	outputRows    *prometheus.CounterVec
	outputBatches *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewMetrics creates the execution metrics and registers them.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outputRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "octopipe",
			Name:      "operator_output_rows_total",
			Help:      "Rows produced by operators, summed over partitions.",
		}, []string{"operator"}),
		outputBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "octopipe",
			Name:      "operator_output_batches_total",
			Help:      "Batches produced by operators, summed over partitions.",
		}, []string{"operator"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "octopipe",
			Name:      "runs_total",
			Help:      "Finished plan executions.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "octopipe",
			Name:      "run_duration_seconds",
			Help:      "Duration of plan executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	for _, collector := range []prometheus.Collector{m.outputRows, m.outputBatches, m.runs, m.runDuration} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRun(err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// Instrument wraps the node so that its output is counted under the given operator name.
func (m *Metrics) Instrument(operator string, node *execution.NodeWithMeta) *execution.NodeWithMeta {
	if m == nil {
		return node
	}
	return &execution.NodeWithMeta{
		Node: &instrumentedNode{
			source:  node.Node,
			rows:    m.outputRows.WithLabelValues(operator),
			batches: m.outputBatches.WithLabelValues(operator),
		},
		Schema:       node.Schema,
		Partitioning: node.Partitioning,
	}
}

type instrumentedNode struct {
	source  execution.Node
	rows    prometheus.Counter
	batches prometheus.Counter
}

func (n *instrumentedNode) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	return n.source.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		n.rows.Add(float64(record.NumRows()))
		n.batches.Inc()
		return produce(produceCtx, record)
	})
}
