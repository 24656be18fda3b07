package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cube2222/octopipe/arrowexec/app"
	"github.com/cube2222/octopipe/config"
	"github.com/cube2222/octopipe/graph"
	"github.com/cube2222/octopipe/logs"
	"github.com/cube2222/octopipe/outputs/eager"
	"github.com/cube2222/octopipe/outputs/formats"
	"github.com/cube2222/octopipe/outputs/live"
	"github.com/cube2222/octopipe/physical"
	"github.com/cube2222/octopipe/tpch"
)

var (
	partitions  int
	explain     bool
	graphPath   string
	showGraph   bool
	output      string
	metricsPath string
)

var q16Cmd = &cobra.Command{
	Use:   "q16",
	Short: "Run TPC-H query 16 over the part, partsupp and supplier data sources.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Read(configPath)
		if err != nil {
			return fmt.Errorf("couldn't read config: %w", err)
		}
		logger, err := logs.New(cfg.Logging.Level, cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("couldn't create logger: %w", err)
		}
		defer logger.Sync()

		if !cmd.Flags().Changed("partitions") {
			partitions = cfg.Execution.Partitions
		}
		sources, err := tpch.OpenSources(ctx, cfg)
		if err != nil {
			return fmt.Errorf("couldn't open data sources: %w", err)
		}
		plan, err := tpch.Q16Plan(sources, partitions)
		if err != nil {
			return fmt.Errorf("couldn't plan query: %w", err)
		}

		if explain {
			_, err := fmt.Fprint(cmd.OutOrStdout(), physical.Explain(plan))
			return err
		}
		if graphPath != "" || showGraph {
			g, err := graph.Show(physical.ExplainGraph(plan))
			if err != nil {
				return fmt.Errorf("couldn't build plan graph: %w", err)
			}
			if graphPath != "" {
				if err := os.WriteFile(graphPath, []byte(g.String()), 0o644); err != nil {
					return fmt.Errorf("couldn't write plan graph: %w", err)
				}
				logger.Info("plan graph written", zap.String("path", graphPath))
			}
			if showGraph {
				return renderAndOpen(g.String())
			}
			return nil
		}

		liveOutput := output == "live"
		formatName := output
		if liveOutput {
			formatName = "table"
		}
		format, err := formats.Get(formatName)
		if err != nil {
			return err
		}
		registry := prometheus.NewRegistry()
		metrics, err := app.NewMetrics(registry)
		if err != nil {
			return fmt.Errorf("couldn't register metrics: %w", err)
		}
		materialized, err := plan.Materialize(ctx, physical.Environment{Wrap: metrics.Instrument})
		if err != nil {
			return fmt.Errorf("couldn't materialize plan: %w", err)
		}

		var sink interface {
			Run(ctx context.Context, opts app.Options, out io.Writer) error
		}
		if liveOutput {
			sink = live.NewOutputPrinter(materialized, format, time.Second/4)
		} else {
			sink = eager.NewOutputPrinter(materialized, format)
		}
		if err := sink.Run(ctx, app.Options{
			Execution: cfg.ExecutionOptions(),
			Logger:    logger,
			Metrics:   metrics,
		}, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("couldn't run query: %w", err)
		}

		if metricsPath != "" {
			if err := prometheus.WriteToTextfile(metricsPath, registry); err != nil {
				return fmt.Errorf("couldn't write metrics: %w", err)
			}
		}
		return nil
	},
}

// renderAndOpen renders the graph into a temporary png file using graphviz and opens it.
func renderAndOpen(dot string) error {
	file, err := os.CreateTemp(os.TempDir(), "octopipe-plan-*.png")
	if err != nil {
		return fmt.Errorf("couldn't create temporary file: %w", err)
	}
	cmd := exec.Command("dot", "-Tpng")
	cmd.Stdin = strings.NewReader(dot)
	cmd.Stdout = file
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		file.Close()
		return fmt.Errorf("couldn't render graph: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("couldn't close temporary file: %w", err)
	}
	if err := open.Start(file.Name()); err != nil {
		return fmt.Errorf("couldn't open graph: %w", err)
	}
	return nil
}

func init() {
	q16Cmd.Flags().IntVar(&partitions, "partitions", 0, "Partition count of the plan, the configured one by default.")
	q16Cmd.Flags().BoolVar(&explain, "explain", false, "Print the plan instead of running it.")
	q16Cmd.Flags().StringVar(&graphPath, "graph", "", "Write the plan as a graphviz graph into the given file instead of running it.")
	q16Cmd.Flags().BoolVar(&showGraph, "show", false, "Render the plan graph with graphviz and open it instead of running the plan.")
	q16Cmd.Flags().StringVar(&output, "output", "table", "Output format: table, live, csv or json.")
	q16Cmd.Flags().StringVar(&metricsPath, "metrics", "", "Write the execution metrics in the Prometheus text format into the given file.")
	rootCmd.AddCommand(q16Cmd)
}
