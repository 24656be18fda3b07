package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cube2222/octopipe/logs"
	"github.com/cube2222/octopipe/tpch"
)

var (
	generateDir    string
	generateFormat string
	generateSplits int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the part, partsupp and supplier tables along with a configuration reading them.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logs.New("info", false)
		if err != nil {
			return fmt.Errorf("couldn't create logger: %w", err)
		}
		defer logger.Sync()

		format := tpch.Format(generateFormat)
		known := false
		for _, f := range tpch.Formats {
			known = known || f == format
		}
		if !known {
			return fmt.Errorf("unknown format %s, expected tbl, json or parquet", generateFormat)
		}
		if generateSplits < 1 {
			return fmt.Errorf("splits must be positive, got %d", generateSplits)
		}

		data := tpch.Generate()
		if err := data.Write(generateDir, format); err != nil {
			return fmt.Errorf("couldn't write tables: %w", err)
		}
		if err := data.WriteConfig(configPath, generateDir, format, generateSplits); err != nil {
			return fmt.Errorf("couldn't write config: %w", err)
		}
		logger.Info("tables generated",
			zap.String("dir", generateDir),
			zap.String("config", configPath),
			zap.Int("parts", len(data.Part)),
			zap.Int("partsupps", len(data.PartSupp)),
			zap.Int("suppliers", len(data.Supplier)),
		)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateDir, "dir", "data", "Directory to write the tables into.")
	generateCmd.Flags().StringVar(&generateFormat, "format", string(tpch.FormatTbl), "Table file format: tbl, json or parquet.")
	generateCmd.Flags().IntVar(&generateSplits, "splits", 4, "Splits every table is read in.")
	rootCmd.AddCommand(generateCmd)
}
