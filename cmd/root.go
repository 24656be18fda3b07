package cmd

import (
	"context"
	"fmt"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "octopipe",
	Short: "Partitioned, pipelined execution of physical query plans over columnar batches.",
	Example: `octopipe generate --dir data
octopipe q16 --partitions 8
octopipe q16 --explain`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var mode func(p *profile.Profile)
		switch profileMode {
		case "":
			return nil
		case "cpu":
			mode = profile.CPUProfile
		case "mem":
			mode = profile.MemProfile
		case "trace":
			mode = profile.TraceProfile
		default:
			return fmt.Errorf("unknown profile %s, expected cpu, mem or trace", profileMode)
		}
		stopProfile = profile.Start(mode, profile.ProfilePath(profilePath), profile.Quiet, profile.NoShutdownHook).Stop
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			stopProfile()
		}
	},
}

func Execute(ctx context.Context) {
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

var (
	configPath  string
	profileMode string
	profilePath string
	stopProfile func()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "octopipe.yaml", "Configuration file with the data sources.")
	rootCmd.PersistentFlags().StringVar(&profileMode, "profile", "", "Profile the command: cpu, mem or trace.")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile-dir", ".", "Directory to write the profile into.")
}
