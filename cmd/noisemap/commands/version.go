package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/noisemap/cmd/noisemap/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("format") {
			return output(cmd, build.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
		if verbose {
			info := build.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "  go:     %s\n", info.Go)
			fmt.Fprintf(cmd.OutOrStdout(), "  config: %s\n", orDefault(configPath, "(defaults)"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
