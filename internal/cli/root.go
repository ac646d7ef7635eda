package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchgate-project/patchgate/pkg/color"
	"github.com/patchgate-project/patchgate/pkg/logging"
)

var (
	jsonOutput bool
	noColor    bool
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "patchgate",
		Short: "PatchGate - review agent-proposed file edits",
		Long: `PatchGate tracks file edits proposed by an AI coding agent so a human
can review them. Every proposed file becomes a tracked change with diff
hunks and a backup; accepting writes the new content to disk, rejecting
restores the original, and backups make either decision reversible.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
			if verbose {
				logging.SetGlobal(logging.NewLogger(logging.LevelDebug))
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
