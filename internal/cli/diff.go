package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchgate-project/patchgate/internal/change"
	"github.com/patchgate-project/patchgate/pkg/color"
)

var diffStatOnly bool

var diffCmd = &cobra.Command{
	Use:   "diff <old-file> <new-file>",
	Short: "Show line hunks between two files",
	Long: `Show line hunks between two files.

Hunks are maximal contiguous blocks of differing lines; a short run of
coincidentally equal lines inside an edited block does not split it.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		oldData, err := os.ReadFile(args[0])
		if err != nil {
			fmtErr("read %s: %v", args[0], err)
			os.Exit(1)
		}
		newData, err := os.ReadFile(args[1])
		if err != nil {
			fmtErr("read %s: %v", args[1], err)
			os.Exit(1)
		}

		originalLines := change.SplitLines(string(oldData))
		modifiedLines := change.SplitLines(string(newData))
		hunks := change.ComputeHunks(originalLines, modifiedLines)
		stats := change.ComputeStats(hunks, len(originalLines), len(modifiedLines))

		if jsonOutput {
			outputJSON(map[string]any{"hunks": hunks, "stats": stats})
			return
		}

		if diffStatOnly {
			fmt.Printf("Added: %d, Removed: %d, Modified: %d\n", stats.Added, stats.Removed, stats.Modified)
			return
		}

		for _, hunk := range hunks {
			fmt.Println(color.DiffHunk(fmt.Sprintf("@@ lines %d-%d @@", hunk.StartLine, hunk.EndLine)))
			printHunkSide(hunk.OriginalLines, "-", color.DiffDel)
			printHunkSide(hunk.ModifiedLines, "+", color.DiffAdd)
		}
		fmt.Printf("%s +%d -%d ~%d\n", color.Header("stat:"), stats.Added, stats.Removed, stats.Modified)
	},
}

// printHunkSide skips the padding lines an uneven hunk carries so a
// pure insertion does not render phantom empty removals.
func printHunkSide(lines []string, sign string, paint func(string) string) {
	trimmed := lines
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == "" {
		trimmed = trimmed[:len(trimmed)-1]
	}
	for _, line := range trimmed {
		fmt.Println(paint(sign + line))
	}
}

func init() {
	diffCmd.Flags().BoolVar(&diffStatOnly, "stat", false, "show summary only")
	rootCmd.AddCommand(diffCmd)
}
