package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchgate-project/patchgate/internal/doctor"
	"github.com/patchgate-project/patchgate/pkg/color"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the review environment",
	Long: `Check the review environment.

Runs diagnostics over the workspace config, the backup directory and
its lease, the webhook URL, and the configured editor address. Nothing
is modified beyond a short-lived write probe in the backup directory.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws, _ := requireWorkspace()

		result, err := doctor.NewDoctor(ws.Root).Check()
		if err != nil {
			fmtErr("doctor: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(result)
			if !result.Healthy {
				os.Exit(1)
			}
			return
		}

		if len(result.Findings) == 0 {
			fmt.Printf("%s no problems found\n", color.Success("ok"))
			return
		}
		for _, finding := range result.Findings {
			glyph := color.Warning("!")
			if finding.Severity == "error" || finding.Severity == "critical" {
				glyph = color.Error("x")
			}
			fmt.Printf("%s [%s] %s\n", glyph, finding.Category, finding.Description)
			if finding.Path != "" {
				fmt.Printf("    %s\n", color.Dim(finding.Path))
			}
		}
		if !result.Healthy {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
