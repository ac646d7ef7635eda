package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patchgate-project/patchgate/internal/change"
	"github.com/patchgate-project/patchgate/pkg/color"
	"github.com/patchgate-project/patchgate/pkg/progress"
)

// backupProblem is one finding from a backup-directory scan.
type backupProblem struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the backup directory",
	Long: `Verify the backup directory.

Every regular file is expected to follow the <basename>_<timestamp>.bak
naming scheme and be readable. The lease file is exempt. Problems exit
non-zero.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg := requireWorkspace()
		dir := cfg.ResolvedBackupDir()

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				if !jsonOutput {
					fmt.Printf("%s backup directory not created yet\n", color.Success("ok"))
				}
				return
			}
			fmtErr("read backup dir: %v", err)
			os.Exit(1)
		}

		scan := progress.NewCountingTerminal("scanning backups", !jsonOutput)
		var problems []backupProblem
		checked := 0
		for _, entry := range entries {
			scan.Increment()
			name := entry.Name()
			if entry.IsDir() {
				problems = append(problems, backupProblem{Path: filepath.Join(dir, name), Reason: "unexpected directory"})
				continue
			}
			if name == "lease.json" || strings.HasPrefix(name, ".") {
				continue
			}
			path := filepath.Join(dir, name)
			if _, _, ok := change.ParseBackupName(name); !ok {
				problems = append(problems, backupProblem{Path: path, Reason: "does not match <basename>_<timestamp>.bak"})
				continue
			}
			file, err := os.Open(path)
			if err != nil {
				problems = append(problems, backupProblem{Path: path, Reason: fmt.Sprintf("unreadable: %v", err)})
				continue
			}
			file.Close()
			checked++
		}
		scan.Done("")

		if jsonOutput {
			outputJSON(map[string]any{"checked": checked, "problems": problems})
			if len(problems) > 0 {
				os.Exit(1)
			}
			return
		}

		for _, problem := range problems {
			fmt.Printf("%s %s: %s\n", color.Error("x"), problem.Path, problem.Reason)
		}
		if len(problems) > 0 {
			os.Exit(1)
		}
		fmt.Printf("%s %d backup(s) verified\n", color.Success("ok"), checked)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
