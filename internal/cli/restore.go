package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchgate-project/patchgate/internal/change"
	"github.com/patchgate-project/patchgate/pkg/color"
	"github.com/patchgate-project/patchgate/pkg/fsutil"
)

var restoreBackupFile string

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Restore a file from its newest backup",
	Long: `Restore a file from its newest backup.

Backups are matched by basename inside the configured backup directory;
the one with the highest embedded timestamp wins. Use --backup to pick
an explicit backup file instead. The target is overwritten
unconditionally.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg := requireWorkspace()
		target := args[0]

		backupPath := restoreBackupFile
		if backupPath == "" {
			found, err := change.LatestBackup(cfg.ResolvedBackupDir(), target)
			if err != nil {
				fmtErr("find backup: %v", err)
				os.Exit(1)
			}
			if found == "" {
				fmtErr("no backup found for %s", target)
				os.Exit(1)
			}
			backupPath = found
		}

		data, err := os.ReadFile(backupPath)
		if err != nil {
			fmtErr("read backup: %v", err)
			os.Exit(1)
		}
		if err := fsutil.AtomicWrite(target, data, 0644); err != nil {
			fmtErr("restore %s: %v", target, err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]string{"restored": target, "backup": backupPath})
			return
		}
		fmt.Printf("%s %s from %s\n", color.Success("restored"), color.FilePath(target), backupPath)
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreBackupFile, "backup", "", "restore from this backup file instead of the newest")
	rootCmd.AddCommand(restoreCmd)
}
