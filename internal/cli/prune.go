package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/patchgate-project/patchgate/internal/lock"
	"github.com/patchgate-project/patchgate/internal/prune"
	"github.com/patchgate-project/patchgate/pkg/color"
	"github.com/patchgate-project/patchgate/pkg/errclass"
)

var (
	pruneMaxAgeDays int
	pruneDryRun     bool
	pruneSteal      bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old backup files",
	Long: `Delete old backup files from the backup directory.

The cutoff defaults to the configured prune.max_age_days. A lease file
in the backup directory serializes concurrent pruners; --steal takes
over a lease whose holder let it expire.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg := requireWorkspace()

		maxAgeDays := pruneMaxAgeDays
		if maxAgeDays <= 0 {
			maxAgeDays = cfg.Prune.MaxAgeDays
		}
		maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
		dir := cfg.ResolvedBackupDir()

		pruner := prune.NewPruner(dir)
		plan, err := pruner.Plan(maxAge, nil)
		if err != nil {
			fmtErr("plan prune: %v", err)
			os.Exit(1)
		}

		if pruneDryRun {
			if jsonOutput {
				outputJSON(plan)
				return
			}
			for _, cand := range plan.ToDelete {
				fmt.Printf("would delete %s (taken %s)\n", cand.Path, cand.TakenAt.Format(time.DateOnly))
			}
			fmt.Printf("%d backup(s), %d bytes\n", len(plan.ToDelete), plan.EstimatedBytes)
			return
		}

		if len(plan.ToDelete) == 0 {
			if !jsonOutput {
				fmt.Println("nothing to prune")
			}
			outputJSON(plan)
			return
		}

		mgr := lock.NewManager(dir, lock.DefaultTTL)
		lease, err := mgr.Acquire("prune")
		if err != nil && pruneSteal && errors.Is(err, errclass.ErrLockConflict) {
			lease, err = mgr.Steal("prune")
		}
		if err != nil {
			fmtErr("acquire backup-dir lease: %v", err)
			os.Exit(1)
		}
		defer mgr.Release(lease.HolderNonce)

		deleted, err := pruner.Run(plan)
		if err != nil {
			fmtErr("prune: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"deleted": deleted, "plan": plan})
			return
		}
		fmt.Printf("%s %d backup(s), reclaimed ~%d bytes\n", color.Success("pruned"), deleted, plan.EstimatedBytes)
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneMaxAgeDays, "max-age", 0, "delete backups older than this many days (default from config)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show the plan without deleting")
	pruneCmd.Flags().BoolVar(&pruneSteal, "steal", false, "take over an expired lease")
	rootCmd.AddCommand(pruneCmd)
}
