package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/patchgate-project/patchgate/pkg/config"
)

var configInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage PatchGate configuration",
	Long: `Manage PatchGate configuration stored in ` + config.FileName + ` at the
workspace root.

Without a subcommand, prints the effective configuration (defaults
merged with the file). --init writes the defaults to disk.

Available commands:
  set <key> <value> - Set a configuration value
  get <key>         - Get a configuration value`,
	Run: func(cmd *cobra.Command, args []string) {
		ws, cfg := requireWorkspace()

		if configInit {
			if err := config.Save(ws.Root, cfg); err != nil {
				fmtErr("write config: %v", err)
				os.Exit(1)
			}
			fmt.Printf("wrote %s\n", filepath.Join(ws.Root, config.FileName))
			return
		}

		if jsonOutput {
			outputJSON(cfg)
			return
		}

		fmt.Printf("# PatchGate configuration\n# Location: %s\n\n", filepath.Join(ws.Root, config.FileName))
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmtErr("render config: %v", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in ` + config.FileName + `.

Examples:
  patchgate config set auto_backup false
  patchgate config set max_changes 50
  patchgate config set notify.webhook_url https://example.com/hook`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws, cfg := requireWorkspace()

		if err := cfg.Set(args[0], args[1]); err != nil {
			fmtErr("set config: %v", err)
			os.Exit(1)
		}
		if err := config.Save(ws.Root, cfg); err != nil {
			fmtErr("save config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg := requireWorkspace()

		value, err := cfg.Get(args[0])
		if err != nil {
			fmtErr("get config: %v", err)
			os.Exit(1)
		}
		fmt.Println(value)
	},
}

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "write the effective config to "+config.FileName)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
