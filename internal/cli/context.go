package cli

import (
	"fmt"
	"os"

	"github.com/patchgate-project/patchgate/internal/workspace"
	"github.com/patchgate-project/patchgate/pkg/color"
	"github.com/patchgate-project/patchgate/pkg/config"
	"github.com/patchgate-project/patchgate/pkg/logging"
)

// requireWorkspace discovers the workspace from CWD and loads its
// config, or exits with error.
func requireWorkspace() (*workspace.Workspace, *config.Config) {
	cwd, err := os.Getwd()
	if err != nil {
		fmtErr("cannot get current directory: %v", err)
		os.Exit(1)
	}
	ws, err := workspace.Discover(cwd)
	if err != nil {
		fmtErr("discover workspace: %v", err)
		os.Exit(1)
	}
	cfg, err := config.Load(ws.Root)
	if err != nil {
		fmtErr("load config: %v", err)
		os.Exit(1)
	}
	if !verbose {
		logging.SetGlobal(logging.NewLogger(logging.ParseLevel(cfg.LogLevel)))
	}
	return ws, cfg
}

func fmtErr(format string, args ...any) {
	prefix := "patchgate: "
	if color.Enabled() {
		prefix = color.Error("patchgate:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
