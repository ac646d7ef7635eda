package patchgate

import (
	"os"

	"github.com/patchgate-project/patchgate/internal/editor"
	"github.com/patchgate-project/patchgate/pkg/config"
	"github.com/patchgate-project/patchgate/pkg/logging"
)

// DetectEditor returns the address of a reachable Neovim instance, or
// "" when none is discoverable. Detection priority: configured
// address > $NVIM_LISTEN_ADDRESS > $NVIM.
func DetectEditor(cfg *config.Config) string {
	if cfg != nil && cfg.Editor.NvimAddress != "" {
		return cfg.Editor.NvimAddress
	}
	if addr := os.Getenv(editor.ListenAddressEnv); addr != "" {
		return addr
	}
	return os.Getenv("NVIM")
}

// NewRefresher connects to the detected editor, downgrading to the
// no-op refresher when nothing is reachable. Connection problems are
// logged, never fatal: review decisions do not depend on an editor.
func NewRefresher(cfg *config.Config) editor.Refresher {
	address := DetectEditor(cfg)
	if address == "" {
		return editor.Nop{}
	}
	nvim, err := editor.ConnectNvim(address)
	if err != nil {
		logging.Warn("editor not reachable, refresh disabled", map[string]any{
			"address": address,
			"error":   err.Error(),
		})
		return editor.Nop{}
	}
	return nvim
}
