package editor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/neovim/go-client/nvim"
)

// ListenAddressEnv is consulted when no explicit address is configured.
const ListenAddressEnv = "NVIM_LISTEN_ADDRESS"

// Nvim refreshes buffers in a running Neovim over msgpack-RPC.
type Nvim struct {
	client *nvim.Nvim
}

// ConnectNvim dials a Neovim instance. An empty address falls back to
// $NVIM_LISTEN_ADDRESS; when that is unset too there is nothing to
// attach to and an error is returned for the caller to downgrade.
func ConnectNvim(address string) (*Nvim, error) {
	if address == "" {
		address = os.Getenv(ListenAddressEnv)
	}
	if address == "" {
		return nil, fmt.Errorf("no nvim address configured and %s is unset", ListenAddressEnv)
	}
	client, err := nvim.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("dial nvim at %s: %w", address, err)
	}
	return &Nvim{client: client}, nil
}

// Refresh makes any buffer holding path re-read it from disk. checktime
// only reloads unmodified buffers, so a buffer with unsaved edits is
// left alone.
func (n *Nvim) Refresh(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	b := n.client.NewBatch()
	b.Command(fmt.Sprintf("checktime %s", absPath))
	return b.Execute()
}

// Close disconnects from the editor.
func (n *Nvim) Close() error {
	return n.client.Close()
}
