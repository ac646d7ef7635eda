// Package workspace locates the project root that review activity is
// scoped to.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/patchgate-project/patchgate/pkg/config"
)

// Workspace represents the project a review session operates in.
type Workspace struct {
	Root string
}

// Discover walks up from start to find the workspace root: the nearest
// directory containing .patchgate.yaml or .git. When neither is found the
// starting directory itself is the root.
func Discover(start string) (*Workspace, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}

	path := abs
	for {
		if hasMarker(path) {
			return &Workspace{Root: path}, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			// Reached the filesystem root without a marker
			return &Workspace{Root: abs}, nil
		}
		path = parent
	}
}

func hasMarker(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return true
	}
	if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
		return true
	}
	return false
}

// Rel returns path relative to the workspace root, or the path unchanged
// when it lies outside the root.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return path
	}
	return rel
}

// Contains reports whether path lies under the workspace root.
func (w *Workspace) Contains(path string) bool {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !filepath.IsAbs(rel) && (len(rel) < 3 || rel[:3] != ".."+string(filepath.Separator))
}

// Config loads the workspace configuration.
func (w *Workspace) Config() (*config.Config, error) {
	return config.Load(w.Root)
}
