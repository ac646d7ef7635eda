package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/patchgate-project/patchgate/internal/workspace"
	"github.com/patchgate-project/patchgate/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_ConfigMarker(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "project")
	nested := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte("max_changes: 10\n"), 0644))

	w, err := workspace.Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, root, w.Root)
}

func TestDiscover_GitMarker(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "project")
	nested := filepath.Join(root, "internal", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))

	w, err := workspace.Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, root, w.Root)
}

func TestDiscover_NoMarkerFallsBack(t *testing.T) {
	dir := t.TempDir()
	start := filepath.Join(dir, "plain")
	require.NoError(t, os.MkdirAll(start, 0755))

	w, err := workspace.Discover(start)
	require.NoError(t, err)
	assert.Equal(t, start, w.Root)
}

func TestDiscover_ConfigWinsOverOuterGit(t *testing.T) {
	dir := t.TempDir()
	outer := filepath.Join(dir, "repo")
	inner := filepath.Join(outer, "svc")
	require.NoError(t, os.MkdirAll(inner, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(outer, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(inner, config.FileName), []byte(""), 0644))

	w, err := workspace.Discover(inner)
	require.NoError(t, err)
	assert.Equal(t, inner, w.Root)
}

func TestWorkspace_Rel(t *testing.T) {
	root := t.TempDir()
	w := &workspace.Workspace{Root: root}

	assert.Equal(t, filepath.Join("src", "main.go"), w.Rel(filepath.Join(root, "src", "main.go")))
	assert.Equal(t, "/elsewhere/file.go", w.Rel("/elsewhere/file.go"))
}

func TestWorkspace_Contains(t *testing.T) {
	root := t.TempDir()
	w := &workspace.Workspace{Root: root}

	assert.True(t, w.Contains(filepath.Join(root, "a.go")))
	assert.True(t, w.Contains(root))
	assert.False(t, w.Contains("/elsewhere/file.go"))
	assert.False(t, w.Contains(filepath.Dir(root)))
}

func TestWorkspace_Config(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte("max_changes: 7\n"), 0644))

	w := &workspace.Workspace{Root: root}
	cfg, err := w.Config()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxChanges)
}
